package mutation

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"huddle/internal/models"
	"huddle/internal/storage"
)

var mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "huddle_mutations_total",
	Help: "Mutation handler calls by operation and result",
}, []string{"op", "result"})

func observe(op string, err error) {
	mutationsTotal.WithLabelValues(op, result(err)).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrValidation):
		return "invalid"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	default:
		return "store_error"
	}
}
