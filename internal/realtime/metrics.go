package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "huddle_realtime_connected_clients",
		Help: "Number of clients currently registered with the hub",
	})

	broadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_realtime_broadcasts_total",
		Help: "Events fanned out by the hub, by event name",
	}, []string{"event"})

	droppedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "huddle_realtime_dropped_clients_total",
		Help: "Clients disconnected because their send queue was full",
	})

	// inboundEvents counts frames read from clients by event and outcome
	inboundEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_realtime_inbound_events_total",
		Help: "Frames received from clients by event name and result",
	}, []string{"event", "result"})
)
