package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"huddle/internal/models"
	"huddle/internal/mutation"
	"huddle/internal/realtime"
	"huddle/internal/storage"
)

// Server provides the HTTP and realtime handlers for the shared board.
type Server struct {
	engine    *gin.Engine
	store     storage.Store
	hub       *realtime.Hub
	mutations *mutation.Service
	sockets   *realtime.Manager
	logger    *slog.Logger
	staticDir string
}

// New constructs the HTTP server with routes and middleware configured.
func New(store storage.Store, hub *realtime.Hub, logger *slog.Logger, staticDir string) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/healthz", "/metrics"))
	router.Use(allowAllOrigins())

	mutations := mutation.New(store, hub, nil, logger)
	srv := &Server{
		engine:    router,
		store:     store,
		hub:       hub,
		mutations: mutations,
		sockets:   realtime.NewManager(hub, mutations, logger, realtime.DefaultOptions()),
		logger:    logger,
		staticDir: staticDir,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API, realtime and static handlers together.
func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.GET("/socket", s.handleSocket)

	tasks := s.engine.Group("/tasks")
	{
		tasks.GET("", s.handleListTasks)
		tasks.POST("", s.handleCreateTask)
		tasks.PATCH("/:id", s.handleUpdateTask)
		tasks.DELETE("/:id", s.handleDeleteTask)
	}

	s.mountStatic()
}

// handleHealth reports store reachability and the number of live sockets.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.hub.ClientCount()})
}

// handleSocket hands the request to the realtime connection manager.
func (s *Server) handleSocket(c *gin.Context) {
	s.sockets.ServeWS(c.Writer, c.Request)
}

// allowAllOrigins answers CORS preflights and tags every response so
// browser clients on other origins can call the API.
func allowAllOrigins() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// respondError maps err onto a status and returns a JSON error payload.
// Not-found and validation errors keep their own status; anything else is a
// store failure reported with fallback and msg.
func (s *Server) respondError(c *gin.Context, fallback int, msg string, err error) {
	status := fallback
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status, msg = http.StatusNotFound, "Task not found"
	case errors.Is(err, models.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": msg})
}
