// Package server exposes graph building and solution extraction over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/piwi3910/arcflow/internal/cache"
	"github.com/piwi3910/arcflow/internal/model"
	"github.com/piwi3910/arcflow/internal/project"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 32 << 20
	shutdownTimeout = 10 * time.Second
)

// Config holds the server's collaborators. History and Cache are
// optional; a nil History disables run recording and a nil Cache builds
// every graph.
type Config struct {
	Logger   *slog.Logger
	History  *project.History
	Cache    *cache.GraphCache
	Defaults model.AppConfig
	Metrics  *Metrics
}

// Server is the arc-flow HTTP API.
type Server struct {
	logger   *slog.Logger
	history  *project.History
	cache    *cache.GraphCache
	defaults model.AppConfig
	metrics  *Metrics
	router   *gin.Engine
}

// New builds the router for cfg.
func New(cfg Config) *Server {
	s := &Server{
		logger:   cfg.Logger,
		history:  cfg.History,
		cache:    cfg.Cache,
		defaults: cfg.Defaults,
		metrics:  cfg.Metrics,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog())

	api := r.Group("/api/v1")
	{
		api.GET("/health", s.handleHealth)
		api.POST("/graphs", s.handleCreateGraph)
		api.DELETE("/graphs/:digest", s.handleEvictGraph)
		api.POST("/solutions", s.handleCreateSolution)
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	s.router = r
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// requestID tags every request with an id, reusing the client's when it
// sends one.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.metrics.RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		s.logger.Info("request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
		)
	}
}

// log returns the server logger tagged with the request id.
func (s *Server) log(c *gin.Context) *slog.Logger {
	return s.logger.With("request_id", c.GetString("request_id"))
}
