// Package server wires the components and owns the HTTP surface.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/webpilot/backend/internal/agent"
	"github.com/webpilot/backend/internal/ai"
	"github.com/webpilot/backend/internal/bus"
	"github.com/webpilot/backend/internal/config"
	"github.com/webpilot/backend/internal/dispatch"
	"github.com/webpilot/backend/internal/extract"
	"github.com/webpilot/backend/internal/fetch"
	"github.com/webpilot/backend/internal/logging"
	"github.com/webpilot/backend/internal/monitoring"
	"github.com/webpilot/backend/internal/page"
	"github.com/webpilot/backend/internal/ws"
)

// Server wraps the router and shared dependencies.
type Server struct {
	router *gin.Engine
	cfg    *config.Config
	logger *logging.Logger
	hub    *bus.Hub
}

// New builds a fully wired server. Construction fails when the agent
// runtime cannot be created (missing credential); the summarizer path
// alone degrades gracefully without one.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	metrics, registry := monitoring.NewMetrics()

	store := page.NewStore()
	pageClient := fetch.NewClient(cfg.Fetch.Timeout, cfg.Fetch.UserAgent)
	fetcher := fetch.NewFetcher(pageClient, store, logger)

	aiCfg := ai.Config{
		APIKey:    cfg.AI.APIKey,
		Model:     cfg.AI.Model,
		Endpoint:  cfg.AI.Endpoint,
		MaxTokens: cfg.AI.MaxTokens,
	}
	aiClient := fetch.NewClient(cfg.AI.Timeout, cfg.Fetch.UserAgent)
	summarizer := ai.NewSummarizer(aiCfg, aiClient, fetcher, logger)

	runtime, err := agent.NewOpenAIRuntime(aiCfg, aiClient, logger)
	if err != nil {
		return nil, fmt.Errorf("agent runtime: %w", err)
	}

	extractor := extract.NewExtractor(store, summarizer, logger)
	hub := bus.NewHub(logger, metrics)
	dispatcher := dispatch.NewDispatcher(hub, fetcher, extractor, runtime, cfg.AI.Model, logger, metrics)
	wsHandler := ws.NewHandler(hub, dispatcher, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(metrics.Middleware())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "webpilot-backend",
			"status":  "running",
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"connections": hub.Count(),
			"time":        time.Now().UTC(),
		})
	})
	router.GET("/stream", wsHandler.HandleConnection)
	router.GET("/metrics", monitoring.Handler(registry))

	return &Server{
		router: router,
		cfg:    cfg,
		logger: logger,
		hub:    hub,
	}, nil
}

// Run starts serving. A bind failure is returned to the caller and
// aborts startup.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.logger.Info("server starting", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router exposes the gin engine, used by tests to serve over httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close flushes the logger.
func (s *Server) Close() error {
	// Sync on stdout fails on some platforms; nothing actionable.
	_ = s.logger.Sync()
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
