// Package server wires the daemon together: configuration, logging, the host
// connection, the synchronization engine, and the HTTP/WebSocket API.
package server

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/forgeide/pkgsync/internal/api/http"
	"github.com/forgeide/pkgsync/internal/api/middleware"
	"github.com/forgeide/pkgsync/internal/api/ws"
	"github.com/forgeide/pkgsync/internal/domain/sync"
	"github.com/forgeide/pkgsync/internal/host"
	"github.com/forgeide/pkgsync/internal/host/dispatch"
	"github.com/forgeide/pkgsync/internal/host/rpc"
	"github.com/forgeide/pkgsync/internal/host/watch"
	"github.com/forgeide/pkgsync/internal/infrastructure/config"
	"github.com/forgeide/pkgsync/internal/infrastructure/logging"
	"github.com/forgeide/pkgsync/internal/infrastructure/monitoring"
	"github.com/forgeide/pkgsync/internal/notify"
)

// Server wraps the HTTP server and the engine's collaborators.
type Server struct {
	router  *gin.Engine
	engine  *sync.Engine
	client  *rpc.Client
	watcher *watch.Watcher
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics

	cancel context.CancelFunc
}

// NewServer creates a fully wired server. The host connection is optional:
// when it cannot be established the engine stays disabled and the read API
// serves defaults.
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Initializing package sync daemon",
		zap.String("port", cfg.Server.Port),
		zap.String("host_url", cfg.Host.URL),
	)

	metrics := monitoring.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())

	// The coordinating loop is the single execution context for host calls.
	loop := dispatch.NewLoop()
	go loop.Run(ctx)

	// Connect to the package-management host (optional). The relay absorbs
	// notifications that arrive before the engine exists.
	relay := &changeRelay{}
	var client *rpc.Client
	if cfg.Host.Enabled && cfg.Host.URL != "" {
		c, err := rpc.Dial(ctx, cfg.Host.URL, logger.Named("host"), relay.Handle)
		if err != nil {
			logger.Warn("Failed to connect to package-management host, engine stays disabled",
				zap.Error(err))
		} else {
			client = c.WithMetrics(metrics)
			logger.Info("Connected to package-management host", zap.String("url", cfg.Host.URL))
		}
	}

	// Notification sinks for install/uninstall failures.
	sinks := notify.Multi{notify.NewLogSink(logger.Named("notify"))}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notify.WebhookURL, logger.Named("webhook")))
	}

	deps := sync.Deps{
		Dispatcher: loop,
		Sink:       sinks,
		Log:        logger.Named("sync"),
		Metrics:    metrics,
		Window:     cfg.Sync.Window,
	}
	if client != nil {
		deps.Packages = client
		deps.Solution = client
		deps.Sources = client
		deps.Manager = client
	}
	engine := sync.NewEngine(ctx, deps)
	if err := engine.EnableService(); err != nil {
		cancel()
		return nil, err
	}
	relay.Bind(engine.HandleChange)
	engine.StartWorking()

	// Optional filesystem change source alongside host notifications.
	var watcher *watch.Watcher
	if cfg.Watch.Enabled && len(cfg.Watch.Dirs) > 0 {
		w, err := watch.New(cfg.Watch.Dirs, logger.Named("watch"), engine.HandleChange)
		if err != nil {
			logger.Warn("Failed to start manifest watcher", zap.Error(err))
		} else {
			watcher = w
			go watcher.Run(ctx)
			logger.Info("Watching manifest directories", zap.Strings("dirs", cfg.Watch.Dirs))
		}
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS())
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}

	handlers := apihttp.NewHandlers(engine)
	wsHandler := ws.NewHandler(engine.Events(), logger.Named("ws"), metrics)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"state":  engine.State().String(),
		})
	})
	handlers.RegisterRoutes(router.Group("/api/v1"))
	router.GET("/stream", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		engine:  engine,
		client:  client,
		watcher: watcher,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		cancel:  cancel,
	}, nil
}

// Engine exposes the synchronization engine, for embedding callers.
func (s *Server) Engine() *sync.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until it fails.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close shuts the daemon down, cancelling in-flight work.
func (s *Server) Close() error {
	s.logger.Info("Shutting down...")

	s.engine.Close()
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.logger.Error("Failed to close watcher", zap.Error(err))
		}
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Error("Failed to close host connection", zap.Error(err))
		}
	}
	s.cancel()

	s.logger.Sync()
	return nil
}

// changeRelay forwards host change notifications to a handler bound after the
// connection is already live. Events arriving before Bind are dropped, which
// is safe because the engine's initial scan covers the whole solution.
type changeRelay struct {
	handler atomic.Pointer[host.ChangeHandler]
}

// Bind installs the handler. Safe to call while notifications are arriving.
func (r *changeRelay) Bind(fn host.ChangeHandler) {
	r.handler.Store(&fn)
}

// Handle implements host.ChangeHandler delivery for the relay.
func (r *changeRelay) Handle(event host.ChangeEvent) {
	if fn := r.handler.Load(); fn != nil {
		(*fn)(event)
	}
}
