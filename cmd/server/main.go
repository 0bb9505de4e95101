package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/geekdaily/escape-the-algo/internal/config"
	"github.com/geekdaily/escape-the-algo/internal/discovery"
	"github.com/geekdaily/escape-the-algo/internal/handler"
	"github.com/geekdaily/escape-the-algo/internal/history"
	"github.com/geekdaily/escape-the-algo/internal/metrics"
	"github.com/geekdaily/escape-the-algo/internal/middleware"
	"github.com/geekdaily/escape-the-algo/internal/models"
	"github.com/geekdaily/escape-the-algo/internal/service"
	"github.com/geekdaily/escape-the-algo/internal/service/geolocation"
	"github.com/geekdaily/escape-the-algo/internal/service/youtube"
	"github.com/geekdaily/escape-the-algo/internal/session"
	"github.com/geekdaily/escape-the-algo/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	store, pool, err := initStore(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("failed to initialize history store", zap.Error(err))
	}
	if pool != nil {
		defer pool.Close()
	}

	provider, err := youtube.NewClient(ctx, cfg.YouTube.APIKey)
	if err != nil {
		logger.Log.Fatal("failed to initialize video provider", zap.Error(err))
	}

	geoClient := geolocation.NewClient(cfg.Geolocation.Endpoint, cfg.Geolocation.Timeout, models.GeoLocation{
		Latitude:  cfg.Geolocation.DefaultLat,
		Longitude: cfg.Geolocation.DefaultLon,
		City:      cfg.Geolocation.DefaultCity,
		Region:    cfg.Geolocation.DefaultRegion,
		Country:   cfg.Geolocation.DefaultCountry,
	})

	// Outcome publishing is optional; without a broker the service runs
	// standalone.
	var publisher *service.MessagePublisher
	if cfg.RabbitMQ.Host != "" {
		publisher, err = service.NewMessagePublisher(&cfg.RabbitMQ)
		if err != nil {
			logger.Log.Warn("failed to initialize message publisher, outcome events disabled",
				zap.Error(err),
			)
			publisher = nil
		} else {
			defer func() { _ = publisher.Close() }()
		}
	}

	engine := discovery.NewEngine(provider, cfg.Discovery.StartRadiusMiles, cfg.YouTube.MaxResults)
	controller := session.NewController(engine, store, cfg.Discovery.MinDuration, cfg.Discovery.MaxDuration)
	controller.SetTerminalHook(terminalHook(publisher))

	router := buildRouter(cfg, controller, geoClient, store, pool, publisher)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Log.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("storageBackend", cfg.Storage.Backend),
		)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Log.Fatal("server error", zap.Error(err))
	case sig := <-shutdown:
		logger.Log.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Log.Error("graceful shutdown failed", zap.Error(err))
			if err := server.Close(); err != nil {
				logger.Log.Error("failed to close server", zap.Error(err))
			}
			os.Exit(1)
		}

		logger.Log.Info("server stopped gracefully")
	}
}

// initStore builds the configured history backend. The pool is non-nil only
// for the postgres backend, where it doubles as the readiness pinger.
func initStore(ctx context.Context, cfg *config.Config) (history.Store, *pgxpool.Pool, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		poolConfig, err := pgxpool.ParseConfig(cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse database URL: %w", err)
		}
		poolConfig.MaxConns = 10
		poolConfig.MinConns = 2
		poolConfig.MaxConnLifetime = time.Hour
		poolConfig.MaxConnIdleTime = 30 * time.Minute

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return history.NewPostgresStore(pool), pool, nil
	default:
		store, err := history.NewFileStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}

// terminalHook wires metrics and optional outcome publishing to the state
// machine without coupling it to either.
func terminalHook(publisher *service.MessagePublisher) session.TerminalFunc {
	return func(state session.State, outcome discovery.Outcome, elapsed time.Duration) {
		metrics.DiscoveryRuns.WithLabelValues(string(state.Phase)).Inc()
		metrics.ProviderSearches.Add(float64(outcome.Steps))
		metrics.RunDuration.Observe(elapsed.Seconds())
		if state.Phase == session.PhaseFound {
			metrics.WinningRadius.Observe(float64(outcome.RadiusMiles))
		}

		if publisher == nil {
			return
		}

		event := &service.DiscoveryEvent{
			EventID:     uuid.New(),
			RunID:       state.RunID,
			Outcome:     string(state.Phase),
			RadiusMiles: outcome.RadiusMiles,
			Steps:       outcome.Steps,
			DurationMS:  elapsed.Milliseconds(),
			OccurredAt:  time.Now(),
		}
		if state.Video != nil {
			event.VideoID = state.Video.ID
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := publisher.PublishOutcome(ctx, event); err != nil {
			logger.Log.Error("failed to publish discovery outcome",
				zap.Uint64("runId", state.RunID),
				zap.Error(err),
			)
		}
	}
}

func buildRouter(
	cfg *config.Config,
	controller *session.Controller,
	geoClient *geolocation.Client,
	store history.Store,
	pool *pgxpool.Pool,
	publisher *service.MessagePublisher,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	discoveryHandler := handler.NewDiscoveryHandler(controller, geoClient)
	historyHandler := handler.NewHistoryHandler(store)
	geoHandler := handler.NewGeolocationHandler(geoClient)

	var pinger handler.Pinger
	if pool != nil {
		pinger = pool
	}
	healthHandler := handler.NewHealthHandler(pinger, publisher)

	auth := middleware.NewAPIKeyAuth(cfg.Server.APIKeys)

	api := router.Group("/api/v1", auth.Middleware())
	{
		api.POST("/discovery", discoveryHandler.StartDiscovery)
		api.GET("/discovery", discoveryHandler.GetState)
		api.GET("/discovery/:run/result", discoveryHandler.WaitResult)
		api.POST("/videos/:id/played", discoveryHandler.MarkPlayed)
		api.GET("/history", historyHandler.ListHistory)
		api.DELETE("/history", historyHandler.ClearHistory)
		api.GET("/geolocation", geoHandler.GetGeolocation)
	}

	router.GET("/health/live", healthHandler.LivenessProbe)
	router.GET("/health/ready", healthHandler.ReadinessProbe)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}
