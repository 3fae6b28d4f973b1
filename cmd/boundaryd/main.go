// boundaryd keeps the boundary index and the shared persistent cache warm:
// it loads the village boundary payload at startup, consumes tally-update
// events to invalidate cached datasets, and exposes health and metrics
// endpoints. The dashboard API processes mount the same packages in-process;
// this daemon exists so their cold starts hit a warm cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Pracylop/uganda-electoral-map-sub003/internal/boundary"
	"github.com/Pracylop/uganda-electoral-map-sub003/internal/cache"
	"github.com/Pracylop/uganda-electoral-map-sub003/internal/results"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/config"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/health"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/kafka"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/logger"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/metrics"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/middleware"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/postgres"
	pkgredis "github.com/Pracylop/uganda-electoral-map-sub003/pkg/redis"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/resilience"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/boundaryd.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting boundaryd", "port", cfg.Server.Port, "payload_url", cfg.Boundary.PayloadURL)

	m := metrics.New()
	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, persistent cache tier disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	tiers := cache.NewTiered(cache.NewMemory(), redisClient, m, cfg.Cache)
	fetcher := boundary.NewFetcher(cfg.Boundary)
	index := boundary.New(fetcher, tiers, m, cfg.Cache.BoundaryTTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The index never retries on its own; this daemon is the caller, and it
	// retries the startup load with backoff. On final failure it stays up
	// and reports unhealthy until restarted or reloaded.
	go func() {
		err := resilience.Retry(ctx, "boundary_load", resilience.RetryConfig{
			MaxAttempts: cfg.Boundary.LoadAttempts,
		}, func() error {
			return index.Load(ctx)
		})
		if err != nil {
			slog.Error("boundary load failed, boundaries unavailable", "error", err)
			return
		}
		stats := index.Stats()
		slog.Info("boundary cache warm",
			"features", stats.TotalFeatures,
			"districts", stats.PerLevelCounts[boundary.LevelDistrict],
			"villages", stats.PerLevelCounts[boundary.LevelVillage],
		)
	}()

	// Tally datasets are pre-warmed only when elections are configured; the
	// daemon runs fine without a tally store at all.
	if len(cfg.Results.WarmElections) > 0 {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("tally store unavailable, dataset warmer disabled", "error", err)
		} else {
			defer db.Close()
			provider := results.NewProvider(db, tiers, cfg.Cache)
			warmer := results.NewWarmer(provider, cfg.Results, cfg.Cache.ResultsTTL)
			go warmer.Run(ctx)
			slog.Info("dataset warmer started", "elections", cfg.Results.WarmElections)
		}
	}

	invalidator := results.NewInvalidator(tiers)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ResultsInvalidate, invalidator.Handle)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("invalidation consumer error", "error", err)
		}
	}()
	slog.Info("invalidation consumer started", "topic", cfg.Kafka.Topics.ResultsInvalidate)

	checker := health.NewChecker()
	checker.Register("boundary_index", func(ctx context.Context) health.ComponentHealth {
		if !index.Loaded() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "not loaded"}
		}
		stats := index.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d features", stats.TotalFeatures),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "persistent tier disabled"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz/live", checker.LiveHandler())
	mux.HandleFunc("/healthz/ready", checker.ReadyHandler())
	handler := middleware.Metrics(m)(middleware.Timeout(cfg.Server.HandlerTimeout)(mux))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		slog.Info("admin server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("admin server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("admin server shutdown error", "error", err)
	}
	if shutdownMetrics != nil {
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}
	if err := consumer.Close(); err != nil {
		slog.Error("consumer close error", "error", err)
	}
	slog.Info("boundaryd stopped")
}
