// Command callguardd runs the call governance daemon: it hosts the
// circuit breaker registry, rate limiter, and usage tracker behind a
// status HTTP surface and keeps their periodic maintenance jobs
// running on a cron schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"callguard/internal/config"
	chttp "callguard/internal/handler/http"
	"callguard/internal/observability/logging"
	"callguard/internal/observability/tracing"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "callguard.yaml", "path to YAML configuration file")
	flag.Parse()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration",
			slog.String("path", *configPath),
			slog.Any("error", err))
		os.Exit(1)
	}
	for _, w := range warnings {
		logger.Warn("configuration fallback applied", slog.String("warning", w))
	}

	comp := cfg.Build(logger)
	logger.Info("governance layer initialized",
		slog.Int("breakers", len(comp.Registry.Names())),
		slog.String("listen_addr", cfg.ListenAddr))

	scheduler, err := startScheduler(cfg, comp, logger)
	if err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	server := newStatusServer(cfg, comp, logger)
	go func() {
		logger.Info("status server started", slog.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	waitForShutdown(logger)

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("status server shutdown failed", slog.Any("error", err))
	}
	logger.Info("shutdown complete")
}

// startScheduler runs the periodic maintenance jobs: usage period
// rollover and rate-limit key cleanup.
func startScheduler(cfg *config.Config, comp *config.Components, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	if _, err := c.AddFunc(cfg.RolloverSchedule, func() {
		if comp.Tracker.Rollover() {
			logger.Info("usage period rolled over",
				slog.Time("period_start", comp.Tracker.PeriodStart()))
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(cfg.CleanupSchedule, func() {
		removed := comp.Limiter.Cleanup()
		if removed > 0 {
			logger.Debug("rate limiter cleanup", slog.Int("removed_keys", removed))
		}
	}); err != nil {
		return nil, err
	}

	c.Start()
	logger.Info("scheduler started",
		slog.String("rollover_schedule", cfg.RolloverSchedule),
		slog.String("cleanup_schedule", cfg.CleanupSchedule))
	return c, nil
}

// newStatusServer builds the HTTP server exposing the snapshot,
// liveness, and metrics endpoints.
func newStatusServer(cfg *config.Config, comp *config.Components, logger *slog.Logger) *http.Server {
	// Usage counters register against the default registry; breaker and
	// rate-limit metrics carry their own. Serve all three together.
	gatherers := prometheus.Gatherers{
		prometheus.DefaultGatherer,
		comp.BreakerMetrics.Registry(),
		comp.RateLimitMetrics.Registry(),
	}

	mux := http.NewServeMux()
	mux.Handle("/statusz", &chttp.StatusHandler{
		Aggregator: comp.Aggregator,
		Version:    version,
		Logger:     logger,
	})
	mux.Handle("/healthz", &chttp.LiveHandler{})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           tracing.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func waitForShutdown(logger *slog.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	logger.Info("shutdown signal received", slog.String("signal", received.String()))
}
