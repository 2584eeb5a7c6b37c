package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/agronomy/pkg/app"
	"github.com/platinummonkey/agronomy/pkg/config"
	"github.com/platinummonkey/agronomy/pkg/observability"
)

var version = "dev"

func main() {
	sweepOnly := flag.Bool("sweep-only", false, "Run only the stale job sweeper")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		observability.Default().WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", "agronomy-worker")
	observability.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *sweepOnly); err != nil {
		logger.WithError(err).Error("Worker stopped with error")
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger, sweepOnly bool) error {
	if err := cfg.Queue.RequireSharedWith(false); err != nil {
		return err
	}
	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return err
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.Shutdown.Register("opentelemetry", otelProviders.Shutdown)
	defer func() {
		if err := a.Shutdown.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Shutdown incomplete")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if !sweepOnly {
		w, err := a.Worker(gctx)
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}
	if cfg.Sweeper.Enabled || sweepOnly {
		g.Go(func() error { return a.Sweeper().Start(gctx) })
	}

	g.Go(func() error { return reportQueueDepth(gctx, a, logger) })

	opsMux := http.NewServeMux()
	observability.RegisterHealthRoutes(opsMux, a.HealthChecker(version))
	if cfg.Observability.MetricsEnabled {
		opsMux.Handle("/metrics", observability.MetricsHandler(a.Registry))
	}
	opsServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: opsMux,
	}
	g.Go(func() error {
		logger.Infof("Health and metrics on %s", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return opsServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// reportQueueDepth publishes the queue gauge every 15 seconds
func reportQueueDepth(ctx context.Context, a *app.App, logger *observability.Logger) error {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			depth, err := a.Queue.Depth(ctx)
			if err != nil {
				logger.WithError(err).Warn("failed to read queue depth")
				continue
			}
			a.Metrics.QueueDepth.WithLabelValues("ready").Set(float64(depth.Ready))
			a.Metrics.QueueDepth.WithLabelValues("in_flight").Set(float64(depth.InFlight))
		}
	}
}
