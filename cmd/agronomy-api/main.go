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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/agronomy/pkg/api"
	"github.com/platinummonkey/agronomy/pkg/app"
	"github.com/platinummonkey/agronomy/pkg/config"
	"github.com/platinummonkey/agronomy/pkg/observability"
)

var version = "dev"

func main() {
	withWorker := flag.Bool("with-worker", false, "Run the analysis worker and sweeper in this process")
	migrate := flag.Bool("migrate", true, "Apply pending database migrations on startup")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		observability.Default().WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", "agronomy-api")
	observability.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *withWorker, *migrate); err != nil {
		logger.WithError(err).Error("API server stopped with error")
		os.Exit(1)
	}
	logger.Info("API server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger, withWorker, migrate bool) error {
	if err := cfg.Queue.RequireSharedWith(withWorker); err != nil {
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

	if migrate {
		if err := a.Migrate(ctx); err != nil {
			return err
		}
	}
	a.DB.StartHealthCheckRoutine(ctx, 0)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = a.Metrics
	}
	server := api.NewServer(a.Services, logger, metrics)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(server, "agronomy-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	opsMux := http.NewServeMux()
	observability.RegisterHealthRoutes(opsMux, a.HealthChecker(version))
	if cfg.Observability.MetricsEnabled {
		opsMux.Handle("/metrics", observability.MetricsHandler(a.Registry))
	}
	opsServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: opsMux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("Starting agronomy API on %s", httpServer.Addr)
		return serve(httpServer)
	})
	g.Go(func() error {
		logger.Infof("Health and metrics on %s", opsServer.Addr)
		return serve(opsServer)
	})

	if withWorker {
		w, err := a.Worker(gctx)
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
		if cfg.Sweeper.Enabled {
			g.Go(func() error { return a.Sweeper().Start(gctx) })
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(httpServer.Shutdown(shutdownCtx), opsServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func serve(s *http.Server) error {
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
