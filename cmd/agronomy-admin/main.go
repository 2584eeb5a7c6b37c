package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinummonkey/agronomy/pkg/analysis"
	"github.com/platinummonkey/agronomy/pkg/app"
	"github.com/platinummonkey/agronomy/pkg/cli"
	"github.com/platinummonkey/agronomy/pkg/config"
	"github.com/platinummonkey/agronomy/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(load, os.Stdout)
	if err := root.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func load(ctx context.Context) (*cli.Env, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stderr).WithField("service", "agronomy-admin")
	observability.SetDefault(logger)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := a.Shutdown.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("Shutdown incomplete")
		}
	}

	sweeper := a.Sweeper()
	return &cli.Env{
		Users:   a.Services.Auth,
		Orgs:    a.Services.Orgs,
		Migrate: a.Migrate,
		Sweep: func(ctx context.Context) (analysis.SweepResult, error) {
			return sweeper.Sweep(ctx)
		},
		CleanupAudit: a.CleanupAudit,
	}, release, nil
}
