// Package app assembles the agronomy services from configuration.
//
// Build opens the database, the optional Redis connection and the job queue,
// then wires every domain service on top of them. The API, worker and admin
// binaries all start from the same App so they agree on storage, quota and
// queue settings.
//
//	cfg, _ := config.LoadConfig()
//	a, err := app.Build(ctx, cfg, logger)
//	defer a.Shutdown.Shutdown(context.Background())
//	server := api.NewServer(a.Services, logger, a.Metrics)
package app
