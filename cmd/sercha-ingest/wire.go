package main

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/services"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// buildApp loads the configuration, opens the store and assembles one
// lifecycle per configured ingestion.
func buildApp(ctx context.Context, opts cli.Options, factory driven.SourceFactory) (*cli.App, error) {
	cfg, err := file.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		logger.SetVerbose(true)
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("store: %s", store.Path())

	lifecycles := make([]*services.Lifecycle, 0, len(cfg.Ingestions))
	watchers := make(map[string]driven.Watcher)
	for _, ic := range cfg.Ingestions {
		src, err := factory.Create(ctx, ic.Provider, ic.Type, ic.Options)
		if err != nil {
			store.Close()
			return nil, err
		}
		if w, ok := src.(driven.Watcher); ok {
			watchers[ic.Provider] = w
		}
		lifecycles = append(lifecycles, services.NewLifecycle(
			store.IngestionStore(),
			src,
			store.TargetStore(),
			ic.Domain(),
		))
	}

	ingestion := services.NewIngestionService(lifecycles...)
	scheduler := services.NewScheduler(cfg.SchedulerDomain(), store.SchedulerStore(), ingestion)

	return &cli.App{
		Ingestion: ingestion,
		Scheduler: scheduler,
		Watchers:  watchers,
		Close:     store.Close,
	}, nil
}
