package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/meridian-lending/intake-cli/internal/categorize"
	"github.com/meridian-lending/intake-cli/internal/distribute"
	"github.com/meridian-lending/intake-cli/internal/extract"
	"github.com/meridian-lending/intake-cli/internal/intake"
	"github.com/meridian-lending/intake-cli/internal/merge"
	"github.com/meridian-lending/intake-cli/internal/preprocess"
	"github.com/meridian-lending/intake-cli/internal/registry"
	"github.com/meridian-lending/intake-cli/internal/resolve"
	"github.com/meridian-lending/intake-cli/internal/store"
	anthropicpkg "github.com/meridian-lending/intake-cli/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "intake.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initRegistry() (*registry.Registry, error) {
	return registry.LoadDir(cfg.Forms.Dir)
}

func initService(st store.Store) *intake.Service {
	gateway := extract.New(
		anthropicpkg.NewClient(cfg.Anthropic.Key),
		preprocess.NewRouter(preprocess.NewPdfToPPM("", 0)),
		extract.Config{
			Model:             cfg.Anthropic.Model,
			MaxTokens:         int64(cfg.Anthropic.MaxTokens),
			PageBudget:        cfg.Anthropic.PageBudget,
			CallTimeout:       time.Duration(cfg.Anthropic.CallTimeoutSecs) * time.Second,
			RequestsPerMinute: cfg.Anthropic.RequestsPerMinute,
		},
	)

	engine := merge.New(cfg.Merge.PriorTypes())
	resolver := resolve.New(nil, cfg.Resolve.FuzzyThreshold)

	return intake.New(
		gateway,
		categorize.New(nil),
		engine,
		st,
		distribute.New(resolver),
		intake.Config{
			MergeOptions: merge.Options{
				Strategy:       merge.Strategy(cfg.Merge.Strategy),
				SourcePriority: cfg.Merge.SourcePriorityTypes(),
			},
			ExtractConcurrency: cfg.Intake.ExtractConcurrency,
		},
	)
}
