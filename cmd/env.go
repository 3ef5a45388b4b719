package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/config"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/doubleclose"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/engine"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "dealengine.db"
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

// initEngine assembles the calculation engine from config. st may be nil for
// commands that never persist.
func initEngine(st store.Store) (*engine.Engine, error) {
	posture, err := policy.ParsePosture(cfg.Engine.DefaultPosture)
	if err != nil {
		return nil, err
	}

	tokens, err := config.LoadOrgTokens(cfg.Engine.OrgTokensFile)
	if err != nil {
		return nil, err
	}

	rateTable := doubleclose.DefaultRateTable()
	if cfg.DoubleClose.RateTablePath != "" {
		rateTable, err = doubleclose.LoadRateTable(cfg.DoubleClose.RateTablePath)
		if err != nil {
			return nil, err
		}
	}

	return engine.New(engine.Config{
		Store:          st,
		OrgID:          cfg.Engine.OrgID,
		DefaultPosture: posture,
		OrgTokens:      tokens,
		RateTable:      rateTable,
		MaxConcurrent:  cfg.Batch.MaxConcurrentDeals,
	}), nil
}
