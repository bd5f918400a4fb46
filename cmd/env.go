package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/rates"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/store"
)

// env bundles the wired dependencies commands operate on.
type env struct {
	Store        store.Store
	Policy       *rates.Policy
	Orchestrator *rates.Orchestrator
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close", zap.Error(err))
	}
}

// initEnv opens the configured store and wires the policy, adapters, and
// orchestrator.
func initEnv(ctx context.Context) (*env, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "postgres", "":
		ps, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		st = ps
	case "sqlite":
		ss, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		st = ss
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	policy, err := rates.NewPolicy(cfg.Eligibility)
	if err != nil {
		if cerr := st.Close(); cerr != nil {
			zap.L().Warn("store close", zap.Error(cerr))
		}
		return nil, err
	}

	adapters := rates.BuildAdapters(cfg)
	if len(adapters) == 0 {
		zap.L().Warn("no rate providers enabled")
	}

	orch := rates.NewOrchestrator(st, adapters, policy, cfg.Shipper,
		time.Duration(cfg.Fetch.AdapterTimeoutSecs)*time.Second)

	return &env{Store: st, Policy: policy, Orchestrator: orch}, nil
}
