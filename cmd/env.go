package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/riskintel-cli/internal/analysis"
	"github.com/sells-group/riskintel-cli/internal/audit"
	"github.com/sells-group/riskintel-cli/internal/cost"
	"github.com/sells-group/riskintel-cli/internal/ensemble"
	"github.com/sells-group/riskintel-cli/internal/gateway"
	"github.com/sells-group/riskintel-cli/internal/prompt"
	"github.com/sells-group/riskintel-cli/internal/router"
	"github.com/sells-group/riskintel-cli/internal/store"
	anthropicpkg "github.com/sells-group/riskintel-cli/pkg/anthropic"
)

// appEnv bundles the wired subsystems a command needs.
type appEnv struct {
	Store   store.Store
	Audit   *audit.Log
	Router  *router.Router
	Engine  *ensemble.Engine
	Limiter *gateway.Limiter
	Service *analysis.Service
	Prompts *prompt.Library
}

// initEnv wires the store, audit log, providers, router, ensemble engine,
// and analysis service from config. Commands that invoke providers need a
// credential up front; route and audit stay key-free.
func initEnv(ctx context.Context) (*appEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("config: anthropic.key is required (set RISKINTEL_ANTHROPIC_KEY)")
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	auditLog, err := audit.Open(cfg.Audit.Dir, cfg.Audit.BufferSize)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "open audit log")
	}

	prompts := prompt.Default()
	if cfg.Prompts.Path != "" {
		prompts, err = prompt.Load(cfg.Prompts.Path)
		if err != nil {
			st.Close()
			return nil, eris.Wrap(err, "load prompt library")
		}
	}

	rt, err := router.New(router.Config{
		ContextThreshold: cfg.Router.ContextThreshold,
		ImpactThreshold:  cfg.Router.ImpactThreshold,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	calc := cost.NewCalculator(cost.DefaultRates())
	limiter := gateway.NewLimiter(gateway.LimiterConfig{
		RequestsPerMinute: cfg.Gateway.RequestsPerMinute,
		BudgetUSD:         cfg.Gateway.BudgetUSD,
		BudgetWindow:      time.Duration(cfg.Gateway.BudgetWindowMinutes) * time.Minute,
	})

	wrap := func(name, model string) gateway.Provider {
		limited := gateway.NewLimitedProvider(
			gateway.NewAnthropicProvider(name, model, client, calc,
				gateway.WithGenerationDefaults(cfg.Anthropic.Temperature, cfg.Anthropic.MaxTokens)), limiter)
		limited.OnLimit = func(ev gateway.LimitEvent) {
			var err error
			if ev.Kind == "budget_limit" {
				_, err = auditLog.LogBudgetLimitHit("system", ev.Kind, ev.Current, ev.Limit)
			} else {
				_, err = auditLog.LogRateLimitHit("system", ev.Kind, int(ev.Current), int(ev.Limit))
			}
			if err != nil {
				zap.L().Warn("failed to audit limit event", zap.Error(err))
			}
		}
		return limited
	}
	primary := wrap("primary", cfg.Anthropic.PrimaryModel)
	secondary := wrap("secondary", cfg.Anthropic.SecondaryModel)

	engine, err := ensemble.New(primary, secondary, ensemble.Config{
		AgreeThreshold:     cfg.Ensemble.AgreeThreshold,
		DeviationThreshold: cfg.Ensemble.DeviationThreshold,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	svc, err := analysis.New(rt, primary, secondary, engine, prompts, auditLog, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &appEnv{
		Store:   st,
		Audit:   auditLog,
		Router:  rt,
		Engine:  engine,
		Limiter: limiter,
		Service: svc,
		Prompts: prompts,
	}, nil
}

// Close flushes the audit log and releases the store.
func (e *appEnv) Close() {
	if err := e.Audit.Close(); err != nil {
		zap.L().Warn("audit close failed", zap.Error(err))
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}
