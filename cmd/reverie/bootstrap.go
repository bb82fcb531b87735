package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/duskpoint/reverie/internal/actors"
	"github.com/duskpoint/reverie/internal/config"
	"github.com/duskpoint/reverie/internal/llm"
	"github.com/duskpoint/reverie/internal/observability"
	"github.com/duskpoint/reverie/internal/tools"
	"github.com/duskpoint/reverie/internal/tools/catalog"
	"github.com/duskpoint/reverie/internal/workflow"
)

// runtime bundles everything a command needs after bootstrap.
type runtime struct {
	cfg     *config.Config
	log     *slog.Logger
	store   actors.Store
	engine  *workflow.Engine
	metrics *observability.Metrics

	shutdown []func(context.Context) error
}

// bootstrap wires the full dependency graph from a config file.
func bootstrap(ctx context.Context, configPath string, withMetrics bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := observability.NewLogger(cfg.Logging)
	slog.SetDefault(log)

	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var metrics *observability.Metrics
	if withMetrics && cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(nil)
	}

	client, err := buildClient(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if metrics != nil {
		provider := client.Name()
		client = llm.Observed(client, llm.HookFunc(func(_ context.Context, req *llm.Request, _ *llm.Response, _ error, elapsed time.Duration) {
			// The gathering phase is the one that offers tools.
			phase := "decide"
			if len(req.Tools) > 0 {
				phase = "gather"
			}
			metrics.CompletionDuration.WithLabelValues(provider, phase).Observe(elapsed.Seconds())
		}))
	}

	registry := tools.NewRegistry()
	world := catalog.NewMemoryWorld()
	catalog.Register(registry, world, world)
	if cfg.Database.Driver != "memory" {
		// Actors persist in the configured database, but the built-in tool
		// catalog still runs against an in-memory demo world; production
		// tool backends are external integrations.
		log.Warn("tool catalog backed by in-memory demo world",
			"database_driver", cfg.Database.Driver)
	}

	execCfg := &tools.ExecutorConfig{
		MaxConcurrency: cfg.Loop.ToolConcurrency,
		DefaultTimeout: cfg.Loop.ToolTimeout,
		DefaultRetries: 1,
		RetryBackoff:   tools.DefaultExecutorConfig().RetryBackoff,
	}
	if metrics != nil {
		execCfg.Hook = func(tool, status string, elapsed time.Duration) {
			metrics.ToolExecutions.WithLabelValues(tool, status).Inc()
			metrics.ToolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
		}
	}
	executor := tools.NewExecutor(registry, execCfg)

	rt := &runtime{cfg: cfg, log: log, store: store, metrics: metrics}
	rt.shutdown = append(rt.shutdown, func(context.Context) error { return store.Close() })

	opts := []workflow.Option{
		workflow.WithLogger(log),
		workflow.WithMaxIterations(cfg.Loop.MaxIterations),
	}
	if cfg.Loop.SerializeActors {
		opts = append(opts, workflow.WithActorSerialization())
	}
	if metrics != nil {
		opts = append(opts, workflow.WithMetrics(metrics))
	}
	if cfg.Tracing.Endpoint != "" {
		tracer, stop, err := observability.NewTracer(ctx, cfg.Tracing)
		if err != nil {
			_ = rt.close(ctx)
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		rt.shutdown = append(rt.shutdown, stop)
		opts = append(opts, workflow.WithTracer(tracer))
	}

	rt.engine = workflow.NewEngine(store, client, executor, opts...)
	return rt, nil
}

func (rt *runtime) close(ctx context.Context) error {
	var firstErr error
	for i := len(rt.shutdown) - 1; i >= 0; i-- {
		if err := rt.shutdown[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func openStore(cfg *config.Config) (actors.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		pgCfg := actors.DefaultPostgresConfig()
		pgCfg.DSN = cfg.Database.DSN
		return actors.NewPostgresStore(pgCfg)
	case "sqlite":
		return actors.NewSQLiteStore(cfg.Database.DSN)
	case "memory":
		return actors.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func buildClient(cfg *config.Config) (llm.CompletionClient, error) {
	switch cfg.LLM.Provider {
	case "anthropic":
		key := cfg.LLM.APIKey
		if key == "" {
			key = os.Getenv("ANTHROPIC_API_KEY")
		}
		return llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:       key,
			DefaultModel: cfg.LLM.Model,
			MaxRetries:   cfg.LLM.MaxRetries,
		})
	case "openai":
		key := cfg.LLM.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:       key,
			DefaultModel: cfg.LLM.Model,
			MaxRetries:   cfg.LLM.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
