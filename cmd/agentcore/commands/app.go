package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/opencode-ai/agentcore/internal/agent"
	"github.com/opencode-ai/agentcore/internal/agent/deepchat"
	"github.com/opencode-ai/agentcore/internal/config"
	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/logging"
	"github.com/opencode-ai/agentcore/internal/orchestrator"
	"github.com/opencode-ai/agentcore/internal/project"
	"github.com/opencode-ai/agentcore/internal/provider"
	"github.com/opencode-ai/agentcore/internal/session"
	"github.com/opencode-ai/agentcore/internal/storage"
	"github.com/opencode-ai/agentcore/internal/telemetry"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// app holds the wired core shared by the commands.
type app struct {
	dir       string
	project   string
	config    *types.Config
	defaults  *config.Defaults
	store     *storage.Store
	bus       *event.Bus
	providers *provider.Registry
	agents    *agent.Registry
	orch      *orchestrator.Orchestrator

	shutdownTelemetry func(context.Context) error
}

// newApp loads configuration for the working directory and builds the core.
// Interrupted generations from a previous run are recovered while the agent starts.
func newApp(ctx context.Context) (*app, error) {
	dir, err := GetWorkDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyLogConfig(cfg.Log)

	a := &app{dir: dir, config: cfg, defaults: config.NewDefaults(cfg)}
	if a.project, err = project.Root(dir); err != nil {
		return nil, fmt.Errorf("failed to resolve project: %w", err)
	}

	a.shutdownTelemetry, err = telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	metrics, err := telemetry.Global()
	if err != nil {
		logging.Warn().Err(err).Msg("metrics disabled")
	}

	a.store, err = storage.Open(cfg.Storage.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a.providers, err = provider.InitializeProviders(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}
	a.defaults.SetFallback(a.providers.FallbackModel)

	a.bus = event.NewBus()

	chat, err := deepchat.New(ctx, deepchat.Options{
		Store:            a.store,
		Providers:        a.providers,
		Defaults:         a.defaults,
		Publisher:        a.bus,
		Metrics:          metrics,
		RendererInterval: time.Duration(cfg.Stream.RendererIntervalMs) * time.Millisecond,
		StorageInterval:  time.Duration(cfg.Stream.StorageIntervalMs) * time.Millisecond,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to start agent: %w", err)
	}

	a.agents, err = agent.NewRegistry(agent.Entry{
		Kind:        agent.KindDeepChat,
		Name:        "Deep Chat",
		Description: "Streaming chat against the configured model provider",
		Agent:       chat,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.orch = orchestrator.New(session.NewManager(a.store), a.agents, a.defaults, a.bus)
	return a, nil
}

// Close releases the bus, the database and the metric exporter.
func (a *app) Close() {
	if a.bus != nil {
		a.bus.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close storage")
		}
	}
	if a.shutdownTelemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTelemetry(ctx); err != nil {
			logging.Warn().Err(err).Msg("failed to flush metrics")
		}
	}
}

// applyLogConfig re-initializes logging when the config file asks for a level or a
// log file the flags did not set.
func applyLogConfig(lc types.LogConfig) {
	if lc.Level == "" && lc.File == "" {
		return
	}
	cfg := currentLogConfig()
	if lc.Level != "" && !rootCmd.PersistentFlags().Changed("log-level") {
		cfg.Level = logging.ParseLevel(lc.Level)
	}
	if lc.File != "" && cfg.File == "" {
		cfg.File = lc.File
		if lc.MaxSizeMB > 0 {
			cfg.MaxSizeMB = lc.MaxSizeMB
		}
		if lc.MaxBackups > 0 {
			cfg.MaxBackups = lc.MaxBackups
		}
		if lc.MaxAgeDays > 0 {
			cfg.MaxAgeDays = lc.MaxAgeDays
		}
	}
	logging.Init(cfg)
}
