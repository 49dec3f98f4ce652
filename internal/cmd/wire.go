package cmd

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/agentwatch/internal/ai"
	"github.com/Iron-Ham/agentwatch/internal/classify"
	"github.com/Iron-Ham/agentwatch/internal/config"
	"github.com/Iron-Ham/agentwatch/internal/dedup"
	"github.com/Iron-Ham/agentwatch/internal/errors"
	"github.com/Iron-Ham/agentwatch/internal/event"
	"github.com/Iron-Ham/agentwatch/internal/extract"
	"github.com/Iron-Ham/agentwatch/internal/hooks"
	"github.com/Iron-Ham/agentwatch/internal/llm"
	"github.com/Iron-Ham/agentwatch/internal/lockstore"
	"github.com/Iron-Ham/agentwatch/internal/logging"
	"github.com/Iron-Ham/agentwatch/internal/strategy"
	"github.com/Iron-Ham/agentwatch/internal/tmux"
	"github.com/Iron-Ham/agentwatch/internal/watcher"
)

// app holds what every command needs: configuration, logging, the
// tracked agents and the shared lock store.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	backend  *tmux.Backend
	registry *watcher.Registry
	locks    *dedup.Deduplicator
	bus      *event.Bus
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logDir := ""
	if cfg.Logging.ToFile {
		logDir = config.StateDir()
	}
	logger, err := logging.NewLogger(logging.Options{
		Dir:        logDir,
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, err
	}

	registry, err := registryFromConfig(cfg)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	store := lockstore.New[dedup.Record](cfg.Dedup.ResolveStorePath())
	locks := dedup.New(store,
		dedup.WithWindows(dedup.Windows{
			Lock:          cfg.Dedup.LockDuration(),
			ReminderDelay: cfg.Dedup.ReminderDelay(),
			MaxDuration:   cfg.Dedup.MaxDuration(),
			EvictAfter:    cfg.Dedup.EvictAfter(),
		}),
		dedup.WithLogger(logger),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		backend:  tmux.NewBackend(),
		registry: registry,
		locks:    locks,
		bus:      event.NewBus(logger),
	}, nil
}

func (a *app) Close() error {
	return a.logger.Close()
}

// registryFromConfig builds the explicitly configured agents.
func registryFromConfig(cfg *config.Config) (*watcher.Registry, error) {
	reg := watcher.NewRegistry()
	for _, a := range cfg.Agents {
		adapter, err := ai.NewFromName(a.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "agent %q", a.ID)
		}
		reg.Add(watcher.Agent{
			ID:      a.ID,
			Adapter: adapter,
			Target:  tmux.Target{Socket: a.Socket, Session: a.Session},
		})
	}
	return reg, nil
}

func (a *app) discoverer() *watcher.Discoverer {
	if !a.cfg.Discovery.Enabled {
		return nil
	}
	return &watcher.Discoverer{
		Lister:      a.backend,
		Inspector:   a.backend,
		Socket:      a.cfg.Discovery.Socket,
		Prefix:      a.cfg.Discovery.SessionPrefix,
		DefaultType: ai.AgentType(a.cfg.Discovery.DefaultType),
		Logger:      a.logger,
	}
}

// newWatcher wires the decision pipeline against the AI provider.
func (a *app) newWatcher(tracker *strategy.HookTracker, dispatcher event.Dispatcher) (*watcher.Watcher, error) {
	client, err := llm.NewAnthropicClientFromEnv(a.cfg.AI.APIKeyEnv,
		llm.WithModel(a.cfg.AI.Model),
		llm.WithMaxTokens(a.cfg.AI.MaxTokens),
		llm.WithBaseURL(a.cfg.AI.BaseURL),
	)
	if err != nil {
		return nil, err
	}

	classifier := classify.New(client.ClassifyStatus,
		classify.WithTimeout(a.cfg.Classifier.Timeout()),
		classify.WithLowConfidence(a.cfg.Classifier.LowConfidence),
		classify.WithWarningHandler(watcher.PublishWarnings(a.bus)),
		classify.WithLogger(a.logger),
	)
	extractor := extract.New(client.ExtractMessage,
		extract.WithContextSizes(a.cfg.Extraction.ContextSizes...),
		extract.WithMaxIterations(a.cfg.Extraction.MaxIterations),
		extract.WithTimeout(a.cfg.Extraction.Timeout()),
		extract.WithLogger(a.logger),
	)

	return watcher.New(watcher.Config{
		Registry:              a.registry,
		Terminal:              a.backend,
		Selector:              strategy.NewSelector(tracker, strategy.WithFreshness(a.cfg.Detection.HookFreshness())),
		Classifier:            classifier,
		Extractor:             extractor,
		Locks:                 a.locks,
		Dispatcher:            dispatcher,
		Bus:                   a.bus,
		Discoverer:            a.discoverer(),
		Interval:              a.cfg.Watch.Interval(),
		FallbackLines:         a.cfg.Watch.FallbackLines,
		ClearLockOnProcessing: a.cfg.Watch.ClearLockOnProcessing,
		Logger:                a.logger,
	})
}

// newIntake routes hook events into the tracker, clears locks on resume
// and exit hooks, and wakes the watcher on attention hooks.
func (a *app) newIntake(tracker *strategy.HookTracker, w *watcher.Watcher) *hooks.Intake {
	return hooks.NewIntake(a.registry.Resolve, tracker,
		hooks.WithClearFunc(func(agentID string) error {
			return w.ClearLock(agentID, watcher.ClearHook)
		}),
		hooks.WithEventHandler(func(ctx context.Context, ev ai.HookEvent) {
			a.bus.Publish(event.NewHookReceivedEvent(ev.AgentID, ev.Kind.String(), ev.Name))
			w.HandleHook(ctx, ev)
		}),
		hooks.WithLogger(a.logger),
	)
}
