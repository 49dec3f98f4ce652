// Package hooks receives hook events from agent CLIs.
//
// Agents report lifecycle events by running `agentwatch hook <agent-id>`,
// which drops the payload into a spool directory ([Spool]), or by POSTing to
// the optional local HTTP receiver ([Server]). Both paths end in [Intake],
// which parses the payload with the agent's adapter, records the arrival in
// the [strategy.HookTracker] and clears the agent's notification lock on
// resume and exit events.
package hooks

import (
	"context"
	"time"

	"github.com/Iron-Ham/agentwatch/internal/ai"
	"github.com/Iron-Ham/agentwatch/internal/errors"
	"github.com/Iron-Ham/agentwatch/internal/logging"
	"github.com/Iron-Ham/agentwatch/internal/strategy"
)

// Resolver returns the adapter of a tracked agent.
type Resolver func(agentID string) (ai.Adapter, bool)

// ClearFunc drops the notification lock of an agent.
type ClearFunc func(agentID string) error

// Intake turns raw payloads into recorded hook events.
type Intake struct {
	resolve Resolver
	tracker *strategy.HookTracker
	clear   ClearFunc
	onEvent func(context.Context, ai.HookEvent)
	logger  *logging.Logger
	now     func() time.Time
}

// IntakeOption configures an Intake.
type IntakeOption func(*Intake)

// WithClearFunc sets the callback run for resume and exit events.
func WithClearFunc(fn ClearFunc) IntakeOption {
	return func(in *Intake) { in.clear = fn }
}

// WithEventHandler sets a callback run for every accepted event.
func WithEventHandler(fn func(context.Context, ai.HookEvent)) IntakeOption {
	return func(in *Intake) { in.onEvent = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) IntakeOption {
	return func(in *Intake) { in.logger = l }
}

// WithClock sets the time source, for tests.
func WithClock(now func() time.Time) IntakeOption {
	return func(in *Intake) { in.now = now }
}

// NewIntake creates an Intake.
func NewIntake(resolve Resolver, tracker *strategy.HookTracker, opts ...IntakeOption) *Intake {
	in := &Intake{
		resolve: resolve,
		tracker: tracker,
		logger:  logging.NopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = in.logger.WithComponent("hooks")
	return in
}

// Handle parses and records one payload. receivedAt zero means now.
func (in *Intake) Handle(ctx context.Context, agentID string, payload []byte, receivedAt time.Time) (ai.HookEvent, error) {
	adapter, ok := in.resolve(agentID)
	if !ok {
		return ai.HookEvent{}, errors.NewAgentError("hook for untracked agent", errors.ErrAgentNotFound).
			WithAgentID(agentID).WithSeverity(errors.SeverityWarning)
	}

	ev, err := adapter.ParseHookEvent(payload)
	if err != nil {
		return ai.HookEvent{}, errors.NewAgentError("parse hook payload", err).WithAgentID(agentID)
	}
	if receivedAt.IsZero() {
		receivedAt = in.now()
	}
	ev.AgentID = agentID
	ev.ReceivedAt = receivedAt

	in.tracker.Record(agentID, receivedAt)
	log := in.logger.WithAgent(agentID)
	log.Debug("hook received", "hook", ev.Name, "kind", ev.Kind.String())

	if ev.Kind.ClearsLock() && in.clear != nil {
		if err := in.clear(agentID); err != nil {
			log.Warn("failed to clear lock on hook", "hook", ev.Name, "error", err)
		} else {
			log.Info("lock cleared by hook", "hook", ev.Name, "kind", ev.Kind.String())
		}
	}
	if in.onEvent != nil {
		in.onEvent(ctx, ev)
	}
	return ev, nil
}
