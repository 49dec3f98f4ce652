package strategy

import (
	"time"

	"github.com/Iron-Ham/agentwatch/internal/ai"
)

// DefaultHookFreshness is how recent a hook must be for a HookOnly agent to
// skip polling.
const DefaultHookFreshness = 5 * time.Minute

// Selector answers ShouldPoll for an agent.
type Selector struct {
	tracker   *HookTracker
	freshness time.Duration
	now       func() time.Time
}

// Option configures a Selector.
type Option func(*Selector)

// WithFreshness overrides DefaultHookFreshness.
func WithFreshness(d time.Duration) Option {
	return func(s *Selector) { s.freshness = d }
}

// WithClock sets the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// NewSelector creates a Selector reading hook times from tracker.
func NewSelector(tracker *HookTracker, opts ...Option) *Selector {
	s := &Selector{
		tracker:   tracker,
		freshness: DefaultHookFreshness,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldPoll reports whether the agent should be captured this tick.
func (s *Selector) ShouldPoll(agentID string, strategy ai.DetectionStrategy) bool {
	if strategy != ai.HookOnly {
		return true
	}
	last, ok := s.tracker.LastSeen(agentID)
	if !ok {
		return true
	}
	return s.now().Sub(last) >= s.freshness
}

// Freshness returns the configured threshold.
func (s *Selector) Freshness() time.Duration {
	return s.freshness
}
