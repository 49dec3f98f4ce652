// Package strategy decides whether an agent is polled on a given tick.
//
// Agents whose hooks cover every waiting state ([ai.HookOnly]) are only polled
// when their hooks have gone quiet; all others are polled every tick. The
// [HookTracker] holding hook arrival times lives in process memory and is
// rebuilt from scratch on restart, which only makes HookOnly agents poll
// until their next hook.
package strategy

import (
	"sync"
	"time"
)

// HookTracker records when each agent last sent a hook. It is safe for
// concurrent use by hook receivers and the watcher.
type HookTracker struct {
	mu   sync.RWMutex
	seen map[string]time.Time
}

// NewHookTracker creates an empty tracker.
func NewHookTracker() *HookTracker {
	return &HookTracker{seen: make(map[string]time.Time)}
}

// Record notes a hook from agentID at the given time. Older timestamps than
// the one already recorded are ignored.
func (t *HookTracker) Record(agentID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.seen[agentID]; ok && prev.After(at) {
		return
	}
	t.seen[agentID] = at
}

// LastSeen returns the time of the agent's most recent hook.
func (t *HookTracker) LastSeen(agentID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	at, ok := t.seen[agentID]
	return at, ok
}

// Forget drops the agent's hook history.
func (t *HookTracker) Forget(agentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen, agentID)
}

// Len returns the number of agents with a recorded hook.
func (t *HookTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seen)
}
