package watcher

import (
	"slices"
	"strings"
	"sync"

	"github.com/Iron-Ham/agentwatch/internal/ai"
	"github.com/Iron-Ham/agentwatch/internal/tmux"
)

// Agent is one tracked agent process.
type Agent struct {
	ID      string
	Adapter ai.Adapter
	Target  tmux.Target
	// Discovered agents were found by session listing and are dropped when
	// their session goes away.
	Discovered bool
}

// Registry is the set of tracked agents. It is read by the hook receivers
// concurrently with the watcher loop.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry creates a registry holding agents.
func NewRegistry(agents ...Agent) *Registry {
	r := &Registry{agents: make(map[string]Agent, len(agents))}
	for _, a := range agents {
		r.agents[a.ID] = a
	}
	return r
}

// Add tracks a, replacing an agent with the same ID. It reports whether the
// ID was new.
func (r *Registry) Add(a Agent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.agents[a.ID]
	r.agents[a.ID] = a
	return !exists
}

// Remove stops tracking id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, id)
}

// Get returns the agent with id.
func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// Resolve returns the adapter of id. It matches hooks.Resolver.
func (r *Registry) Resolve(id string) (ai.Adapter, bool) {
	a, ok := r.Get(id)
	if !ok {
		return nil, false
	}
	return a.Adapter, true
}

// List returns all agents ordered by ID.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b Agent) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Len returns the number of tracked agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
