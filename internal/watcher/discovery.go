package watcher

import (
	"context"
	"strings"

	"github.com/Iron-Ham/agentwatch/internal/ai"
	"github.com/Iron-Ham/agentwatch/internal/logging"
	"github.com/Iron-Ham/agentwatch/internal/tmux"
)

// SessionLister lists tmux sessions.
type SessionLister interface {
	ListSessions(ctx context.Context, socket string) ([]string, error)
}

// PaneInspector reports the foreground command of a pane.
type PaneInspector interface {
	PaneCommand(ctx context.Context, target tmux.Target) (string, error)
}

// Discoverer tracks tmux sessions whose name starts with a prefix.
type Discoverer struct {
	Lister      SessionLister
	Inspector   PaneInspector // optional
	Socket      string
	Prefix      string
	DefaultType ai.AgentType
	Logger      *logging.Logger
}

// Discover adds new matching sessions to reg and returns the IDs added.
// The session name is the agent ID. The agent type is taken from the pane's
// running command when recognizable, DefaultType otherwise.
func (d *Discoverer) Discover(ctx context.Context, reg *Registry) ([]string, error) {
	log := d.Logger
	if log == nil {
		log = logging.NopLogger()
	}
	sessions, err := d.Lister.ListSessions(ctx, d.Socket)
	if err != nil {
		return nil, err
	}

	var added []string
	for _, name := range sessions {
		if !strings.HasPrefix(name, d.Prefix) {
			continue
		}
		if _, ok := reg.Get(name); ok {
			continue
		}
		target := tmux.Target{Socket: d.Socket, Session: name}
		agentType := d.DefaultType
		if d.Inspector != nil {
			if cmd, err := d.Inspector.PaneCommand(ctx, target); err == nil {
				if t, ok := ai.DetectType(cmd); ok {
					agentType = t
				}
			}
		}
		adapter, err := ai.NewFromName(string(agentType))
		if err != nil {
			log.Warn("skipping discovered session", "session", name, "error", err)
			continue
		}
		reg.Add(Agent{ID: name, Adapter: adapter, Target: target, Discovered: true})
		added = append(added, name)
		log.Info("discovered agent", "agent_id", name, "agent_type", string(adapter.Name()))
	}
	return added, nil
}
