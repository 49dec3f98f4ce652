// Package ai describes the coding-agent CLIs agentwatch can monitor.
//
// Each supported CLI is an [Adapter]: how it is launched, whether it can
// report state through hooks, how its hook payloads look, and which prompt
// shapes mean it is ready for input. The watcher and the detection strategy
// selector depend only on the interface, never on a concrete agent type.
package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/agentwatch/internal/detect"
	"github.com/Iron-Ham/agentwatch/internal/errors"
)

// AgentType identifies a supported agent CLI.
type AgentType string

const (
	AgentClaude   AgentType = "claude"
	AgentCodex    AgentType = "codex"
	AgentOpenCode AgentType = "opencode"
	AgentGeneric  AgentType = "generic"
)

// DetectionStrategy says how an agent's state is observed. It is fixed per
// agent type.
type DetectionStrategy int

const (
	// PollingOnly agents are captured and classified every tick.
	PollingOnly DetectionStrategy = iota
	// HookWithPolling agents send hooks, but hooks do not cover every
	// waiting state, so they are polled every tick as well.
	HookWithPolling
	// HookOnly agents report every waiting state through hooks and are
	// polled only when their hooks have gone quiet.
	HookOnly
)

// String returns the strategy name used in logs and CLI output.
func (s DetectionStrategy) String() string {
	switch s {
	case PollingOnly:
		return "polling_only"
	case HookWithPolling:
		return "hook_with_polling"
	case HookOnly:
		return "hook_only"
	default:
		return "unknown"
	}
}

// Capabilities lists what an agent CLI supports.
type Capabilities struct {
	// Hooks means the CLI can invoke an external command on lifecycle events.
	Hooks bool
	// Resume means a previous session can be continued by ID.
	Resume bool
	// ExplicitSessionID means the caller can choose the session ID at start.
	ExplicitSessionID bool
}

// CommandOptions configures the launch command of an agent.
type CommandOptions struct {
	// Prompt is passed as the initial prompt when non-empty.
	Prompt string
	// SessionID starts (or resumes) a specific session.
	SessionID string
	// Resume continues SessionID instead of starting fresh.
	Resume bool
}

// HookKind is the normalized meaning of a hook event.
type HookKind int

const (
	// HookOther is any event that carries no state change agentwatch uses.
	HookOther HookKind = iota
	// HookNotification means the agent asks for attention.
	HookNotification
	// HookStop means the agent finished a turn and is idle.
	HookStop
	// HookResume means the user answered and the agent is working again.
	HookResume
	// HookExit means the agent session ended.
	HookExit
)

// String returns the kind name used in logs.
func (k HookKind) String() string {
	switch k {
	case HookNotification:
		return "notification"
	case HookStop:
		return "stop"
	case HookResume:
		return "resume"
	case HookExit:
		return "exit"
	default:
		return "other"
	}
}

// ClearsLock reports whether the event means any pending question was
// answered or abandoned.
func (k HookKind) ClearsLock() bool {
	return k == HookResume || k == HookExit
}

// WantsAttention reports whether the event means the agent may be waiting
// for a human right now.
func (k HookKind) WantsAttention() bool {
	return k == HookNotification || k == HookStop
}

// HookEvent is a hook payload parsed by an adapter.
type HookEvent struct {
	AgentID    string
	Kind       HookKind
	Name       string // native event name, e.g. "Notification"
	Message    string // human-readable text carried by the event, if any
	ReceivedAt time.Time
	Raw        []byte
}

// Adapter provides agent-type specific behavior.
type Adapter interface {
	Name() AgentType
	DisplayName() string
	Command(opts CommandOptions) (string, error)
	DetectionStrategy() DetectionStrategy
	Capabilities() Capabilities
	ParseHookEvent(payload []byte) (HookEvent, error)
	DetectReady(snapshot string) bool
	Detector() *detect.Detector
}

// NewFromName returns the adapter for an agent type name.
func NewFromName(name string) (Adapter, error) {
	switch AgentType(strings.ToLower(strings.TrimSpace(name))) {
	case AgentClaude:
		return NewClaudeAdapter(""), nil
	case AgentCodex:
		return NewCodexAdapter(""), nil
	case AgentOpenCode:
		return NewOpenCodeAdapter(""), nil
	case AgentGeneric, "":
		return NewGenericAdapter(""), nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownAgentType, name)
	}
}

// DetectType guesses the agent type from a pane's running command, as
// reported by tmux. ok is false when the command is not a known agent CLI.
func DetectType(paneCommand string) (AgentType, bool) {
	base := strings.ToLower(strings.TrimSpace(paneCommand))
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	switch {
	case base == "claude" || strings.HasPrefix(base, "claude-"):
		return AgentClaude, true
	case base == "codex" || strings.HasPrefix(base, "codex-"):
		return AgentCodex, true
	case base == "opencode":
		return AgentOpenCode, true
	default:
		return "", false
	}
}

// shellQuote single-quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
