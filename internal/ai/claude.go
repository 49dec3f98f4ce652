package ai

import (
	"fmt"
	"sync"

	"github.com/Iron-Ham/agentwatch/internal/detect"
)

// ClaudeAdapter implements Adapter for Claude Code.
//
// Claude Code hooks fire on Notification and Stop, but a permission menu
// drawn mid-turn does not always produce a Notification, so the adapter
// still polls.
type ClaudeAdapter struct {
	command      string
	detectorOnce sync.Once
	detector     *detect.Detector
}

// NewClaudeAdapter creates a Claude adapter. An empty command means "claude".
func NewClaudeAdapter(command string) *ClaudeAdapter {
	if command == "" {
		command = "claude"
	}
	return &ClaudeAdapter{command: command}
}

func (c *ClaudeAdapter) Name() AgentType { return AgentClaude }

func (c *ClaudeAdapter) DisplayName() string { return "Claude Code" }

func (c *ClaudeAdapter) DetectionStrategy() DetectionStrategy { return HookWithPolling }

func (c *ClaudeAdapter) Capabilities() Capabilities {
	return Capabilities{Hooks: true, Resume: true, ExplicitSessionID: true}
}

func (c *ClaudeAdapter) Command(opts CommandOptions) (string, error) {
	cmd := c.command
	switch {
	case opts.Resume && opts.SessionID == "":
		return "", fmt.Errorf("session id required for resume")
	case opts.Resume:
		cmd += " --resume " + shellQuote(opts.SessionID)
	case opts.SessionID != "":
		cmd += " --session-id " + shellQuote(opts.SessionID)
	}
	if opts.Prompt != "" {
		cmd += " " + shellQuote(opts.Prompt)
	}
	return cmd, nil
}

// ParseHookEvent maps Claude Code hook payloads (hook_event_name) to kinds.
func (c *ClaudeAdapter) ParseHookEvent(payload []byte) (HookEvent, error) {
	data, name, err := decodeHookPayload(payload)
	if err != nil {
		return HookEvent{}, err
	}

	kind := HookOther
	switch name {
	case "Notification":
		kind = HookNotification
	case "Stop", "SubagentStop":
		kind = HookStop
	case "UserPromptSubmit", "PreToolUse", "PostToolUse":
		kind = HookResume
	case "SessionEnd":
		kind = HookExit
	}
	return newHookEvent(payload, data, name, kind), nil
}

func (c *ClaudeAdapter) Detector() *detect.Detector {
	c.detectorOnce.Do(func() {
		c.detector = detect.NewDetector(detect.DefaultPatterns().Merge(detect.Patterns{
			Permission: []string{`(?i)(?:❯\s*)?\d\.\s*Yes, and don't ask again`},
		}))
	})
	return c.detector
}

func (c *ClaudeAdapter) DetectReady(snapshot string) bool {
	return c.Detector().Detect(snapshot).IsWaiting()
}

var _ Adapter = (*ClaudeAdapter)(nil)
