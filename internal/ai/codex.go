package ai

import (
	"fmt"
	"sync"

	"github.com/Iron-Ham/agentwatch/internal/detect"
)

// CodexAdapter implements Adapter for the Codex CLI.
//
// Codex only runs its notify program when a turn completes. Approval
// prompts are never announced, so Codex is observed by polling alone.
type CodexAdapter struct {
	command      string
	detectorOnce sync.Once
	detector     *detect.Detector
}

// NewCodexAdapter creates a Codex adapter. An empty command means "codex".
func NewCodexAdapter(command string) *CodexAdapter {
	if command == "" {
		command = "codex"
	}
	return &CodexAdapter{command: command}
}

func (c *CodexAdapter) Name() AgentType { return AgentCodex }

func (c *CodexAdapter) DisplayName() string { return "Codex" }

func (c *CodexAdapter) DetectionStrategy() DetectionStrategy { return PollingOnly }

func (c *CodexAdapter) Capabilities() Capabilities {
	return Capabilities{Hooks: true, Resume: true}
}

func (c *CodexAdapter) Command(opts CommandOptions) (string, error) {
	cmd := c.command
	if opts.Resume {
		if opts.SessionID == "" {
			return "", fmt.Errorf("session id required for resume")
		}
		cmd += " resume " + shellQuote(opts.SessionID)
	}
	if opts.Prompt != "" {
		cmd += " " + shellQuote(opts.Prompt)
	}
	return cmd, nil
}

// ParseHookEvent maps the Codex notify payload ("type": "agent-turn-complete").
func (c *CodexAdapter) ParseHookEvent(payload []byte) (HookEvent, error) {
	data, name, err := decodeHookPayload(payload)
	if err != nil {
		return HookEvent{}, err
	}

	kind := HookOther
	if name == "agent-turn-complete" {
		kind = HookStop
	}
	return newHookEvent(payload, data, name, kind), nil
}

func (c *CodexAdapter) Detector() *detect.Detector {
	c.detectorOnce.Do(func() {
		c.detector = detect.NewDetector(detect.DefaultPatterns().Merge(detect.Patterns{
			Input: []string{
				`(?m)^›\s*$`,
				`(?m)^▌\s*$`,
			},
			Permission: []string{
				`(?i)allow command\?`,
				`(?i)\(a\)pprove`,
			},
			Working: []string{`(?i)working \(\d+s`},
		}))
	})
	return c.detector
}

func (c *CodexAdapter) DetectReady(snapshot string) bool {
	return c.Detector().Detect(snapshot).IsWaiting()
}

var _ Adapter = (*CodexAdapter)(nil)
