package ai

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Iron-Ham/agentwatch/internal/detect"
)

// OpenCodeAdapter implements Adapter for OpenCode.
//
// OpenCode plugins receive every session and permission event, so hooks
// cover all waiting states and polling is only a fallback.
type OpenCodeAdapter struct {
	command      string
	detectorOnce sync.Once
	detector     *detect.Detector
}

// NewOpenCodeAdapter creates an OpenCode adapter. An empty command means "opencode".
func NewOpenCodeAdapter(command string) *OpenCodeAdapter {
	if command == "" {
		command = "opencode"
	}
	return &OpenCodeAdapter{command: command}
}

func (o *OpenCodeAdapter) Name() AgentType { return AgentOpenCode }

func (o *OpenCodeAdapter) DisplayName() string { return "OpenCode" }

func (o *OpenCodeAdapter) DetectionStrategy() DetectionStrategy { return HookOnly }

func (o *OpenCodeAdapter) Capabilities() Capabilities {
	return Capabilities{Hooks: true, Resume: true}
}

func (o *OpenCodeAdapter) Command(opts CommandOptions) (string, error) {
	cmd := o.command
	if opts.Resume {
		if opts.SessionID == "" {
			return "", fmt.Errorf("session id required for resume")
		}
		cmd += " --session " + shellQuote(opts.SessionID)
	}
	if opts.Prompt != "" {
		cmd += " --prompt " + shellQuote(opts.Prompt)
	}
	return cmd, nil
}

// ParseHookEvent maps OpenCode plugin events ("type": "session.idle", ...).
func (o *OpenCodeAdapter) ParseHookEvent(payload []byte) (HookEvent, error) {
	data, name, err := decodeHookPayload(payload)
	if err != nil {
		return HookEvent{}, err
	}

	kind := HookOther
	switch {
	case name == "session.idle":
		kind = HookStop
	case name == "permission.replied":
		kind = HookResume
	case strings.HasPrefix(name, "permission."):
		kind = HookNotification
	case name == "session.deleted":
		kind = HookExit
	}
	return newHookEvent(payload, data, name, kind), nil
}

func (o *OpenCodeAdapter) Detector() *detect.Detector {
	o.detectorOnce.Do(func() {
		o.detector = detect.NewDetector(detect.DefaultPatterns().Merge(detect.Patterns{
			Permission: []string{`(?i)permission required`},
			Working:    []string{`(?i)working\.\.\.`},
		}))
	})
	return o.detector
}

func (o *OpenCodeAdapter) DetectReady(snapshot string) bool {
	return o.Detector().Detect(snapshot).IsWaiting()
}

var _ Adapter = (*OpenCodeAdapter)(nil)
