package ai

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/agentwatch/internal/detect"
)

// GenericAdapter implements Adapter for any other interactive CLI. It relies
// on the default prompt patterns and on polling.
type GenericAdapter struct {
	command  string
	detector *detect.Detector
}

// NewGenericAdapter creates a generic adapter for command, which may be empty
// when the agent is only observed.
func NewGenericAdapter(command string) *GenericAdapter {
	return &GenericAdapter{
		command:  command,
		detector: detect.NewDetector(detect.DefaultPatterns()),
	}
}

func (g *GenericAdapter) Name() AgentType { return AgentGeneric }

func (g *GenericAdapter) DisplayName() string { return "Generic" }

func (g *GenericAdapter) DetectionStrategy() DetectionStrategy { return PollingOnly }

func (g *GenericAdapter) Capabilities() Capabilities { return Capabilities{} }

func (g *GenericAdapter) Command(opts CommandOptions) (string, error) {
	if g.command == "" {
		return "", fmt.Errorf("generic agent has no launch command")
	}
	if opts.Resume {
		return "", fmt.Errorf("generic agent does not support resume")
	}
	cmd := g.command
	if opts.Prompt != "" {
		cmd += " " + shellQuote(opts.Prompt)
	}
	return cmd, nil
}

// ParseHookEvent accepts any JSON object and maps common event names.
func (g *GenericAdapter) ParseHookEvent(payload []byte) (HookEvent, error) {
	data, name, err := decodeHookPayload(payload)
	if err != nil {
		return HookEvent{}, err
	}

	kind := HookOther
	switch strings.ToLower(name) {
	case "notification", "attention", "question", "permission":
		kind = HookNotification
	case "stop", "idle", "turn-complete":
		kind = HookStop
	case "resume", "prompt", "answered":
		kind = HookResume
	case "exit", "end", "session-end":
		kind = HookExit
	}
	return newHookEvent(payload, data, name, kind), nil
}

func (g *GenericAdapter) Detector() *detect.Detector { return g.detector }

func (g *GenericAdapter) DetectReady(snapshot string) bool {
	return g.detector.Detect(snapshot).IsWaiting()
}

var _ Adapter = (*GenericAdapter)(nil)
