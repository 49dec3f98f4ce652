package ai

import (
	"strings"
	"testing"

	"github.com/Iron-Ham/agentwatch/internal/errors"
)

func TestNewFromName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     AgentType
		strategy DetectionStrategy
	}{
		{"claude", "claude", AgentClaude, HookWithPolling},
		{"codex", "codex", AgentCodex, PollingOnly},
		{"opencode", "opencode", AgentOpenCode, HookOnly},
		{"generic", "generic", AgentGeneric, PollingOnly},
		{"empty is generic", "", AgentGeneric, PollingOnly},
		{"case insensitive", " Claude ", AgentClaude, HookWithPolling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := NewFromName(tt.input)
			if err != nil {
				t.Fatalf("NewFromName(%q) returned error: %v", tt.input, err)
			}
			if adapter.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", adapter.Name(), tt.want)
			}
			if adapter.DetectionStrategy() != tt.strategy {
				t.Errorf("DetectionStrategy() = %v, want %v", adapter.DetectionStrategy(), tt.strategy)
			}
			if adapter.DisplayName() == "" {
				t.Error("DisplayName() should not be empty")
			}
		})
	}

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewFromName("cursor")
		if !errors.Is(err, errors.ErrUnknownAgentType) {
			t.Errorf("error = %v, want ErrUnknownAgentType", err)
		}
	})
}

func TestDetectionStrategy_String(t *testing.T) {
	tests := []struct {
		s    DetectionStrategy
		want string
	}{
		{PollingOnly, "polling_only"},
		{HookWithPolling, "hook_with_polling"},
		{HookOnly, "hook_only"},
		{DetectionStrategy(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		command string
		want    AgentType
		ok      bool
	}{
		{"claude", AgentClaude, true},
		{"/usr/local/bin/codex", AgentCodex, true},
		{"opencode", AgentOpenCode, true},
		{"zsh", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := DetectType(tt.command)
		if got != tt.want || ok != tt.ok {
			t.Errorf("DetectType(%q) = %q, %v, want %q, %v", tt.command, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClaudeAdapter_Command(t *testing.T) {
	a := NewClaudeAdapter("")

	tests := []struct {
		name    string
		opts    CommandOptions
		want    string
		wantErr bool
	}{
		{"bare", CommandOptions{}, "claude", false},
		{"prompt", CommandOptions{Prompt: "fix it's bug"}, `claude 'fix it'\''s bug'`, false},
		{"session", CommandOptions{SessionID: "abc"}, "claude --session-id 'abc'", false},
		{"resume", CommandOptions{SessionID: "abc", Resume: true}, "claude --resume 'abc'", false},
		{"resume without id", CommandOptions{Resume: true}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Command(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Command() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Command() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdapters_Command(t *testing.T) {
	if got, _ := NewCodexAdapter("").Command(CommandOptions{SessionID: "s1", Resume: true}); got != "codex resume 's1'" {
		t.Errorf("codex resume = %q", got)
	}
	if got, _ := NewOpenCodeAdapter("").Command(CommandOptions{Prompt: "hi"}); got != "opencode --prompt 'hi'" {
		t.Errorf("opencode prompt = %q", got)
	}
	if _, err := NewGenericAdapter("").Command(CommandOptions{}); err == nil {
		t.Error("generic adapter without command should error")
	}
	if got, _ := NewGenericAdapter("aider").Command(CommandOptions{Prompt: "go"}); got != "aider 'go'" {
		t.Errorf("generic prompt = %q", got)
	}
}

func TestParseHookEvent(t *testing.T) {
	tests := []struct {
		name    string
		adapter Adapter
		payload string
		kind    HookKind
		hook    string
		message string
	}{
		{"claude notification", NewClaudeAdapter(""),
			`{"hook_event_name":"Notification","message":"Claude needs your permission to use Bash"}`,
			HookNotification, "Notification", "Claude needs your permission to use Bash"},
		{"claude stop", NewClaudeAdapter(""), `{"hook_event_name":"Stop"}`, HookStop, "Stop", ""},
		{"claude prompt submit", NewClaudeAdapter(""), `{"hook_event_name":"UserPromptSubmit","prompt":"yes"}`, HookResume, "UserPromptSubmit", ""},
		{"claude session end", NewClaudeAdapter(""), `{"hook_event_name":"SessionEnd"}`, HookExit, "SessionEnd", ""},
		{"claude other", NewClaudeAdapter(""), `{"hook_event_name":"SessionStart"}`, HookOther, "SessionStart", ""},
		{"codex turn complete", NewCodexAdapter(""),
			`{"type":"agent-turn-complete","last-assistant-message":"Done. Run tests?"}`,
			HookStop, "agent-turn-complete", "Done. Run tests?"},
		{"opencode permission", NewOpenCodeAdapter(""), `{"type":"permission.updated","title":"Run rm?"}`, HookNotification, "permission.updated", "Run rm?"},
		{"opencode replied", NewOpenCodeAdapter(""), `{"type":"permission.replied"}`, HookResume, "permission.replied", ""},
		{"opencode idle", NewOpenCodeAdapter(""), `{"type":"session.idle"}`, HookStop, "session.idle", ""},
		{"opencode deleted", NewOpenCodeAdapter(""), `{"type":"session.deleted"}`, HookExit, "session.deleted", ""},
		{"generic event key", NewGenericAdapter(""), `{"event":"Exit"}`, HookExit, "Exit", ""},
		{"generic resume", NewGenericAdapter(""), `{"event":"resume"}`, HookResume, "resume", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := tt.adapter.ParseHookEvent([]byte(tt.payload))
			if err != nil {
				t.Fatalf("ParseHookEvent() error: %v", err)
			}
			if ev.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", ev.Kind, tt.kind)
			}
			if ev.Name != tt.hook {
				t.Errorf("Name = %q, want %q", ev.Name, tt.hook)
			}
			if ev.Message != tt.message {
				t.Errorf("Message = %q, want %q", ev.Message, tt.message)
			}
			if string(ev.Raw) != tt.payload {
				t.Errorf("Raw = %q, want payload", ev.Raw)
			}
		})
	}
}

func TestParseHookEvent_Invalid(t *testing.T) {
	for _, payload := range []string{"", "not json", "null", "[1,2]"} {
		_, err := NewClaudeAdapter("").ParseHookEvent([]byte(payload))
		if !errors.Is(err, ErrInvalidHookPayload) {
			t.Errorf("ParseHookEvent(%q) error = %v, want ErrInvalidHookPayload", payload, err)
		}
	}
}

func TestHookKind(t *testing.T) {
	if !HookResume.ClearsLock() || !HookExit.ClearsLock() {
		t.Error("resume and exit should clear locks")
	}
	if HookNotification.ClearsLock() || HookStop.ClearsLock() || HookOther.ClearsLock() {
		t.Error("notification, stop and other should not clear locks")
	}
	if !HookNotification.WantsAttention() || !HookStop.WantsAttention() {
		t.Error("notification and stop should want attention")
	}
	if HookResume.WantsAttention() || HookExit.WantsAttention() || HookOther.WantsAttention() {
		t.Error("resume, exit and other should not want attention")
	}
	if HookKind(42).String() != "other" {
		t.Errorf("unknown kind String() = %q", HookKind(42).String())
	}
}

func TestDetectReady(t *testing.T) {
	claude := NewClaudeAdapter("")
	if !claude.DetectReady("Do you want to proceed?\n❯ 1. Yes\n  2. Yes, and don't ask again\n  3. No") {
		t.Error("claude permission menu should be ready")
	}
	if claude.DetectReady("✻ Thinking… (esc to interrupt)") {
		t.Error("claude working should not be ready")
	}

	codex := NewCodexAdapter("")
	if !codex.DetectReady("Finished the refactor.\n›") {
		t.Error("codex idle prompt should be ready")
	}
	if codex.Detector() != codex.Detector() {
		t.Error("Detector() should be cached")
	}

	generic := NewGenericAdapter("")
	if !generic.DetectReady(strings.Repeat("log line\n", 3) + "Continue? (y/n)") {
		t.Error("generic y/n should be ready")
	}
}
