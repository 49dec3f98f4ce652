package llm

import (
	"slices"
	"testing"

	"github.com/Iron-Ham/agentwatch/internal/errors"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"processing", StatusProcessing},
		{"Working", StatusProcessing},
		{"waiting_for_input", StatusWaitingForInput},
		{"waiting-for-input", StatusWaitingForInput},
		{"unknown", StatusUnknown},
		{"sleeping", StatusUnknown},
		{"", StatusUnknown},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.in); got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseMessageType(t *testing.T) {
	tests := []struct {
		in   string
		want MessageType
		ok   bool
	}{
		{"choice", MessageChoice, true},
		{"Confirmation", MessageConfirmation, true},
		{"open-ended", MessageOpenEnded, true},
		{"idle", MessageIdle, true},
		{"poem", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseMessageType(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMessageType(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around", "Here you go: {\"a\":1} hope it helps", `{"a":1}`, false},
		{"nested", `{"a":{"b":2}}`, `{"a":{"b":2}}`, false},
		{"none", "no json here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("extractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseStatusReply(t *testing.T) {
	res, err := parseStatusReply(`{"status":"waiting_for_input","confidence":0.82,"issues":["menu partly hidden"]}`)
	if err != nil {
		t.Fatalf("parseStatusReply: %v", err)
	}
	if res.Status != StatusWaitingForInput || res.Confidence != 0.82 || len(res.Issues) != 1 {
		t.Errorf("result = %+v", res)
	}

	for _, bad := range []string{`{"status":"processing"}`, `{"confidence":0.5}`, `{"status":`, `nothing`} {
		if _, err := parseStatusReply(bad); !errors.Is(err, errors.ErrAIMalformedResponse) {
			t.Errorf("parseStatusReply(%q) error = %v, want ErrAIMalformedResponse", bad, err)
		}
	}
}

func TestParseExtractionReply(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantType MessageType
		wantText string
		wantOpts []string
		complete bool
		wantErr  bool
	}{
		{
			name:     "choice",
			in:       `{"has_question":true,"message_type":"choice","message_text":"Choose A or B?","options":["A"," B ",""],"fingerprint":"a-or-b","context_complete":true}`,
			wantType: MessageChoice, wantText: "Choose A or B?", wantOpts: []string{"A", "B"}, complete: true,
		},
		{
			name:     "idle",
			in:       `{"has_question":false,"message_type":"choice","message_text":"","options":[],"context_complete":true,"last_action":"ran tests"}`,
			wantType: MessageIdle, complete: true,
		},
		{
			name:     "incomplete without text",
			in:       `{"has_question":true,"message_type":"choice","message_text":"","context_complete":false}`,
			wantType: MessageChoice, complete: false,
		},
		{
			name:     "unknown type becomes open ended",
			in:       `{"has_question":true,"message_type":"riddle","message_text":"Which name?","context_complete":true}`,
			wantType: MessageOpenEnded, wantText: "Which name?", complete: true,
		},
		{name: "question without text", in: `{"has_question":true,"message_type":"confirmation","message_text":" ","context_complete":true}`, wantErr: true},
		{name: "idle type with question", in: `{"has_question":true,"message_type":"idle","message_text":"x","context_complete":true}`, wantErr: true},
		{name: "missing flags", in: `{"message_type":"choice","message_text":"x"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := parseExtractionReply(tt.in)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrAIMalformedResponse) {
					t.Errorf("error = %v, want ErrAIMalformedResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseExtractionReply: %v", err)
			}
			if ext.MessageType != tt.wantType {
				t.Errorf("MessageType = %q, want %q", ext.MessageType, tt.wantType)
			}
			if ext.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", ext.Text, tt.wantText)
			}
			if !slices.Equal(ext.Options, tt.wantOpts) {
				t.Errorf("Options = %q, want %q", ext.Options, tt.wantOpts)
			}
			if ext.ContextComplete != tt.complete {
				t.Errorf("ContextComplete = %v, want %v", ext.ContextComplete, tt.complete)
			}
		})
	}
}
