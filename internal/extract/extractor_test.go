package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/agentwatch/internal/errors"
	"github.com/Iron-Ham/agentwatch/internal/llm"
)

// numbered returns n distinct lines of agent output.
func numbered(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("step %d wrote output", i+1)
	}
	return strings.Join(lines, "\n")
}

type recorder struct {
	windows []string
	fn      func(window string) (llm.Extraction, error)
}

func (r *recorder) extract(_ context.Context, window string) (llm.Extraction, error) {
	r.windows = append(r.windows, window)
	return r.fn(window)
}

func lineCount(s string) int {
	return strings.Count(s, "\n") + 1
}

func question(text string) llm.Extraction {
	return llm.Extraction{HasQuestion: true, MessageType: llm.MessageOpenEnded, Text: text, ContextComplete: true}
}

func TestExtractor_EscalatesUntilComplete(t *testing.T) {
	rec := &recorder{fn: func(w string) (llm.Extraction, error) {
		switch {
		case lineCount(w) < 150:
			return llm.Extraction{}, errors.NewAIError("extract", errors.ErrAIMalformedResponse)
		case lineCount(w) < 300:
			return llm.Extraction{HasQuestion: true, ContextComplete: false}, nil
		default:
			return question("Which database should I use?"), nil
		}
	}}
	e := New(rec.extract)

	out := e.Extract(context.Background(), "cam-1", numbered(1000), llm.StatusWaitingForInput)
	if out.Kind != OutcomeSuccess {
		t.Fatalf("Kind = %v, want success", out.Kind)
	}
	if len(out.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(out.Attempts))
	}
	wantResults := []AttemptResult{AttemptFailed, AttemptNeedMoreContext, AttemptSuccess}
	for i, a := range out.Attempts {
		if a.Result != wantResults[i] {
			t.Errorf("attempt %d result = %v, want %v", i, a.Result, wantResults[i])
		}
		if i > 0 && a.ContextLines <= out.Attempts[i-1].ContextLines {
			t.Errorf("attempt %d window %d not larger than %d", i, a.ContextLines, out.Attempts[i-1].ContextLines)
		}
	}
	if out.Attempts[0].Err == nil {
		t.Error("failed attempt should carry its error")
	}
	if out.Message.ContextLines != 300 {
		t.Errorf("ContextLines = %d, want 300", out.Message.ContextLines)
	}
	if out.Message.Fingerprint == 0 {
		t.Error("question should be fingerprinted")
	}
	if out.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", out.Calls())
	}
}

func TestExtractor_EarlyExit(t *testing.T) {
	rec := &recorder{fn: func(string) (llm.Extraction, error) {
		return question("Proceed?"), nil
	}}
	out := New(rec.extract).Extract(context.Background(), "a", numbered(1000), llm.StatusUnknown)

	if out.Kind != OutcomeSuccess || len(out.Attempts) != 1 {
		t.Fatalf("Kind = %v attempts = %d, want success after 1", out.Kind, len(out.Attempts))
	}
	if got := lineCount(rec.windows[0]); got != 80 {
		t.Errorf("first window has %d lines, want 80", got)
	}
}

func TestExtractor_Exhausted(t *testing.T) {
	never := func(string) (llm.Extraction, error) {
		return llm.Extraction{HasQuestion: true, ContextComplete: false}, nil
	}

	tests := []struct {
		name string
		opts []Option
		want int
	}{
		{name: "defaults", want: 5},
		{name: "iterations cap", opts: []Option{WithMaxIterations(3)}, want: 3},
		{name: "sizes cap", opts: []Option{WithContextSizes(100, 200), WithMaxIterations(9)}, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{fn: never}
			out := New(rec.extract, tt.opts...).Extract(context.Background(), "a", numbered(1000), llm.StatusWaitingForInput)
			if out.Kind != OutcomeFailed {
				t.Fatalf("Kind = %v, want failed", out.Kind)
			}
			if len(out.Attempts) != tt.want || len(rec.windows) != tt.want {
				t.Errorf("attempts = %d calls = %d, want %d", len(out.Attempts), len(rec.windows), tt.want)
			}
		})
	}
}

func TestExtractor_ProcessingSkips(t *testing.T) {
	rec := &recorder{fn: func(string) (llm.Extraction, error) { return question("x"), nil }}
	out := New(rec.extract).Extract(context.Background(), "a", numbered(50), llm.StatusProcessing)

	if out.Kind != OutcomeSkipped {
		t.Errorf("Kind = %v, want skipped", out.Kind)
	}
	if len(rec.windows) != 0 || out.Calls() != 0 {
		t.Errorf("made %d calls, want 0", len(rec.windows))
	}
}

func TestExtractor_Idle(t *testing.T) {
	rec := &recorder{fn: func(string) (llm.Extraction, error) {
		return llm.Extraction{HasQuestion: false, MessageType: llm.MessageIdle, ContextComplete: true, LastAction: "ran the tests"}, nil
	}}
	out := New(rec.extract).Extract(context.Background(), "a", numbered(20), llm.StatusWaitingForInput)

	if !out.Idle() {
		t.Fatalf("Idle() = false, outcome %+v", out)
	}
	if out.Message.LastAction != "ran the tests" {
		t.Errorf("LastAction = %q", out.Message.LastAction)
	}
}

func TestExtractor_ShortSnapshotUsesFullBudget(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) (llm.Extraction, error)
	}{
		{"incomplete", func(string) (llm.Extraction, error) {
			return llm.Extraction{HasQuestion: true, ContextComplete: false}, nil
		}},
		{"failing", func(string) (llm.Extraction, error) {
			return llm.Extraction{}, errors.NewAIError("extract", errors.ErrAIUnavailable)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{fn: tt.fn}
			out := New(rec.extract).Extract(context.Background(), "a", numbered(100), llm.StatusWaitingForInput)

			if out.Kind != OutcomeFailed {
				t.Fatalf("Kind = %v, want failed", out.Kind)
			}
			if len(rec.windows) != 5 || out.Calls() != 5 {
				t.Errorf("calls = %d, want 5", len(rec.windows))
			}
		})
	}
}

func TestExtractor_TransientFailureOnShortSnapshot(t *testing.T) {
	calls := 0
	rec := &recorder{fn: func(string) (llm.Extraction, error) {
		calls++
		if calls == 1 {
			return llm.Extraction{}, errors.NewAIError("extract", errors.ErrAITimeout)
		}
		return question("Run the migration now?"), nil
	}}
	out := New(rec.extract).Extract(context.Background(), "a", numbered(41), llm.StatusWaitingForInput)

	if out.Kind != OutcomeSuccess {
		t.Fatalf("Kind = %v, want success", out.Kind)
	}
	if len(out.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(out.Attempts))
	}
	if out.Attempts[0].Result != AttemptFailed || !errors.Is(out.Attempts[0].Err, errors.ErrAITimeout) {
		t.Errorf("first attempt = %+v, want timeout failure", out.Attempts[0])
	}
	if out.Attempts[1].ContextLines != 150 {
		t.Errorf("second attempt window = %d, want 150", out.Attempts[1].ContextLines)
	}
	if out.Message.Text != "Run the migration now?" {
		t.Errorf("Text = %q", out.Message.Text)
	}
}

func TestExtractor_EmptySnapshot(t *testing.T) {
	rec := &recorder{fn: func(string) (llm.Extraction, error) { return question("x"), nil }}
	out := New(rec.extract).Extract(context.Background(), "a", "\n\n", llm.StatusUnknown)

	if out.Kind != OutcomeFailed {
		t.Errorf("Kind = %v, want failed", out.Kind)
	}
	if out.Calls() != 0 {
		t.Errorf("Calls() = %d, want 0", out.Calls())
	}
}

func TestExtractor_TimeoutBecomesFailedAttempt(t *testing.T) {
	slow := func(ctx context.Context, _ string) (llm.Extraction, error) {
		<-ctx.Done()
		return llm.Extraction{}, ctx.Err()
	}
	out := New(slow, WithTimeout(10*time.Millisecond), WithMaxIterations(1)).
		Extract(context.Background(), "a", numbered(100), llm.StatusWaitingForInput)

	if out.Kind != OutcomeFailed || len(out.Attempts) != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if !errors.Is(out.Attempts[0].Err, errors.ErrAITimeout) {
		t.Errorf("Err = %v, want ErrAITimeout", out.Attempts[0].Err)
	}
}

func TestWithContextSizes_SortsAndDedupes(t *testing.T) {
	e := New(nil, WithContextSizes(300, 80, 0, 150, 80, -5))
	got := e.Sizes()
	want := []int{80, 150, 300}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Sizes() = %v, want %v", got, want)
	}
	if e.MaxContext() != 300 {
		t.Errorf("MaxContext() = %d, want 300", e.MaxContext())
	}
	if New(nil, WithMaxIterations(2)).MaxContext() != 150 {
		t.Error("MaxContext should respect max iterations")
	}
}

func TestMessage_Content(t *testing.T) {
	m := &Message{Text: "Pick one", Options: []string{"A", "B"}}
	if got := m.Content(); got != "Pick one\n- A\n- B" {
		t.Errorf("Content() = %q", got)
	}
	var nilMsg *Message
	if nilMsg.Content() != "" || nilMsg.IsIdle() {
		t.Error("nil message should be empty and not idle")
	}
}
