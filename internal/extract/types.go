package extract

import (
	"strings"
	"time"

	"github.com/Iron-Ham/agentwatch/internal/llm"
)

// AttemptResult is the outcome of one extraction call.
type AttemptResult int

const (
	// AttemptFailed means the call errored, timed out or returned garbage.
	AttemptFailed AttemptResult = iota
	// AttemptNeedMoreContext means the window was too small to see the whole question.
	AttemptNeedMoreContext
	// AttemptSuccess means a complete question (or an idle verdict) was extracted.
	AttemptSuccess
)

// String returns the result name used in logs.
func (r AttemptResult) String() string {
	switch r {
	case AttemptSuccess:
		return "success"
	case AttemptNeedMoreContext:
		return "need_more_context"
	default:
		return "failed"
	}
}

// Message is an extracted question.
type Message struct {
	Type        llm.MessageType
	Text        string
	Options     []string
	LastAction  string // idle only
	Fingerprint uint64
	// ProviderKey is the provider's own short key for the question.
	ProviderKey     string
	ContextComplete bool
	// ContextLines is the window size the message was extracted from.
	ContextLines int
}

// IsIdle reports whether the agent has nothing to ask.
func (m *Message) IsIdle() bool {
	return m != nil && m.Type == llm.MessageIdle
}

// Content is the text a notification carries and the deduplicator hashes:
// the question followed by one option per line.
func (m *Message) Content() string {
	if m == nil {
		return ""
	}
	if len(m.Options) == 0 {
		return m.Text
	}
	var sb strings.Builder
	sb.WriteString(m.Text)
	for _, opt := range m.Options {
		sb.WriteString("\n- ")
		sb.WriteString(opt)
	}
	return sb.String()
}

// Attempt records one iteration of the loop.
type Attempt struct {
	ContextLines int
	Result       AttemptResult
	Message      *Message
	Err          error
	Elapsed      time.Duration
	// Called is false when the window was empty and no call was made.
	Called bool
}

// OutcomeKind is the terminal state of an extraction.
type OutcomeKind int

const (
	// OutcomeSkipped means the agent was processing and no call was made.
	OutcomeSkipped OutcomeKind = iota
	// OutcomeSuccess means Message holds the extracted question or idle verdict.
	OutcomeSuccess
	// OutcomeFailed means every allowed window was tried without success.
	OutcomeFailed
)

// String returns the outcome name used in logs.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSuccess:
		return "success"
	default:
		return "failed"
	}
}

// Outcome is the result of one extraction run.
type Outcome struct {
	Kind     OutcomeKind
	Message  *Message
	Attempts []Attempt
}

// Idle reports whether extraction concluded there is nothing to ask.
func (o Outcome) Idle() bool {
	return o.Kind == OutcomeSuccess && o.Message.IsIdle()
}

// Calls returns how many provider calls were made.
func (o Outcome) Calls() int {
	n := 0
	for _, a := range o.Attempts {
		if a.Called {
			n++
		}
	}
	return n
}
