// Package llm is the AI provider boundary of agentwatch.
//
// All prompt construction and response parsing lives here. Callers see two
// fallible functions, [ClassifyFunc] and [ExtractFunc], so tests can swap the
// provider for deterministic fakes. [AnthropicClient] implements both against
// the Anthropic Messages API.
package llm

import (
	"context"
	"strings"
)

// Status is the classifier's reading of a terminal snapshot.
type Status string

const (
	StatusProcessing      Status = "processing"
	StatusWaitingForInput Status = "waiting_for_input"
	StatusUnknown         Status = "unknown"
)

// ParseStatus normalizes a provider status string. Anything unrecognized is
// StatusUnknown.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "processing", "working", "busy":
		return StatusProcessing
	case "waiting_for_input", "waiting", "waitingforinput":
		return StatusWaitingForInput
	default:
		return StatusUnknown
	}
}

// StatusResult is one classification.
type StatusResult struct {
	Status     Status
	Confidence float64
	Issues     []string
}

// MessageType is the shape of an extracted question.
type MessageType string

const (
	MessageChoice       MessageType = "choice"
	MessageConfirmation MessageType = "confirmation"
	MessageOpenEnded    MessageType = "open_ended"
	MessageIdle         MessageType = "idle"
)

// ParseMessageType normalizes a provider message type. An unrecognized type
// is reported with ok false.
func ParseMessageType(s string) (MessageType, bool) {
	switch MessageType(strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_")))) {
	case MessageChoice:
		return MessageChoice, true
	case MessageConfirmation:
		return MessageConfirmation, true
	case MessageOpenEnded, "openended", "open":
		return MessageOpenEnded, true
	case MessageIdle:
		return MessageIdle, true
	default:
		return "", false
	}
}

// Extraction is the provider's structured reading of one context window.
type Extraction struct {
	HasQuestion     bool
	MessageType     MessageType
	Text            string
	Options         []string
	Fingerprint     string // provider-side short key for the question, informational
	ContextComplete bool
	LastAction      string // what the agent last did, for idle results
}

// ClassifyFunc classifies a snapshot.
type ClassifyFunc func(ctx context.Context, snapshot string) (StatusResult, error)

// ExtractFunc extracts a structured question from a context window.
type ExtractFunc func(ctx context.Context, window string) (Extraction, error)

// Client is an AI provider supporting both calls.
type Client interface {
	ClassifyStatus(ctx context.Context, snapshot string) (StatusResult, error)
	ExtractMessage(ctx context.Context, window string) (Extraction, error)
}
