package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is implemented by everything published on a [Bus].
type Event interface {
	// EventType is a "category.action" identifier, e.g. "notification.sent".
	EventType() string
	Timestamp() time.Time
}

// Event types.
const (
	TypeNotification     = "notification.sent"
	TypeQualityWarning   = "quality.warning"
	TypeExtractionFailed = "extraction.failed"
	TypeLockCleared      = "lock.cleared"
	TypeHookReceived     = "hook.received"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// Outcome says whether a notification is the first one or the reminder.
type Outcome string

const (
	OutcomeSend     Outcome = "send"
	OutcomeReminder Outcome = "reminder"
)

// Kind is the coarse reason an agent needs attention. Urgency is left to
// whatever consumes the notification.
type Kind string

const (
	KindQuestion   Kind = "question"
	KindPermission Kind = "permission"
	KindAttention  Kind = "attention"
)

// Notification is one outbound "agent needs you" message.
type Notification struct {
	ID      string   `json:"id" yaml:"id"`
	AgentID string   `json:"agent_id" yaml:"agent_id"`
	Outcome Outcome  `json:"outcome" yaml:"outcome"`
	Kind    Kind     `json:"event_type" yaml:"event_type"`
	Text    string   `json:"message" yaml:"message"`
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
	// MessageType is the extracted question shape; empty for fallback text.
	MessageType string `json:"message_type,omitempty" yaml:"message_type,omitempty"`
	// Fallback is set when Text is the raw terminal tail.
	Fallback  bool      `json:"raw_fallback,omitempty" yaml:"raw_fallback,omitempty"`
	DecidedAt time.Time `json:"decided_at" yaml:"decided_at"`
}

// NewNotification creates a Notification with a fresh ID.
func NewNotification(agentID string, outcome Outcome, kind Kind, text string, decidedAt time.Time) Notification {
	return Notification{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Outcome:   outcome,
		Kind:      kind,
		Text:      text,
		DecidedAt: decidedAt,
	}
}

// NotificationEvent carries a dispatched notification.
type NotificationEvent struct {
	baseEvent
	Notification Notification
}

// NewNotificationEvent wraps n.
func NewNotificationEvent(n Notification) NotificationEvent {
	return NotificationEvent{baseEvent: newBaseEvent(TypeNotification), Notification: n}
}

// QualityWarningEvent reports a low-confidence classification.
type QualityWarningEvent struct {
	baseEvent
	AgentID    string
	Status     string
	Confidence float64
	Issues     []string
}

// NewQualityWarningEvent creates a QualityWarningEvent.
func NewQualityWarningEvent(agentID, status string, confidence float64, issues []string) QualityWarningEvent {
	return QualityWarningEvent{
		baseEvent:  newBaseEvent(TypeQualityWarning),
		AgentID:    agentID,
		Status:     status,
		Confidence: confidence,
		Issues:     issues,
	}
}

// ExtractionFailedEvent reports an exhausted extraction loop.
type ExtractionFailedEvent struct {
	baseEvent
	AgentID  string
	Attempts int
	// LastWindow is the largest context size tried.
	LastWindow int
}

// NewExtractionFailedEvent creates an ExtractionFailedEvent.
func NewExtractionFailedEvent(agentID string, attempts, lastWindow int) ExtractionFailedEvent {
	return ExtractionFailedEvent{
		baseEvent:  newBaseEvent(TypeExtractionFailed),
		AgentID:    agentID,
		Attempts:   attempts,
		LastWindow: lastWindow,
	}
}

// LockClearedEvent reports a removed notification lock.
type LockClearedEvent struct {
	baseEvent
	AgentID string
	Reason  string // "hook", "processing", "session_gone" or "manual"
}

// NewLockClearedEvent creates a LockClearedEvent.
func NewLockClearedEvent(agentID, reason string) LockClearedEvent {
	return LockClearedEvent{baseEvent: newBaseEvent(TypeLockCleared), AgentID: agentID, Reason: reason}
}

// HookReceivedEvent reports a parsed agent hook.
type HookReceivedEvent struct {
	baseEvent
	AgentID string
	Kind    string
	Name    string
}

// NewHookReceivedEvent creates a HookReceivedEvent.
func NewHookReceivedEvent(agentID, kind, name string) HookReceivedEvent {
	return HookReceivedEvent{baseEvent: newBaseEvent(TypeHookReceived), AgentID: agentID, Kind: kind, Name: name}
}
