// Package errors provides centralized error definitions and classification
// helpers for agentwatch.
//
// # Error Types
//
// Domain-specific errors represent failures of one subsystem:
//   - AIError: failures talking to the AI provider (timeouts, rate limits,
//     malformed responses). Transient AI errors are retryable, but the
//     extraction loop only retries them through its next, larger window.
//   - PersistenceError: failures of the notification lock store (flock
//     acquisition, reads, writes). These are logged and skipped; the
//     deduplicator still returns a decision for the current call.
//   - AgentError: agent-scoped failures (capture, unknown agent type). They
//     never abort monitoring of other agents.
//
// # Usage
//
//	err := errors.NewAIError("classify status", errors.ErrAITimeout).WithOperation("classify")
//	if errors.IsRetryable(err) { ... }
//
//	var perr *errors.PersistenceError
//	if errors.As(err, &perr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// AI provider sentinel errors
var (
	// ErrAITimeout indicates the provider call exceeded its deadline.
	ErrAITimeout = New("ai call timed out")
	// ErrAIRateLimited indicates the provider rejected the call with 429.
	ErrAIRateLimited = New("ai provider rate limited")
	// ErrAIUnavailable indicates a network failure or 5xx from the provider.
	ErrAIUnavailable = New("ai provider unavailable")
	// ErrAIMalformedResponse indicates the response could not be parsed.
	ErrAIMalformedResponse = New("ai response malformed")
	// ErrAIMissingKey indicates no API key was configured.
	ErrAIMissingKey = New("ai api key not configured")
	// ErrAIRejected indicates a non-retryable 4xx from the provider.
	ErrAIRejected = New("ai request rejected")
)

// Persistence sentinel errors
var (
	// ErrLockAcquire indicates the advisory file lock could not be taken.
	ErrLockAcquire = New("failed to acquire store lock")
	// ErrStoreRead indicates the lock store file could not be read.
	ErrStoreRead = New("failed to read store")
	// ErrStoreWrite indicates the lock store file could not be written.
	ErrStoreWrite = New("failed to write store")
	// ErrStoreCorrupted indicates the lock store file is not valid JSON.
	ErrStoreCorrupted = New("store data corrupted")
)

// Agent sentinel errors
var (
	// ErrUnknownAgentType indicates no adapter exists for the configured type.
	ErrUnknownAgentType = New("unknown agent type")
	// ErrSessionNotFound indicates the agent's tmux session does not exist.
	ErrSessionNotFound = New("session not found")
	// ErrCaptureFailed indicates the terminal snapshot could not be captured.
	ErrCaptureFailed = New("snapshot capture failed")
	// ErrAgentNotFound indicates the agent ID is not tracked.
	ErrAgentNotFound = New("agent not found")
)

// -----------------------------------------------------------------------------
// Base Error
// -----------------------------------------------------------------------------

// WatchError is the interface implemented by all agentwatch domain errors.
type WatchError interface {
	error
	Unwrap() error
	Severity() Severity
	IsRetryable() bool
}

type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) Severity() Severity { return e.severity }

func (e *baseError) IsRetryable() bool { return e.retryable }

func (e *baseError) format(prefix string, parts []string) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain Errors
// -----------------------------------------------------------------------------

// AIError represents a failed call to the AI provider.
//
// Example:
//
//	err := errors.NewAIError("extract message", errors.ErrAIRateLimited).WithStatusCode(429)
//	fmt.Println(err) // "ai error [status=429]: extract message: ai provider rate limited"
type AIError struct {
	baseError
	Operation  string
	StatusCode int
}

// NewAIError creates an AIError. Timeouts, rate limits and unavailability
// are marked retryable.
func NewAIError(message string, cause error) *AIError {
	retryable := Is(cause, ErrAITimeout) || Is(cause, ErrAIRateLimited) || Is(cause, ErrAIUnavailable)
	return &AIError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityWarning,
			retryable: retryable,
		},
	}
}

// WithOperation records which provider operation failed.
func (e *AIError) WithOperation(op string) *AIError {
	e.Operation = op
	return e
}

// WithStatusCode records the HTTP status returned by the provider.
func (e *AIError) WithStatusCode(code int) *AIError {
	e.StatusCode = code
	return e
}

// Error returns the formatted error message.
func (e *AIError) Error() string {
	var parts []string
	if e.Operation != "" {
		parts = append(parts, "op="+e.Operation)
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	return e.format("ai error", parts)
}

// PersistenceError represents a failure of the notification lock store.
type PersistenceError struct {
	baseError
	Path string
	Key  string
}

// NewPersistenceError creates a PersistenceError.
func NewPersistenceError(message string, cause error) *PersistenceError {
	return &PersistenceError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityWarning,
			retryable: Is(cause, ErrLockAcquire),
		},
	}
}

// WithPath records the store file path.
func (e *PersistenceError) WithPath(path string) *PersistenceError {
	e.Path = path
	return e
}

// WithKey records the key being read or updated.
func (e *PersistenceError) WithKey(key string) *PersistenceError {
	e.Key = key
	return e
}

// Error returns the formatted error message.
func (e *PersistenceError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}
	if e.Key != "" {
		parts = append(parts, "key="+e.Key)
	}
	return e.format("persistence error", parts)
}

// AgentError represents an agent-scoped failure during a tick.
type AgentError struct {
	baseError
	AgentID string
	Session string
}

// NewAgentError creates an AgentError.
func NewAgentError(message string, cause error) *AgentError {
	return &AgentError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithAgentID records the agent the failure belongs to.
func (e *AgentError) WithAgentID(id string) *AgentError {
	e.AgentID = id
	return e
}

// WithSession records the tmux session of the agent.
func (e *AgentError) WithSession(session string) *AgentError {
	e.Session = session
	return e
}

// WithSeverity overrides the default severity.
func (e *AgentError) WithSeverity(s Severity) *AgentError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *AgentError) Error() string {
	var parts []string
	if e.AgentID != "" {
		parts = append(parts, "agent="+e.AgentID)
	}
	if e.Session != "" {
		parts = append(parts, "session="+e.Session)
	}
	return e.format("agent error", parts)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var werr WatchError
	if As(err, &werr) {
		return werr.IsRetryable()
	}
	return Is(err, ErrAITimeout) || Is(err, ErrAIRateLimited) || Is(err, ErrAIUnavailable)
}

// GetSeverity returns the severity of err, SeverityError for foreign errors.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var werr WatchError
	if As(err, &werr) {
		return werr.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
