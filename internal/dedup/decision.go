package dedup

import "time"

// Action is what to do with a candidate notification.
type Action int

const (
	// ActionSend delivers a new or changed question.
	ActionSend Action = iota
	// ActionSendReminder delivers the single reminder for an unanswered question.
	ActionSendReminder
	// ActionSuppressed drops the notification.
	ActionSuppressed
)

// String returns the action name used in logs and CLI output.
func (a Action) String() string {
	switch a {
	case ActionSend:
		return "send"
	case ActionSendReminder:
		return "send_reminder"
	default:
		return "suppressed"
	}
}

// Suppression and send reasons.
const (
	ReasonNewQuestion     = "new question"
	ReasonContentChanged  = "content changed"
	ReasonReminderDue     = "reminder due"
	ReasonMaxDuration     = "max duration exceeded"
	ReasonWithinLock      = "within lock window"
	ReasonWaitingReminder = "waiting for reminder window"
	ReasonReminderSent    = "reminder already sent"
)

// Decision is the deduplicator's verdict for one candidate notification.
type Decision struct {
	Action Action
	Reason string

	// prior is the record before a sending decision, nil for a new lock.
	// written is the record the decision stored.
	prior   *Record
	written Record
}

// ShouldNotify reports whether a notification goes out.
func (d Decision) ShouldNotify() bool {
	return d.Action != ActionSuppressed
}

// Record is the persisted notification lock of one agent.
type Record struct {
	FirstNotifiedAt    int64  `json:"first_notified_at" yaml:"first_notified_at"`
	LockedAt           int64  `json:"locked_at" yaml:"locked_at"`
	ContentFingerprint uint64 `json:"content_fingerprint" yaml:"content_fingerprint"`
	ReminderSent       bool   `json:"reminder_sent" yaml:"reminder_sent"`
}

// Windows are the timing rules of the lock.
type Windows struct {
	Lock          time.Duration
	ReminderDelay time.Duration
	MaxDuration   time.Duration
	EvictAfter    time.Duration
}

// DefaultWindows returns the standard timings.
func DefaultWindows() Windows {
	return Windows{
		Lock:          30 * time.Minute,
		ReminderDelay: 30 * time.Minute,
		MaxDuration:   2 * time.Hour,
		EvictAfter:    24 * time.Hour,
	}
}

// decide applies the lock rules. It returns the decision and the record to
// store; changed is false when the existing record stays as is.
func decide(w Windows, cur Record, exists bool, fp uint64, now time.Time) (d Decision, next Record, changed bool) {
	ts := now.Unix()
	if !exists {
		next = Record{FirstNotifiedAt: ts, LockedAt: ts, ContentFingerprint: fp}
		return Decision{Action: ActionSend, Reason: ReasonNewQuestion, written: next}, next, true
	}

	if cur.ContentFingerprint != fp {
		// first_notified_at is kept: only an explicit clear restarts the max clock.
		next = Record{FirstNotifiedAt: cur.FirstNotifiedAt, LockedAt: ts, ContentFingerprint: fp}
		return Decision{Action: ActionSend, Reason: ReasonContentChanged, prior: &cur, written: next}, next, true
	}

	if now.Sub(time.Unix(cur.FirstNotifiedAt, 0)) >= w.MaxDuration {
		return Decision{Action: ActionSuppressed, Reason: ReasonMaxDuration}, cur, false
	}

	elapsed := now.Sub(time.Unix(cur.LockedAt, 0))
	switch {
	case elapsed < w.Lock:
		return Decision{Action: ActionSuppressed, Reason: ReasonWithinLock}, cur, false
	case elapsed < w.Lock+w.ReminderDelay:
		return Decision{Action: ActionSuppressed, Reason: ReasonWaitingReminder}, cur, false
	case cur.ReminderSent:
		return Decision{Action: ActionSuppressed, Reason: ReasonReminderSent}, cur, false
	default:
		prior := cur
		cur.ReminderSent = true
		return Decision{Action: ActionSendReminder, Reason: ReasonReminderDue, prior: &prior, written: cur}, cur, true
	}
}

// evict removes records other than keep whose lock is older than maxAge.
// It returns the removed keys.
func evict(m map[string]Record, keep string, maxAge time.Duration, now time.Time) []string {
	if maxAge <= 0 {
		return nil
	}
	var removed []string
	for id, rec := range m {
		if id == keep {
			continue
		}
		if now.Sub(time.Unix(rec.LockedAt, 0)) > maxAge {
			delete(m, id)
			removed = append(removed, id)
		}
	}
	return removed
}
