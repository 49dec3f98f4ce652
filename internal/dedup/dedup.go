// Package dedup decides whether a notification for an agent's question
// should go out.
//
// Each agent holds at most one lock. A new or changed question is sent and
// locks the agent; the same question is suppressed for the lock window, may
// be repeated once as a reminder, and is never sent again after the maximum
// duration. Locks live in a [lockstore.Store] so every agentwatch process on
// the machine sees the same decisions.
package dedup

import (
	"maps"
	"sync"
	"time"

	"github.com/Iron-Ham/agentwatch/internal/errors"
	"github.com/Iron-Ham/agentwatch/internal/fingerprint"
	"github.com/Iron-Ham/agentwatch/internal/lockstore"
	"github.com/Iron-Ham/agentwatch/internal/logging"
)

// errUnchanged aborts a store update that would write the same contents.
var errUnchanged = errors.New("unchanged")

// Deduplicator applies the lock rules against a shared store.
type Deduplicator struct {
	store   *lockstore.Store[Record]
	windows Windows
	now     func() time.Time
	logger  *logging.Logger

	mu sync.Mutex
	// mirror is the last known store contents, used when the store fails.
	mirror map[string]Record
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithWindows overrides the timing rules. Non-positive fields keep their defaults.
func WithWindows(w Windows) Option {
	return func(d *Deduplicator) {
		if w.Lock > 0 {
			d.windows.Lock = w.Lock
		}
		if w.ReminderDelay > 0 {
			d.windows.ReminderDelay = w.ReminderDelay
		}
		if w.MaxDuration > 0 {
			d.windows.MaxDuration = w.MaxDuration
		}
		if w.EvictAfter > 0 {
			d.windows.EvictAfter = w.EvictAfter
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Deduplicator) { d.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Deduplicator) { d.logger = l }
}

// New creates a Deduplicator. A nil store keeps locks in memory only.
func New(store *lockstore.Store[Record], opts ...Option) *Deduplicator {
	d := &Deduplicator{
		store:   store,
		windows: DefaultWindows(),
		now:     time.Now,
		logger:  logging.NopLogger(),
		mirror:  make(map[string]Record),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithComponent("dedup")
	return d
}

// Windows returns the active timing rules.
func (d *Deduplicator) Windows() Windows { return d.windows }

// ShouldSend decides whether content from agentID is notified and records
// the outcome. Store failures are logged and the decision falls back to
// the in-memory mirror.
func (d *Deduplicator) ShouldSend(agentID, content string) Decision {
	d.mu.Lock()
	defer d.mu.Unlock()

	fp := fingerprint.Of(content)
	now := d.now()
	log := d.logger.WithAgent(agentID)

	if d.store != nil {
		var (
			dec     Decision
			decided bool
			evicted []string
			prev    Record
			existed bool
		)
		err := d.store.Update(func(m map[string]Record) error {
			evicted = evict(m, agentID, d.windows.EvictAfter, now)
			prev, existed = m[agentID]
			var next Record
			var changed bool
			dec, next, changed = decide(d.windows, prev, existed, fp, now)
			decided = true
			if changed {
				m[agentID] = next
			}
			d.mirror = maps.Clone(m)
			if !changed && len(evicted) == 0 {
				return errUnchanged
			}
			return nil
		})
		if err == nil || errors.Is(err, errUnchanged) {
			d.logDecision(log, dec, fp, evicted, prev, existed, now)
			return dec
		}
		log.Warn("lock store unavailable, deciding from memory", "error", err, "path", d.store.Path())
		if decided {
			// The read succeeded and only the write failed.
			d.logDecision(log, dec, fp, evicted, prev, existed, now)
			return dec
		}
	}

	evicted := evict(d.mirror, agentID, d.windows.EvictAfter, now)
	cur, ok := d.mirror[agentID]
	dec, next, changed := decide(d.windows, cur, ok, fp, now)
	if changed {
		d.mirror[agentID] = next
	}
	d.logDecision(log, dec, fp, evicted, cur, ok, now)
	return dec
}

// logDecision records the verdict with the age of the lock it was judged
// against. A first notification has no lock and logs zero ages.
func (d *Deduplicator) logDecision(log *logging.Logger, dec Decision, fp uint64, evicted []string, prev Record, existed bool, now time.Time) {
	if len(evicted) > 0 {
		log.Debug("evicted stale locks", "agents", evicted)
	}
	var sinceLocked, sinceFirst time.Duration
	if existed {
		sinceLocked = now.Sub(time.Unix(prev.LockedAt, 0))
		sinceFirst = now.Sub(time.Unix(prev.FirstNotifiedAt, 0))
	}
	log.Info("dedup decision",
		"action", dec.Action.String(),
		"reason", dec.Reason,
		"fingerprint", fp,
		"since_locked", sinceLocked.Truncate(time.Second).String(),
		"since_first", sinceFirst.Truncate(time.Second).String())
}

// Revert undoes the record a sending decision stored, for a notification
// that could not be delivered. The next tick then decides as if the send
// never happened. A record changed since by another process is left alone.
func (d *Deduplicator) Revert(agentID string, dec Decision) error {
	if !dec.ShouldNotify() {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	restore := func(m map[string]Record) bool {
		cur, ok := m[agentID]
		if !ok || cur != dec.written {
			return false
		}
		if dec.prior == nil {
			delete(m, agentID)
		} else {
			m[agentID] = *dec.prior
		}
		return true
	}

	log := d.logger.WithAgent(agentID)
	restored := restore(d.mirror)
	if d.store != nil {
		err := d.store.Update(func(m map[string]Record) error {
			if !restore(m) {
				return errUnchanged
			}
			return nil
		})
		switch {
		case err == nil:
			restored = true
		case errors.Is(err, errUnchanged):
			restored = false
		default:
			log.Warn("failed to revert lock", "error", err)
			return err
		}
	}
	if restored {
		log.Info("lock reverted after failed delivery", "action", dec.Action.String())
	}
	return nil
}

// ClearLock removes agentID's lock so its next question is sent at once.
// It reports whether a lock existed.
func (d *Deduplicator) ClearLock(agentID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, inMirror := d.mirror[agentID]
	delete(d.mirror, agentID)
	if d.store == nil {
		return inMirror, nil
	}
	existed, err := d.store.Delete(agentID)
	if err != nil {
		d.logger.WithAgent(agentID).Warn("failed to clear lock", "error", err)
		return inMirror, err
	}
	if existed {
		d.logger.WithAgent(agentID).Info("lock cleared")
	}
	return existed, nil
}

// Locks returns every stored lock.
func (d *Deduplicator) Locks() (map[string]Record, error) {
	if d.store == nil {
		d.mu.Lock()
		defer d.mu.Unlock()
		return maps.Clone(d.mirror), nil
	}
	return d.store.All()
}
