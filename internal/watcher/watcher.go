package watcher

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/agentwatch/internal/ai"
	"github.com/Iron-Ham/agentwatch/internal/classify"
	"github.com/Iron-Ham/agentwatch/internal/dedup"
	"github.com/Iron-Ham/agentwatch/internal/detect"
	"github.com/Iron-Ham/agentwatch/internal/errors"
	"github.com/Iron-Ham/agentwatch/internal/event"
	"github.com/Iron-Ham/agentwatch/internal/extract"
	"github.com/Iron-Ham/agentwatch/internal/llm"
	"github.com/Iron-Ham/agentwatch/internal/logging"
	"github.com/Iron-Ham/agentwatch/internal/strategy"
	"github.com/Iron-Ham/agentwatch/internal/tmux"
)

const (
	// DefaultInterval is the time between ticks.
	DefaultInterval = 10 * time.Second
	// DefaultFallbackLines is the raw tail size sent when extraction fails.
	DefaultFallbackLines = extract.DefaultFallbackLines
)

// Lock clear reasons reported in LockClearedEvent.
const (
	ClearHook        = "hook"
	ClearProcessing  = "processing"
	ClearSessionGone = "session_gone"
	ClearManual      = "manual"
)

// Terminal reads agent panes.
type Terminal interface {
	CaptureSnapshot(ctx context.Context, target tmux.Target, lines int) (string, error)
	SessionAlive(ctx context.Context, target tmux.Target) bool
}

// Locks is the deduplicator as seen by the loop.
type Locks interface {
	ShouldSend(agentID, content string) dedup.Decision
	Revert(agentID string, dec dedup.Decision) error
	ClearLock(agentID string) (bool, error)
}

// Result is the outcome of processing one agent in one tick.
type Result int

const (
	ResultSkipped Result = iota
	ResultSessionGone
	ResultProcessing
	ResultIdle
	ResultNotified
	ResultSuppressed
	ResultError
)

// String returns the result name used in logs and CLI output.
func (r Result) String() string {
	switch r {
	case ResultSkipped:
		return "skipped"
	case ResultSessionGone:
		return "session_gone"
	case ResultProcessing:
		return "processing"
	case ResultIdle:
		return "idle"
	case ResultNotified:
		return "notified"
	case ResultSuppressed:
		return "suppressed"
	default:
		return "error"
	}
}

// Report describes what happened to one agent in one tick.
type Report struct {
	AgentID      string
	Result       Result
	Status       llm.Status
	Confidence   float64
	Decision     *dedup.Decision
	Notification *event.Notification
	Attempts     int
	Err          error
	Elapsed      time.Duration
}

// Config wires a Watcher. Registry through Dispatcher are required.
type Config struct {
	Registry   *Registry
	Terminal   Terminal
	Selector   *strategy.Selector
	Classifier *classify.Classifier
	Extractor  *extract.Extractor
	Locks      Locks
	Dispatcher event.Dispatcher

	// Bus receives observability events. Optional.
	Bus *event.Bus
	// Discoverer adds agents before every tick. Optional.
	Discoverer *Discoverer

	Interval              time.Duration
	FallbackLines         int
	ClearLockOnProcessing bool
	Logger                *logging.Logger
	Now                   func() time.Time
}

// wakeBuffer bounds agents queued by hooks between two loop iterations.
const wakeBuffer = 64

// Watcher runs the per-agent decision pipeline.
type Watcher struct {
	cfg    Config
	logger *logging.Logger
	now    func() time.Time
	wake   chan string
}

// New validates cfg and creates a Watcher.
func New(cfg Config) (*Watcher, error) {
	switch {
	case cfg.Registry == nil:
		return nil, errors.New("watcher: registry is required")
	case cfg.Terminal == nil:
		return nil, errors.New("watcher: terminal is required")
	case cfg.Selector == nil:
		return nil, errors.New("watcher: selector is required")
	case cfg.Classifier == nil:
		return nil, errors.New("watcher: classifier is required")
	case cfg.Extractor == nil:
		return nil, errors.New("watcher: extractor is required")
	case cfg.Locks == nil:
		return nil, errors.New("watcher: locks are required")
	case cfg.Dispatcher == nil:
		return nil, errors.New("watcher: dispatcher is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FallbackLines <= 0 {
		cfg.FallbackLines = DefaultFallbackLines
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Watcher{
		cfg:    cfg,
		logger: cfg.Logger.WithComponent("watcher"),
		now:    cfg.Now,
		wake:   make(chan string, wakeBuffer),
	}, nil
}

// Registry returns the tracked agents.
func (w *Watcher) Registry() *Registry { return w.cfg.Registry }

// Run ticks until ctx is cancelled. Agents woken by hooks are processed
// between ticks on the same goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watcher started", "interval", w.cfg.Interval.String(), "agents", w.cfg.Registry.Len())
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return nil
		case <-ticker.C:
			w.Tick(ctx)
		case id := <-w.wake:
			w.ProcessNow(ctx, id)
		}
	}
}

// HandleHook wakes the agent of an attention hook. A fresh hook makes the
// selector skip HookOnly agents, so the hook itself must trigger a pass.
func (w *Watcher) HandleHook(_ context.Context, ev ai.HookEvent) {
	if ev.Kind.WantsAttention() {
		w.Wake(ev.AgentID)
	}
}

// Wake queues agentID for an immediate pass in Run. It never blocks and
// reports false when the queue is full.
func (w *Watcher) Wake(agentID string) bool {
	select {
	case w.wake <- agentID:
		return true
	default:
		w.logger.WithAgent(agentID).Warn("wake queue full, waiting for the next tick")
		return false
	}
}

// ProcessNow runs the pipeline for agentID regardless of its detection
// strategy. It reports false for an untracked agent.
func (w *Watcher) ProcessNow(ctx context.Context, agentID string) (Report, bool) {
	agent, ok := w.cfg.Registry.Get(agentID)
	if !ok {
		w.logger.WithAgent(agentID).Debug("wake for untracked agent")
		return Report{}, false
	}
	return w.processSafely(ctx, agent, true), true
}

// Tick processes every tracked agent once, in ID order. A failure or panic
// in one agent is reported in its Report and never stops the others.
func (w *Watcher) Tick(ctx context.Context) []Report {
	start := w.now()
	if d := w.cfg.Discoverer; d != nil {
		if _, err := d.Discover(ctx, w.cfg.Registry); err != nil {
			w.logger.Warn("session discovery failed", "error", err)
		}
	}

	agents := w.cfg.Registry.List()
	reports := make([]Report, 0, len(agents))
	counts := make(map[string]int)
	for _, agent := range agents {
		if ctx.Err() != nil {
			break
		}
		rep := w.processSafely(ctx, agent, false)
		reports = append(reports, rep)
		counts[rep.Result.String()]++
	}

	w.logger.Debug("tick complete",
		"agents", len(agents),
		"results", counts,
		"elapsed_ms", w.now().Sub(start).Milliseconds())
	return reports
}

func (w *Watcher) processSafely(ctx context.Context, agent Agent, force bool) Report {
	var (
		pc  panics.Catcher
		rep Report
	)
	pc.Try(func() { rep = w.processAgent(ctx, agent, force) })
	if r := pc.Recovered(); r != nil {
		w.logger.WithAgent(agent.ID).Error("agent processing panicked",
			"panic", r.String())
		return Report{AgentID: agent.ID, Result: ResultError, Err: r.AsError()}
	}
	return rep
}

// ProcessAgent runs one pass of the pipeline for agent.
func (w *Watcher) ProcessAgent(ctx context.Context, agent Agent) Report {
	return w.processAgent(ctx, agent, false)
}

// processAgent runs one pass; force skips the detection strategy check.
func (w *Watcher) processAgent(ctx context.Context, agent Agent, force bool) Report {
	start := w.now()
	log := w.logger.WithAgent(agent.ID)
	rep := w.process(ctx, agent, force, log)
	rep.AgentID = agent.ID
	rep.Elapsed = w.now().Sub(start)

	args := []any{"result", rep.Result.String(), "elapsed_ms", rep.Elapsed.Milliseconds()}
	if rep.Status != "" {
		args = append(args, "status", string(rep.Status), "confidence", rep.Confidence)
	}
	if rep.Decision != nil {
		args = append(args, "action", rep.Decision.Action.String(), "reason", rep.Decision.Reason)
	}
	if rep.Err != nil {
		args = append(args, "error", rep.Err)
		log.Warn("agent processed", args...)
	} else {
		log.Info("agent processed", args...)
	}
	return rep
}

func (w *Watcher) process(ctx context.Context, agent Agent, force bool, log *logging.Logger) Report {
	if !force && !w.cfg.Selector.ShouldPoll(agent.ID, agent.Adapter.DetectionStrategy()) {
		return Report{Result: ResultSkipped}
	}

	if !w.cfg.Terminal.SessionAlive(ctx, agent.Target) {
		return w.sessionGone(agent, log)
	}

	snapshot, err := w.cfg.Terminal.CaptureSnapshot(ctx, agent.Target, w.cfg.Extractor.MaxContext())
	if err != nil {
		if errors.Is(err, errors.ErrSessionNotFound) {
			// The session ended between has-session and capture.
			return w.sessionGone(agent, log)
		}
		return Report{Result: ResultError, Err: err}
	}

	cls := w.cfg.Classifier.Classify(ctx, agent.ID, snapshot)
	rep := Report{Status: cls.Status, Confidence: cls.Confidence}
	if !cls.ShouldNotify() {
		if w.cfg.ClearLockOnProcessing {
			w.clearLock(agent.ID, ClearProcessing, log)
		}
		rep.Result = ResultProcessing
		return rep
	}

	out := w.cfg.Extractor.Extract(ctx, agent.ID, snapshot, cls.Status)
	rep.Attempts = len(out.Attempts)
	if out.Idle() {
		rep.Result = ResultIdle
		return rep
	}

	state := agent.Adapter.Detector().Detect(snapshot)
	var n event.Notification
	switch out.Kind {
	case extract.OutcomeSuccess:
		msg := out.Message
		n = event.NewNotification(agent.ID, "", kindFor(msg, state), msg.Text, w.now())
		n.Options = msg.Options
		n.MessageType = string(msg.Type)
	default:
		tail := extract.FallbackText(snapshot, w.cfg.FallbackLines)
		w.publish(event.NewExtractionFailedEvent(agent.ID, len(out.Attempts), lastWindow(out)))
		if tail == "" {
			rep.Result = ResultIdle
			return rep
		}
		n = event.NewNotification(agent.ID, "", kindFor(nil, state), tail, w.now())
		n.Fallback = true
	}

	content := n.Text
	if out.Message != nil {
		content = out.Message.Content()
	}
	dec := w.cfg.Locks.ShouldSend(agent.ID, content)
	rep.Decision = &dec
	if !dec.ShouldNotify() {
		rep.Result = ResultSuppressed
		return rep
	}

	n.Outcome = event.OutcomeSend
	if dec.Action == dedup.ActionSendReminder {
		n.Outcome = event.OutcomeReminder
	}
	rep.Notification = &n
	if err := w.cfg.Dispatcher.Dispatch(ctx, n); err != nil {
		// Undelivered: the lock must not suppress the retry on the next tick.
		if rerr := w.cfg.Locks.Revert(agent.ID, dec); rerr != nil {
			log.Warn("failed to revert lock after dispatch error", "error", rerr)
		}
		rep.Result = ResultError
		rep.Err = errors.Wrap(err, "dispatch notification")
		return rep
	}
	rep.Result = ResultNotified
	return rep
}

// sessionGone treats a vanished session as an exit.
func (w *Watcher) sessionGone(agent Agent, log *logging.Logger) Report {
	w.clearLock(agent.ID, ClearSessionGone, log)
	if agent.Discovered {
		w.cfg.Registry.Remove(agent.ID)
	}
	return Report{Result: ResultSessionGone}
}

// ClearLock drops agentID's notification lock and reports it on the bus.
func (w *Watcher) ClearLock(agentID, reason string) error {
	_, err := w.clear(agentID, reason)
	return err
}

func (w *Watcher) clearLock(agentID, reason string, log *logging.Logger) {
	if _, err := w.clear(agentID, reason); err != nil {
		log.Warn("failed to clear lock", "reason", reason, "error", err)
	}
}

func (w *Watcher) clear(agentID, reason string) (bool, error) {
	existed, err := w.cfg.Locks.ClearLock(agentID)
	if existed {
		w.publish(event.NewLockClearedEvent(agentID, reason))
	}
	return existed, err
}

func (w *Watcher) publish(e event.Event) {
	if w.cfg.Bus != nil {
		w.cfg.Bus.Publish(e)
	}
}

// kindFor maps an extracted message, or the lack of one, to a notification kind.
func kindFor(msg *extract.Message, state detect.WaitingState) event.Kind {
	switch {
	case state == detect.StateWaitingPermission:
		return event.KindPermission
	case msg != nil, state == detect.StateWaitingQuestion:
		return event.KindQuestion
	default:
		return event.KindAttention
	}
}

func lastWindow(out extract.Outcome) int {
	if len(out.Attempts) == 0 {
		return 0
	}
	return out.Attempts[len(out.Attempts)-1].ContextLines
}

// PublishWarnings returns a classifier warning handler that publishes
// QualityWarningEvents on bus.
func PublishWarnings(bus *event.Bus) classify.WarningFunc {
	return func(_ context.Context, agentID string, r classify.Result) {
		bus.Publish(event.NewQualityWarningEvent(agentID, string(r.Status), r.Confidence, r.Issues))
	}
}
