package watcher

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/agentwatch/internal/ai"
	"github.com/Iron-Ham/agentwatch/internal/classify"
	"github.com/Iron-Ham/agentwatch/internal/dedup"
	"github.com/Iron-Ham/agentwatch/internal/errors"
	"github.com/Iron-Ham/agentwatch/internal/event"
	"github.com/Iron-Ham/agentwatch/internal/extract"
	"github.com/Iron-Ham/agentwatch/internal/llm"
	"github.com/Iron-Ham/agentwatch/internal/strategy"
	"github.com/Iron-Ham/agentwatch/internal/tmux"
)

type fakeTerminal struct {
	mu        sync.Mutex
	snapshots map[string]string
	dead      map[string]bool
	failing   map[string]bool
	vanishing map[string]bool
	captures  []int
}

func newTerminal() *fakeTerminal {
	return &fakeTerminal{
		snapshots: make(map[string]string),
		dead:      make(map[string]bool),
		failing:   make(map[string]bool),
		vanishing: make(map[string]bool),
	}
}

func (f *fakeTerminal) CaptureSnapshot(_ context.Context, target tmux.Target, lines int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = append(f.captures, lines)
	if f.failing[target.Session] {
		return "", errors.NewAgentError("capture-pane failed", errors.ErrCaptureFailed).WithSession(target.String())
	}
	if f.vanishing[target.Session] {
		cause := errors.Join(errors.ErrSessionNotFound, errors.ErrCaptureFailed)
		return "", errors.NewAgentError("capture-pane failed", cause).WithSession(target.String())
	}
	return f.snapshots[target.Session], nil
}

func (f *fakeTerminal) SessionAlive(_ context.Context, target tmux.Target) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.dead[target.Session]
}

type recordingDispatcher struct {
	sent []event.Notification
	err  error
	// notify, when set, receives every dispatched notification.
	notify chan event.Notification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n event.Notification) error {
	d.sent = append(d.sent, n)
	if d.notify != nil {
		d.notify <- n
	}
	return d.err
}

// statusBySnapshot classifies "working" snapshots as processing, panics on
// "PANIC" and reports waiting otherwise.
func statusBySnapshot(_ context.Context, snapshot string) (llm.StatusResult, error) {
	switch {
	case strings.Contains(snapshot, "PANIC"):
		panic("classifier exploded")
	case strings.Contains(snapshot, "working"):
		return llm.StatusResult{Status: llm.StatusProcessing, Confidence: 0.9}, nil
	default:
		return llm.StatusResult{Status: llm.StatusWaitingForInput, Confidence: 0.9}, nil
	}
}

type fixture struct {
	term    *fakeTerminal
	disp    *recordingDispatcher
	locks   *dedup.Deduplicator
	tracker *strategy.HookTracker
	bus     *event.Bus
	events  []event.Event
	reg     *Registry
	w       *Watcher

	now         time.Time
	extractFn   llm.ExtractFunc
	extractRuns int
}

func newFixture(t *testing.T, agents ...Agent) *fixture {
	t.Helper()
	f := &fixture{
		term:    newTerminal(),
		disp:    &recordingDispatcher{},
		tracker: strategy.NewHookTracker(),
		bus:     event.NewBus(nil),
		reg:     NewRegistry(agents...),
		now:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.extractFn = func(_ context.Context, window string) (llm.Extraction, error) {
		return llm.Extraction{
			HasQuestion:     true,
			MessageType:     llm.MessageConfirmation,
			Text:            lastLine(window),
			ContextComplete: true,
		}, nil
	}
	clock := func() time.Time { return f.now }
	f.bus.SubscribeAll(func(e event.Event) { f.events = append(f.events, e) })
	f.locks = dedup.New(nil, dedup.WithClock(clock))

	countingExtract := func(ctx context.Context, window string) (llm.Extraction, error) {
		f.extractRuns++
		return f.extractFn(ctx, window)
	}

	w, err := New(Config{
		Registry:              f.reg,
		Terminal:              f.term,
		Selector:              strategy.NewSelector(f.tracker, strategy.WithClock(clock)),
		Classifier:            classify.New(statusBySnapshot),
		Extractor:             extract.New(countingExtract),
		Locks:                 f.locks,
		Dispatcher:            f.disp,
		Bus:                   f.bus,
		ClearLockOnProcessing: true,
		Now:                   clock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.w = w
	return f
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

func claudeAgent(id string) Agent {
	return Agent{ID: id, Adapter: ai.NewClaudeAdapter(""), Target: tmux.Target{Session: id}}
}

func eventsOfType(events []event.Event, typ string) []event.Event {
	var out []event.Event
	for _, e := range events {
		if e.EventType() == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestTick_NotifiesOnceThenSuppresses(t *testing.T) {
	f := newFixture(t, claudeAgent("cam-1"))
	f.term.snapshots["cam-1"] = "Edited main.go\nDo you want to proceed? [Y/n]"

	reports := f.w.Tick(context.Background())
	if len(reports) != 1 || reports[0].Result != ResultNotified {
		t.Fatalf("first tick = %+v", reports)
	}
	if len(f.disp.sent) != 1 {
		t.Fatalf("dispatched %d, want 1", len(f.disp.sent))
	}
	n := f.disp.sent[0]
	if n.AgentID != "cam-1" || n.Outcome != event.OutcomeSend || n.Kind != event.KindPermission {
		t.Errorf("notification = %+v", n)
	}
	if n.Text != "Do you want to proceed? [Y/n]" || n.MessageType != string(llm.MessageConfirmation) || n.Fallback {
		t.Errorf("notification content = %+v", n)
	}
	if f.term.captures[0] != 800 {
		t.Errorf("captured %d lines, want the largest context size", f.term.captures[0])
	}

	f.now = f.now.Add(5 * time.Minute)
	reports = f.w.Tick(context.Background())
	if reports[0].Result != ResultSuppressed || reports[0].Decision.Reason != dedup.ReasonWithinLock {
		t.Errorf("second tick = %+v", reports[0])
	}
	if len(f.disp.sent) != 1 {
		t.Errorf("dispatched %d, want still 1", len(f.disp.sent))
	}
}

func TestTick_ReminderAfterWindow(t *testing.T) {
	f := newFixture(t, claudeAgent("a"))
	f.term.snapshots["a"] = "Which branch should I use?"

	f.w.Tick(context.Background())
	f.now = f.now.Add(61 * time.Minute)
	reports := f.w.Tick(context.Background())

	if reports[0].Result != ResultNotified {
		t.Fatalf("report = %+v", reports[0])
	}
	if got := f.disp.sent[1]; got.Outcome != event.OutcomeReminder || got.Kind != event.KindQuestion {
		t.Errorf("reminder = %+v", got)
	}
}

func TestProcessAgent_ProcessingClearsLockWithoutExtraction(t *testing.T) {
	f := newFixture(t, claudeAgent("a"))
	f.locks.ShouldSend("a", "old question?")
	f.term.snapshots["a"] = "working on it"

	rep := f.w.ProcessAgent(context.Background(), claudeAgent("a"))

	if rep.Result != ResultProcessing || rep.Status != llm.StatusProcessing {
		t.Fatalf("report = %+v", rep)
	}
	if f.extractRuns != 0 {
		t.Errorf("extraction ran %d times, want 0", f.extractRuns)
	}
	locks, _ := f.locks.Locks()
	if len(locks) != 0 {
		t.Errorf("locks = %v, want cleared", locks)
	}
	cleared := eventsOfType(f.events, event.TypeLockCleared)
	if len(cleared) != 1 || cleared[0].(event.LockClearedEvent).Reason != ClearProcessing {
		t.Errorf("lock cleared events = %v", cleared)
	}
}

func TestProcessAgent_IdleDoesNotNotify(t *testing.T) {
	f := newFixture(t, claudeAgent("a"))
	f.term.snapshots["a"] = "All tests pass.\n>"
	f.extractFn = func(context.Context, string) (llm.Extraction, error) {
		return llm.Extraction{HasQuestion: false, ContextComplete: true, LastAction: "ran tests"}, nil
	}

	rep := f.w.ProcessAgent(context.Background(), claudeAgent("a"))
	if rep.Result != ResultIdle {
		t.Errorf("Result = %v, want idle", rep.Result)
	}
	if len(f.disp.sent) != 0 {
		t.Errorf("dispatched %v", f.disp.sent)
	}
}

func TestProcessAgent_ExtractionFailureFallsBackToTail(t *testing.T) {
	f := newFixture(t, claudeAgent("a"))
	f.term.snapshots["a"] = "\x1b[1mBuild finished\x1b[0m\nnext step unclear"
	f.extractFn = func(context.Context, string) (llm.Extraction, error) {
		return llm.Extraction{}, errors.NewAIError("extract", errors.ErrAIUnavailable)
	}

	rep := f.w.ProcessAgent(context.Background(), claudeAgent("a"))
	if rep.Result != ResultNotified {
		t.Fatalf("report = %+v", rep)
	}
	n := f.disp.sent[0]
	if !n.Fallback || n.Kind != event.KindAttention {
		t.Errorf("notification = %+v, want attention fallback", n)
	}
	if n.Text != "Build finished\nnext step unclear" {
		t.Errorf("Text = %q", n.Text)
	}
	if len(eventsOfType(f.events, event.TypeExtractionFailed)) != 1 {
		t.Error("expected an extraction.failed event")
	}
}

func TestProcessAgent_SessionGone(t *testing.T) {
	discovered := claudeAgent("agent-x")
	discovered.Discovered = true
	f := newFixture(t, discovered)
	f.locks.ShouldSend("agent-x", "q?")
	f.term.dead["agent-x"] = true

	reports := f.w.Tick(context.Background())
	if reports[0].Result != ResultSessionGone {
		t.Fatalf("report = %+v", reports[0])
	}
	if _, ok := f.reg.Get("agent-x"); ok {
		t.Error("discovered agent should be dropped with its session")
	}
	if locks, _ := f.locks.Locks(); len(locks) != 0 {
		t.Errorf("locks = %v, want cleared", locks)
	}
	if len(f.term.captures) != 0 {
		t.Error("dead session should not be captured")
	}
}

func TestProcessAgent_SessionVanishesDuringCapture(t *testing.T) {
	f := newFixture(t, claudeAgent("a"))
	f.locks.ShouldSend("a", "q?")
	f.term.vanishing["a"] = true

	rep := f.w.ProcessAgent(context.Background(), claudeAgent("a"))
	if rep.Result != ResultSessionGone || rep.Err != nil {
		t.Fatalf("report = %+v, want session gone", rep)
	}
	if locks, _ := f.locks.Locks(); len(locks) != 0 {
		t.Errorf("locks = %v, want cleared", locks)
	}
}

func TestTick_IsolatesFailingAgents(t *testing.T) {
	f := newFixture(t, claudeAgent("a-broken"), claudeAgent("b-panics"), claudeAgent("c-ok"))
	f.term.failing["a-broken"] = true
	f.term.snapshots["b-panics"] = "PANIC"
	f.term.snapshots["c-ok"] = "Proceed with deploy?"

	reports := f.w.Tick(context.Background())
	if len(reports) != 3 {
		t.Fatalf("reports = %d, want 3", len(reports))
	}
	want := map[string]Result{"a-broken": ResultError, "b-panics": ResultError, "c-ok": ResultNotified}
	for _, r := range reports {
		if r.Result != want[r.AgentID] {
			t.Errorf("%s: result = %v, want %v (err %v)", r.AgentID, r.Result, want[r.AgentID], r.Err)
		}
	}
	if !errors.Is(reports[0].Err, errors.ErrCaptureFailed) {
		t.Errorf("capture error = %v", reports[0].Err)
	}
	if reports[1].Err == nil || !strings.Contains(reports[1].Err.Error(), "classifier exploded") {
		t.Errorf("panic error = %v", reports[1].Err)
	}
}

func TestProcessAgent_HookOnlyAgentWithFreshHookIsSkipped(t *testing.T) {
	agent := Agent{ID: "oc", Adapter: ai.NewOpenCodeAdapter(""), Target: tmux.Target{Session: "oc"}}
	f := newFixture(t, agent)
	f.term.snapshots["oc"] = "Proceed?"
	f.tracker.Record("oc", f.now.Add(-time.Minute))

	if rep := f.w.ProcessAgent(context.Background(), agent); rep.Result != ResultSkipped {
		t.Errorf("fresh hook: Result = %v, want skipped", rep.Result)
	}

	f.now = f.now.Add(10 * time.Minute)
	if rep := f.w.ProcessAgent(context.Background(), agent); rep.Result != ResultNotified {
		t.Errorf("stale hook: Result = %v, want notified", rep.Result)
	}
}

func TestProcessNow_BypassesFreshHook(t *testing.T) {
	agent := Agent{ID: "oc", Adapter: ai.NewOpenCodeAdapter(""), Target: tmux.Target{Session: "oc"}}
	f := newFixture(t, agent)
	f.term.snapshots["oc"] = "Allow running rm -rf build?"
	f.tracker.Record("oc", f.now)

	rep, ok := f.w.ProcessNow(context.Background(), "oc")
	if !ok {
		t.Fatal("ProcessNow() reported an untracked agent")
	}
	if rep.Result != ResultNotified || rep.Decision.Action != dedup.ActionSend {
		t.Errorf("report = %+v, want a send", rep)
	}

	if _, ok := f.w.ProcessNow(context.Background(), "missing"); ok {
		t.Error("ProcessNow() on an untracked agent should report false")
	}
}

func TestHandleHook_WakesOnlyForAttention(t *testing.T) {
	agent := Agent{ID: "oc", Adapter: ai.NewOpenCodeAdapter(""), Target: tmux.Target{Session: "oc"}}

	tests := []struct {
		payload string
		want    bool
	}{
		{`{"type":"permission.updated"}`, true},
		{`{"type":"session.idle"}`, true},
		{`{"type":"permission.replied"}`, false},
		{`{"type":"message.updated"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			f := newFixture(t, agent)
			ev, err := agent.Adapter.ParseHookEvent([]byte(tt.payload))
			if err != nil {
				t.Fatal(err)
			}
			ev.AgentID = "oc"
			f.w.HandleHook(context.Background(), ev)

			if got := len(f.w.wake) == 1; got != tt.want {
				t.Errorf("woken = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRun_NotificationHookOnHookOnlyAgentSends(t *testing.T) {
	agent := Agent{ID: "oc", Adapter: ai.NewOpenCodeAdapter(""), Target: tmux.Target{Session: "oc"}}
	f := newFixture(t, agent)
	f.term.snapshots["oc"] = "Allow running rm -rf build?"
	f.disp.notify = make(chan event.Notification, 1)
	// The hook that is about to arrive is fresh, so polling skips the agent.
	f.tracker.Record("oc", f.now)

	ev, err := agent.Adapter.ParseHookEvent([]byte(`{"type":"permission.updated"}`))
	if err != nil {
		t.Fatal(err)
	}
	ev.AgentID = "oc"
	f.w.HandleHook(context.Background(), ev)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.w.Run(ctx) }()

	select {
	case n := <-f.disp.notify:
		if n.AgentID != "oc" || n.Outcome != event.OutcomeSend {
			t.Errorf("notification = %+v", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no notification for the woken agent")
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v", err)
	}
}

func TestWake_FullQueueDoesNotBlock(t *testing.T) {
	f := newFixture(t, claudeAgent("a"))
	for range wakeBuffer {
		if !f.w.Wake("a") {
			t.Fatal("Wake() refused before the queue was full")
		}
	}
	if f.w.Wake("a") {
		t.Error("Wake() on a full queue should report false")
	}
}

func TestProcessAgent_DispatchError(t *testing.T) {
	f := newFixture(t, claudeAgent("a"))
	f.term.snapshots["a"] = "Proceed?"
	f.disp.err = errors.New("channel down")

	rep := f.w.ProcessAgent(context.Background(), claudeAgent("a"))
	if rep.Result != ResultError || rep.Notification == nil {
		t.Fatalf("report = %+v", rep)
	}
	if locks, _ := f.locks.Locks(); len(locks) != 0 {
		t.Errorf("locks = %v, want none after a failed delivery", locks)
	}

	f.disp.err = nil
	f.now = f.now.Add(time.Minute)
	rep = f.w.ProcessAgent(context.Background(), claudeAgent("a"))
	if rep.Result != ResultNotified {
		t.Fatalf("retry result = %v (%+v), want notified", rep.Result, rep.Decision)
	}
	// The recorder keeps the failed attempt too.
	if rep.Decision.Action != dedup.ActionSend || len(f.disp.sent) != 2 {
		t.Errorf("retry decision = %+v, dispatched = %d", rep.Decision, len(f.disp.sent))
	}
}

func TestProcessAgent_ReminderDispatchErrorRetries(t *testing.T) {
	f := newFixture(t, claudeAgent("a"))
	f.term.snapshots["a"] = "Proceed?"

	if rep := f.w.ProcessAgent(context.Background(), claudeAgent("a")); rep.Result != ResultNotified {
		t.Fatalf("first result = %v", rep.Result)
	}

	f.now = f.now.Add(61 * time.Minute)
	f.disp.err = errors.New("channel down")
	if rep := f.w.ProcessAgent(context.Background(), claudeAgent("a")); rep.Result != ResultError {
		t.Fatalf("reminder result = %v, want error", rep.Result)
	}

	f.disp.err = nil
	f.now = f.now.Add(time.Minute)
	rep := f.w.ProcessAgent(context.Background(), claudeAgent("a"))
	if rep.Result != ResultNotified || rep.Notification.Outcome != event.OutcomeReminder {
		t.Errorf("retry = %v %+v, want the reminder", rep.Result, rep.Decision)
	}
}

func TestClearLock_PublishesOnlyWhenLockExisted(t *testing.T) {
	f := newFixture(t, claudeAgent("a"))

	if err := f.w.ClearLock("a", ClearHook); err != nil {
		t.Fatal(err)
	}
	if len(f.events) != 0 {
		t.Errorf("events = %v, want none for a missing lock", f.events)
	}

	f.locks.ShouldSend("a", "q?")
	if err := f.w.ClearLock("a", ClearHook); err != nil {
		t.Fatal(err)
	}
	if got := eventsOfType(f.events, event.TypeLockCleared); len(got) != 1 {
		t.Errorf("lock cleared events = %v", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New with empty config should fail")
	}
}

func TestPublishWarnings(t *testing.T) {
	bus := event.NewBus(nil)
	var got []event.QualityWarningEvent
	bus.Subscribe(event.TypeQualityWarning, func(e event.Event) {
		got = append(got, e.(event.QualityWarningEvent))
	})

	PublishWarnings(bus)(context.Background(), "a", classify.Result{Status: llm.StatusUnknown, Issues: []string{"empty snapshot"}})
	if len(got) != 1 || got[0].AgentID != "a" || got[0].Status != "unknown" {
		t.Errorf("events = %+v", got)
	}
}
