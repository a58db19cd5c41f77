package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/greenlight/internal/borrower"
	"github.com/kingrea/greenlight/internal/eventbridge"
	"github.com/kingrea/greenlight/internal/oracle"
	"github.com/kingrea/greenlight/internal/oracle/oracletest"
	"github.com/kingrea/greenlight/internal/pipeline"
	"github.com/kingrea/greenlight/internal/stage"
	"github.com/kingrea/greenlight/internal/staleness"
)

func TestNewAppRequiresCollaborators(t *testing.T) {
	if _, err := NewApp(nil, nil, borrower.NewStore(borrower.Default())); err == nil {
		t.Fatalf("expected orchestrator error")
	}
}

func TestMainMenuOffersResumeOnlyAfterScoring(t *testing.T) {
	h := newTestHarness(t)
	if menuHas(h.app, menuResume) {
		t.Fatalf("resume must be hidden before any assessment")
	}
	if _, err := h.orch.RunInteractive(context.Background(), h.store.Get()); err != nil {
		t.Fatalf("run: %v", err)
	}
	h.app.refreshMainMenu()
	if !menuHas(h.app, menuResume) {
		t.Fatalf("resume should appear once normalized data exists")
	}
	h.app.mainMenu.Select(1)
	h.press(t, "enter")
	if h.app.state != stateWizard || h.app.wizard.step != stepReview {
		t.Fatalf("resume should open the furthest step, got state=%d step=%d", h.app.state, h.app.wizard.step)
	}
}

func TestInteractiveRunAdvancesPastInput(t *testing.T) {
	h := newTestHarness(t)
	h.openWizard(t)
	cmd := h.press(t, "enter")
	if cmd == nil || !h.app.wizard.running {
		t.Fatalf("enter should start an interactive run")
	}
	h.apply(t, cmd())
	w := h.app.wizard
	if w.running || w.banner != "" || w.step != stepNormalized {
		t.Fatalf("unexpected wizard after success: running=%v banner=%q step=%d", w.running, w.banner, w.step)
	}
	for i := 0; i < 10; i++ {
		h.press(t, "tab")
	}
	if w.step != stepReview {
		t.Fatalf("tab should stop at the last reached step, got %d", w.step)
	}
	h.press(t, "shift+tab")
	if w.step != stepScenarios {
		t.Fatalf("shift+tab should go back one step, got %d", w.step)
	}
	if !strings.Contains(h.app.View(), "Net Zero") {
		t.Fatalf("scenario step should render scenario names:\n%s", h.app.View())
	}
}

func TestInteractiveFailureBlocksOnInput(t *testing.T) {
	h := newTestHarness(t)
	h.stub.Fail(stage.NameDecide, oracle.Validation(stage.NameDecide, errors.New("status missing")))
	h.openWizard(t)
	cmd := h.press(t, "enter")
	h.apply(t, cmd())
	w := h.app.wizard
	if w.step != stepInput || !w.blocked {
		t.Fatalf("failure must keep the wizard on input, step=%d blocked=%v", w.step, w.blocked)
	}
	if !strings.Contains(w.banner, "decide") || !strings.Contains(w.banner, "validation") {
		t.Fatalf("banner should name the stage and kind, got %q", w.banner)
	}
	h.press(t, "tab")
	if w.step != stepInput {
		t.Fatalf("tab must not leave input after a failure")
	}
	if !strings.Contains(h.app.View(), "Assessment failed") {
		t.Fatalf("banner missing from view")
	}

	h.stub.Fail(stage.NameDecide, nil)
	cmd = h.press(t, "enter")
	h.apply(t, cmd())
	if w.blocked || w.banner != "" || w.step != stepNormalized {
		t.Fatalf("a successful retry should clear the banner")
	}
}

func TestProgressiveRevealDuringRun(t *testing.T) {
	h := newTestHarness(t)
	release := make(chan struct{})
	h.stub.SetHook(func(ctx context.Context, req oracle.Request) error {
		if req.Stage != stage.NameDecide {
			return nil
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	h.openWizard(t)
	cmd := h.press(t, "enter")
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	w := h.app.wizard
	deadline := time.After(5 * time.Second)
	for furthest(w.state) < stepRisk {
		msg := make(chan tea.Msg, 1)
		go func() { msg <- w.listen()() }()
		select {
		case m := <-msg:
			h.apply(t, m)
		case <-deadline:
			t.Fatalf("risk scores never revealed")
		}
	}
	if w.step != stepInput {
		t.Fatalf("the wizard should stay on input while the run is in flight")
	}
	view := w.View()
	if !strings.Contains(view, "scoreSustainability") || !strings.Contains(view, "✓") {
		t.Fatalf("checklist should show landed stages:\n%s", view)
	}
	close(release)
	h.apply(t, <-done)
	if w.step != stepNormalized || !w.state.Complete() {
		t.Fatalf("run should finish and advance")
	}
}

func TestSliderNudgeArmsBackgroundRun(t *testing.T) {
	h := newTestHarness(t)
	h.openWizard(t)
	w := h.app.wizard
	w.cursor = fieldIndex(t, w, borrower.FieldCarbonIntensity)

	h.press(t, "left")
	if h.store.Get().CarbonIntensity != 79 {
		t.Fatalf("left should nudge the slider down")
	}
	if w.controller.Pending() {
		t.Fatalf("no background run before the first assessment")
	}

	h.apply(t, h.press(t, "enter")())
	h.press(t, "shift+tab")
	for i := 0; i < 59; i++ {
		h.press(t, "left")
	}
	if !w.controller.Pending() || h.clock.armed() != 1 {
		t.Fatalf("a burst of nudges should leave one pending timer, armed=%d", h.clock.armed())
	}
	h.clock.fire()
	w.controller.Wait()
	state := h.orch.Snapshot()
	if state.Mode != pipeline.ModeBackground || state.Phase != pipeline.PhaseSucceeded {
		t.Fatalf("expected completed background run, got %s/%s", state.Mode, state.Phase)
	}
	if got := h.lastCarbonIntensity(t); got != 20 {
		t.Fatalf("background run should read the latest slider value, got %v", got)
	}
}

func TestTextEditCommitsThroughStore(t *testing.T) {
	h := newTestHarness(t)
	h.openWizard(t)
	w := h.app.wizard
	w.cursor = fieldIndex(t, w, borrower.FieldIndustry)
	h.press(t, "e")
	if !w.editing || w.editor.Value() != "Manufacturing" {
		t.Fatalf("e should open the editor with the current value")
	}
	h.press(t, "esc")
	if w.editing || h.app.state != stateWizard {
		t.Fatalf("esc while editing should only cancel the edit")
	}
	h.press(t, "e")
	w.editor.SetValue("Renewable manufacturing")
	h.press(t, "enter")
	if w.editing || h.store.Get().Industry != "Renewable manufacturing" {
		t.Fatalf("enter should commit the edit, got %q", h.store.Get().Industry)
	}
	if w.running {
		t.Fatalf("committing an edit must not start a run")
	}
}

func TestBackgroundEventsToggleSyncing(t *testing.T) {
	h := newTestHarness(t)
	h.openWizard(t)
	w := h.app.wizard
	h.apply(t, pipelineEventMsg{event: pipeline.Event{Type: pipeline.EventRunStart, Mode: pipeline.ModeBackground}})
	if !w.syncing || !strings.Contains(w.View(), "syncing") {
		t.Fatalf("background start should show the syncing indicator")
	}
	h.apply(t, pipelineEventMsg{event: pipeline.Event{Type: pipeline.EventRunFailed, Mode: pipeline.ModeBackground}})
	if w.syncing || w.banner != "" {
		t.Fatalf("background failure should clear syncing without a banner")
	}
	h.apply(t, pipelineEventMsg{event: pipeline.Event{Type: pipeline.EventRunStart, Mode: pipeline.ModeInteractive}})
	if w.syncing {
		t.Fatalf("interactive runs do not show syncing")
	}
}

func TestSupersededBackgroundRunKeepsSyncing(t *testing.T) {
	h := newTestHarness(t)
	h.openWizard(t)
	w := h.app.wizard
	bg := func(kind pipeline.EventType, gen uint64) pipelineEventMsg {
		return pipelineEventMsg{event: pipeline.Event{Type: kind, Mode: pipeline.ModeBackground, Generation: gen}}
	}
	h.apply(t, bg(pipeline.EventRunStart, 1))
	h.apply(t, bg(pipeline.EventRunStart, 2))
	h.apply(t, bg(pipeline.EventRunSuperseded, 1))
	if !w.syncing {
		t.Fatalf("the older run ending must not clear syncing while generation 2 runs")
	}
	h.apply(t, bg(pipeline.EventRunComplete, 2))
	if w.syncing {
		t.Fatalf("syncing should clear when the latest background run ends")
	}
}

func TestBackgroundSuccessFollowsSupersededInteractiveRun(t *testing.T) {
	h := newTestHarness(t)
	var held atomic.Bool
	entered := make(chan struct{})
	h.stub.SetHook(func(ctx context.Context, req oracle.Request) error {
		if req.Stage != stage.NameDecide || !held.CompareAndSwap(false, true) {
			return nil
		}
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	})
	h.openWizard(t)
	w := h.app.wizard
	cmd := h.press(t, "enter")
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("interactive run never reached decide")
	}
	h.orch.RunBackground(context.Background(), h.store.Get())
	h.apply(t, <-done)
	if w.step != stepNormalized || w.blocked || w.running {
		t.Fatalf("wizard should follow the newer run, step=%d blocked=%v running=%v", w.step, w.blocked, w.running)
	}
}

func TestBackgroundSuccessLiftsFailureBanner(t *testing.T) {
	h := newTestHarness(t)
	h.stub.Fail(stage.NameDecide, oracle.Validation(stage.NameDecide, errors.New("status missing")))
	h.openWizard(t)
	w := h.app.wizard
	h.apply(t, h.press(t, "enter")())
	if !w.blocked {
		t.Fatalf("expected interactive failure to block")
	}
	h.stub.Fail(stage.NameDecide, nil)
	h.orch.RunBackground(context.Background(), h.store.Get())
	h.apply(t, pipelineEventMsg{event: pipeline.Event{
		Type: pipeline.EventRunComplete, Mode: pipeline.ModeBackground, Generation: h.orch.Generation(),
	}})
	if w.blocked || w.banner != "" || w.step != stepInput {
		t.Fatalf("background success should clear the banner in place, blocked=%v banner=%q step=%d", w.blocked, w.banner, w.step)
	}
	h.press(t, "tab")
	if w.step != stepNormalized {
		t.Fatalf("navigation should be available again")
	}
}

func TestEscStopsController(t *testing.T) {
	h := newTestHarness(t)
	if _, err := h.orch.RunInteractive(context.Background(), h.store.Get()); err != nil {
		t.Fatalf("run: %v", err)
	}
	h.openWizard(t)
	w := h.app.wizard
	h.press(t, "esc")
	if h.app.state != stateMainMenu || h.app.wizard != nil {
		t.Fatalf("esc should return to the main menu")
	}
	for range w.sub.Events {
	}
	if h.router.Subscribers() != 0 {
		t.Fatalf("event subscription should be released")
	}
	prev, next, _ := h.store.Nudge(borrower.FieldRevenue, 1)
	if w.controller.Observe(prev, next) {
		t.Fatalf("stopped controller must not arm")
	}
}

// harness

type testHarness struct {
	stub   *oracletest.Stub
	store  *borrower.Store
	router *eventbridge.Router
	orch   *pipeline.Orchestrator
	clock  *manualClock
	app    *App
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		stub:   oracletest.New(),
		store:  borrower.NewStore(borrower.Default()),
		router: eventbridge.NewRouter(eventbridge.RouterWithReplayLimit(0), eventbridge.RouterWithSubscriberCapacity(256)),
		clock:  &manualClock{},
	}
	runner, err := stage.NewRunner(h.stub)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	h.orch, err = pipeline.New(runner, pipeline.WithObserver(h.router))
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	h.app, err = NewApp(nil, h.orch, h.store,
		WithRouter(h.router),
		WithStalenessOptions(staleness.WithAfterFunc(h.clock.afterFunc)))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(h.app.closeWizard)
	return h
}

func (h *testHarness) openWizard(t *testing.T) {
	t.Helper()
	h.app.mainMenu.Select(0)
	h.press(t, "enter")
	if h.app.state != stateWizard || h.app.wizard == nil {
		t.Fatalf("expected wizard to open")
	}
}

func (h *testHarness) press(t *testing.T, key string) tea.Cmd {
	t.Helper()
	_, cmd := h.app.Update(keyMsg(key))
	return cmd
}

func (h *testHarness) apply(t *testing.T, msg tea.Msg) {
	t.Helper()
	model, _ := h.app.Update(msg)
	if _, ok := model.(*App); !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
}

func (h *testHarness) lastCarbonIntensity(t *testing.T) float64 {
	t.Helper()
	calls := h.stub.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Stage != stage.NameNormalize {
			continue
		}
		prompt := calls[i].Prompt
		idx := strings.Index(prompt, "Carbon intensity")
		if idx < 0 {
			t.Fatalf("normalize prompt lacks carbon intensity")
		}
		line := prompt[idx:]
		if nl := strings.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
		}
		switch {
		case strings.HasSuffix(line, ": 20"):
			return 20
		case strings.HasSuffix(line, ": 80"):
			return 80
		}
		t.Fatalf("unexpected prompt line %q", line)
	}
	t.Fatalf("no normalize call recorded")
	return -1
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func menuHas(a *App, title string) bool {
	for _, item := range a.mainMenu.Items() {
		if mi, ok := item.(menuItem); ok && mi.title == title {
			return true
		}
	}
	return false
}

func fieldIndex(t *testing.T, w *wizardView, field borrower.Field) int {
	t.Helper()
	for i, spec := range w.fields {
		if spec.Name == field {
			return i
		}
	}
	t.Fatalf("field %s not in form", field)
	return -1
}

// manualClock replaces time.AfterFunc so debounce tests fire on demand.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *manualClock) afterFunc(_ time.Duration, fn func()) staleness.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &manualTimer{fn: fn}
	c.timers = append(c.timers, timer)
	return timer
}

// armed counts timers that were never stopped.
func (c *manualClock) armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, timer := range c.timers {
		if !timer.stopped {
			n++
		}
	}
	return n
}

func (c *manualClock) fire() {
	c.mu.Lock()
	var live []*manualTimer
	for _, timer := range c.timers {
		if !timer.stopped {
			live = append(live, timer)
		}
	}
	c.mu.Unlock()
	for _, timer := range live {
		timer.stopped = true
		timer.fn()
	}
}
