package staleness

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kingrea/greenlight/internal/borrower"
	"github.com/kingrea/greenlight/internal/oracle/oracletest"
	"github.com/kingrea/greenlight/internal/pipeline"
	"github.com/kingrea/greenlight/internal/stage"
)

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs every timer that has not been stopped.
func (c *fakeClock) fire() int {
	c.mu.Lock()
	var live []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped {
			t.stopped = true
			live = append(live, t)
		}
	}
	c.mu.Unlock()
	for _, t := range live {
		t.fn()
	}
	return len(live)
}

type fakeRunner struct {
	mu         sync.Mutex
	normalized bool
	inputs     []borrower.Input
}

func (r *fakeRunner) HasNormalized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.normalized
}

func (r *fakeRunner) RunBackground(_ context.Context, in borrower.Input) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, in)
}

func (r *fakeRunner) runs() []borrower.Input {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]borrower.Input(nil), r.inputs...)
}

func newController(t *testing.T, runner Runner, source InputSource, clock *fakeClock) *Controller {
	t.Helper()
	c, err := New(runner, source, WithAfterFunc(clock.AfterFunc))
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c
}

func TestNoTimerBeforeNormalizedData(t *testing.T) {
	clock := &fakeClock{}
	runner := &fakeRunner{}
	c := newController(t, runner, borrower.Default, clock)
	if c.Touch(borrower.FieldCarbonIntensity) {
		t.Fatalf("armed before normalized data existed")
	}
	if c.Pending() || len(clock.timers) != 0 {
		t.Fatalf("expected no timer")
	}
}

func TestBurstOfEditsTriggersOneRun(t *testing.T) {
	clock := &fakeClock{}
	runner := &fakeRunner{normalized: true}
	input := borrower.Default()
	var mu sync.Mutex
	source := func() borrower.Input {
		mu.Lock()
		defer mu.Unlock()
		return input
	}
	c := newController(t, runner, source, clock)

	for i := 0; i < 5; i++ {
		prev := source()
		mu.Lock()
		input.Nudge(borrower.FieldLaborCompliance, -1)
		next := input
		mu.Unlock()
		if !c.Observe(prev, next) {
			t.Fatalf("edit %d did not arm", i)
		}
	}
	if !c.Pending() {
		t.Fatalf("expected a pending timer")
	}
	if fired := clock.fire(); fired != 1 {
		t.Fatalf("expected exactly one live timer, got %d", fired)
	}
	c.Wait()
	runs := runner.runs()
	if len(runs) != 1 {
		t.Fatalf("expected one background run, got %d", len(runs))
	}
	if runs[0].LaborCompliance != 85 {
		t.Fatalf("run saw labor compliance %v, want the latest value 85", runs[0].LaborCompliance)
	}
	if c.Pending() || c.Triggered() != 1 {
		t.Fatalf("unexpected controller state: pending=%v triggered=%d", c.Pending(), c.Triggered())
	}
}

func TestUnwatchedEditsDoNotArm(t *testing.T) {
	clock := &fakeClock{}
	c := newController(t, &fakeRunner{normalized: true}, borrower.Default, clock)
	prev := borrower.Default()
	next := prev
	next.Industry = "Textiles"
	if c.Observe(prev, next) || c.Touch(borrower.FieldEnergySource) {
		t.Fatalf("unwatched fields must not arm the timer")
	}
}

func TestStaleCallbackIsIgnored(t *testing.T) {
	clock := &fakeClock{}
	runner := &fakeRunner{normalized: true}
	c := newController(t, runner, borrower.Default, clock)
	c.Touch(borrower.FieldRevenue)
	first := clock.timers[0]
	c.Touch(borrower.FieldRevenue)
	// The first callback raced its Stop and runs anyway.
	first.fn()
	c.Wait()
	if len(runner.runs()) != 0 {
		t.Fatalf("superseded timer triggered a run")
	}
	clock.fire()
	c.Wait()
	if len(runner.runs()) != 1 {
		t.Fatalf("expected the live timer to run once, got %d", len(runner.runs()))
	}
}

func TestStopCancelsPendingAndFutureTimers(t *testing.T) {
	clock := &fakeClock{}
	runner := &fakeRunner{normalized: true}
	c := newController(t, runner, borrower.Default, clock)
	c.Touch(borrower.FieldCashFlowStability)
	pending := clock.timers[0]
	c.Stop()
	if !pending.stopped || c.Pending() {
		t.Fatalf("stop left the timer armed")
	}
	pending.fn()
	if c.Touch(borrower.FieldCashFlowStability) {
		t.Fatalf("armed after stop")
	}
	c.Wait()
	if len(runner.runs()) != 0 {
		t.Fatalf("run triggered after stop")
	}
}

func TestRealTimerDebounces(t *testing.T) {
	runner := &fakeRunner{normalized: true}
	c, err := New(runner, borrower.Default, WithDelay(20*time.Millisecond))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 3; i++ {
		c.Touch(borrower.FieldDebtToIncomeRatio)
		time.Sleep(5 * time.Millisecond)
	}
	deadline := time.Now().Add(time.Second)
	for c.Triggered() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	c.Wait()
	if got := len(runner.runs()); got != 1 {
		t.Fatalf("expected one run, got %d", got)
	}
}

func TestCarbonIntensityEditRerunsPipeline(t *testing.T) {
	stub := oracletest.New()
	runner, err := stage.NewRunner(stub)
	if err != nil {
		t.Fatalf("stage runner: %v", err)
	}
	orch, err := pipeline.New(runner)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	input := borrower.Input{Revenue: 5_000_000, DebtToIncomeRatio: 35, CarbonIntensity: 80, LaborCompliance: 90, CashFlowStability: 75}
	state, err := orch.RunInteractive(context.Background(), input)
	if err != nil {
		t.Fatalf("interactive run: %v", err)
	}
	if state.Phase != pipeline.PhaseSucceeded || !state.Complete() {
		t.Fatalf("expected a complete successful run, got phase %s", state.Phase)
	}

	clock := &fakeClock{}
	var mu sync.Mutex
	source := func() borrower.Input {
		mu.Lock()
		defer mu.Unlock()
		return input
	}
	c := newController(t, orch, source, clock)
	prev := source()
	mu.Lock()
	if err := input.Set(borrower.FieldCarbonIntensity, "20"); err != nil {
		t.Fatalf("set: %v", err)
	}
	mu.Unlock()
	if !c.Observe(prev, source()) {
		t.Fatalf("carbon intensity edit did not arm")
	}
	if len(clock.timers) != 1 || clock.timers[0].delay != 800*time.Millisecond {
		t.Fatalf("expected one 800ms timer, got %+v", clock.timers)
	}
	clock.fire()
	c.Wait()

	if n := stub.Count(stage.NameNormalize); n != 2 {
		t.Fatalf("expected exactly one background run (2 normalize calls total), got %d", n)
	}
	calls := stub.Calls()
	var last struct {
		Input borrower.Input `json:"input"`
	}
	for _, call := range calls {
		if call.Stage != stage.NameNormalize {
			continue
		}
		raw, _ := json.Marshal(call.Data)
		json.Unmarshal(raw, &last)
	}
	if last.Input.CarbonIntensity != 20 {
		t.Fatalf("background normalize saw carbon intensity %v, want 20", last.Input.CarbonIntensity)
	}
	if got := orch.Snapshot(); got.Generation != 2 || got.Mode != pipeline.ModeBackground || got.Phase != pipeline.PhaseSucceeded {
		t.Fatalf("unexpected state after background run: gen=%d mode=%s phase=%s", got.Generation, got.Mode, got.Phase)
	}
}

var _ Runner = (*pipeline.Orchestrator)(nil)
