// Package pipeline owns assessment runs: it walks the stage graph wave by
// wave, publishes each artifact as soon as it is ready, and discards anything
// produced by a run that a newer run has overtaken.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/greenlight/internal/assessment"
	"github.com/kingrea/greenlight/internal/borrower"
	"github.com/kingrea/greenlight/internal/stage"
)

// StageRunner is the set of stage adapters a run drives. *stage.Runner
// satisfies it.
type StageRunner interface {
	Normalize(ctx context.Context, in borrower.Input) (assessment.NormalizedData, error)
	ScoreFinancial(ctx context.Context, n assessment.NormalizedData) (assessment.FinancialRisk, error)
	ScoreSustainability(ctx context.Context, n assessment.NormalizedData) (assessment.SustainabilityRisk, error)
	Decide(ctx context.Context, f assessment.FinancialRisk, s assessment.SustainabilityRisk) (assessment.Decision, error)
	PlanUplift(ctx context.Context, s assessment.SustainabilityRisk) (assessment.UpliftPlan, error)
	SimulateScenarios(ctx context.Context, f assessment.FinancialRisk, s assessment.SustainabilityRisk) ([]assessment.ClimateScenario, error)
	SummarizeForReview(ctx context.Context, in stage.ReviewInputs) (assessment.ReviewSummary, error)
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithGraph replaces the default stage graph. Every node must have a known
// executor.
func WithGraph(g *Graph) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.graph = g
		}
	}
}

// WithObserver attaches an event observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLogger sets the logger used for absorbed background failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithRunIDs overrides run id generation.
func WithRunIDs(next func() string) Option {
	return func(o *Orchestrator) {
		if next != nil {
			o.newRunID = next
		}
	}
}

// Orchestrator runs the stage graph and owns the resulting State.
type Orchestrator struct {
	stages   StageRunner
	graph    *Graph
	waves    [][]StageID
	observer Observer
	logger   *slog.Logger
	clock    func() time.Time
	newRunID func() string

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
}

// New constructs an orchestrator around the stage adapters.
func New(stages StageRunner, opts ...Option) (*Orchestrator, error) {
	if stages == nil {
		return nil, fmt.Errorf("pipeline: stage runner is required")
	}
	o := &Orchestrator{
		stages:   stages,
		graph:    DefaultGraph(),
		observer: noopObserver{},
		logger:   slog.Default(),
		clock:    time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	for _, id := range o.graph.IDs() {
		if _, ok := executors[id]; !ok {
			return nil, fmt.Errorf("pipeline: no executor for stage %s", id)
		}
	}
	o.waves = o.graph.Waves()
	o.state = State{Phase: PhaseIdle, UpdatedAt: o.now()}
	return o, nil
}

// Graph exposes the stage graph the orchestrator runs.
func (o *Orchestrator) Graph() *Graph {
	return o.graph
}

// Snapshot returns a deep copy of the current state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// HasNormalized reports whether normalized data has been published.
func (o *Orchestrator) HasNormalized() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Normalized != nil
}

// Generation returns the active run generation (0 before the first run).
func (o *Orchestrator) Generation() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generation
}

// RunInteractive runs on behalf of an explicit user action. Failures come
// back as *StageFailure for the caller to surface.
func (o *Orchestrator) RunInteractive(ctx context.Context, input borrower.Input) (State, error) {
	return o.Run(ctx, input, ModeInteractive)
}

// RunBackground runs on behalf of the staleness controller. Failures are
// logged and absorbed; published artifacts are left as they were.
func (o *Orchestrator) RunBackground(ctx context.Context, input borrower.Input) {
	_, err := o.Run(ctx, input, ModeBackground)
	switch {
	case err == nil:
	case errors.Is(err, ErrSuperseded):
		o.logger.Debug("background run superseded", "error", err)
	default:
		o.logger.Warn("background run failed", "error", err)
	}
}

// Run snapshots input, starts a new generation and walks the graph. Any
// in-flight older run is cancelled and its late results are discarded. A run
// that is overtaken returns ErrSuperseded and leaves the phase to its
// successor.
func (o *Orchestrator) Run(ctx context.Context, input borrower.Input, mode Mode) (State, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	run := o.begin(input, mode, cancel)
	o.emit(ctx, run.event(EventRunStart, ""))

	for _, wave := range o.waves {
		if err := o.runWave(runCtx, run, wave); err != nil {
			return o.fail(ctx, run, err)
		}
	}
	return o.complete(ctx, run)
}

func (o *Orchestrator) begin(input borrower.Input, mode Mode, cancel context.CancelFunc) *runScope {
	now := o.now()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
	o.generation++
	o.cancel = cancel
	run := &runScope{
		generation: o.generation,
		id:         o.newRunID(),
		mode:       mode,
		input:      input.Snapshot(),
		started:    now,
	}
	stages := make(map[StageID]StageStatus, len(o.waves))
	for _, id := range o.graph.IDs() {
		stages[id] = StageStatus{State: StagePending, Generation: run.generation}
	}
	o.state.Phase = PhaseRunning
	o.state.Generation = run.generation
	o.state.RunID = run.id
	o.state.Mode = mode
	o.state.Stages = stages
	o.state.Failure = nil
	o.state.UpdatedAt = now
	return run
}

func (o *Orchestrator) runWave(ctx context.Context, run *runScope, wave []StageID) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range wave {
		g.Go(func() error {
			return o.runStage(gctx, run, id)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) runStage(ctx context.Context, run *runScope, id StageID) error {
	start := o.now()
	if !o.updateStage(run.generation, id, func(s *StageStatus) {
		s.State = StageRunning
		s.StartedAt = start
	}) {
		return ErrSuperseded
	}
	o.emit(ctx, run.event(EventStageStart, id))

	apply, err := executors[id](ctx, o.stages, run)
	finished := o.now()
	ev := run.event(EventStageComplete, id)
	ev.Duration = finished.Sub(start)

	if err != nil {
		if !o.active(run.generation) {
			ev.Type, ev.Err = EventStageDiscarded, err
			o.emit(ctx, ev)
			return ErrSuperseded
		}
		state := StageFailed
		if ctx.Err() != nil {
			state = StageCancelled
		}
		o.updateStage(run.generation, id, func(s *StageStatus) {
			s.State = state
			s.FinishedAt = finished
			s.Error = err.Error()
		})
		if state == StageFailed {
			ev.Type, ev.Err = EventStageFailed, err
			o.emit(ctx, ev)
		}
		return &StageFailure{Stage: id, Cause: err}
	}

	run.apply(apply)
	if !o.publish(run.generation, id, apply, finished) {
		ev.Type = EventStageDiscarded
		o.emit(ctx, ev)
		return ErrSuperseded
	}
	o.emit(ctx, ev)
	return nil
}

// publish writes a stage result into the shared state if gen is still the
// active generation.
func (o *Orchestrator) publish(gen uint64, id StageID, apply func(*State), finished time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return false
	}
	apply(&o.state)
	status := o.state.Stages[id]
	status.State = StageComplete
	status.FinishedAt = finished
	status.Error = ""
	o.state.Stages[id] = status
	o.state.UpdatedAt = finished
	return true
}

func (o *Orchestrator) updateStage(gen uint64, id StageID, mutate func(*StageStatus)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return false
	}
	status := o.state.Stages[id]
	mutate(&status)
	o.state.Stages[id] = status
	o.state.UpdatedAt = o.now()
	return true
}

func (o *Orchestrator) active(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen == o.generation
}

func (o *Orchestrator) fail(ctx context.Context, run *runScope, err error) (State, error) {
	o.mu.Lock()
	if run.generation != o.generation {
		o.mu.Unlock()
		return o.superseded(ctx, run)
	}
	var failure *StageFailure
	if !errors.As(err, &failure) {
		failure = &StageFailure{Cause: err}
	}
	o.state.Phase = PhaseFailed
	o.state.Failure = failure
	o.state.UpdatedAt = o.now()
	o.cancel = nil
	snapshot := o.state.Clone()
	o.mu.Unlock()

	ev := run.event(EventRunFailed, failure.Stage)
	ev.Duration = o.now().Sub(run.started)
	ev.Err = failure.Cause
	o.emit(ctx, ev)
	return snapshot, failure
}

func (o *Orchestrator) complete(ctx context.Context, run *runScope) (State, error) {
	o.mu.Lock()
	if run.generation != o.generation {
		o.mu.Unlock()
		return o.superseded(ctx, run)
	}
	o.state.Phase = PhaseSucceeded
	o.state.UpdatedAt = o.now()
	o.cancel = nil
	snapshot := o.state.Clone()
	o.mu.Unlock()

	ev := run.event(EventRunComplete, "")
	ev.Duration = o.now().Sub(run.started)
	o.emit(ctx, ev)
	return snapshot, nil
}

func (o *Orchestrator) superseded(ctx context.Context, run *runScope) (State, error) {
	ev := run.event(EventRunSuperseded, "")
	ev.Duration = o.now().Sub(run.started)
	o.emit(ctx, ev)
	return o.Snapshot(), ErrSuperseded
}

func (o *Orchestrator) emit(ctx context.Context, ev Event) {
	ev.Timestamp = o.now()
	if ev.Err != nil {
		ev.Error = ev.Err.Error()
	}
	o.observer.OnEvent(context.WithoutCancel(ctx), ev)
}

func (o *Orchestrator) now() time.Time {
	if o.clock == nil {
		return time.Now()
	}
	return o.clock()
}

// runScope carries one run's identity, its input snapshot and the artifacts
// it has produced so far, independent of what is published.
type runScope struct {
	generation uint64
	id         string
	mode       Mode
	input      borrower.Input
	started    time.Time

	mu      sync.Mutex
	results State
}

func (r *runScope) apply(fn func(*State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.results)
}

func (r *runScope) view() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results
}

func (r *runScope) event(t EventType, id StageID) Event {
	return Event{Type: t, Generation: r.generation, RunID: r.id, Mode: r.mode, Stage: id}
}
