package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// EventType identifies a pipeline lifecycle event.
type EventType string

const (
	EventRunStart       EventType = "run.start"
	EventRunComplete    EventType = "run.complete"
	EventRunFailed      EventType = "run.failed"
	EventRunSuperseded  EventType = "run.superseded"
	EventStageStart     EventType = "stage.start"
	EventStageComplete  EventType = "stage.complete"
	EventStageFailed    EventType = "stage.failed"
	EventStageDiscarded EventType = "stage.discarded"
)

// Terminal reports whether the event ends a run.
func (t EventType) Terminal() bool {
	switch t {
	case EventRunComplete, EventRunFailed, EventRunSuperseded:
		return true
	}
	return false
}

// Event describes one step of a run.
type Event struct {
	Type       EventType     `json:"type"`
	Generation uint64        `json:"generation"`
	RunID      string        `json:"run_id"`
	Mode       Mode          `json:"mode"`
	Stage      StageID       `json:"stage,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Observer receives pipeline events. OnEvent is called synchronously from run
// goroutines and must not block for long.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

// OnEvent calls f.
func (f ObserverFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

// MultiObserver fans events out to several observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver drops nil observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}
	return &MultiObserver{observers: filtered}
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}

type noopObserver struct{}

func (noopObserver) OnEvent(context.Context, Event) {}

// SlogObserver writes every event as a structured log line. Failures log at
// warn, stage chatter at debug.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver logs to logger, or slog.Default when nil.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	attrs := []slog.Attr{
		slog.Uint64("generation", event.Generation),
		slog.String("run_id", event.RunID),
		slog.String("mode", string(event.Mode)),
	}
	if event.Stage != "" {
		attrs = append(attrs, slog.String("stage", string(event.Stage)))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	o.logger.LogAttrs(ctx, eventLevel(event.Type), string(event.Type), attrs...)
}

func eventLevel(t EventType) slog.Level {
	switch t {
	case EventStageFailed, EventRunFailed:
		return slog.LevelWarn
	case EventRunStart, EventRunComplete, EventRunSuperseded:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
