package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSlogObserverLevels(t *testing.T) {
	var buf bytes.Buffer
	obs := NewSlogObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	ctx := context.Background()

	obs.OnEvent(ctx, Event{Type: EventStageStart, Stage: StageDecide, Generation: 3})
	if buf.Len() != 0 {
		t.Fatalf("stage.start should log at debug, got %q", buf.String())
	}
	obs.OnEvent(ctx, Event{Type: EventStageFailed, Stage: StageDecide, Generation: 3, Duration: time.Second, Err: errors.New("missing status")})
	line := buf.String()
	for _, want := range []string{"level=WARN", "stage.failed", "stage=decide", "generation=3", `error="missing status"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %q", line, want)
		}
	}
}

func TestMultiObserverFansOut(t *testing.T) {
	var a, b recorder
	multi := NewMultiObserver(&a, nil, &b)
	multi.OnEvent(context.Background(), Event{Type: EventRunStart, Generation: 1})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both observers to receive the event")
	}
}

func TestTerminalEvents(t *testing.T) {
	for _, typ := range []EventType{EventRunComplete, EventRunFailed, EventRunSuperseded} {
		if !typ.Terminal() {
			t.Fatalf("%s should be terminal", typ)
		}
	}
	if EventStageComplete.Terminal() || EventRunStart.Terminal() {
		t.Fatalf("non-terminal event reported terminal")
	}
}
