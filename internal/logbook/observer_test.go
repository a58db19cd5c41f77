package logbook

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/greenlight/internal/pipeline"
)

func TestObserverJournalsMilestones(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "journey.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	obs := NewObserver(book)
	ctx := context.Background()
	id := "0f8fad5b-d9cb-469f-a165-70867728950e"
	obs.OnEvent(ctx, pipeline.Event{Type: pipeline.EventRunStart, RunID: id, Mode: pipeline.ModeBackground, Generation: 4})
	obs.OnEvent(ctx, pipeline.Event{Type: pipeline.EventStageStart, RunID: id, Stage: pipeline.StageDecide})
	obs.OnEvent(ctx, pipeline.Event{Type: pipeline.EventStageFailed, RunID: id, Stage: pipeline.StageDecide, Error: "missing status"})
	obs.OnEvent(ctx, pipeline.Event{Type: pipeline.EventRunFailed, RunID: id, Mode: pipeline.ModeBackground, Stage: pipeline.StageDecide, Duration: time.Second})

	entries, total := book.Tail(10)
	if total != 3 {
		t.Fatalf("expected 3 journal entries (stage.start is not journaled), got %d: %v", total, entries)
	}
	start, stageFailed, runFailed := entries[0], entries[1], entries[2]
	if start.RunID != id || start.Generation != 4 || start.Mode != pipeline.ModeBackground || start.Level != LevelInfo {
		t.Fatalf("unexpected run start entry %+v", start)
	}
	if stageFailed.Level != LevelWarn || stageFailed.Stage != pipeline.StageDecide {
		t.Fatalf("unexpected stage failure entry %+v", stageFailed)
	}
	if got := stageFailed.String(); !strings.Contains(got, "WARN  run 0f8fad5b: decide failed: missing status") {
		t.Fatalf("unexpected rendering %q", got)
	}
	if runFailed.Level != LevelWarn || !strings.Contains(runFailed.Text, "keeping previous results") {
		t.Fatalf("background failure should warn and keep results, got %+v", runFailed)
	}
}

func TestObserverInteractiveFailureIsAnError(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "journey.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	NewObserver(book).OnEvent(context.Background(), pipeline.Event{
		Type: pipeline.EventRunFailed, RunID: "r1", Mode: pipeline.ModeInteractive, Stage: pipeline.StageNormalize,
	})
	entries, _ := book.Tail(1)
	if len(entries) != 1 || entries[0].Level != LevelError || entries[0].Text != "failed at normalize" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}
