package logbook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/greenlight/internal/pipeline"
)

// Observer journals run milestones. Stage chatter stays in the structured
// log; the journal records what a reviewer would want to read back.
type Observer struct {
	book *Logbook
}

// NewObserver journals pipeline events into book.
func NewObserver(book *Logbook) *Observer {
	return &Observer{book: book}
}

func (o *Observer) OnEvent(_ context.Context, ev pipeline.Event) {
	if o == nil || o.book == nil {
		return
	}
	entry := Entry{
		At:         ev.Timestamp,
		Level:      LevelInfo,
		RunID:      ev.RunID,
		Generation: ev.Generation,
		Mode:       ev.Mode,
		Stage:      ev.Stage,
	}
	switch ev.Type {
	case pipeline.EventRunStart:
		entry.Text = fmt.Sprintf("started (%s, generation %d)", ev.Mode, ev.Generation)
	case pipeline.EventRunComplete:
		entry.Text = fmt.Sprintf("succeeded in %s", ev.Duration.Round(time.Millisecond))
	case pipeline.EventRunSuperseded:
		entry.Text = "superseded by a newer edit"
	case pipeline.EventStageFailed:
		entry.Level = LevelWarn
		entry.Text = fmt.Sprintf("%s failed: %s", ev.Stage, ev.Error)
	case pipeline.EventRunFailed:
		if ev.Mode == pipeline.ModeInteractive {
			entry.Level = LevelError
			entry.Text = fmt.Sprintf("failed at %s", ev.Stage)
			break
		}
		entry.Level = LevelWarn
		entry.Text = fmt.Sprintf("failed at %s in the background; keeping previous results", ev.Stage)
	default:
		return
	}
	o.book.Record(entry)
}

func shortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
