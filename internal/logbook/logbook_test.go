package logbook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTailReturnsRecentEntriesAndTotal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journey.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Note("entry-%d", i)
	}
	entries, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total entries = %d, want 5", total)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if entries[idx].Text != want || entries[idx].Level != LevelInfo || entries[idx].RunID != "" {
			t.Fatalf("entry %d = %+v, want note %s", idx, entries[idx], want)
		}
	}
}

func TestTailSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journey.log")
	fixed := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	book, err := New(path, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	book.Record(Entry{Level: LevelWarn, RunID: "abc", Text: "  first  "})
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = f.WriteString("not json\n")
	f.Close()
	book.Note("second")

	entries, total := book.Tail(10)
	if total != 2 {
		t.Fatalf("expected corrupt line to be skipped, got %d entries", total)
	}
	if !entries[0].At.Equal(fixed) || entries[0].Text != "first" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if got := entries[0].String(); !strings.HasSuffix(got, "WARN  run abc: first") {
		t.Fatalf("unexpected rendering %q", got)
	}
}

func TestNilLogbookIsInert(t *testing.T) {
	var book *Logbook
	book.Note("ignored")
	if entries, total := book.Tail(5); entries != nil || total != 0 {
		t.Fatalf("nil logbook should have no entries")
	}
}
