package logbook

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/greenlight/internal/pipeline"
)

// Level represents the severity of a journal entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Entry is one journaled milestone. Run-scoped entries carry the run they
// belong to; session notes leave those fields empty.
type Entry struct {
	At         time.Time        `json:"at"`
	Level      Level            `json:"level"`
	RunID      string           `json:"run_id,omitempty"`
	Generation uint64           `json:"generation,omitempty"`
	Mode       pipeline.Mode    `json:"mode,omitempty"`
	Stage      pipeline.StageID `json:"stage,omitempty"`
	Text       string           `json:"text"`
}

// String renders the entry for the log panel.
func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s ", e.At.Local().Format("15:04:05"), e.Level)
	if e.RunID != "" {
		fmt.Fprintf(&b, "run %s: ", shortID(e.RunID))
	}
	b.WriteString(e.Text)
	return b.String()
}

// Option customizes a Logbook.
type Option func(*Logbook)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logbook) {
		if now != nil {
			l.now = now
		}
	}
}

// Logbook is the assessment journal: JSON lines of run milestones and session
// notes, read back by the TUI log panel.
type Logbook struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// New creates a journal backed by path.
func New(path string, opts ...Option) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	l := &Logbook{path: path, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Path returns the file backing this journal.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Record appends e, stamping it when At is zero. Write failures are dropped;
// the journal never interrupts a run.
func (l *Logbook) Record(e Entry) {
	if l == nil {
		return
	}
	if e.At.IsZero() {
		e.At = l.now()
	}
	e.At = e.At.UTC()
	e.Text = strings.TrimSpace(e.Text)
	if e.Level == "" {
		e.Level = LevelInfo
	}
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.Write(append(line, '\n'))
}

// Note records a session-level message that belongs to no run.
func (l *Logbook) Note(format string, args ...any) {
	l.Record(Entry{Level: LevelInfo, Text: fmt.Sprintf(format, args...)})
}

// Tail returns up to n of the most recent entries and the total number of
// entries. Lines that do not decode are skipped.
func (l *Logbook) Tail(n int) ([]Entry, int) {
	if l == nil || n <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	total := len(entries)
	if total > n {
		entries = entries[total-n:]
	}
	return entries, total
}
