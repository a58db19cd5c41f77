package borrower

import "sync"

// Store guards the live borrower record shared by editors (TUI form, HTTP
// bridge) and the staleness controller's input source.
type Store struct {
	mu    sync.RWMutex
	input Input
}

// NewStore seeds a store with in.
func NewStore(in Input) *Store {
	in.Clamp()
	return &Store{input: in}
}

// Get returns a snapshot of the current record.
func (s *Store) Get() Input {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.input.Snapshot()
}

// Set applies one field edit and returns the record before and after it.
func (s *Store) Set(field Field, raw string) (prev, next Input, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.input.Snapshot()
	if err := s.input.Set(field, raw); err != nil {
		return prev, prev, err
	}
	return prev, s.input.Snapshot(), nil
}

// Nudge moves a numeric field by steps and returns the record before and
// after it.
func (s *Store) Nudge(field Field, steps int) (prev, next Input, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.input.Snapshot()
	if err := s.input.Nudge(field, steps); err != nil {
		return prev, prev, err
	}
	return prev, s.input.Snapshot(), nil
}

// Replace swaps the whole record.
func (s *Store) Replace(in Input) (prev, next Input) {
	in.Clamp()
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.input.Snapshot()
	s.input = in
	return prev, in.Snapshot()
}
