package memory

import (
	"context"
	"fmt"
	"sync"

	"spendlog/internal/core"
	"spendlog/internal/store"
)

// Store is an in-memory record store preserving insertion order. Used by
// the memory backend and as a test double.
type Store struct {
	mu    sync.Mutex
	items []core.Record
}

func New() *Store {
	return &Store{}
}

var (
	_ store.RecordStore = (*Store)(nil)
)

// Append stores the record and returns a synthetic reference.
func (s *Store) Append(_ context.Context, rec core.Record) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == rec.ID {
			return "", core.ErrDuplicateRecord
		}
	}
	s.items = append(s.items, rec)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// ListAll returns a copy of every record in insertion order.
func (s *Store) ListAll(_ context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Record, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *Store) Update(_ context.Context, rec core.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items {
		if it.ID == rec.ID {
			s.items[i] = rec
			return nil
		}
	}
	return core.ErrRecordNotFound
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return core.ErrRecordNotFound
}

// DeleteBatch removes exactly the selected set; an unknown id fails the
// whole batch without touching the others.
func (s *Store) DeleteBatch(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[string]int, len(s.items))
	for i, it := range s.items {
		index[it.ID] = i
	}
	drop := make(map[int]bool, len(ids))
	for _, id := range ids {
		i, ok := index[id]
		if !ok {
			return core.ErrRecordNotFound
		}
		drop[i] = true
	}

	kept := s.items[:0]
	for i, it := range s.items {
		if !drop[i] {
			kept = append(kept, it)
		}
	}
	s.items = kept
	return nil
}
