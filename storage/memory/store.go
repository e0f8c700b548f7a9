// Package memory is the in-memory reference implementation of
// core.Store: the backend the core engine's own test suite runs against,
// and a reasonable default for applications that do not need persistence
// across process restarts (spec.md §4.2 "In-memory storage... used by
// tests").
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pthm/reltuple/core"
)

// Store is a sync.RWMutex-guarded map of tuples keyed by their 5-attribute
// uniqueness key. Reads linear-scan the map under a read lock; there is no
// secondary index, matching spec.md §9's "backends without [a native query
// language] may linear-scan."
type Store struct {
	mu     sync.RWMutex
	tuples map[core.TupleKey]core.Tuple
	now    func() time.Time
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		tuples: make(map[core.TupleKey]core.Tuple),
		now:    time.Now,
	}
}

// Write upserts tuples by key: an existing key's condition is overwritten
// in place (idempotent write semantics), a new key gets a fresh ID and
// CreatedAt.
func (s *Store) Write(_ context.Context, tuples []core.Tuple) ([]core.Tuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]core.Tuple, 0, len(tuples))
	for _, t := range tuples {
		key := t.Key()
		if existing, ok := s.tuples[key]; ok {
			t.ID = existing.ID
			t.CreatedAt = existing.CreatedAt
		} else {
			if t.ID == "" {
				t.ID = uuid.NewString()
			}
			if t.CreatedAt.IsZero() {
				t.CreatedAt = s.now()
			}
		}
		s.tuples[key] = t
		stored = append(stored, t)
	}
	return stored, nil
}

// Delete removes every tuple matching filter and returns the count removed.
// filter must be non-empty; core.CheckFilterNotEmpty is the enforcement
// point shared with every other Store implementation.
func (s *Store) Delete(_ context.Context, filter core.TupleFilter) (int, error) {
	if err := core.CheckFilterNotEmpty("memory.Store.Delete", filter); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for key, t := range s.tuples {
		if filter.Matches(t) {
			delete(s.tuples, key)
			removed++
		}
	}
	return removed, nil
}

// FindTuples returns every tuple matching filter, including inactive ones.
func (s *Store) FindTuples(_ context.Context, filter core.TupleFilter) ([]core.Tuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Tuple
	for _, t := range s.tuples {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// FindSubjects returns the subjects S such that (S, relation, object)
// exists and is active now.
func (s *Store) FindSubjects(_ context.Context, object core.Object, relation core.Relation) ([]core.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var out []core.Subject
	for _, t := range s.tuples {
		if t.Object == object && t.Relation == relation && t.ActiveAt(now) {
			out = append(out, t.Subject)
		}
	}
	return out, nil
}

// FindObjects returns the objects O such that (subject, relation, O) exists
// and is active now.
func (s *Store) FindObjects(_ context.Context, subject core.Subject, relation core.Relation) ([]core.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var out []core.Object
	for _, t := range s.tuples {
		if t.Subject == subject && t.Relation == relation && t.ActiveAt(now) {
			out = append(out, t.Object)
		}
	}
	return out, nil
}

// Size returns the number of stored tuples. Useful in tests.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tuples)
}

var _ core.Store = (*Store)(nil)
