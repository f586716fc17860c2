// Package memory keeps interaction history in process memory. It serves
// tests and single-replica deployments; history is lost on restart.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/sensei-dev/sensei/pkg/recorder"
)

// Store is a recorder.Store bounded by a record count. When full, the
// earliest saved interaction is dropped first.
type Store struct {
	mu       sync.RWMutex
	byID     map[string]recorder.Interaction
	sessions map[string][]string // session ID -> record IDs in save order
	fifo     []string            // record IDs in save order
	max      int                 // 0 means unbounded
}

var _ recorder.Store = (*Store)(nil)

// New returns an empty store holding at most capacity interactions, or
// any number when capacity <= 0.
func New(capacity int) *Store {
	return &Store{
		byID:     make(map[string]recorder.Interaction),
		sessions: make(map[string][]string),
		max:      capacity,
	}
}

// Save stores it, evicting the earliest record when the store is full.
func (s *Store) Save(_ context.Context, it recorder.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.byID[it.ID]; dup {
		return recorder.ErrConflict
	}
	if s.max > 0 && len(s.byID) >= s.max {
		s.dropEarliest()
	}
	s.byID[it.ID] = it
	s.sessions[it.SessionID] = append(s.sessions[it.SessionID], it.ID)
	s.fifo = append(s.fifo, it.ID)
	return nil
}

// dropEarliest evicts the head of the save queue. Since sessions record IDs
// in save order too, the evicted ID heads its session list. s.mu is held.
func (s *Store) dropEarliest() {
	if len(s.fifo) == 0 {
		return
	}
	id := s.fifo[0]
	s.fifo = s.fifo[1:]

	it := s.byID[id]
	delete(s.byID, id)
	ids := s.sessions[it.SessionID][1:]
	if len(ids) == 0 {
		delete(s.sessions, it.SessionID)
		return
	}
	s.sessions[it.SessionID] = ids
}

// ListBySession returns the session's interactions oldest first by
// creation time, ties broken by ID.
func (s *Store) ListBySession(_ context.Context, subject, sessionID string, limit int) ([]recorder.Interaction, error) {
	s.mu.RLock()
	out := make([]recorder.Interaction, 0, len(s.sessions[sessionID]))
	for _, id := range s.sessions[sessionID] {
		if it := s.byID[id]; subject == "" || it.Subject == subject {
			out = append(out, it)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b recorder.Interaction) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Len reports how many interactions are held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Store) HealthCheck(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
