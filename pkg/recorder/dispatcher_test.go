package recorder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sensei-dev/sensei/pkg/observability"
)

// fakeStore records saves and can be told to fail or block.
type fakeStore struct {
	mu    sync.Mutex
	saved []Interaction

	failures atomic.Int32 // number of initial Save calls to fail
	attempts atomic.Int32
	block    chan struct{}
}

func (s *fakeStore) Save(ctx context.Context, it Interaction) error {
	s.attempts.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.failures.Load() > 0 {
		s.failures.Add(-1)
		return errors.New("transient")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.saved {
		if x.ID == it.ID {
			return ErrConflict
		}
	}
	s.saved = append(s.saved, it)
	return nil
}

func (s *fakeStore) ListBySession(context.Context, string, string, int) ([]Interaction, error) {
	return nil, nil
}
func (s *fakeStore) HealthCheck(context.Context) error { return nil }
func (s *fakeStore) Close() error                      { return nil }

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func TestDispatcher_SavesAndDrains(t *testing.T) {
	store := &fakeStore{}
	d := NewDispatcher(store)

	for range 10 {
		d.Record(Interaction{SessionID: "s1", Provider: "llama", UserMessage: "hi"})
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := store.count(); n != 10 {
		t.Errorf("saved = %d, want 10", n)
	}
	for _, it := range store.saved {
		if it.ID == "" || it.CreatedAt.IsZero() {
			t.Errorf("record missing id or timestamp: %+v", it)
		}
	}
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	store := &fakeStore{}
	store.failures.Store(2)
	d := NewDispatcher(store, WithRetry(5*time.Second, time.Second))

	d.Record(Interaction{ID: "a", SessionID: "s"})
	d.Close(context.Background())

	if store.count() != 1 {
		t.Fatalf("saved = %d, want 1", store.count())
	}
	if n := store.attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestDispatcher_ConflictIsNotRetried(t *testing.T) {
	store := &fakeStore{}
	d := NewDispatcher(store)

	d.Record(Interaction{ID: "dup"})
	d.Record(Interaction{ID: "dup"})
	d.Close(context.Background())

	if n := store.attempts.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestDispatcher_RecordNeverBlocks(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	d := NewDispatcher(store, WithQueueSize(1))

	before := testutil.ToFloat64(observability.RecorderDroppedTotal)

	done := make(chan struct{})
	go func() {
		for range 20 {
			d.Record(Interaction{SessionID: "s"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a stalled store")
	}

	if dropped := testutil.ToFloat64(observability.RecorderDroppedTotal) - before; dropped < 18 {
		t.Errorf("dropped = %v, want at least 18", dropped)
	}

	close(store.block)
	d.Close(context.Background())
}

func TestDispatcher_CloseHonorsContext(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	d := NewDispatcher(store)
	d.Record(Interaction{SessionID: "s"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close err = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Close did not give up after its context expired")
	}

	// Records after Close are dropped, not panicking on a closed channel.
	d.Record(Interaction{SessionID: "late"})
}

func TestDiscard(t *testing.T) {
	var r Recorder = Discard{}
	r.Record(Interaction{})
}
