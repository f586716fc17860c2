package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sensei-dev/sensei/pkg/observability"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestAdmit_DeniesAfterMaxThenRecovers(t *testing.T) {
	for _, class := range []ResourceClass{General, AI} {
		t.Run(string(class), func(t *testing.T) {
			clock := newManualClock()
			l := New(map[ResourceClass]Limit{class: {MaxRequests: 3, Window: time.Minute}}, WithClock(clock))

			for i := range 3 {
				if !l.Admit("alice", class) {
					t.Fatalf("admission %d denied", i+1)
				}
				clock.Advance(time.Second)
			}
			if l.Admit("alice", class) {
				t.Fatal("admission after max should be denied")
			}

			clock.Advance(time.Minute)
			if !l.Admit("alice", class) {
				t.Fatal("admission after window elapsed should succeed")
			}
		})
	}
}

func TestAdmit_DenialDoesNotExtendWindow(t *testing.T) {
	clock := newManualClock()
	l := New(map[ResourceClass]Limit{AI: {MaxRequests: 1, Window: 10 * time.Second}}, WithClock(clock))

	if !l.Admit("bob", AI) {
		t.Fatal("first admission denied")
	}
	for range 5 {
		clock.Advance(time.Second)
		if l.Admit("bob", AI) {
			t.Fatal("expected denial inside window")
		}
	}
	// The only live entry is the first one; it expires exactly at +10s.
	clock.Advance(5 * time.Second)
	if !l.Admit("bob", AI) {
		t.Fatal("denied attempts must not be recorded")
	}
}

func TestAdmit_BoundaryIsInclusive(t *testing.T) {
	clock := newManualClock()
	l := New(map[ResourceClass]Limit{General: {MaxRequests: 1, Window: time.Minute}}, WithClock(clock))

	l.Admit("carol", General)
	clock.Advance(time.Minute - time.Nanosecond)
	if l.Admit("carol", General) {
		t.Fatal("entry should still be live just inside the window")
	}
	clock.Advance(time.Nanosecond)
	if !l.Admit("carol", General) {
		t.Fatal("entry at exactly now-window should be evicted")
	}
}

func TestAdmit_IndependentKeys(t *testing.T) {
	clock := newManualClock()
	l := New(map[ResourceClass]Limit{
		General: {MaxRequests: 1, Window: time.Hour},
		AI:      {MaxRequests: 1, Window: time.Hour},
	}, WithClock(clock))

	if !l.Admit("alice", AI) || !l.Admit("alice", General) || !l.Admit("bob", AI) {
		t.Fatal("distinct (subject, class) pairs must have independent budgets")
	}
	if l.Admit("alice", AI) {
		t.Fatal("alice/ai should be exhausted")
	}
}

func TestAdmit_UnlimitedClasses(t *testing.T) {
	l := New(map[ResourceClass]Limit{General: {MaxRequests: 0, Window: time.Hour}})
	for range 100 {
		if !l.Admit("x", General) || !l.Admit("x", "unknown") {
			t.Fatal("unlimited class denied")
		}
	}
	if r := l.Remaining("x", General); r != -1 {
		t.Errorf("Remaining = %d, want -1", r)
	}
}

func TestRemaining(t *testing.T) {
	clock := newManualClock()
	l := New(DefaultLimits(), WithClock(clock))

	if r := l.Remaining("dave", AI); r != 100 {
		t.Errorf("Remaining = %d, want 100", r)
	}
	l.Admit("dave", AI)
	l.Admit("dave", AI)
	if r := l.Remaining("dave", AI); r != 98 {
		t.Errorf("Remaining = %d, want 98", r)
	}
	clock.Advance(time.Hour)
	if r := l.Remaining("dave", AI); r != 100 {
		t.Errorf("Remaining after window = %d, want 100", r)
	}
}

func TestAdmit_ConcurrentNeverExceedsMax(t *testing.T) {
	l := New(map[ResourceClass]Limit{AI: {MaxRequests: 50, Window: time.Hour}})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("shared", AI) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 50 {
		t.Errorf("admitted = %d, want 50", admitted)
	}
}

func TestAdmit_RejectionMetric(t *testing.T) {
	l := New(map[ResourceClass]Limit{AI: {MaxRequests: 1, Window: time.Hour}})
	before := testutil.ToFloat64(observability.RateLimitRejectedTotal.WithLabelValues("ai"))

	l.Admit("erin", AI)
	l.Admit("erin", AI)

	after := testutil.ToFloat64(observability.RateLimitRejectedTotal.WithLabelValues("ai"))
	if after-before != 1 {
		t.Errorf("rejections delta = %v, want 1", after-before)
	}
}

func TestAdmitContext(t *testing.T) {
	l := New(map[ResourceClass]Limit{General: {MaxRequests: 1, Window: time.Hour}})

	anon := context.Background()
	for range 3 {
		if !l.AdmitContext(anon, General) {
			t.Fatal("requests without subject must not be metered")
		}
	}

	ctx := WithSubject(context.Background(), "frank")
	if SubjectFromContext(ctx) != "frank" {
		t.Fatal("subject not stored")
	}
	if !l.AdmitContext(ctx, General) {
		t.Fatal("first admission denied")
	}
	if l.AdmitContext(ctx, General) {
		t.Fatal("second admission should be denied")
	}

	var nilLimiter *Limiter
	if !nilLimiter.AdmitContext(ctx, General) {
		t.Fatal("nil limiter admits everything")
	}
}

func (l *Limiter) windowCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func TestIdleWindowsAreSwept(t *testing.T) {
	clock := newManualClock()
	l := New(map[ResourceClass]Limit{
		General: {MaxRequests: 5, Window: time.Hour},
		AI:      {MaxRequests: 2, Window: time.Minute},
	}, WithClock(clock))

	for i := range 100 {
		subject := "user-" + strconv.Itoa(i)
		l.Admit(subject, General)
		l.Admit(subject, AI)
	}
	if n := l.windowCount(); n != 200 {
		t.Fatalf("windows = %d, want 200", n)
	}

	// The AI windows expire, the general ones are still live.
	clock.Advance(2 * time.Minute)
	l.Admit("bob", AI)
	if n := l.windowCount(); n != 101 {
		t.Errorf("windows after AI expiry = %d, want 101", n)
	}

	clock.Advance(2 * time.Hour)
	l.Remaining("bob", General)
	if n := l.windowCount(); n != 1 {
		t.Errorf("windows after full expiry = %d, want 1", n)
	}
}

func TestSweptWindowStartsFresh(t *testing.T) {
	clock := newManualClock()
	l := New(map[ResourceClass]Limit{AI: {MaxRequests: 1, Window: time.Minute}}, WithClock(clock))

	if !l.Admit("alice", AI) {
		t.Fatal("first admission denied")
	}
	if l.Admit("alice", AI) {
		t.Fatal("second admission inside the window should be denied")
	}
	clock.Advance(time.Minute)
	if !l.Admit("alice", AI) {
		t.Fatal("admission after the window was swept should succeed")
	}
	if got := l.Remaining("alice", AI); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
}
