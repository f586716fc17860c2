package ratelimit

import (
	"sync"
	"time"

	"github.com/sensei-dev/sensei/pkg/observability"
)

// ResourceClass names a bucket with its own budget.
type ResourceClass string

const (
	// General covers workflow and other API calls.
	General ResourceClass = "general"

	// AI covers calls that reach an upstream AI provider.
	AI ResourceClass = "ai"
)

// Limit is the budget of one resource class.
type Limit struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultLimits returns the stock budgets: 1000 general and 100 AI calls
// per hour.
func DefaultLimits() map[ResourceClass]Limit {
	return map[ResourceClass]Limit{
		General: {MaxRequests: 1000, Window: time.Hour},
		AI:      {MaxRequests: 100, Window: time.Hour},
	}
}

type windowKey struct {
	subject string
	class   ResourceClass
}

// window holds the admission timestamps of one (subject, class) pair in
// ascending order.
type window struct {
	mu    sync.Mutex
	times []time.Time

	// removed is set under mu once the window has been dropped from the
	// limiter's map. A holder seeing it must look the key up again.
	removed bool
}

// evict drops every timestamp at or before cutoff. Caller holds w.mu.
func (w *window) evict(cutoff time.Time) {
	n := 0
	for n < len(w.times) && !w.times[n].After(cutoff) {
		n++
	}
	if n == 0 {
		return
	}
	w.times = append(w.times[:0], w.times[n:]...)
}

// Limiter is a sliding-window rate limiter. Each (subject, class) window
// has its own mutex; the map of windows is guarded separately and only
// held long enough to look up or create an entry. Lock order is l.mu
// before window.mu.
//
// Windows left empty by eviction are swept from the map at most once per
// sweepEvery, so idle subjects do not accumulate.
type Limiter struct {
	limits map[ResourceClass]Limit
	clock  Clock

	mu         sync.Mutex
	windows    map[windowKey]*window
	sweepEvery time.Duration
	lastSweep  time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// New creates a limiter. Classes absent from limits are unlimited.
func New(limits map[ResourceClass]Limit, opts ...Option) *Limiter {
	l := &Limiter{
		limits:  make(map[ResourceClass]Limit, len(limits)),
		clock:   SystemClock{},
		windows: make(map[windowKey]*window),
	}
	for c, lim := range limits {
		l.limits[c] = lim
		if _, ok := l.Limit(c); ok && (l.sweepEvery == 0 || lim.Window < l.sweepEvery) {
			l.sweepEvery = lim.Window
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the budget of class and whether it is enforced.
func (l *Limiter) Limit(class ResourceClass) (Limit, bool) {
	lim, ok := l.limits[class]
	if !ok || lim.MaxRequests <= 0 || lim.Window <= 0 {
		return Limit{}, false
	}
	return lim, true
}

// lockWindow returns the window of (subject, class) with its mutex held.
func (l *Limiter) lockWindow(subject string, class ResourceClass) *window {
	key := windowKey{subject: subject, class: class}
	for {
		w := l.window(key)
		w.mu.Lock()
		if !w.removed {
			return w
		}
		w.mu.Unlock()
	}
}

func (l *Limiter) window(key windowKey) *window {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now := l.clock.Now(); now.Sub(l.lastSweep) >= l.sweepEvery {
		l.sweep(now)
	}
	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}
	return w
}

// sweep drops every window that holds no admission inside its class
// window. Caller holds l.mu.
func (l *Limiter) sweep(now time.Time) {
	for key, w := range l.windows {
		w.mu.Lock()
		if lim, ok := l.Limit(key.class); ok {
			w.evict(now.Add(-lim.Window))
		}
		if len(w.times) == 0 {
			w.removed = true
			delete(l.windows, key)
		}
		w.mu.Unlock()
	}
	l.lastSweep = now
}

// Admit records one call for subject under class and reports whether it is
// within budget. A denied call leaves the window untouched.
func (l *Limiter) Admit(subject string, class ResourceClass) bool {
	lim, ok := l.Limit(class)
	if !ok {
		return true
	}

	w := l.lockWindow(subject, class)
	defer w.mu.Unlock()

	now := l.clock.Now()
	w.evict(now.Add(-lim.Window))
	if len(w.times) >= lim.MaxRequests {
		observability.RateLimitRejectedTotal.WithLabelValues(string(class)).Inc()
		return false
	}
	w.times = append(w.times, now)
	return true
}

// Remaining returns how many more calls subject may make under class right
// now. Unlimited classes report -1.
func (l *Limiter) Remaining(subject string, class ResourceClass) int {
	lim, ok := l.Limit(class)
	if !ok {
		return -1
	}

	w := l.lockWindow(subject, class)
	defer w.mu.Unlock()

	w.evict(l.clock.Now().Add(-lim.Window))
	if r := lim.MaxRequests - len(w.times); r > 0 {
		return r
	}
	return 0
}
