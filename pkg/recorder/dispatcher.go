package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/sensei-dev/sensei/pkg/debug"
	"github.com/sensei-dev/sensei/pkg/observability"
)

const (
	defaultQueueSize   = 256
	defaultMaxElapsed  = 30 * time.Second
	defaultSaveTimeout = 5 * time.Second
)

// Dispatcher is a Recorder that saves interactions asynchronously. Records
// are dropped, not blocked on, when the queue is full or the dispatcher is
// closed.
type Dispatcher struct {
	store       Store
	queue       chan Interaction
	maxElapsed  time.Duration
	saveTimeout time.Duration

	// ctx is cancelled when Close gives up waiting, which stops retries.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Interaction, n)
		}
	}
}

// WithRetry bounds the total time spent retrying one save and the timeout
// of each attempt.
func WithRetry(maxElapsed, attemptTimeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if maxElapsed > 0 {
			d.maxElapsed = maxElapsed
		}
		if attemptTimeout > 0 {
			d.saveTimeout = attemptTimeout
		}
	}
}

// NewDispatcher starts the worker goroutine. Call Close to drain it.
func NewDispatcher(store Store, opts ...DispatcherOption) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		store:       store,
		queue:       make(chan Interaction, defaultQueueSize),
		maxElapsed:  defaultMaxElapsed,
		saveTimeout: defaultSaveTimeout,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// Record enqueues it. Missing IDs and timestamps are filled in.
func (d *Dispatcher) Record(it Interaction) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(it, "closed")
		return
	}
	select {
	case d.queue <- it:
	default:
		d.drop(it, "queue full")
	}
}

func (d *Dispatcher) drop(it Interaction, reason string) {
	observability.RecorderDroppedTotal.Inc()
	slog.Warn("dropping interaction record", "id", it.ID, "session", it.SessionID, "reason", reason)
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for it := range d.queue {
		d.save(it)
	}
}

func (d *Dispatcher) save(it Interaction) {
	op := func() error {
		ctx, cancel := context.WithTimeout(d.ctx, d.saveTimeout)
		defer cancel()
		err := d.store.Save(ctx, it)
		if errors.Is(err, ErrConflict) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = d.maxElapsed

	notify := func(err error, wait time.Duration) {
		debug.Log("recorder", "save failed, retrying", "id", it.ID, "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, d.ctx), notify); err != nil {
		observability.RecorderSavesTotal.WithLabelValues("error").Inc()
		slog.Warn("failed to save interaction", "id", it.ID, "session", it.SessionID, "error", err)
		return
	}
	observability.RecorderSavesTotal.WithLabelValues("ok").Inc()
}

// Close stops accepting records and waits for queued ones to be saved. If
// ctx expires first, pending retries are abandoned and ctx.Err() is
// returned once the worker exits.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done
		return ctx.Err()
	}
}
