package pager

import (
	"context"
	"sync"
	"time"
)

// Debouncer runs fn only for input that stayed unchanged for the delay. Each
// Trigger cancels both the pending timer and the call started for earlier
// input.
type Debouncer struct {
	delay time.Duration
	fn    func(ctx context.Context, query string)

	mu      sync.Mutex
	timer   *time.Timer
	cancel  context.CancelFunc
	done    chan struct{}
	pending string
	queued  bool
	gen     uint64
	closed  bool
}

// NewDebouncer creates a debouncer
func NewDebouncer(delay time.Duration, fn func(ctx context.Context, query string)) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger schedules fn for query
func (d *Debouncer) Trigger(query string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.reset()
	d.gen++
	gen := d.gen
	d.pending, d.queued = query, true

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if gen != d.gen || d.closed {
			d.mu.Unlock()
			return
		}
		ctx, done := d.start()
		d.mu.Unlock()

		d.run(ctx, query, done)
	})
}

// Flush runs the pending query now instead of waiting for the delay, then
// blocks until the latest call has returned.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if !d.queued {
		done := d.done
		d.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	query := d.pending
	ctx, done := d.start()
	d.mu.Unlock()

	d.run(ctx, query, done)
}

// Stop cancels the pending timer and the running call. The debouncer ignores
// later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.reset()
	d.gen++
	d.closed = true
}

// start records a new call for the pending query. Caller holds d.mu.
func (d *Debouncer) start() (context.Context, chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	d.pending, d.queued = "", false
	return ctx, d.done
}

func (d *Debouncer) run(ctx context.Context, query string, done chan struct{}) {
	defer close(done)
	d.fn(ctx, query)
}

// reset stops the timer and cancels the in-flight call. Caller holds d.mu.
func (d *Debouncer) reset() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
