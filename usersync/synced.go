// Package usersync keeps per-user collections in sync with the document store.
//
// A Synced collection holds the last snapshot pushed by a live subscription
// and nothing else. Mutations are written straight to the store; local state
// changes only when the subscription delivers the change back.
package usersync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	minResubscribeDelay = time.Second
	maxResubscribeDelay = 30 * time.Second
)

// Source is a per-user subcollection in the document store
type Source[T any] interface {
	// Subscribe calls onSnapshot with the full collection every time it
	// changes, on the calling goroutine. It blocks until ctx is done or the
	// subscription fails.
	Subscribe(ctx context.Context, uid string, onSnapshot func([]T)) error
	// Put creates or replaces document id
	Put(ctx context.Context, uid, id string, v T) error
	// Patch merges fields into document id
	Patch(ctx context.Context, uid, id string, fields map[string]any) error
	// Remove deletes document id
	Remove(ctx context.Context, uid, id string) error
}

// Synced mirrors one user's collection
type Synced[T any] struct {
	src    Source[T]
	logger zerolog.Logger

	mu       sync.Mutex
	uid      string
	items    []T
	ready    bool
	readyCh  chan struct{}
	gen      uint64
	cancel   context.CancelFunc
	done     chan struct{}
	watchers map[int]chan []T
	nextID   int
	closed   bool
}

// NewSynced creates an unbound collection
func NewSynced[T any](src Source[T], logger zerolog.Logger) *Synced[T] {
	return &Synced[T]{
		src:      src,
		logger:   logger,
		readyCh:  make(chan struct{}),
		watchers: make(map[int]chan []T),
	}
}

// Bind switches the collection to uid. The previous subscription is released
// and local state cleared before the new one opens, so no data of the previous
// user survives. An empty uid just unbinds.
func (s *Synced[T]) Bind(uid string) {
	s.mu.Lock()
	if s.closed || (uid == s.uid && s.cancel != nil) {
		s.mu.Unlock()
		return
	}
	prevDone := s.unbindLocked()
	s.uid = uid

	if uid != "" {
		s.gen++
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		s.cancel = cancel
		s.done = done
		go s.run(ctx, uid, s.gen, done)
	}
	s.mu.Unlock()

	if prevDone != nil {
		<-prevDone
	}
}

// unbindLocked cancels the live subscription and clears state. Caller holds s.mu.
func (s *Synced[T]) unbindLocked() chan struct{} {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	done := s.done
	s.done = nil
	s.uid = ""
	s.items = nil
	if s.ready {
		s.ready = false
		s.readyCh = make(chan struct{})
	}
	s.broadcastLocked()
	return done
}

func (s *Synced[T]) run(ctx context.Context, uid string, gen uint64, done chan struct{}) {
	defer close(done)
	var delay time.Duration

	for {
		delivered := false
		err := s.src.Subscribe(ctx, uid, func(items []T) {
			delivered = true
			s.apply(gen, items)
		})
		if ctx.Err() != nil {
			return
		}
		delay = nextResubscribeDelay(delay, delivered)
		if err != nil {
			s.logger.Warn().Err(err).Str("uid", uid).Dur("retry_in", delay).Msg("Subscription failed, resubscribing")
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// nextResubscribeDelay returns the wait before the next subscribe attempt.
// A subscription that delivered a snapshot starts the backoff over.
func nextResubscribeDelay(prev time.Duration, delivered bool) time.Duration {
	if delivered || prev <= 0 {
		return minResubscribeDelay
	}
	return min(prev*2, maxResubscribeDelay)
}

// apply replaces local state with a snapshot unless the binding it belongs to
// has been replaced
func (s *Synced[T]) apply(gen uint64, items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	s.items = append([]T(nil), items...)
	if !s.ready {
		s.ready = true
		close(s.readyCh)
	}
	s.broadcastLocked()
}

func (s *Synced[T]) broadcastLocked() {
	for _, ch := range s.watchers {
		snapshot := append([]T(nil), s.items...)
		// keep only the latest snapshot for slow watchers
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

// UID returns the bound user, or "" when unbound
func (s *Synced[T]) UID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uid
}

// Items returns a copy of the last snapshot and whether one has arrived
func (s *Synced[T]) Items() ([]T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.items...), s.ready
}

// WaitReady blocks until the first snapshot of the current binding arrives
func (s *Synced[T]) WaitReady(ctx context.Context) error {
	s.mu.Lock()
	if s.uid == "" {
		s.mu.Unlock()
		return ErrAuthRequired
	}
	ch := s.readyCh
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

// Watch returns a channel that receives every new snapshot. Only the latest
// undelivered snapshot is kept. The channel is closed when ctx is done or the
// collection is closed.
func (s *Synced[T]) Watch(ctx context.Context) <-chan []T {
	ch := make(chan []T, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	if s.ready {
		ch <- append([]T(nil), s.items...)
	}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(ch)
		}
	}()
	return ch
}

// Close releases the subscription and closes every watcher
func (s *Synced[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	done := s.unbindLocked()
	s.closed = true
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// source returns the store and bound uid for a mutation
func (s *Synced[T]) source() (Source[T], string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uid == "" {
		return nil, "", ErrAuthRequired
	}
	return s.src, s.uid, nil
}
