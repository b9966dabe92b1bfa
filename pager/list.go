// Package pager accumulates paginated API results into a single
// de-duplicated list, and debounces search input.
package pager

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
)

// Page is one fetched page. HasMore is nil when the API sent no pagination
// metadata; the list then falls back to comparing the page size.
type Page[T any] struct {
	Items   []T
	HasMore *bool
}

// FetchFunc loads page n (1-based) for filter
type FetchFunc[T any, F any] func(ctx context.Context, filter F, page int) (Page[T], error)

// State is a point-in-time copy of the list
type State[T any] struct {
	Items   []T   `json:"items"`
	Loading bool  `json:"loading"`
	HasMore bool  `json:"hasMore"`
	Page    int   `json:"page"`
	Err     error `json:"-"`
}

// List is an infinite-scroll list. Only the most recent fetch may change its
// state: changing the filter or closing the list cancels the fetch in flight
// and discards whatever it returns.
type List[T anime.Identified, F any] struct {
	fetch    FetchFunc[T, F]
	pageSize int
	logger   zerolog.Logger

	mu      sync.Mutex
	filter  F
	items   []T
	loading bool
	hasMore bool
	page    int
	err     error
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}

	ctx      context.Context
	shutdown context.CancelFunc
}

// New creates an idle list. Call SetFilter to load the first page.
func New[T anime.Identified, F any](fetch FetchFunc[T, F], pageSize int, logger zerolog.Logger) *List[T, F] {
	ctx, cancel := context.WithCancel(context.Background())
	return &List[T, F]{
		fetch:    fetch,
		pageSize: pageSize,
		logger:   logger,
		hasMore:  true,
		ctx:      ctx,
		shutdown: cancel,
	}
}

// SetFilter resets the list to an empty first page before the fetch for the
// new filter starts, so no result of the previous filter stays visible.
func (l *List[T, F]) SetFilter(filter F) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.filter = filter
	l.items = nil
	l.page = 1
	l.hasMore = true
	l.err = nil
	l.start()
}

// LoadMore requests the next page. It does nothing and returns false while a
// fetch is running or when there are no more pages.
func (l *List[T, F]) LoadMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loading || !l.hasMore || l.page == 0 || l.ctx.Err() != nil {
		return false
	}
	l.page++
	l.start()
	return true
}

// Refresh reloads the current filter from page 1
func (l *List[T, F]) Refresh() {
	l.mu.Lock()
	filter := l.filter
	l.mu.Unlock()
	l.SetFilter(filter)
}

// start launches the fetch for l.page. Caller holds l.mu.
func (l *List[T, F]) start() {
	if l.cancel != nil {
		l.cancel()
	}
	if l.ctx.Err() != nil {
		l.loading = false
		return
	}

	l.gen++
	ctx, cancel := context.WithCancel(l.ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.loading = true

	go l.run(ctx, cancel, l.gen, l.filter, l.page, done)
}

func (l *List[T, F]) run(ctx context.Context, cancel context.CancelFunc, gen uint64, filter F, page int, done chan struct{}) {
	defer close(done)
	defer cancel()

	res, err := l.fetch(ctx, filter, page)

	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen {
		l.logger.Debug().Int("page", page).Msg("Discarding stale page")
		return
	}

	l.loading = false
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Warn().Err(err).Int("page", page).Msg("Failed to load page")
		}
		l.err = err
		l.hasMore = false
		return
	}

	l.items = anime.MergeByID(l.items, res.Items)
	if res.HasMore != nil {
		l.hasMore = *res.HasMore
	} else {
		l.hasMore = l.pageSize > 0 && len(res.Items) >= l.pageSize
	}
}

// State returns a copy of the current state
func (l *List[T, F]) State() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()

	return State[T]{
		Items:   append([]T(nil), l.items...),
		Loading: l.loading,
		HasMore: l.hasMore,
		Page:    l.page,
		Err:     l.err,
	}
}

// Wait blocks until no fetch is running
func (l *List[T, F]) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		loading, done := l.loading, l.done
		l.mu.Unlock()

		if !loading || done == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}
	}
}

// Close cancels any running fetch; later results are discarded
func (l *List[T, F]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.shutdown()
	l.gen++
	l.loading = false
}
