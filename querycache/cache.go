// Package querycache is an in-memory, LRU-bounded response cache with
// stale-while-revalidate semantics, keyed by request path and parameters.
package querycache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultSize is the default maximum number of cached responses
	DefaultSize = 512
	// DefaultStaleTime is how long an entry is served without revalidation
	DefaultStaleTime = 5 * time.Minute
	// loadTimeout bounds a shared or background fetch
	loadTimeout = 30 * time.Second
)

// Entry is one cached response
type Entry struct {
	Key       string
	Body      []byte
	FetchedAt time.Time
}

// Stats are cumulative cache counters
type Stats struct {
	Hits          uint64 `json:"hits"`
	StaleHits     uint64 `json:"staleHits"`
	Misses        uint64 `json:"misses"`
	Revalidations uint64 `json:"revalidations"`
	Errors        uint64 `json:"errors"`
	Entries       int    `json:"entries"`
}

// FetchFunc produces a fresh response body
type FetchFunc = func(ctx context.Context) ([]byte, error)

// Cache is the query cache. The zero value is not usable; use New.
type Cache struct {
	entries   *lru.Cache[string, Entry]
	group     singleflight.Group
	staleTime time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	hits, staleHits, misses, revalidations, errors atomic.Uint64
}

// New creates a cache holding at most size entries
func New(size int, staleTime time.Duration, logger zerolog.Logger) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if staleTime <= 0 {
		staleTime = DefaultStaleTime
	}

	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		entries:   entries,
		staleTime: staleTime,
		logger:    logger.With().Str("component", "querycache").Logger(),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Fetch returns the cached body for key. A fresh entry is returned as is. A
// stale entry is returned immediately while a background refresh runs. A
// missing entry is fetched; concurrent callers for the same key share one
// fetch. The shared fetch is not bound to any caller's ctx, so a caller that
// gives up only abandons its own wait.
func (c *Cache) Fetch(ctx context.Context, key string, fetch FetchFunc) ([]byte, error) {
	if e, ok := c.entries.Get(key); ok {
		if c.now().Sub(e.FetchedAt) < c.staleTime {
			c.hits.Add(1)
			return e.Body, nil
		}
		c.staleHits.Add(1)
		c.revalidate(key, fetch)
		return e.Body, nil
	}

	c.misses.Add(1)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(c.ctx, loadTimeout)
		defer cancel()
		return c.load(lctx, key, fetch)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Cache) load(ctx context.Context, key string, fetch FetchFunc) ([]byte, error) {
	body, err := fetch(ctx)
	if err != nil {
		c.errors.Add(1)
		return nil, err
	}
	c.entries.Add(key, Entry{Key: key, Body: body, FetchedAt: c.now()})
	return body, nil
}

func (c *Cache) revalidate(key string, fetch FetchFunc) {
	if c.ctx.Err() != nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.ctx, loadTimeout)
		defer cancel()

		_, err, shared := c.group.Do(key, func() (interface{}, error) {
			c.revalidations.Add(1)
			return c.load(ctx, key, fetch)
		})
		if err != nil && !shared {
			c.logger.Warn().Err(err).Str("key", key).Msg("Background revalidation failed, keeping stale entry")
		}
	}()
}

// Get returns an entry without fetching
func (c *Cache) Get(key string) (Entry, bool) {
	return c.entries.Peek(key)
}

// Set stores body under key with the current time
func (c *Cache) Set(key string, body []byte) {
	c.entries.Add(key, Entry{Key: key, Body: body, FetchedAt: c.now()})
}

// Invalidate removes every entry whose key starts with prefix and returns the
// number removed
func (c *Cache) Invalidate(prefix string) int {
	n := 0
	for _, k := range c.entries.Keys() {
		if strings.HasPrefix(k, prefix) {
			if c.entries.Remove(k) {
				n++
			}
		}
	}
	return n
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.entries.Purge()
}

// Len returns the number of entries
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Snapshot returns every entry, least recently used first
func (c *Cache) Snapshot() []Entry {
	keys := c.entries.Keys()
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		if e, ok := c.entries.Peek(k); ok {
			out = append(out, e)
		}
	}
	return out
}

// Restore loads entries that are younger than maxAge and returns how many were
// kept. Entries keep their original fetch time so freshness carries over.
func (c *Cache) Restore(entries []Entry, maxAge time.Duration) int {
	now := c.now()
	n := 0
	for _, e := range entries {
		if maxAge > 0 && now.Sub(e.FetchedAt) >= maxAge {
			continue
		}
		c.entries.Add(e.Key, e)
		n++
	}
	return n
}

// Stats returns the cumulative counters
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		StaleHits:     c.staleHits.Load(),
		Misses:        c.misses.Load(),
		Revalidations: c.revalidations.Load(),
		Errors:        c.errors.Load(),
		Entries:       c.entries.Len(),
	}
}

// Close stops background revalidation and waits for running refreshes
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}
