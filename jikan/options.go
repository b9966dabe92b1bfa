package jikan

import (
	"context"
	"time"
)

// Option configures a Client
type Option func(*Client)

// WithMaxAttempts sets the total number of attempts per request
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithRetryInterval sets the linear backoff step; attempt n waits n*d
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		c.retryInterval = d
	}
}

// WithTimeout sets the per-request HTTP timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithPageSize sets the default "limit" parameter for list endpoints
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithCache attaches a read-through response cache
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// withWait replaces the backoff sleep; used by tests to record delays.
func withWait(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.wait = fn
	}
}
