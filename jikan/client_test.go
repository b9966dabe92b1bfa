package jikan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordWait captures backoff delays without sleeping
func recordWait(delays *[]time.Duration) Option {
	return withWait(func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	})
}

func TestNewClient(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name    string
		baseURL string
		opts    []Option
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			baseURL: "https://api.jikan.moe/v4/",
		},
		{
			name:    "missing URL",
			baseURL: "",
			wantErr: true,
			errMsg:  "base URL is required",
		},
		{
			name:    "zero attempts",
			baseURL: "https://api.jikan.moe/v4",
			opts:    []Option{WithMaxAttempts(0)},
			wantErr: true,
			errMsg:  "max attempts",
		},
		{
			name:    "negative interval",
			baseURL: "https://api.jikan.moe/v4",
			opts:    []Option{WithRetryInterval(-time.Second)},
			wantErr: true,
			errMsg:  "retry interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.baseURL, logger, tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://api.jikan.moe/v4", client.baseURL)
		})
	}
}

func TestClientOptions(t *testing.T) {
	client, err := NewClient("http://localhost", zerolog.Nop(),
		WithMaxAttempts(5),
		WithRetryInterval(250*time.Millisecond),
		WithTimeout(2*time.Second),
		WithPageSize(10),
		WithUserAgent("test/1.0"),
	)
	require.NoError(t, err)

	assert.Equal(t, 5, client.maxAttempts)
	assert.Equal(t, 250*time.Millisecond, client.retryInterval)
	assert.Equal(t, 2*time.Second, client.timeout)
	assert.Equal(t, 10, client.PageSize())
	assert.Equal(t, "test/1.0", client.userAgent)
}

func TestGet_RateLimitedExhaustsAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var delays []time.Duration
	client, err := NewClient(server.URL, zerolog.Nop(),
		WithMaxAttempts(4),
		WithRetryInterval(100*time.Millisecond),
		recordWait(&delays),
	)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/top/anime", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))

	// one wait between each pair of attempts, strictly increasing
	require.Len(t, delays, 3)
	for i := 1; i < len(delays); i++ {
		assert.Greater(t, delays[i], delays[i-1])
	}
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}, delays)
}

func TestGet_RecoversAfterThrottle(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer server.Close()

	var delays []time.Duration
	client, err := NewClient(server.URL, zerolog.Nop(), WithMaxAttempts(3), recordWait(&delays))
	require.NoError(t, err)

	body, err := client.Get(context.Background(), "/seasons/now", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Len(t, delays, 2)
}

func TestGet_HTTPErrorNotRetried(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		notFound bool
		server   bool
	}{
		{name: "not found", status: http.StatusNotFound, notFound: true},
		{name: "bad request", status: http.StatusBadRequest},
		{name: "server error", status: http.StatusInternalServerError, server: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"message":"nope"}`)
			}))
			defer server.Close()

			var delays []time.Duration
			client, err := NewClient(server.URL, zerolog.Nop(), WithMaxAttempts(3), recordWait(&delays))
			require.NoError(t, err)

			_, err = client.Get(context.Background(), "/anime/1/full", nil)
			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.notFound, httpErr.IsNotFound())
			assert.Equal(t, tt.server, httpErr.IsServerError())
			assert.Contains(t, httpErr.Body, "nope")
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
			assert.Empty(t, delays)
		})
	}
}

func TestGet_NetworkErrorRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	var delays []time.Duration
	client, err := NewClient(addr, zerolog.Nop(), WithMaxAttempts(3), recordWait(&delays))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/top/anime", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 3, netErr.Attempts)
	assert.Len(t, delays, 2)
}

func TestGet_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, zerolog.Nop(), WithMaxAttempts(5), WithRetryInterval(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.Get(ctx, "/top/anime", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

type mapCache struct {
	data  map[string][]byte
	calls int
}

func (m *mapCache) Fetch(ctx context.Context, key string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	m.calls++
	if b, ok := m.data[key]; ok {
		return b, nil
	}
	b, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	m.data[key] = b
	return b, nil
}

func TestGet_ThroughCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"data":{"mal_id":1,"title":"Cowboy Bebop"}}`)
	}))
	defer server.Close()

	cache := &mapCache{data: map[string][]byte{}}
	client, err := NewClient(server.URL, zerolog.Nop(), WithCache(cache))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		a, err := client.AnimeFull(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Cowboy Bebop", a.Title)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 3, cache.calls)
	assert.Contains(t, cache.data, "/anime/1/full")
}

func TestCacheKey(t *testing.T) {
	a := url.Values{}
	a.Set("page", "2")
	a.Set("filter", "airing")
	b := url.Values{}
	b.Set("filter", "airing")
	b.Set("page", "2")

	assert.Equal(t, CacheKey("/top/anime", a), CacheKey("/top/anime", b))
	assert.Equal(t, "/top/anime?filter=airing&page=2", CacheKey("/top/anime", a))
	assert.Equal(t, "/seasons/now", CacheKey("/seasons/now", nil))
}

func TestTopAnime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/top/anime", r.URL.Path)
		assert.Equal(t, "bypopularity", r.URL.Query().Get("filter"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "12", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{
			"pagination": {"last_visible_page": 10, "has_next_page": true, "current_page": 2},
			"data": [
				{"mal_id": 5114, "title": "Fullmetal Alchemist: Brotherhood", "score": 9.1, "year": 2009,
				 "images": {"jpg": {"image_url": "a.jpg", "large_image_url": "a-l.jpg"}},
				 "genres": [{"mal_id": 1, "name": "Action"}]}
			]
		}`)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, zerolog.Nop(), WithPageSize(12))
	require.NoError(t, err)

	resp, err := client.TopAnime(context.Background(), TopFilterPopularity, 2)
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)

	more, ok := resp.HasMore()
	assert.True(t, ok)
	assert.True(t, more)

	a := resp.Data[0]
	assert.Equal(t, 5114, a.MalID)
	require.NotNil(t, a.Score)
	assert.InDelta(t, 9.1, *a.Score, 0.001)
	assert.Equal(t, "a-l.jpg", a.Images.Best())
	assert.Equal(t, "Action", a.Genres[0].Name)
}

func TestSearchAnime_Params(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/anime", r.URL.Path)
		assert.Equal(t, "naruto", q.Get("q"))
		assert.Equal(t, "1,2", q.Get("genres"))
		assert.Equal(t, "score", q.Get("order_by"))
		assert.Equal(t, "desc", q.Get("sort"))
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, zerolog.Nop())
	require.NoError(t, err)

	resp, err := client.SearchAnime(context.Background(), SearchQuery{
		Query:   "naruto",
		Genres:  []int{1, 2},
		OrderBy: "score",
		Sort:    "desc",
	})
	require.NoError(t, err)
	_, ok := resp.HasMore()
	assert.False(t, ok)
}

func TestProducerDefaultTitle(t *testing.T) {
	p := Producer{Titles: []ProducerTitle{{Type: "Japanese", Title: "ボンズ"}, {Type: "Default", Title: "Bones"}}}
	assert.Equal(t, "Bones", p.DefaultTitle())
	assert.Equal(t, "", (&Producer{}).DefaultTitle())
}

func TestImagesBest(t *testing.T) {
	assert.Equal(t, "j.jpg", Images{JPG: ImageURLs{ImageURL: "j.jpg"}, WebP: ImageURLs{LargeImageURL: "w.webp"}}.Best())
	assert.Equal(t, "w.webp", Images{WebP: ImageURLs{LargeImageURL: "w.webp"}}.Best())
	assert.Equal(t, "", Images{}.Best())
}

func TestNetworkErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("wrapped: %w", &NetworkError{Endpoint: "/x", Attempts: 3, Err: cause})
	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, cause)
}
