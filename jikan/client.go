package jikan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	defaultMaxAttempts   = 3
	defaultRetryInterval = time.Second
	defaultTimeout       = 15 * time.Second
	defaultPageSize      = 24
	defaultUserAgent     = "portal-animes/1.0"
)

// Client represents a Jikan API client
type Client struct {
	baseURL       string
	http          *resty.Client
	logger        zerolog.Logger
	maxAttempts   int
	retryInterval time.Duration
	timeout       time.Duration
	pageSize      int
	userAgent     string
	cache         Cache
	wait          func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new Jikan client
func NewClient(baseURL string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		logger:        logger.With().Str("component", "jikan").Logger(),
		maxAttempts:   defaultMaxAttempts,
		retryInterval: defaultRetryInterval,
		timeout:       defaultTimeout,
		pageSize:      defaultPageSize,
		userAgent:     defaultUserAgent,
		wait:          sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.maxAttempts < 1 {
		return nil, fmt.Errorf("%w: max attempts must be at least 1", ErrInvalidConfig)
	}
	if c.retryInterval < 0 {
		return nil, fmt.Errorf("%w: retry interval cannot be negative", ErrInvalidConfig)
	}

	// retries are handled by Get so the attempt count and backoff stay exact
	c.http = resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(c.timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", c.userAgent)

	return c, nil
}

// PageSize returns the default list page size
func (c *Client) PageSize() int {
	return c.pageSize
}

// Get performs a GET against endpoint and returns the raw body. When a cache
// is attached the request is served through it.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.cache == nil {
		return c.get(ctx, endpoint, params)
	}
	return c.cache.Fetch(ctx, CacheKey(endpoint, params), func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, endpoint, params)
	})
}

// CacheKey builds the cache key for a request. url.Values.Encode sorts by key,
// so parameter order never produces distinct keys.
func CacheKey(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	return endpoint + "?" + params.Encode()
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Msg("Making Jikan API request")

		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParamsFromValues(params).
			Get(endpoint)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if attempt == c.maxAttempts {
				return nil, &NetworkError{Endpoint: endpoint, Attempts: attempt, Err: err}
			}
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).Msg("Request failed, retrying")

		case resp.StatusCode() == http.StatusTooManyRequests:
			if attempt == c.maxAttempts {
				return nil, fmt.Errorf("%w: %s after %d attempts", ErrRateLimited, endpoint, attempt)
			}
			c.logger.Warn().Str("endpoint", endpoint).Int("attempt", attempt).Msg("Rate limited, backing off")

		case resp.StatusCode() < 200 || resp.StatusCode() > 299:
			return nil, &HTTPError{
				StatusCode: resp.StatusCode(),
				Endpoint:   endpoint,
				Body:       string(resp.Body()),
			}

		default:
			return resp.Body(), nil
		}

		if err := c.wait(ctx, time.Duration(attempt)*c.retryInterval); err != nil {
			return nil, err
		}
	}

	// unreachable with maxAttempts >= 1
	return nil, &NetworkError{Endpoint: endpoint, Attempts: c.maxAttempts, Err: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func getJSON[T any](ctx context.Context, c *Client, endpoint string, params url.Values) (*T, error) {
	body, err := c.Get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}
	return &out, nil
}

func (c *Client) pageParams(page int) url.Values {
	params := url.Values{}
	if page < 1 {
		page = 1
	}
	params.Set("page", strconv.Itoa(page))
	if c.pageSize > 0 {
		params.Set("limit", strconv.Itoa(c.pageSize))
	}
	return params
}

// TopAnime retrieves a page of /top/anime
func (c *Client) TopAnime(ctx context.Context, filter TopFilter, page int) (*ListResponse[Anime], error) {
	params := c.pageParams(page)
	if filter != TopFilterNone {
		params.Set("filter", string(filter))
	}
	resp, err := getJSON[ListResponse[Anime]](ctx, c, "/top/anime", params)
	if err != nil {
		return nil, fmt.Errorf("failed to get top anime: %w", err)
	}
	return resp, nil
}

// SeasonNow retrieves a page of the current season
func (c *Client) SeasonNow(ctx context.Context, page int) (*ListResponse[Anime], error) {
	resp, err := getJSON[ListResponse[Anime]](ctx, c, "/seasons/now", c.pageParams(page))
	if err != nil {
		return nil, fmt.Errorf("failed to get current season: %w", err)
	}
	return resp, nil
}

// SearchAnime runs a catalog search
func (c *Client) SearchAnime(ctx context.Context, q SearchQuery) (*ListResponse[Anime], error) {
	params := c.pageParams(q.Page)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Query != "" {
		params.Set("q", q.Query)
	}
	if len(q.Genres) > 0 {
		ids := make([]string, len(q.Genres))
		for i, g := range q.Genres {
			ids[i] = strconv.Itoa(g)
		}
		params.Set("genres", strings.Join(ids, ","))
	}
	if q.OrderBy != "" {
		params.Set("order_by", q.OrderBy)
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	params.Set("sfw", "true")

	resp, err := getJSON[ListResponse[Anime]](ctx, c, "/anime", params)
	if err != nil {
		return nil, fmt.Errorf("failed to search anime: %w", err)
	}
	return resp, nil
}

// AnimeFull retrieves /anime/{id}/full
func (c *Client) AnimeFull(ctx context.Context, id int) (*Anime, error) {
	resp, err := getJSON[ItemResponse[Anime]](ctx, c, fmt.Sprintf("/anime/%d/full", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get anime %d: %w", id, err)
	}
	return &resp.Data, nil
}

// AnimeRecommendations retrieves /anime/{id}/recommendations
func (c *Client) AnimeRecommendations(ctx context.Context, id int) ([]Recommendation, error) {
	resp, err := getJSON[ListResponse[Recommendation]](ctx, c, fmt.Sprintf("/anime/%d/recommendations", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendations for %d: %w", id, err)
	}
	return resp.Data, nil
}

// Genres retrieves the anime genre list
func (c *Client) Genres(ctx context.Context) ([]Genre, error) {
	resp, err := getJSON[ListResponse[Genre]](ctx, c, "/genres/anime", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get genres: %w", err)
	}
	return resp.Data, nil
}

// TopCharacters retrieves a page of /top/characters
func (c *Client) TopCharacters(ctx context.Context, page int) (*ListResponse[Character], error) {
	resp, err := getJSON[ListResponse[Character]](ctx, c, "/top/characters", c.pageParams(page))
	if err != nil {
		return nil, fmt.Errorf("failed to get top characters: %w", err)
	}
	return resp, nil
}

// CharacterFull retrieves /characters/{id}/full
func (c *Client) CharacterFull(ctx context.Context, id int) (*Character, error) {
	resp, err := getJSON[ItemResponse[Character]](ctx, c, fmt.Sprintf("/characters/%d/full", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get character %d: %w", id, err)
	}
	return &resp.Data, nil
}

// CharacterVoices retrieves /characters/{id}/voices
func (c *Client) CharacterVoices(ctx context.Context, id int) ([]VoiceActing, error) {
	resp, err := getJSON[ListResponse[VoiceActing]](ctx, c, fmt.Sprintf("/characters/%d/voices", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get voices for character %d: %w", id, err)
	}
	return resp.Data, nil
}

// TopPeople retrieves a page of /top/people
func (c *Client) TopPeople(ctx context.Context, page int) (*ListResponse[Person], error) {
	resp, err := getJSON[ListResponse[Person]](ctx, c, "/top/people", c.pageParams(page))
	if err != nil {
		return nil, fmt.Errorf("failed to get top people: %w", err)
	}
	return resp, nil
}

// PersonFull retrieves /people/{id}/full
func (c *Client) PersonFull(ctx context.Context, id int) (*Person, error) {
	resp, err := getJSON[ItemResponse[Person]](ctx, c, fmt.Sprintf("/people/%d/full", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get person %d: %w", id, err)
	}
	return &resp.Data, nil
}

// ProducerFull retrieves /producers/{id}/full
func (c *Client) ProducerFull(ctx context.Context, id int) (*Producer, error) {
	resp, err := getJSON[ItemResponse[Producer]](ctx, c, fmt.Sprintf("/producers/%d/full", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get producer %d: %w", id, err)
	}
	return &resp.Data, nil
}
