package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
	"github.com/Tarcizioo/portal-animes-V2-sub001/filter"
	"github.com/Tarcizioo/portal-animes-V2-sub001/jikan"
	"github.com/Tarcizioo/portal-animes-V2-sub001/store"
	"github.com/Tarcizioo/portal-animes-V2-sub001/usersync"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	aliceToken = "token-alice"
	bobToken   = "token-bob"
)

type fakeVerifier map[string]store.Identity

func (f fakeVerifier) Verify(_ context.Context, token string) (store.Identity, error) {
	id, ok := f[token]
	if !ok {
		return store.Identity{}, errors.New("invalid token")
	}
	return id, nil
}

type fakeCatalog struct {
	mu       sync.Mutex
	anime    map[int]jikan.Anime
	top      []jikan.Anime
	topErr   error
	searches []jikan.SearchQuery
}

func (f *fakeCatalog) TopAnime(_ context.Context, _ jikan.TopFilter, page int) (*jikan.ListResponse[jikan.Anime], error) {
	if f.topErr != nil {
		return nil, f.topErr
	}
	return &jikan.ListResponse[jikan.Anime]{
		Data:       f.top,
		Pagination: &jikan.Pagination{HasNextPage: page < 3, CurrentPage: page},
	}, nil
}

func (f *fakeCatalog) SeasonNow(context.Context, int) (*jikan.ListResponse[jikan.Anime], error) {
	return &jikan.ListResponse[jikan.Anime]{Data: f.top}, nil
}

func (f *fakeCatalog) SearchAnime(_ context.Context, q jikan.SearchQuery) (*jikan.ListResponse[jikan.Anime], error) {
	f.mu.Lock()
	f.searches = append(f.searches, q)
	f.mu.Unlock()
	return &jikan.ListResponse[jikan.Anime]{Data: f.top[:1]}, nil
}

func (f *fakeCatalog) AnimeFull(_ context.Context, id int) (*jikan.Anime, error) {
	a, ok := f.anime[id]
	if !ok {
		return nil, &jikan.HTTPError{StatusCode: http.StatusNotFound, Endpoint: fmt.Sprintf("/anime/%d/full", id)}
	}
	return &a, nil
}

func (f *fakeCatalog) AnimeRecommendations(context.Context, int) ([]jikan.Recommendation, error) {
	return nil, nil
}

func (f *fakeCatalog) Genres(context.Context) ([]jikan.Genre, error) { return nil, nil }

func (f *fakeCatalog) TopCharacters(context.Context, int) (*jikan.ListResponse[jikan.Character], error) {
	return &jikan.ListResponse[jikan.Character]{}, nil
}

func (f *fakeCatalog) CharacterFull(_ context.Context, id int) (*jikan.Character, error) {
	return &jikan.Character{MalID: id, Name: "Spike Spiegel"}, nil
}

func (f *fakeCatalog) CharacterVoices(context.Context, int) ([]jikan.VoiceActing, error) {
	return nil, jikan.ErrRateLimited
}

func (f *fakeCatalog) TopPeople(context.Context, int) (*jikan.ListResponse[jikan.Person], error) {
	return &jikan.ListResponse[jikan.Person]{}, nil
}

func (f *fakeCatalog) PersonFull(_ context.Context, id int) (*jikan.Person, error) {
	return &jikan.Person{MalID: id, Name: "Koichi Yamadera"}, nil
}

func (f *fakeCatalog) ProducerFull(_ context.Context, id int) (*jikan.Producer, error) {
	return &jikan.Producer{MalID: id}, nil
}

type fakeComments struct {
	posted []anime.Comment
}

func (f *fakeComments) List(_ context.Context, animeID, _ int, _ string) ([]anime.Comment, string, error) {
	var out []anime.Comment
	for _, c := range f.posted {
		if c.AnimeID == animeID {
			out = append(out, c)
		}
	}
	return out, "", nil
}

func (f *fakeComments) Post(_ context.Context, author store.Identity, animeID int, content string) (anime.Comment, error) {
	content, err := store.NormalizeComment(content)
	if err != nil {
		return anime.Comment{}, err
	}
	c := anime.Comment{ID: fmt.Sprintf("c%d", len(f.posted)+1), AnimeID: animeID, UserID: author.UID, Content: content}
	f.posted = append(f.posted, c)
	return c, nil
}

func (f *fakeComments) Delete(_ context.Context, uid, id string) error {
	for i, c := range f.posted {
		if c.ID == id {
			if c.UserID != uid {
				return store.ErrForbidden
			}
			f.posted = append(f.posted[:i], f.posted[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("comment %s: %w", id, store.ErrNotFound)
}

type fakeProfiles struct {
	profiles  map[string]*anime.UserProfile
	libraries map[string][]anime.LibraryEntry
	deleted   []string
}

func (f *fakeProfiles) Ensure(_ context.Context, id store.Identity) (*anime.UserProfile, error) {
	if p, ok := f.profiles[id.UID]; ok {
		return p, nil
	}
	p := &anime.UserProfile{UID: id.UID, DisplayName: id.DisplayName()}
	f.profiles[id.UID] = p
	return p, nil
}

func (f *fakeProfiles) Update(_ context.Context, uid string, u store.ProfileUpdate) error {
	fields, err := u.Fields()
	if err != nil {
		return err
	}
	if name, ok := fields["displayName"].(string); ok {
		f.profiles[uid].DisplayName = name
	}
	return nil
}

func (f *fakeProfiles) SaveStats(_ context.Context, uid string, st anime.Stats) error {
	if p, ok := f.profiles[uid]; ok {
		p.Stats = st
	}
	return nil
}

func (f *fakeProfiles) Public(_ context.Context, uid, viewer string) (*anime.UserProfile, error) {
	p, ok := f.profiles[uid]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.IsPrivate && uid != viewer {
		return nil, store.ErrPrivateProfile
	}
	return p, nil
}

func (f *fakeProfiles) Search(context.Context, string, int) ([]anime.UserProfile, error) {
	return []anime.UserProfile{}, nil
}

func (f *fakeProfiles) Library(_ context.Context, uid string) ([]anime.LibraryEntry, error) {
	return f.libraries[uid], nil
}

func (f *fakeProfiles) DeleteAccount(_ context.Context, uid string) (int, error) {
	f.deleted = append(f.deleted, uid)
	return 3, nil
}

type testEnv struct {
	server   *Server
	catalog  *fakeCatalog
	comments *fakeComments
	profiles *fakeProfiles
	library  *usersync.MemorySource[anime.LibraryEntry]
	chars    *usersync.MemorySource[anime.FavoriteCharacter]
	notes    *usersync.MemorySource[anime.Notification]
	sessions *usersync.Sessions
	presets  map[string]string
}

func newTestEnv(t *testing.T, favoriteCap int) *testEnv {
	t.Helper()

	env := &testEnv{
		catalog: &fakeCatalog{
			anime: map[int]jikan.Anime{
				5: {MalID: 5, Title: "Cowboy Bebop", Episodes: 26, Year: 1998, Genres: []jikan.Named{{Name: "Action"}}},
				7: {MalID: 7, Title: "Trigun", Episodes: 12, Year: 1998},
			},
			top: []jikan.Anime{{MalID: 5, Title: "Cowboy Bebop"}, {MalID: 7, Title: "Trigun"}},
		},
		comments: &fakeComments{},
		profiles: &fakeProfiles{
			profiles:  map[string]*anime.UserProfile{},
			libraries: map[string][]anime.LibraryEntry{},
		},
		library: usersync.NewMemorySource[anime.LibraryEntry](),
		chars:   usersync.NewMemorySource[anime.FavoriteCharacter](),
		notes:   usersync.NewMemorySource[anime.Notification](),
		presets: map[string]string{"watching": `Status == "watching"`},
	}

	env.sessions = usersync.NewSessions(usersync.Sources{
		Library:       env.library,
		Characters:    env.chars,
		Studios:       usersync.NewMemorySource[anime.FollowedStudio](),
		Notifications: env.notes,
	}, usersync.SessionConfig{FavoriteCap: favoriteCap}, zerolog.Nop())
	t.Cleanup(env.sessions.Close)

	srv, err := New(Deps{
		Catalog:  env.catalog,
		Sessions: env.sessions,
		Comments: env.comments,
		Profiles: env.profiles,
		Verifier: fakeVerifier{
			aliceToken: {UID: "alice", Name: "Alice"},
			bobToken:   {UID: "bob", Name: "Bob"},
		},
		Filters: filter.NewExprCompiler(filter.WithCache(8)),
		Presets: env.presets,
	}, Options{PageSize: 2}, zerolog.Nop())
	require.NoError(t, err)
	env.server = srv
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type listBody[T any] struct {
	Items  []T `json:"items"`
	Unread int `json:"unread"`
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{}, Options{}, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(Deps{Catalog: &fakeCatalog{}}, Options{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 6)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestID_ReusesValidHeader(t *testing.T) {
	env := newTestEnv(t, 6)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "0b8e8c50-2b0a-4b5c-9a5e-1d3f8f1e2a7c")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "0b8e8c50-2b0a-4b5c-9a5e-1d3f8f1e2a7c", rec.Header().Get(requestIDHeader))
}

func TestTopAnime(t *testing.T) {
	env := newTestEnv(t, 6)

	rec := env.do(t, http.MethodGet, "/api/anime/top?filter=airing&page=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[PageResponse[anime.Summary]](t, rec)
	assert.Equal(t, 2, page.Page)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Cowboy Bebop", page.Items[0].Title)

	rec = env.do(t, http.MethodGet, "/api/anime/top?page=3", "", nil)
	assert.False(t, decode[PageResponse[anime.Summary]](t, rec).HasMore)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/anime/top?filter=best", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/anime/top?page=0", "", nil).Code)
}

func TestSearchAnime_Params(t *testing.T) {
	env := newTestEnv(t, 6)

	rec := env.do(t, http.MethodGet, "/api/anime/search?q=bebop&genres=1,2&genres=4&order_by=score&sort=desc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, env.catalog.searches, 1)
	q := env.catalog.searches[0]
	assert.Equal(t, "bebop", q.Query)
	assert.Equal(t, []int{1, 2, 4}, q.Genres)
	assert.Equal(t, "score", q.OrderBy)
	assert.Equal(t, 2, q.Limit)

	// one result with no pagination metadata and page size 2 means no more
	assert.False(t, decode[PageResponse[anime.Summary]](t, rec).HasMore)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/anime/search?genres=x", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/anime/search?q=a&sort=up", "", nil).Code)
}

func TestCatalogErrors(t *testing.T) {
	env := newTestEnv(t, 6)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/anime/999", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/anime/abc", "", nil).Code)

	env.catalog.topErr = fmt.Errorf("%w: gave up", jikan.ErrRateLimited)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/api/anime/top", "", nil).Code)
}

func TestCharacterDetail_VoicesOptional(t *testing.T) {
	env := newTestEnv(t, 6)
	rec := env.do(t, http.MethodGet, "/api/characters/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Spike Spiegel", decode[anime.Character](t, rec).Name)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"auth", usersync.ErrAuthRequired, http.StatusUnauthorized},
		{"cap", &usersync.CapExceededError{Collection: "favorite characters", Cap: 6}, http.StatusConflict},
		{"not in library", usersync.ErrNotInLibrary, http.StatusNotFound},
		{"store not found", fmt.Errorf("profile x: %w", store.ErrNotFound), http.StatusNotFound},
		{"private", store.ErrPrivateProfile, http.StatusForbidden},
		{"forbidden", store.ErrForbidden, http.StatusForbidden},
		{"invalid score", usersync.ErrInvalidScore, http.StatusBadRequest},
		{"invalid comment", store.ErrInvalidComment, http.StatusBadRequest},
		{"filter", &filter.CompilationError{Expression: "x", Reason: "bad"}, http.StatusBadRequest},
		{"rate limited", jikan.ErrRateLimited, http.StatusServiceUnavailable},
		{"upstream 404", &jikan.HTTPError{StatusCode: 404}, http.StatusNotFound},
		{"upstream 500", &jikan.HTTPError{StatusCode: 500}, http.StatusBadGateway},
		{"network", &jikan.NetworkError{Endpoint: "/top/anime", Attempts: 3, Err: errors.New("reset")}, http.StatusBadGateway},
		{"not configured", errNotConfigured, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, statusClientClosedRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, 6)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/me/library", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/me/library", "forged", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/me/library", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/me/library?token="+aliceToken, "", nil).Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()))
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func libraryItems(t *testing.T, env *testEnv, query string) []anime.LibraryEntry {
	t.Helper()
	rec := env.do(t, http.MethodGet, "/api/me/library"+query, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[listBody[anime.LibraryEntry]](t, rec).Items
}

func TestLibraryFlow(t *testing.T) {
	env := newTestEnv(t, 6)

	rec := env.do(t, http.MethodPut, "/api/me/library/7", aliceToken, map[string]any{"status": "watching", "currentEp": 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		items := libraryItems(t, env, "")
		return len(items) == 1 && items[0].CurrentEp == 3
	}, 2*time.Second, 10*time.Millisecond)

	entry := libraryItems(t, env, "")[0]
	assert.Equal(t, "Trigun", entry.Title)
	assert.Equal(t, anime.StatusWatching, entry.Status)
	assert.Equal(t, 12, entry.TotalEp)

	// progress past the total completes the entry
	rec = env.do(t, http.MethodPut, "/api/me/library/7", aliceToken, map[string]any{"currentEp": 40})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Eventually(t, func() bool {
		items := libraryItems(t, env, "")
		return len(items) == 1 && items[0].Status == anime.StatusCompleted && items[0].CurrentEp == 12
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/me/library/7", aliceToken, map[string]any{"score": 11}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/me/library/7", aliceToken, map[string]any{"status": "binging"}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/api/me/library/999", aliceToken, map[string]any{}).Code)

	rec = env.do(t, http.MethodDelete, "/api/me/library/7", aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Eventually(t, func() bool { return len(libraryItems(t, env, "")) == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/me/library/7", aliceToken, nil).Code)
}

func TestLibraryFilters(t *testing.T) {
	env := newTestEnv(t, 6)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, env.library.Put(ctx, "alice", "1", anime.LibraryEntry{ID: 1, Title: "A", Status: anime.StatusWatching, Score: 9, UpdatedAt: now}))
	require.NoError(t, env.library.Put(ctx, "alice", "2", anime.LibraryEntry{ID: 2, Title: "B", Status: anime.StatusCompleted, Score: 6, UpdatedAt: now.Add(-time.Hour)}))
	require.NoError(t, env.library.Put(ctx, "bob", "3", anime.LibraryEntry{ID: 3, Title: "C", Status: anime.StatusWatching}))

	require.Len(t, libraryItems(t, env, ""), 2)

	items := libraryItems(t, env, "?filter="+url.QueryEscape("Score >= 8"))
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].ID)

	items = libraryItems(t, env, "?preset=watching")
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].Title)

	items = libraryItems(t, env, "?status=completed")
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].ID)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/me/library?preset=nope", aliceToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/me/library?filter="+url.QueryEscape("Score +"), aliceToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/me/library?status=binging", aliceToken, nil).Code)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, 6)
	ctx := context.Background()
	require.NoError(t, env.library.Put(ctx, "alice", "1", anime.LibraryEntry{ID: 1, Status: anime.StatusCompleted, CurrentEp: 12, TotalEp: 12, Score: 8}))
	env.do(t, http.MethodGet, "/api/me", aliceToken, nil)

	rec := env.do(t, http.MethodGet, "/api/me/stats", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[StatsResponse](t, rec)
	assert.Equal(t, 1, body.Stats.Completed)
	assert.Equal(t, 12, body.Stats.EpisodesWatched)
	assert.NotEmpty(t, body.Badges)
	assert.Equal(t, 1, env.profiles.profiles["alice"].Stats.Total)
}

func TestToggleCharacter_Cap(t *testing.T) {
	env := newTestEnv(t, 1)

	rec := env.do(t, http.MethodPost, "/api/me/favorites/characters/toggle", aliceToken, ToggleRequest{ID: 1, Name: "Spike"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode[map[string]any](t, rec)["added"])

	require.Eventually(t, func() bool { return len(env.chars.Snapshot("alice")) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/me/favorites/characters", aliceToken, nil)
		return len(decode[listBody[anime.FavoriteCharacter]](t, rec).Items) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec = env.do(t, http.MethodPost, "/api/me/favorites/characters/toggle", aliceToken, ToggleRequest{ID: 2, Name: "Faye"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "at most 1")
	assert.Len(t, env.chars.Snapshot("alice"), 1)

	// removal always works
	rec = env.do(t, http.MethodPost, "/api/me/favorites/characters/toggle", aliceToken, ToggleRequest{ID: 1, Name: "Spike"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["added"])

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/me/favorites/characters/toggle", aliceToken, map[string]any{"id": 3}).Code)
}

func TestNotifications(t *testing.T) {
	env := newTestEnv(t, 6)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, env.notes.Put(ctx, "alice", "n1", anime.Notification{ID: "n1", Type: anime.NotificationSystem, CreatedAt: base}))
	require.NoError(t, env.notes.Put(ctx, "alice", "n2", anime.Notification{ID: "n2", Type: anime.NotificationLike, CreatedAt: base.Add(time.Hour)}))

	rec := env.do(t, http.MethodGet, "/api/me/notifications", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[listBody[anime.Notification]](t, rec)
	require.Len(t, body.Items, 2)
	assert.Equal(t, "n2", body.Items[0].ID)
	assert.Equal(t, 2, body.Unread)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/api/me/notifications/n1/read", aliceToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/me/notifications/missing/read", aliceToken, nil).Code)

	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/me/notifications", aliceToken, nil)
		return decode[listBody[anime.Notification]](t, rec).Unread == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec = env.do(t, http.MethodPost, "/api/me/notifications/read", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["updated"])
}

func TestComments(t *testing.T) {
	env := newTestEnv(t, 6)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/anime/5/comments", "", CommentRequest{Content: "hi"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/anime/5/comments", aliceToken, CommentRequest{Content: "   "}).Code)

	rec := env.do(t, http.MethodPost, "/api/anime/5/comments", aliceToken, CommentRequest{Content: " See you space cowboy "})
	require.Equal(t, http.StatusCreated, rec.Code)
	posted := decode[anime.Comment](t, rec)
	assert.Equal(t, "See you space cowboy", posted.Content)

	rec = env.do(t, http.MethodGet, "/api/anime/5/comments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[listBody[anime.Comment]](t, rec).Items, 1)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, "/api/comments/"+posted.ID, bobToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/comments/"+posted.ID, aliceToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/comments/"+posted.ID, aliceToken, nil).Code)
}

func TestProfiles(t *testing.T) {
	env := newTestEnv(t, 6)

	rec := env.do(t, http.MethodGet, "/api/me", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", decode[anime.UserProfile](t, rec).DisplayName)

	rec = env.do(t, http.MethodPatch, "/api/me/profile", aliceToken, map[string]any{"displayName": "  Alice B "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Alice B", decode[anime.UserProfile](t, rec).DisplayName)

	long := strings.Repeat("x", store.MaxDisplayNameLength+1)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, "/api/me/profile", aliceToken, map[string]any{"displayName": long}).Code)

	env.profiles.profiles["alice"].IsPrivate = true
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/users/alice", bobToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/users/alice", "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/users/alice", aliceToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/users/nobody", "", nil).Code)
}

func TestCompatibility(t *testing.T) {
	env := newTestEnv(t, 6)
	ctx := context.Background()

	shared := anime.LibraryEntry{ID: 1, Status: anime.StatusCompleted, Score: 8, Genres: []string{"Action"}}
	require.NoError(t, env.library.Put(ctx, "alice", "1", shared))
	env.profiles.profiles["bob"] = &anime.UserProfile{UID: "bob"}
	env.profiles.libraries["bob"] = []anime.LibraryEntry{shared}

	rec := env.do(t, http.MethodGet, "/api/me/compat/bob", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[CompatResponse](t, rec)
	assert.True(t, body.Available)
	require.NotNil(t, body.Breakdown)
	assert.Equal(t, 100, body.Breakdown.Score)

	env.profiles.profiles["carol"] = &anime.UserProfile{UID: "carol"}
	rec = env.do(t, http.MethodGet, "/api/me/compat/carol", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[CompatResponse](t, rec).Available)

	env.profiles.profiles["carol"].IsPrivate = true
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/me/compat/carol", aliceToken, nil).Code)
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t, 6)
	env.do(t, http.MethodGet, "/api/me", aliceToken, nil)
	require.Equal(t, 1, env.sessions.Len())

	rec := env.do(t, http.MethodDelete, "/api/me", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"alice"}, env.profiles.deleted)
	assert.Equal(t, 0, env.sessions.Len())
}

func TestLiveLibrary(t *testing.T) {
	env := newTestEnv(t, 6)
	ts := httptest.NewServer(env.server.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/me/library/live?token=" + aliceToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var first LiveMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "library", first.Type)
	assert.Empty(t, first.Items)

	require.NoError(t, env.library.Put(context.Background(), "alice", "9", anime.LibraryEntry{ID: 9, Title: "Akira", Status: anime.StatusCompleted}))

	var next LiveMessage
	require.NoError(t, conn.ReadJSON(&next))
	require.Len(t, next.Items, 1)
	assert.Equal(t, "Akira", next.Items[0].Title)
	assert.Equal(t, 1, next.Stats.Completed)
}

func TestLiveLibrary_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, 6)
	ts := httptest.NewServer(env.server.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/me/library/live"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
