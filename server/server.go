// Package server exposes the catalog, per-user collections and social
// features over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
	"github.com/Tarcizioo/portal-animes-V2-sub001/featured"
	"github.com/Tarcizioo/portal-animes-V2-sub001/filter"
	"github.com/Tarcizioo/portal-animes-V2-sub001/jikan"
	"github.com/Tarcizioo/portal-animes-V2-sub001/querycache"
	"github.com/Tarcizioo/portal-animes-V2-sub001/recommend"
	"github.com/Tarcizioo/portal-animes-V2-sub001/store"
	"github.com/Tarcizioo/portal-animes-V2-sub001/usersync"
)

const readyTimeout = 10 * time.Second

// CommentStore persists anime comments
type CommentStore interface {
	List(ctx context.Context, animeID, limit int, cursor string) ([]anime.Comment, string, error)
	Post(ctx context.Context, author store.Identity, animeID int, content string) (anime.Comment, error)
	Delete(ctx context.Context, uid, commentID string) error
}

// ProfileStore persists user profiles
type ProfileStore interface {
	Ensure(ctx context.Context, id store.Identity) (*anime.UserProfile, error)
	Update(ctx context.Context, uid string, u store.ProfileUpdate) error
	SaveStats(ctx context.Context, uid string, stats anime.Stats) error
	Public(ctx context.Context, uid, viewerUID string) (*anime.UserProfile, error)
	Search(ctx context.Context, prefix string, limit int) ([]anime.UserProfile, error)
	Library(ctx context.Context, uid string) ([]anime.LibraryEntry, error)
	DeleteAccount(ctx context.Context, uid string) (int, error)
}

// AccountRemover deletes the sign-in account of a user
type AccountRemover interface {
	DeleteUser(ctx context.Context, uid string) error
}

// Deps are the services the handlers call
type Deps struct {
	Catalog     jikan.API
	Featured    *featured.Aggregator
	Recommender *recommend.Engine
	Sessions    *usersync.Sessions
	Comments    CommentStore
	Profiles    ProfileStore
	Verifier    TokenVerifier
	// Accounts is optional; when set, deleting an account also removes the
	// sign-in account
	Accounts AccountRemover
	Cache    *querycache.Cache

	Filters       filter.Compiler
	Presets       map[string]string
	DefaultPreset string
}

// Options configure the HTTP server
type Options struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	PageSize        int
}

// Server is the HTTP API
type Server struct {
	deps      Deps
	opts      Options
	logger    zerolog.Logger
	evaluator filter.Evaluator
	now       func() time.Time
	engine    *gin.Engine
}

// New wires the routes
func New(deps Deps, opts Options, logger zerolog.Logger) (*Server, error) {
	if deps.Catalog == nil {
		return nil, errors.New("server: catalog is required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("server: token verifier is required")
	}
	if deps.Filters == nil {
		deps.Filters = filter.NewExprCompiler(filter.WithCache(64))
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 24
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		deps:      deps,
		opts:      opts,
		logger:    logger.With().Str("component", "server").Logger(),
		evaluator: filter.NewConcurrentEvaluator(),
		now:       time.Now,
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(s.logger), Recovery(s.logger), CORS(s.opts.AllowedOrigins))

	r.GET("/healthz", s.health)

	optionalAuth := Authenticate(s.deps.Verifier, false)
	requireAuth := Authenticate(s.deps.Verifier, true)

	api := r.Group("/api")
	{
		api.GET("/anime/top", s.topAnime)
		api.GET("/anime/season", s.seasonNow)
		api.GET("/anime/search", s.searchAnime)
		api.GET("/anime/:id", s.animeDetail)
		api.GET("/anime/:id/comments", s.listComments)
		api.POST("/anime/:id/comments", requireAuth, s.postComment)
		api.GET("/genres", s.genres)
		api.GET("/featured", s.featured)
		api.GET("/characters", s.topCharacters)
		api.GET("/characters/:id", s.characterDetail)
		api.GET("/people", s.topPeople)
		api.GET("/people/:id", s.personDetail)
		api.GET("/studios/:id", s.studioDetail)
		api.GET("/users", s.searchUsers)
		api.GET("/users/:uid", optionalAuth, s.userProfile)
		api.DELETE("/comments/:id", requireAuth, s.deleteComment)
	}

	me := api.Group("/me", requireAuth, s.withSession)
	{
		me.GET("", s.me)
		me.PATCH("/profile", s.updateProfile)
		me.DELETE("", s.deleteAccount)
		me.GET("/stats", s.stats)

		me.GET("/library", s.listLibrary)
		me.GET("/library/live", s.liveLibrary)
		me.GET("/library/:id", s.libraryEntry)
		me.PUT("/library/:id", s.putLibraryEntry)
		me.DELETE("/library/:id", s.removeLibraryEntry)

		me.GET("/favorites/characters", s.favoriteCharacters)
		me.POST("/favorites/characters/toggle", s.toggleCharacter)
		me.GET("/studios", s.followedStudios)
		me.POST("/studios/toggle", s.toggleStudio)

		me.GET("/notifications", s.notifications)
		me.POST("/notifications/read", s.markAllRead)
		me.POST("/notifications/:id/read", s.markRead)

		me.GET("/recommendations", s.recommendations)
		me.GET("/compat/:uid", s.compatibility)
	}

	return r
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if s.deps.Cache != nil {
		resp["cache"] = s.deps.Cache.Stats()
	}
	if s.deps.Sessions != nil {
		resp["sessions"] = s.deps.Sessions.Len()
	}
	c.JSON(http.StatusOK, resp)
}
