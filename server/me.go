package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
	"github.com/Tarcizioo/portal-animes-V2-sub001/filter"
	"github.com/Tarcizioo/portal-animes-V2-sub001/store"
	"github.com/Tarcizioo/portal-animes-V2-sub001/usersync"
)

const ctxSession = "session"

// withSession attaches the caller's synced collections for the duration of
// the request
func (s *Server) withSession(c *gin.Context) {
	if s.deps.Sessions == nil {
		abortWithError(c, errNotConfigured)
		return
	}
	sess, release, err := s.deps.Sessions.Acquire(identity(c).UID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer release()

	c.Set(ctxSession, sess)
	c.Next()
}

func session(c *gin.Context) *usersync.Session {
	return c.MustGet(ctxSession).(*usersync.Session)
}

// ready waits for the first snapshot of a collection
func ready(c *gin.Context, wait func(ctx context.Context) error) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()
	if err := wait(ctx); err != nil {
		abortWithError(c, err)
		return false
	}
	return true
}

func (s *Server) me(c *gin.Context) {
	if s.deps.Profiles == nil {
		c.JSON(http.StatusOK, anime.UserProfile{UID: identity(c).UID, DisplayName: identity(c).DisplayName()})
		return
	}
	profile, err := s.deps.Profiles.Ensure(c.Request.Context(), identity(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) updateProfile(c *gin.Context) {
	if s.deps.Profiles == nil {
		abortWithError(c, errNotConfigured)
		return
	}
	var req store.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	id := identity(c)
	ctx := c.Request.Context()

	if _, err := s.deps.Profiles.Ensure(ctx, id); err != nil {
		abortWithError(c, err)
		return
	}
	if err := s.deps.Profiles.Update(ctx, id.UID, req); err != nil {
		abortWithError(c, err)
		return
	}
	profile, err := s.deps.Profiles.Ensure(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) deleteAccount(c *gin.Context) {
	if s.deps.Profiles == nil {
		abortWithError(c, errNotConfigured)
		return
	}
	uid := identity(c).UID
	ctx := c.Request.Context()

	// close live listeners before their documents disappear
	s.deps.Sessions.Drop(uid)

	deleted, err := s.deps.Profiles.DeleteAccount(ctx, uid)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if s.deps.Accounts != nil {
		if err := s.deps.Accounts.DeleteUser(ctx, uid); err != nil {
			abortWithError(c, err)
			return
		}
	}
	s.logger.Info().Str("uid", uid).Int("documents", deleted).Msg("Deleted account")
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// StatsResponse is the library summary with earned badges
type StatsResponse struct {
	Stats  anime.Stats   `json:"stats"`
	Badges []anime.Badge `json:"badges"`
}

func (s *Server) stats(c *gin.Context) {
	lib := session(c).Library
	if !ready(c, lib.WaitReady) {
		return
	}
	st := anime.ComputeStats(lib.Entries())

	if s.deps.Profiles != nil {
		if err := s.deps.Profiles.SaveStats(c.Request.Context(), identity(c).UID, st); err != nil {
			s.logger.Warn().Err(err).Str("uid", identity(c).UID).Msg("Failed to save profile stats")
		}
	}
	c.JSON(http.StatusOK, StatsResponse{Stats: st, Badges: anime.EarnedBadges(st)})
}

func (s *Server) listLibrary(c *gin.Context) {
	lib := session(c).Library
	if !ready(c, lib.WaitReady) {
		return
	}
	entries := lib.Entries()

	expression, err := filter.Resolve(c.Query("filter"), c.Query("preset"), s.deps.Presets, s.deps.DefaultPreset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if expression != "" {
		f, err := s.deps.Filters.Compile(expression)
		if err != nil {
			abortWithError(c, err)
			return
		}
		entries, err = s.evaluator.Evaluate(c.Request.Context(), f, entries)
		if err != nil {
			abortWithError(c, err)
			return
		}
	}

	if status := anime.Status(c.Query("status")); status != "" {
		if !status.Valid() {
			abortWithError(c, usersync.ErrInvalidStatus)
			return
		}
		kept := entries[:0:0]
		for _, e := range entries {
			if e.Status == status {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	c.JSON(http.StatusOK, gin.H{"items": entries})
}

func (s *Server) libraryEntry(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	lib := session(c).Library
	if !ready(c, lib.WaitReady) {
		return
	}
	entry, found := lib.Entry(id)
	if !found {
		abortWithError(c, usersync.ErrNotInLibrary)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// LibraryUpdate changes a library entry; absent fields are left alone. An
// anime not yet tracked is added first.
type LibraryUpdate struct {
	Status     *anime.Status `json:"status"`
	CurrentEp  *int          `json:"currentEp"`
	Score      *int          `json:"score"`
	IsFavorite *bool         `json:"isFavorite"`
}

func (s *Server) putLibraryEntry(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req LibraryUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		abortWithError(c, usersync.ErrInvalidStatus)
		return
	}
	if req.Score != nil && (*req.Score < 0 || *req.Score > 10) {
		abortWithError(c, usersync.ErrInvalidScore)
		return
	}

	ctx := c.Request.Context()
	lib := session(c).Library
	if !ready(c, lib.WaitReady) {
		return
	}

	code := http.StatusOK
	if _, tracked := lib.Entry(id); !tracked {
		a, err := s.deps.Catalog.AnimeFull(ctx, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		status := anime.StatusPlanToWatch
		if req.Status != nil {
			status = *req.Status
		}
		if _, err := lib.Add(ctx, anime.SummaryFromAnime(*a, s.now()), status); err != nil {
			abortWithError(c, err)
			return
		}
		req.Status = nil
		code = http.StatusCreated

		if req.CurrentEp != nil || req.Score != nil || req.IsFavorite != nil {
			if !ready(c, func(ctx context.Context) error { return waitForEntry(ctx, lib, id) }) {
				return
			}
		}
	}

	if err := applyLibraryUpdate(ctx, lib, id, req); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(code, gin.H{"id": id})
}

// waitForEntry blocks until a snapshot containing id arrives
func waitForEntry(ctx context.Context, lib *usersync.Library, id int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for items := range lib.Watch(ctx) {
		for _, e := range items {
			if e.ID == id {
				return nil
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return usersync.ErrNotInLibrary
}

func applyLibraryUpdate(ctx context.Context, lib *usersync.Library, id int, req LibraryUpdate) error {
	if req.Status != nil {
		if err := lib.SetStatus(ctx, id, *req.Status); err != nil {
			return err
		}
	}
	if req.CurrentEp != nil {
		if _, err := lib.UpdateProgress(ctx, id, *req.CurrentEp); err != nil {
			return err
		}
	}
	if req.Score != nil {
		if err := lib.SetScore(ctx, id, *req.Score); err != nil {
			return err
		}
	}
	if req.IsFavorite != nil {
		if err := lib.SetFavorite(ctx, id, *req.IsFavorite); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) removeLibraryEntry(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := session(c).Library.Remove(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) favoriteCharacters(c *gin.Context) {
	chars := session(c).Characters
	if !ready(c, chars.WaitReady) {
		return
	}
	items, _ := chars.Items()
	c.JSON(http.StatusOK, gin.H{"items": items, "cap": chars.Cap()})
}

// ToggleRequest identifies the character or studio to toggle
type ToggleRequest struct {
	ID    int    `json:"id" binding:"required,min=1"`
	Name  string `json:"name" binding:"required"`
	Image string `json:"image"`
}

func (s *Server) toggleCharacter(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "id and name are required")
		return
	}
	added, err := session(c).Characters.Toggle(c.Request.Context(), anime.FavoriteCharacter{
		ID:      req.ID,
		Name:    req.Name,
		Image:   req.Image,
		AddedAt: s.now().UTC(),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": req.ID, "added": added})
}

func (s *Server) followedStudios(c *gin.Context) {
	studios := session(c).Studios
	if !ready(c, studios.WaitReady) {
		return
	}
	items, _ := studios.Items()
	c.JSON(http.StatusOK, gin.H{"items": items, "cap": studios.Cap()})
}

func (s *Server) toggleStudio(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "id and name are required")
		return
	}
	added, err := session(c).Studios.Toggle(c.Request.Context(), anime.FollowedStudio{
		ID:      req.ID,
		Name:    req.Name,
		Image:   req.Image,
		AddedAt: s.now().UTC(),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": req.ID, "added": added})
}

func (s *Server) notifications(c *gin.Context) {
	notes := session(c).Notifications
	if !ready(c, notes.WaitReady) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": notes.List(), "unread": notes.UnreadCount()})
}

func (s *Server) markRead(c *gin.Context) {
	if err := session(c).Notifications.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) markAllRead(c *gin.Context) {
	notes := session(c).Notifications
	if !ready(c, notes.WaitReady) {
		return
	}
	n, err := notes.MarkAllRead(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (s *Server) recommendations(c *gin.Context) {
	if s.deps.Recommender == nil {
		c.JSON(http.StatusOK, gin.H{"items": []any{}})
		return
	}
	lib := session(c).Library
	if !ready(c, lib.WaitReady) {
		return
	}
	recs, err := s.deps.Recommender.Recommend(c.Request.Context(), lib.Entries())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": recs})
}
