package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Tarcizioo/portal-animes-V2-sub001/compat"
)

func (s *Server) listComments(c *gin.Context) {
	if s.deps.Comments == nil {
		abortWithError(c, errNotConfigured)
		return
	}
	animeID, ok := idParam(c, "id")
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		badRequest(c, "limit must be a non-negative integer")
		return
	}

	comments, next, err := s.deps.Comments.List(c.Request.Context(), animeID, limit, c.Query("cursor"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": comments, "next": next})
}

// CommentRequest is the body of a new comment
type CommentRequest struct {
	Content string `json:"content"`
}

func (s *Server) postComment(c *gin.Context) {
	if s.deps.Comments == nil {
		abortWithError(c, errNotConfigured)
		return
	}
	animeID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}

	comment, err := s.deps.Comments.Post(c.Request.Context(), identity(c), animeID, req.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (s *Server) deleteComment(c *gin.Context) {
	if s.deps.Comments == nil {
		abortWithError(c, errNotConfigured)
		return
	}
	if err := s.deps.Comments.Delete(c.Request.Context(), identity(c).UID, c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) searchUsers(c *gin.Context) {
	if s.deps.Profiles == nil {
		abortWithError(c, errNotConfigured)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		badRequest(c, "limit must be a non-negative integer")
		return
	}
	users, err := s.deps.Profiles.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users})
}

func (s *Server) userProfile(c *gin.Context) {
	if s.deps.Profiles == nil {
		abortWithError(c, errNotConfigured)
		return
	}
	profile, err := s.deps.Profiles.Public(c.Request.Context(), c.Param("uid"), identity(c).UID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// CompatResponse is the compatibility between the caller and another user.
// Available is false when either library is empty.
type CompatResponse struct {
	UID       string            `json:"uid"`
	Available bool              `json:"available"`
	Breakdown *compat.Breakdown `json:"breakdown,omitempty"`
}

func (s *Server) compatibility(c *gin.Context) {
	if s.deps.Profiles == nil {
		abortWithError(c, errNotConfigured)
		return
	}
	viewer := identity(c).UID
	other := c.Param("uid")
	ctx := c.Request.Context()

	if _, err := s.deps.Profiles.Public(ctx, other, viewer); err != nil {
		abortWithError(c, err)
		return
	}

	lib := session(c).Library
	if !ready(c, lib.WaitReady) {
		return
	}
	mine := lib.Entries()

	theirs, err := s.deps.Profiles.Library(ctx, other)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := CompatResponse{UID: other}
	if bd, ok := compat.Compare(viewer, mine, theirs); ok {
		resp.Available = true
		resp.Breakdown = &bd
	}
	c.JSON(http.StatusOK, resp)
}
