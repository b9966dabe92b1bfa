package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
	"github.com/Tarcizioo/portal-animes-V2-sub001/jikan"
	"github.com/Tarcizioo/portal-animes-V2-sub001/pager"
)

// PageResponse is one page of a paginated listing
type PageResponse[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	HasMore bool `json:"hasMore"`
}

func pageResponse[T any](p pager.Page[T], page, pageSize int) PageResponse[T] {
	hasMore := len(p.Items) >= pageSize
	if p.HasMore != nil {
		hasMore = *p.HasMore
	}
	return PageResponse[T]{Items: p.Items, Page: page, HasMore: hasMore}
}

func pageParam(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("page", "1")
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		badRequest(c, "page must be a positive integer")
		return 0, false
	}
	return page, true
}

func idParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		badRequest(c, fmt.Sprintf("%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

func parseTopFilter(raw string) (jikan.TopFilter, bool) {
	f := jikan.TopFilter(raw)
	return f, f.Valid()
}

func (s *Server) topAnime(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	topFilter, ok := parseTopFilter(c.Query("filter"))
	if !ok {
		badRequest(c, "filter must be one of airing, upcoming, bypopularity, favorite")
		return
	}

	resp, err := s.deps.Catalog.TopAnime(c.Request.Context(), topFilter, page)
	if err != nil {
		abortWithError(c, err)
		return
	}
	now := s.now()
	p := pager.Page[anime.Summary]{Items: anime.SummariesFromAnime(resp.Data, now)}
	if more, ok := resp.HasMore(); ok {
		p.HasMore = &more
	}
	c.JSON(http.StatusOK, pageResponse(p, page, s.opts.PageSize))
}

func (s *Server) seasonNow(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	resp, err := s.deps.Catalog.SeasonNow(c.Request.Context(), page)
	if err != nil {
		abortWithError(c, err)
		return
	}
	p := pager.Page[anime.Summary]{Items: anime.SummariesFromAnime(resp.Data, s.now())}
	if more, ok := resp.HasMore(); ok {
		p.HasMore = &more
	}
	c.JSON(http.StatusOK, pageResponse(p, page, s.opts.PageSize))
}

// parseGenres accepts repeated and comma separated genre ids
func parseGenres(values []string) ([]int, error) {
	var out []int
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil || id < 1 {
				return nil, fmt.Errorf("invalid genre id %q", part)
			}
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Server) searchAnime(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	genres, err := parseGenres(c.QueryArray("genres"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	f := pager.CatalogFilter{
		Query:   strings.TrimSpace(c.Query("q")),
		Genres:  genres,
		OrderBy: c.Query("order_by"),
		Sort:    c.Query("sort"),
		Status:  c.Query("status"),
		Type:    c.Query("type"),
	}
	if f.Sort != "" && f.Sort != "asc" && f.Sort != "desc" {
		badRequest(c, "sort must be asc or desc")
		return
	}

	fetch := pager.CatalogSource(s.deps.Catalog, s.opts.PageSize)
	p, err := fetch(c.Request.Context(), f, page)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(p, page, s.opts.PageSize))
}

// AnimeDetail is the anime page payload
type AnimeDetail struct {
	Summary anime.Summary `json:"summary"`
	Anime   *jikan.Anime  `json:"anime"`
}

func (s *Server) animeDetail(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	a, err := s.deps.Catalog.AnimeFull(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, AnimeDetail{Summary: anime.SummaryFromAnime(*a, s.now()), Anime: a})
}

func (s *Server) genres(c *gin.Context) {
	genres, err := s.deps.Catalog.Genres(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": genres})
}

func (s *Server) featured(c *gin.Context) {
	if s.deps.Featured == nil {
		c.JSON(http.StatusOK, gin.H{"items": []any{}})
		return
	}
	picks, err := s.deps.Featured.Featured(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": picks})
}

func (s *Server) topCharacters(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	p, err := pager.CharacterSource(s.deps.Catalog)(c.Request.Context(), struct{}{}, page)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(p, page, s.opts.PageSize))
}

func (s *Server) characterDetail(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ch, err := s.deps.Catalog.CharacterFull(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	voices, err := s.deps.Catalog.CharacterVoices(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Int("character", id).Msg("Failed to load voice actors")
		voices = nil
	}
	c.JSON(http.StatusOK, anime.CharacterFromJikan(*ch, voices))
}

func (s *Server) topPeople(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	p, err := pager.PeopleSource(s.deps.Catalog)(c.Request.Context(), struct{}{}, page)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(p, page, s.opts.PageSize))
}

func (s *Server) personDetail(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := s.deps.Catalog.PersonFull(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, anime.PersonFromJikan(*p))
}

func (s *Server) studioDetail(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := s.deps.Catalog.ProducerFull(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, anime.StudioFromProducer(*p))
}
