package pager

import (
	"context"
	"time"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
	"github.com/Tarcizioo/portal-animes-V2-sub001/jikan"
)

// CatalogFilter selects catalog results. An empty filter lists the top ranking.
type CatalogFilter struct {
	Query   string `form:"q" json:"q,omitempty"`
	Genres  []int  `form:"genres" json:"genres,omitempty"`
	OrderBy string `form:"order_by" json:"orderBy,omitempty"`
	Sort    string `form:"sort" json:"sort,omitempty"`
	Status  string `form:"status" json:"status,omitempty"`
	Type    string `form:"type" json:"type,omitempty"`
}

func (f CatalogFilter) empty() bool {
	return f.Query == "" && len(f.Genres) == 0 && f.OrderBy == "" && f.Status == "" && f.Type == ""
}

func pageOf[T any, R any](resp *jikan.ListResponse[R], conv func(R) T) Page[T] {
	p := Page[T]{Items: make([]T, 0, len(resp.Data))}
	for _, r := range resp.Data {
		p.Items = append(p.Items, conv(r))
	}
	if more, ok := resp.HasMore(); ok {
		p.HasMore = &more
	}
	return p
}

// CatalogSource pages the anime catalog: top ranking for an empty filter,
// search otherwise
func CatalogSource(api jikan.AnimeAPI, limit int) FetchFunc[anime.Summary, CatalogFilter] {
	return func(ctx context.Context, f CatalogFilter, page int) (Page[anime.Summary], error) {
		var resp *jikan.ListResponse[jikan.Anime]
		var err error
		if f.empty() {
			resp, err = api.TopAnime(ctx, jikan.TopFilterNone, page)
		} else {
			resp, err = api.SearchAnime(ctx, jikan.SearchQuery{
				Query:   f.Query,
				Genres:  f.Genres,
				OrderBy: f.OrderBy,
				Sort:    f.Sort,
				Status:  f.Status,
				Type:    f.Type,
				Page:    page,
				Limit:   limit,
			})
		}
		if err != nil {
			return Page[anime.Summary]{}, err
		}
		now := time.Now()
		return pageOf(resp, func(a jikan.Anime) anime.Summary { return anime.SummaryFromAnime(a, now) }), nil
	}
}

// CharacterSource pages the top characters; the filter is unused
func CharacterSource(api jikan.CharacterAPI) FetchFunc[anime.Character, struct{}] {
	return func(ctx context.Context, _ struct{}, page int) (Page[anime.Character], error) {
		resp, err := api.TopCharacters(ctx, page)
		if err != nil {
			return Page[anime.Character]{}, err
		}
		return pageOf(resp, func(c jikan.Character) anime.Character { return anime.CharacterFromJikan(c, nil) }), nil
	}
}

// PeopleSource pages the top people; the filter is unused
func PeopleSource(api jikan.PeopleAPI) FetchFunc[anime.Person, struct{}] {
	return func(ctx context.Context, _ struct{}, page int) (Page[anime.Person], error) {
		resp, err := api.TopPeople(ctx, page)
		if err != nil {
			return Page[anime.Person]{}, err
		}
		return pageOf(resp, anime.PersonFromJikan), nil
	}
}
