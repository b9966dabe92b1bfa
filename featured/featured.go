// Package featured picks the home page hero titles, one per category.
package featured

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
	"github.com/Tarcizioo/portal-animes-V2-sub001/jikan"
)

// Category is a hero slot
type Category string

const (
	CategoryRanking    Category = "ranking"
	CategoryPopularity Category = "popularity"
	CategoryFavorites  Category = "favorites"
	CategorySeasonal   Category = "seasonal"
)

// Order is the claim priority: earlier categories pick first
var Order = []Category{CategoryRanking, CategoryPopularity, CategoryFavorites, CategorySeasonal}

// Pick is the title chosen for a category. Duplicate is set when every
// candidate was already claimed and the category fell back to its first entry.
type Pick struct {
	Category  Category      `json:"category"`
	Anime     anime.Summary `json:"anime"`
	Duplicate bool          `json:"duplicate,omitempty"`
}

// Aggregator loads the four category lists concurrently
type Aggregator struct {
	api    jikan.AnimeAPI
	logger zerolog.Logger
	now    func() time.Time
}

// NewAggregator creates an aggregator
func NewAggregator(api jikan.AnimeAPI, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		api:    api,
		logger: logger.With().Str("component", "featured").Logger(),
		now:    time.Now,
	}
}

func (a *Aggregator) load(ctx context.Context, c Category) ([]jikan.Anime, error) {
	var resp *jikan.ListResponse[jikan.Anime]
	var err error
	switch c {
	case CategoryRanking:
		resp, err = a.api.TopAnime(ctx, jikan.TopFilterNone, 1)
	case CategoryPopularity:
		resp, err = a.api.TopAnime(ctx, jikan.TopFilterPopularity, 1)
	case CategoryFavorites:
		resp, err = a.api.TopAnime(ctx, jikan.TopFilterFavorite, 1)
	case CategorySeasonal:
		resp, err = a.api.SeasonNow(ctx, 1)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return resp.Data, nil
}

// Featured fetches every category and returns one pick per category that
// produced results, in Order. A failed or empty category is skipped.
func (a *Aggregator) Featured(ctx context.Context) ([]Pick, error) {
	lists := make([][]anime.Summary, len(Order))
	now := a.now()

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range Order {
		i, c := i, c
		g.Go(func() error {
			data, err := a.load(gctx, c)
			if err != nil {
				// one category failing leaves the others usable
				a.logger.Warn().Err(err).Str("category", string(c)).Msg("Failed to load featured category")
				return nil
			}
			lists[i] = anime.SummariesFromAnime(data, now)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Select(lists), nil
}

// Select picks one entry per category list, indexed like Order. Each category
// takes its first entry not claimed by an earlier category. When all of its
// entries are claimed it takes its first entry anyway, so the result can hold
// the same anime twice.
func Select(lists [][]anime.Summary) []Pick {
	claimed := make(map[int]struct{})
	var picks []Pick

	for i, list := range lists {
		if len(list) == 0 || i >= len(Order) {
			continue
		}

		pick := Pick{Category: Order[i], Anime: list[0], Duplicate: true}
		for _, s := range list {
			if _, taken := claimed[s.ID]; !taken {
				pick.Anime = s
				pick.Duplicate = false
				break
			}
		}

		claimed[pick.Anime.ID] = struct{}{}
		picks = append(picks, pick)
	}
	return picks
}
