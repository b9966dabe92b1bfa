// Package recommend builds recommendations seeded from a user's library.
//
// Requests are issued one at a time with a fixed pause between them to stay
// under the Jikan rate limit.
package recommend

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
	"github.com/Tarcizioo/portal-animes-V2-sub001/jikan"
)

const (
	DefaultSeeds        = 3
	DefaultPerSeed      = 10
	DefaultLimit        = 15
	DefaultRequestDelay = 400 * time.Millisecond
)

// Source is the subset of the Jikan API the engine needs
type Source interface {
	AnimeRecommendations(ctx context.Context, id int) ([]jikan.Recommendation, error)
	AnimeFull(ctx context.Context, id int) (*jikan.Anime, error)
}

// Recommendation is one suggested title
type Recommendation struct {
	ID             int      `json:"id"`
	Title          string   `json:"title"`
	Image          string   `json:"image"`
	Votes          int      `json:"votes"`
	SeedID         int      `json:"seedId"`
	Score          *float64 `json:"score"`
	ScoreAvailable bool     `json:"scoreAvailable"`
}

// Config tunes the engine
type Config struct {
	Seeds   int
	PerSeed int
	Limit   int
	Delay   time.Duration
}

// Engine produces recommendations
type Engine struct {
	src    Source
	cfg    Config
	logger zerolog.Logger
	wait   func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an engine; zero config fields take the defaults
func NewEngine(src Source, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.Seeds <= 0 {
		cfg.Seeds = DefaultSeeds
	}
	if cfg.PerSeed <= 0 {
		cfg.PerSeed = DefaultPerSeed
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	switch {
	case cfg.Delay == 0:
		cfg.Delay = DefaultRequestDelay
	case cfg.Delay < 0:
		// negative disables the pause
		cfg.Delay = 0
	}
	return &Engine{
		src:    src,
		cfg:    cfg,
		logger: logger.With().Str("component", "recommend").Logger(),
		wait:   sleep,
	}
}

var statusPriority = map[anime.Status]int{
	anime.StatusWatching:    0,
	anime.StatusCompleted:   1,
	anime.StatusPlanToWatch: 2,
	anime.StatusPaused:      3,
	anime.StatusDropped:     4,
}

func priority(s anime.Status) int {
	if p, ok := statusPriority[s]; ok {
		return p
	}
	return len(statusPriority)
}

// PickSeeds orders the library by favorite flag, then user score descending,
// then status priority, and returns the first n entries
func PickSeeds(library []anime.LibraryEntry, n int) []anime.LibraryEntry {
	sorted := append([]anime.LibraryEntry(nil), library...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.IsFavorite != b.IsFavorite {
			return a.IsFavorite
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return priority(a.Status) < priority(b.Status)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Recommend returns up to Limit titles not already in the library, most voted
// first. A failed seed is skipped; a failed score lookup leaves that item with
// ScoreAvailable false.
func (e *Engine) Recommend(ctx context.Context, library []anime.LibraryEntry) ([]Recommendation, error) {
	seeds := PickSeeds(library, e.cfg.Seeds)
	if len(seeds) == 0 {
		return nil, nil
	}

	exclude := make(map[int]struct{}, len(library))
	for _, entry := range library {
		exclude[entry.ID] = struct{}{}
	}

	var collected []Recommendation
	requests := 0

	for _, seed := range seeds {
		if err := e.pause(ctx, &requests); err != nil {
			return nil, err
		}

		recs, err := e.src.AnimeRecommendations(ctx, seed.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn().Err(err).Int("seed", seed.ID).Msg("Failed to load recommendations for seed")
			continue
		}

		collected = append(collected, e.topForSeed(seed.ID, recs, exclude)...)
	}

	sort.SliceStable(collected, func(i, j int) bool { return collected[i].Votes > collected[j].Votes })
	if len(collected) > e.cfg.Limit {
		collected = collected[:e.cfg.Limit]
	}

	for i := range collected {
		if err := e.pause(ctx, &requests); err != nil {
			return nil, err
		}
		full, err := e.src.AnimeFull(ctx, collected[i].ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Debug().Err(err).Int("anime", collected[i].ID).Msg("Score unavailable")
			continue
		}
		collected[i].Score = full.Score
		collected[i].ScoreAvailable = full.Score != nil
	}

	return collected, nil
}

// topForSeed takes the PerSeed most voted recommendations not excluded, and
// adds them to exclude
func (e *Engine) topForSeed(seedID int, recs []jikan.Recommendation, exclude map[int]struct{}) []Recommendation {
	sorted := append([]jikan.Recommendation(nil), recs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Votes > sorted[j].Votes })

	var out []Recommendation
	for _, r := range sorted {
		if len(out) == e.cfg.PerSeed {
			break
		}
		id := r.Entry.MalID
		if _, skip := exclude[id]; skip {
			continue
		}
		exclude[id] = struct{}{}
		out = append(out, Recommendation{
			ID:     id,
			Title:  r.Entry.Title,
			Image:  r.Entry.Images.Best(),
			Votes:  r.Votes,
			SeedID: seedID,
		})
	}
	return out
}

// pause waits Delay before every request but the first
func (e *Engine) pause(ctx context.Context, requests *int) error {
	*requests++
	if *requests == 1 || e.cfg.Delay == 0 {
		return ctx.Err()
	}
	return e.wait(ctx, e.cfg.Delay)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
