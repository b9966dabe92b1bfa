package anime

import (
	"strings"
	"time"

	"github.com/Tarcizioo/portal-animes-V2-sub001/jikan"
)

// SummaryFromAnime converts a Jikan anime into a catalog summary. now decides
// whether the title counts as new (airing, or released this calendar year).
func SummaryFromAnime(a jikan.Anime, now time.Time) Summary {
	title := a.Title
	if title == "" {
		title = a.TitleEnglish
	}

	year := a.Year
	if year == 0 && a.Aired.From != nil {
		year = a.Aired.From.Year()
	}

	return Summary{
		ID:       a.MalID,
		Title:    title,
		Image:    a.Images.Best(),
		Year:     year,
		Score:    a.Score,
		Genres:   genreNames(a.Genres),
		Synopsis: a.Synopsis,
		Episodes: a.Episodes,
		IsNew:    a.Airing || (year != 0 && year == now.Year()),
	}
}

// SummariesFromAnime converts a list, keeping order
func SummariesFromAnime(list []jikan.Anime, now time.Time) []Summary {
	out := make([]Summary, 0, len(list))
	for _, a := range list {
		out = append(out, SummaryFromAnime(a, now))
	}
	return out
}

// CharacterFromJikan converts a Jikan character; voices may be nil
func CharacterFromJikan(c jikan.Character, voices []jikan.VoiceActing) Character {
	out := Character{
		ID:        c.MalID,
		Name:      c.Name,
		NameKanji: c.NameKanji,
		Image:     c.Images.Best(),
		Favorites: c.Favorites,
		About:     c.About,
	}
	for _, v := range voices {
		out.Voices = append(out.Voices, Person{
			ID:       v.Person.MalID,
			Name:     v.Person.Name,
			Image:    v.Person.Images.Best(),
			Language: v.Language,
		})
	}
	return out
}

// PersonFromJikan converts a Jikan person
func PersonFromJikan(p jikan.Person) Person {
	return Person{
		ID:        p.MalID,
		Name:      p.Name,
		Image:     p.Images.Best(),
		Favorites: p.Favorites,
		About:     p.About,
	}
}

// StudioFromProducer converts a Jikan producer
func StudioFromProducer(p jikan.Producer) Studio {
	return Studio{
		ID:        p.MalID,
		Name:      p.DefaultTitle(),
		Image:     p.Images.Best(),
		Favorites: p.Favorites,
		Count:     p.Count,
		About:     p.About,
	}
}

// EntryFromSummary builds a new library entry. The entry starts at episode 0.
func EntryFromSummary(s Summary, status Status, now time.Time) LibraryEntry {
	if !status.Valid() {
		status = StatusPlanToWatch
	}
	return LibraryEntry{
		ID:        s.ID,
		Title:     s.Title,
		Image:     s.Image,
		Status:    status,
		TotalEp:   s.Episodes,
		Genres:    append([]string(nil), s.Genres...),
		UpdatedAt: now,
	}
}

// MergeByID appends incoming to existing, de-duplicated by key. A repeated key
// keeps its first-seen position but takes the latest value.
func MergeByID[T Identified](existing, incoming []T) []T {
	out := make([]T, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))

	add := func(item T) {
		k := item.Key()
		if i, ok := index[k]; ok {
			out[i] = item
			return
		}
		index[k] = len(out)
		out = append(out, item)
	}

	for _, item := range existing {
		add(item)
	}
	for _, item := range incoming {
		add(item)
	}
	return out
}

// ClampEpisode bounds ep to [0, total]. A total of 0 means unknown and only
// the lower bound applies.
func ClampEpisode(ep, total int) int {
	if ep < 0 {
		return 0
	}
	if total > 0 && ep > total {
		return total
	}
	return ep
}

// ClampScore bounds a user score to [0, 10]
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 10:
		return 10
	}
	return score
}

func genreNames(genres []jikan.Named) []string {
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		if name := strings.TrimSpace(g.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
