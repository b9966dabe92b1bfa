// Package compat scores how similar two anime libraries are.
package compat

import (
	"math"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
)

const (
	sharedWeight   = 50
	genreWeight    = 30
	affinityWeight = 20
)

// Breakdown is the per-component result, each already weighted
type Breakdown struct {
	Score      int     `json:"score"`
	Shared     float64 `json:"shared"`
	Genre      float64 `json:"genre"`
	Affinity   float64 `json:"affinity"`
	SharedIDs  []int   `json:"sharedIds"`
	MeanScoreA float64 `json:"meanScoreA"`
	MeanScoreB float64 `json:"meanScoreB"`
}

// Score returns the 0..100 compatibility of libraries a and b as seen by
// viewerUID. ok is false when the viewer is anonymous or either library is
// empty.
func Score(viewerUID string, a, b []anime.LibraryEntry) (int, bool) {
	bd, ok := Compare(viewerUID, a, b)
	if !ok {
		return 0, false
	}
	return bd.Score, true
}

// Compare is Score with the component breakdown
func Compare(viewerUID string, a, b []anime.LibraryEntry) (Breakdown, bool) {
	if viewerUID == "" || len(a) == 0 || len(b) == 0 {
		return Breakdown{}, false
	}

	idsA := make(map[int]struct{}, len(a))
	for _, e := range a {
		idsA[e.ID] = struct{}{}
	}
	idsB := make(map[int]struct{}, len(b))
	var shared []int
	for _, e := range b {
		if _, dup := idsB[e.ID]; dup {
			continue
		}
		idsB[e.ID] = struct{}{}
		if _, ok := idsA[e.ID]; ok {
			shared = append(shared, e.ID)
		}
	}

	var bd Breakdown
	bd.SharedIDs = shared
	bd.Shared = float64(len(shared)) / float64(min(len(idsA), len(idsB))) * sharedWeight
	bd.Genre = jaccard(genres(a), genres(b)) * genreWeight

	meanA, okA := meanScore(a)
	meanB, okB := meanScore(b)
	bd.MeanScoreA, bd.MeanScoreB = meanA, meanB
	if okA && okB {
		bd.Affinity = math.Max(0, 1-math.Abs(meanA-meanB)/10) * affinityWeight
	}

	total := bd.Shared + bd.Genre + bd.Affinity
	bd.Score = int(math.Round(math.Min(100, total)))
	return bd, true
}

func genres(lib []anime.LibraryEntry) map[string]struct{} {
	out := make(map[string]struct{})
	for _, e := range lib {
		for _, g := range e.Genres {
			out[g] = struct{}{}
		}
	}
	return out
}

// jaccard is |a∩b| / |a∪b|, 0 when both are empty
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// meanScore averages nonzero scores; ok is false when nothing is scored
func meanScore(lib []anime.LibraryEntry) (float64, bool) {
	sum, n := 0, 0
	for _, e := range lib {
		if e.Score > 0 {
			sum += e.Score
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}
