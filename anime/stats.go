package anime

// ComputeStats aggregates a library into profile counters. MeanScore only
// counts scored entries.
func ComputeStats(entries []LibraryEntry) Stats {
	var st Stats
	var scoreSum, scored int

	for _, e := range entries {
		st.Total++
		switch e.Status {
		case StatusWatching:
			st.Watching++
		case StatusCompleted:
			st.Completed++
		case StatusPlanToWatch:
			st.PlanToWatch++
		case StatusPaused:
			st.Paused++
		case StatusDropped:
			st.Dropped++
		}
		if e.IsFavorite {
			st.Favorites++
		}
		st.EpisodesWatched += e.CurrentEp
		if e.Score > 0 {
			scoreSum += e.Score
			scored++
		}
	}

	if scored > 0 {
		st.MeanScore = float64(scoreSum) / float64(scored)
	}
	return st
}

// Badge is an achievement unlocked by library activity
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type badgeRule struct {
	badge  Badge
	earned func(Stats) bool
}

var badgeRules = []badgeRule{
	{Badge{"first_steps", "First Steps", "Add your first anime"}, func(s Stats) bool { return s.Total >= 1 }},
	{Badge{"collector", "Collector", "Track 50 anime"}, func(s Stats) bool { return s.Total >= 50 }},
	{Badge{"finisher", "Finisher", "Complete 10 anime"}, func(s Stats) bool { return s.Completed >= 10 }},
	{Badge{"marathoner", "Marathoner", "Watch 500 episodes"}, func(s Stats) bool { return s.EpisodesWatched >= 500 }},
	{Badge{"devoted", "Devoted", "Mark 5 favorites"}, func(s Stats) bool { return s.Favorites >= 5 }},
}

// EarnedBadges returns every badge the stats unlock, in rule order
func EarnedBadges(st Stats) []Badge {
	var out []Badge
	for _, r := range badgeRules {
		if r.earned(st) {
			out = append(out, r.badge)
		}
	}
	return out
}

// NewBadges returns earned badges whose ids are not in known. Used to announce
// each achievement once.
func NewBadges(earned []Badge, known []string) []Badge {
	seen := make(map[string]struct{}, len(known))
	for _, id := range known {
		seen[id] = struct{}{}
	}
	var out []Badge
	for _, b := range earned {
		if _, ok := seen[b.ID]; !ok {
			out = append(out, b)
		}
	}
	return out
}
