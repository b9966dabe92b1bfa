package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
	"github.com/Tarcizioo/portal-animes-V2-sub001/compat"
	"github.com/Tarcizioo/portal-animes-V2-sub001/filter"
	"github.com/Tarcizioo/portal-animes-V2-sub001/recommend"
)

var userID string

// libraryCmd groups the library commands
var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Inspect a user's anime library",
}

// libraryListCmd represents the library list command
var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List library entries matching a filter",
	Long: `List the library entries of a user that match a filter expression.

Expressions see ID, Title, Status, CurrentEp, TotalEp, Score, Favorite, Genres
and UpdatedAt, e.g. 'Status == "watching" and daysSince(UpdatedAt) > 30'.`,
	RunE: runLibraryList,
}

// libraryStatsCmd represents the library stats command
var libraryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library statistics and badges",
	RunE:  runLibraryStats,
}

// recommendCmd represents the recommend command
var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest anime based on a user's library",
	RunE:  runRecommend,
}

// compatCmd represents the compat command
var compatCmd = &cobra.Command{
	Use:   "compat <other-uid>",
	Short: "Score how similar two users' libraries are",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompat,
}

func init() {
	rootCmd.AddCommand(libraryCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(compatCmd)
	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(libraryStatsCmd)

	for _, c := range []*cobra.Command{libraryCmd, recommendCmd, compatCmd} {
		c.PersistentFlags().StringVar(&userID, "uid", "", "user id")
		_ = c.MarkPersistentFlagRequired("uid")
	}

	libraryListCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression")
	libraryListCmd.Flags().StringVarP(&preset, "preset", "p", "", "use a preset filter from config")
}

func loadLibrary(cmd *cobra.Command, uid string) ([]anime.LibraryEntry, error) {
	fb, err := openFirebase(cmd.Context())
	if err != nil {
		return nil, err
	}
	return fb.Profiles().Library(cmd.Context(), uid)
}

func runLibraryList(cmd *cobra.Command, args []string) error {
	expression, err := getFilterExpression()
	if err != nil {
		return err
	}

	entries, err := loadLibrary(cmd, userID)
	if err != nil {
		return err
	}

	if expression != "" {
		logger.Info().Str("filter", expression).Msg("Filtering library")
		f, err := filter.NewExprCompiler().Compile(expression)
		if err != nil {
			return fmt.Errorf("invalid filter expression: %w", err)
		}
		entries, err = filter.NewConcurrentEvaluator().Evaluate(cmd.Context(), f, entries)
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("No library entries found matching the filter criteria.")
		return nil
	}

	fmt.Printf("\nFound %d entries:\n", len(entries))
	fmt.Println(strings.Repeat("-", 80))
	for _, e := range entries {
		fmt.Printf("• %s [%s]", e.Title, e.Status)
		if e.IsFavorite {
			fmt.Printf(" ♥")
		}
		fmt.Println()
		progress := fmt.Sprintf("%d", e.CurrentEp)
		if e.TotalEp > 0 {
			progress = fmt.Sprintf("%d/%d", e.CurrentEp, e.TotalEp)
		}
		fmt.Printf("  Progress: %s", progress)
		if e.Score > 0 {
			fmt.Printf("  Score: %d", e.Score)
		}
		if !e.UpdatedAt.IsZero() {
			fmt.Printf("  Updated: %s", e.UpdatedAt.Format("2006-01-02"))
		}
		fmt.Println()
	}
	return nil
}

func runLibraryStats(cmd *cobra.Command, args []string) error {
	entries, err := loadLibrary(cmd, userID)
	if err != nil {
		return err
	}
	st := anime.ComputeStats(entries)
	earned := anime.EarnedBadges(st)

	// badges not seen on this machine before are announced once
	var fresh []string
	if s, err := openLocalStore(); err != nil {
		logger.Warn().Err(err).Msg("Failed to open local store, skipping new badge check")
	} else {
		ids := make([]string, 0, len(earned))
		for _, b := range earned {
			ids = append(ids, b.ID)
		}
		if fresh, err = s.MarkBadgesKnown(cmd.Context(), ids); err != nil {
			logger.Warn().Err(err).Msg("Failed to record known badges")
		}
	}

	if jsonOutput {
		return printJSON(map[string]any{"stats": st, "badges": earned, "newBadges": fresh})
	}

	fmt.Printf("Total: %d  Watching: %d  Completed: %d  Plan to watch: %d  Paused: %d  Dropped: %d\n",
		st.Total, st.Watching, st.Completed, st.PlanToWatch, st.Paused, st.Dropped)
	fmt.Printf("Episodes watched: %d  Favorites: %d  Mean score: %.2f\n", st.EpisodesWatched, st.Favorites, st.MeanScore)

	if len(earned) > 0 {
		isFresh := make(map[string]bool, len(fresh))
		for _, id := range fresh {
			isFresh[id] = true
		}
		fmt.Println("\nBadges:")
		for _, b := range earned {
			fmt.Printf("  • %s: %s", b.Name, b.Description)
			if isFresh[b.ID] {
				fmt.Printf(" [NEW]")
			}
			fmt.Println()
		}
	}
	return nil
}

func runRecommend(cmd *cobra.Command, args []string) error {
	entries, err := loadLibrary(cmd, userID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("The library is empty; add some anime to get recommendations.")
		return nil
	}

	engine := recommend.NewEngine(jikanClient, recommend.Config{
		Seeds:   cfg.Recommend.Seeds,
		PerSeed: cfg.Recommend.PerSeed,
		Limit:   cfg.Recommend.Limit,
		Delay:   cfg.Recommend.Delay,
	}, logger)

	logger.Info().Int("entries", len(entries)).Msg("Fetching recommendations")
	recs, err := engine.Recommend(cmd.Context(), entries)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(recs)
	}
	if len(recs) == 0 {
		fmt.Println("No recommendations found.")
		return nil
	}
	for i, r := range recs {
		score := "-"
		if r.ScoreAvailable && r.Score != nil {
			score = fmt.Sprintf("%.2f", *r.Score)
		}
		fmt.Printf("%2d. %s (votes: %d, score: %s)\n", i+1, r.Title, r.Votes, score)
	}
	return nil
}

func runCompat(cmd *cobra.Command, args []string) error {
	other := args[0]
	fb, err := openFirebase(cmd.Context())
	if err != nil {
		return err
	}
	profiles := fb.Profiles()

	if _, err := profiles.Public(cmd.Context(), other, userID); err != nil {
		return err
	}
	mine, err := profiles.Library(cmd.Context(), userID)
	if err != nil {
		return err
	}
	theirs, err := profiles.Library(cmd.Context(), other)
	if err != nil {
		return err
	}

	bd, ok := compat.Compare(userID, mine, theirs)
	if jsonOutput {
		return printJSON(map[string]any{"available": ok, "breakdown": bd})
	}
	if !ok {
		fmt.Println("Compatibility is unavailable: one of the libraries is empty.")
		return nil
	}
	fmt.Printf("Compatibility: %d%%\n", bd.Score)
	fmt.Printf("  Shared titles: %d (%.1f)\n", len(bd.SharedIDs), bd.Shared)
	fmt.Printf("  Genre overlap: %.1f\n", bd.Genre)
	fmt.Printf("  Score affinity: %.1f\n", bd.Affinity)
	return nil
}
