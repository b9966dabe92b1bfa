package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
	"github.com/Tarcizioo/portal-animes-V2-sub001/featured"
	"github.com/Tarcizioo/portal-animes-V2-sub001/jikan"
	"github.com/Tarcizioo/portal-animes-V2-sub001/pager"
)

var (
	topFilter   string
	pageCount   int
	genreIDs    []int
	orderBy     string
	sortDir     string
	interactive bool
)

// topCmd represents the top command
var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the top ranked anime",
	RunE:  runTop,
}

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the anime catalog",
	Long: `Search the anime catalog by title and genre.

With --interactive, each line read from stdin replaces the query. Lines typed
in quick succession only trigger one search.`,
	RunE: runSearch,
}

// featuredCmd represents the featured command
var featuredCmd = &cobra.Command{
	Use:   "featured",
	Short: "Show the featured titles of the home page",
	RunE:  runFeatured,
}

func init() {
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(featuredCmd)

	topCmd.Flags().StringVar(&topFilter, "filter", "", "ranking filter (airing, upcoming, bypopularity, favorite)")
	topCmd.Flags().IntVar(&pageCount, "pages", 1, "number of pages to load")

	searchCmd.Flags().IntSliceVar(&genreIDs, "genre", nil, "genre ids to require")
	searchCmd.Flags().StringVar(&orderBy, "order-by", "", "order by field (score, popularity, title, ...)")
	searchCmd.Flags().StringVar(&sortDir, "sort", "", "sort direction (asc or desc)")
	searchCmd.Flags().IntVar(&pageCount, "pages", 1, "number of pages to load")
	searchCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "read queries from stdin")
}

func runTop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f := jikan.TopFilter(topFilter)
	if !f.Valid() {
		return fmt.Errorf("invalid filter %q (must be airing, upcoming, bypopularity or favorite)", topFilter)
	}

	fetch := func(ctx context.Context, f jikan.TopFilter, page int) (pager.Page[anime.Summary], error) {
		resp, err := jikanClient.TopAnime(ctx, f, page)
		if err != nil {
			return pager.Page[anime.Summary]{}, err
		}
		p := pager.Page[anime.Summary]{Items: anime.SummariesFromAnime(resp.Data, time.Now())}
		if more, ok := resp.HasMore(); ok {
			p.HasMore = &more
		}
		return p, nil
	}

	list := pager.New[anime.Summary, jikan.TopFilter](fetch, cfg.Jikan.PageSize, logger)
	defer list.Close()

	items, err := loadPages(ctx, list, f, pageCount)
	if err != nil {
		return err
	}
	return printSummaries(items)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	list := pager.New[anime.Summary, pager.CatalogFilter](
		pager.CatalogSource(jikanClient, cfg.Jikan.PageSize), cfg.Jikan.PageSize, logger)
	defer list.Close()

	filterFor := func(query string) pager.CatalogFilter {
		return pager.CatalogFilter{
			Query:   strings.TrimSpace(query),
			Genres:  genreIDs,
			OrderBy: orderBy,
			Sort:    sortDir,
		}
	}

	if !interactive {
		items, err := loadPages(ctx, list, filterFor(strings.Join(args, " ")), pageCount)
		if err != nil {
			return err
		}
		return printSummaries(items)
	}

	debouncer := pager.NewDebouncer(cfg.Search.Debounce, func(ctx context.Context, query string) {
		items, err := loadPages(ctx, list, filterFor(query), 1)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error().Err(err).Str("query", query).Msg("Search failed")
			}
			return
		}
		fmt.Printf("\nResults for %q:\n", query)
		if err := printSummaries(items); err != nil {
			logger.Error().Err(err).Msg("Failed to print results")
		}
	})
	defer debouncer.Stop()

	fmt.Fprintln(os.Stderr, "Type a query and press Enter (Ctrl+D to quit).")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		debouncer.Trigger(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	// input ended: the last query still gets its results
	debouncer.Flush()
	return nil
}

// loadPages loads up to pages pages of list for filter
func loadPages[F any](ctx context.Context, list *pager.List[anime.Summary, F], filter F, pages int) ([]anime.Summary, error) {
	list.SetFilter(filter)
	if err := list.Wait(ctx); err != nil {
		return nil, err
	}
	for i := 1; i < pages; i++ {
		if !list.LoadMore() {
			break
		}
		if err := list.Wait(ctx); err != nil {
			return nil, err
		}
	}
	st := list.State()
	if st.Err != nil && len(st.Items) == 0 {
		return nil, st.Err
	}
	return st.Items, nil
}

func runFeatured(cmd *cobra.Command, args []string) error {
	picks, err := featured.NewAggregator(jikanClient, logger).Featured(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(picks)
	}

	if len(picks) == 0 {
		fmt.Println("No featured titles available.")
		return nil
	}
	for _, p := range picks {
		fmt.Printf("%-12s %s", p.Category, p.Anime.Title)
		if p.Duplicate {
			fmt.Printf(" [repeated]")
		}
		fmt.Println()
	}
	return nil
}

func printSummaries(items []anime.Summary) error {
	if jsonOutput {
		return printJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("No anime found.")
		return nil
	}

	fmt.Println(strings.Repeat("━", 80))
	fmt.Printf("%-8s %-52s %-6s %s\n", "ID", "TITLE", "YEAR", "SCORE")
	fmt.Println(strings.Repeat("━", 80))
	for _, s := range items {
		title := truncate(s.Title, 50)
		if s.IsNew {
			title += " *"
		}
		score := "-"
		if s.Score != nil {
			score = fmt.Sprintf("%.2f", *s.Score)
		}
		year := "-"
		if s.Year > 0 {
			year = fmt.Sprint(s.Year)
		}
		fmt.Printf("%-8d %-52s %-6s %s\n", s.ID, title, year, score)
	}
	fmt.Println(strings.Repeat("━", 80))
	return nil
}

// truncate shortens s to at most n runes, marking the cut with "..."
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
