package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cachePrefix string
	prefTheme   string
	prefSidebar string
)

// cacheCmd groups the cache commands
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the catalog response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := queryCache.Stats()
		if jsonOutput {
			return printJSON(map[string]any{"path": cfg.Cache.Path, "persist": cfg.Cache.Persist, "stats": st})
		}
		fmt.Printf("Cache file: %s (persist: %t)\n", cfg.Cache.Path, cfg.Cache.Persist)
		fmt.Printf("Entries: %d (max %d)\n", st.Entries, cfg.Cache.Size)
		fmt.Printf("Stale after: %s, dropped after: %s\n", cfg.Cache.StaleTime, cfg.Cache.MaxAge)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cachePrefix != "" {
			n := queryCache.Invalidate(cachePrefix)
			fmt.Printf("Removed %d cached responses under %s\n", n, cachePrefix)
			return nil
		}

		n := queryCache.Len()
		queryCache.Clear()
		if local != nil {
			if err := local.ClearSnapshot(cmd.Context()); err != nil {
				return err
			}
		}
		fmt.Printf("Removed %d cached responses\n", n)
		return nil
	},
}

// prefsCmd shows or updates the persisted UI preferences
var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change UI preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openLocalStore()
		if err != nil {
			return err
		}
		p, err := s.Prefs(cmd.Context())
		if err != nil {
			return err
		}

		changed := false
		if cmd.Flags().Changed("theme") {
			if prefTheme != "dark" && prefTheme != "light" {
				return fmt.Errorf("invalid theme: %s (must be 'dark' or 'light')", prefTheme)
			}
			p.Theme = prefTheme
			changed = true
		}
		if cmd.Flags().Changed("sidebar") {
			switch prefSidebar {
			case "collapsed":
				p.SidebarCollapsed = true
			case "expanded":
				p.SidebarCollapsed = false
			default:
				return fmt.Errorf("invalid sidebar state: %s (must be 'collapsed' or 'expanded')", prefSidebar)
			}
			changed = true
		}
		if changed {
			if err := s.SavePrefs(cmd.Context(), p); err != nil {
				return err
			}
		}

		if jsonOutput {
			return printJSON(p)
		}
		fmt.Printf("Theme: %s\nSidebar collapsed: %t\nKnown badges: %d\n", p.Theme, p.SidebarCollapsed, len(p.KnownBadges))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(prefsCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().StringVar(&cachePrefix, "prefix", "", "only remove entries whose key starts with this request path")
	prefsCmd.Flags().StringVar(&prefTheme, "theme", "", "color theme (dark or light)")
	prefsCmd.Flags().StringVar(&prefSidebar, "sidebar", "", "sidebar state (collapsed or expanded)")
}
