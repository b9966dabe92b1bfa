package cmd

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/blang/semver"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"

	checkOnly bool
)

// SetVersion records the build metadata injected by the linker
func SetVersion(v, t string) {
	version = v
	buildTime = t
	rootCmd.Version = fmt.Sprintf("%s (built %s)", v, t)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print version information",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("portal-animes %s\n", version)
		fmt.Printf("Built: %s\n", buildTime)
		fmt.Printf("Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

// selfUpdateCmd represents the self-update command
var selfUpdateCmd = &cobra.Command{
	Use:               "self-update",
	Short:             "Update portal-animes to the latest release",
	PersistentPreRunE: initializeConfig,
	RunE:              runSelfUpdate,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(selfUpdateCmd)

	selfUpdateCmd.Flags().BoolVar(&checkOnly, "check", false, "only report whether an update is available")
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	current, err := semver.ParseTolerant(version)
	if err != nil {
		return fmt.Errorf("cannot update a development build (version %q)", version)
	}

	repo := cfg.Update.Repository
	if repo == "" {
		return errors.New("no update repository configured; set update.repository in config")
	}

	logger.Info().Str("repository", repo).Str("current", current.String()).Msg("Checking for updates...")

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repo))
	if err != nil {
		return fmt.Errorf("failed to detect latest release: %w", err)
	}
	if !found {
		return fmt.Errorf("no release found for %s/%s in %s", runtime.GOOS, runtime.GOARCH, repo)
	}

	if latest.LessOrEqual(current.String()) {
		fmt.Printf("✓ Already up to date (%s)\n", current)
		return nil
	}

	fmt.Printf("New version available: %s (current %s)\n", latest.Version(), current)
	if latest.ReleaseNotes != "" {
		fmt.Printf("\n%s\n\n", latest.ReleaseNotes)
	}
	if checkOnly {
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}
	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("permission denied writing %s; re-run with elevated privileges: %w", exe, err)
		}
		return fmt.Errorf("failed to update binary: %w", err)
	}

	logger.Info().Str("version", latest.Version()).Msg("Updated successfully")
	fmt.Printf("✓ Updated to %s\n", latest.Version())
	return nil
}
