package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Tarcizioo/portal-animes-V2-sub001/config"
	"github.com/Tarcizioo/portal-animes-V2-sub001/filter"
	"github.com/Tarcizioo/portal-animes-V2-sub001/jikan"
	"github.com/Tarcizioo/portal-animes-V2-sub001/localstore"
	"github.com/Tarcizioo/portal-animes-V2-sub001/querycache"
	"github.com/Tarcizioo/portal-animes-V2-sub001/store"
)

var (
	cfgFile     string
	cfg         *config.Config
	logger      zerolog.Logger
	queryCache  *querycache.Cache
	local       *localstore.Store
	jikanClient *jikan.Client
	firebase    *store.Client

	// Command flags
	filterExpr string
	preset     string
	jsonOutput bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "portal-animes",
	Short: "Anime catalog and tracking backend",
	Long: `portal-animes serves the anime catalog, per-user libraries, favorites,
comments and notifications over HTTP, and offers the same catalog and
library queries from the command line.`,
	PersistentPreRunE:  initializeApp,
	PersistentPostRunE: shutdownApp,
	SilenceUsage:       true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

// initializeConfig loads configuration and sets up the logger
func initializeConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger = setupLogger(cfg.Logging)
	return nil
}

// initializeApp initializes the configuration, the query cache and the
// catalog client
func initializeApp(cmd *cobra.Command, args []string) error {
	if err := initializeConfig(cmd, args); err != nil {
		return err
	}

	var err error
	queryCache, err = querycache.New(cfg.Cache.Size, cfg.Cache.StaleTime, logger)
	if err != nil {
		return fmt.Errorf("failed to create query cache: %w", err)
	}

	if cfg.Cache.Persist {
		if err := restoreCache(cmd.Context()); err != nil {
			// a broken snapshot only costs a cold cache
			logger.Warn().Err(err).Str("path", cfg.Cache.Path).Msg("Failed to restore cache snapshot")
		}
	}

	jikanClient, err = jikan.NewClient(cfg.Jikan.BaseURL, logger,
		jikan.WithMaxAttempts(cfg.Jikan.MaxAttempts),
		jikan.WithRetryInterval(cfg.Jikan.RetryInterval),
		jikan.WithTimeout(cfg.Jikan.Timeout),
		jikan.WithPageSize(cfg.Jikan.PageSize),
		jikan.WithUserAgent(cfg.Jikan.UserAgent),
		jikan.WithCache(queryCache),
	)
	if err != nil {
		return fmt.Errorf("failed to create Jikan client: %w", err)
	}

	return nil
}

// shutdownApp persists the cache snapshot and releases clients
func shutdownApp(cmd *cobra.Command, args []string) error {
	if queryCache != nil {
		queryCache.Close()
	}
	if local != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := local.SaveSnapshot(ctx, queryCache.Snapshot()); err != nil {
			logger.Warn().Err(err).Msg("Failed to save cache snapshot")
		} else {
			logger.Debug().Int("entries", queryCache.Len()).Msg("Saved cache snapshot")
		}
		if err := local.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close local store")
		}
		local = nil
	}
	if firebase != nil {
		if err := firebase.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close Firestore client")
		}
		firebase = nil
	}
	return nil
}

// openLocalStore opens the SQLite file next to the cache snapshot
func openLocalStore() (*localstore.Store, error) {
	if local != nil {
		return local, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	s, err := localstore.Open(cfg.Cache.Path)
	if err != nil {
		return nil, err
	}
	local = s
	return s, nil
}

func restoreCache(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openLocalStore()
	if err != nil {
		return err
	}
	entries, err := s.LoadSnapshot(ctx, cfg.Cache.MaxAge)
	if err != nil {
		return err
	}
	n := queryCache.Restore(entries, cfg.Cache.MaxAge)
	logger.Debug().Int("entries", n).Msg("Restored cache snapshot")
	return nil
}

// openFirebase connects to Firebase on first use
func openFirebase(ctx context.Context) (*store.Client, error) {
	if firebase != nil {
		return firebase, nil
	}
	if !cfg.Firebase.Enabled {
		return nil, fmt.Errorf("firebase is disabled; set firebase.enabled in config")
	}
	c, err := store.Open(ctx, store.Config{
		ProjectID:         cfg.Firebase.ProjectID,
		CredentialsFile:   cfg.Firebase.CredentialsFile,
		CredentialsBase64: cfg.Firebase.CredentialsBase64,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Firebase: %w", err)
	}
	firebase = c
	return c, nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !useColor(cfg.Color, os.Stderr.Fd()),
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// useColor resolves the color setting; auto enables it on terminals only
func useColor(mode string, fd uintptr) bool {
	switch strings.ToLower(mode) {
	case "always":
		return true
	case "never":
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// getFilterExpression determines the library filter to use
func getFilterExpression() (string, error) {
	// Priority: command line filter > preset > default
	return filter.Resolve(filterExpr, preset, cfg.Library.Filters, cfg.Library.DefaultFilter)
}
