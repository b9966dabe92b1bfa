package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Tarcizioo/portal-animes-V2-sub001/featured"
	"github.com/Tarcizioo/portal-animes-V2-sub001/filter"
	"github.com/Tarcizioo/portal-animes-V2-sub001/recommend"
	"github.com/Tarcizioo/portal-animes-V2-sub001/server"
	"github.com/Tarcizioo/portal-animes-V2-sub001/usersync"
)

var listenAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the catalog, library, favorites, notifications and comments over HTTP.

Signed-in routes verify Firebase ID tokens and keep one live Firestore
subscription set per active user. Firebase must be enabled.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.Server.Mode)

	fb, err := openFirebase(ctx)
	if err != nil {
		return err
	}

	sessions := usersync.NewSessions(fb.Sources(), usersync.SessionConfig{
		FavoriteCap: cfg.Sync.FavoriteCap,
		StudioCap:   cfg.Sync.StudioCap,
		IdleTimeout: cfg.Sync.IdleTimeout,
	}, logger)
	defer sessions.Close()
	go sessions.Run(ctx)

	addr := cfg.Server.Addr
	if listenAddr != "" {
		addr = listenAddr
	}

	verifier := fb.Verifier()
	srv, err := server.New(server.Deps{
		Catalog:  jikanClient,
		Featured: featured.NewAggregator(jikanClient, logger),
		Recommender: recommend.NewEngine(jikanClient, recommend.Config{
			Seeds:   cfg.Recommend.Seeds,
			PerSeed: cfg.Recommend.PerSeed,
			Limit:   cfg.Recommend.Limit,
			Delay:   cfg.Recommend.Delay,
		}, logger),
		Sessions:      sessions,
		Comments:      fb.Comments(),
		Profiles:      fb.Profiles(),
		Verifier:      verifier,
		Accounts:      verifier,
		Cache:         queryCache,
		Filters:       filter.NewExprCompiler(filter.WithCache(128)),
		Presets:       cfg.Library.Filters,
		DefaultPreset: cfg.Library.DefaultFilter,
	}, server.Options{
		Addr:            addr,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		PageSize:        cfg.Jikan.PageSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Run(ctx)
}
