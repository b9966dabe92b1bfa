package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. PORTAL_SERVER_ADDR
const EnvPrefix = "PORTAL"

// Load loads the configuration from file and environment. A missing config
// file is not an error; defaults and environment apply.
func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".portal-animes"))
		}
		v.AddConfigPath("/etc/portal-animes/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// DefaultCachePath is where the cache snapshot lives unless configured
func DefaultCachePath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "portal-animes", "cache.db")
	}
	return "portal-animes-cache.db"
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("jikan.base_url", "https://api.jikan.moe/v4")
	v.SetDefault("jikan.max_attempts", 3)
	v.SetDefault("jikan.retry_interval", "1s")
	v.SetDefault("jikan.timeout", "15s")
	v.SetDefault("jikan.page_size", 24)
	v.SetDefault("jikan.user_agent", "portal-animes/1.0")

	v.SetDefault("cache.size", 512)
	v.SetDefault("cache.stale_time", "5m")
	v.SetDefault("cache.persist", true)
	v.SetDefault("cache.path", DefaultCachePath())
	v.SetDefault("cache.max_age", "24h")

	v.SetDefault("firebase.enabled", true)
	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.credentials_file", "")
	v.SetDefault("firebase.credentials_base64", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.mode", "release")

	v.SetDefault("sync.favorite_cap", 6)
	v.SetDefault("sync.studio_cap", 3)
	v.SetDefault("sync.idle_timeout", "10m")

	v.SetDefault("search.debounce", "500ms")

	v.SetDefault("recommend.seeds", 3)
	v.SetDefault("recommend.per_seed", 10)
	v.SetDefault("recommend.limit", 15)
	v.SetDefault("recommend.delay", "400ms")

	v.SetDefault("library.default_filter", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", "auto")

	v.SetDefault("update.repository", "Tarcizioo/portal-animes-V2")
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Jikan.BaseURL == "" {
		return fmt.Errorf("jikan.base_url is required")
	}
	if cfg.Jikan.MaxAttempts < 1 {
		return fmt.Errorf("jikan.max_attempts must be at least 1")
	}
	// the catalog API caps page size at 25
	if cfg.Jikan.PageSize < 1 || cfg.Jikan.PageSize > 25 {
		return fmt.Errorf("jikan.page_size must be between 1 and 25, got %d", cfg.Jikan.PageSize)
	}
	if cfg.Cache.Size < 1 {
		return fmt.Errorf("cache.size must be at least 1")
	}
	if cfg.Cache.Persist && cfg.Cache.Path == "" {
		return fmt.Errorf("cache.path is required when cache.persist is enabled")
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Sync.FavoriteCap < 1 || cfg.Sync.StudioCap < 1 {
		return fmt.Errorf("sync.favorite_cap and sync.studio_cap must be at least 1")
	}

	if cfg.Library.DefaultFilter != "" {
		if _, ok := cfg.Library.Filters[cfg.Library.DefaultFilter]; !ok {
			return fmt.Errorf("library.default_filter %q is not defined in library.filters", cfg.Library.DefaultFilter)
		}
	}

	validModes := map[string]bool{
		"debug":   true,
		"release": true,
		"test":    true,
	}
	if !validModes[cfg.Server.Mode] {
		return fmt.Errorf("invalid server.mode: %s", cfg.Server.Mode)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	validColors := map[string]bool{
		"auto":   true,
		"always": true,
		"never":  true,
	}
	if !validColors[cfg.Logging.Color] {
		return fmt.Errorf("invalid logging color: %s (must be auto, always or never)", cfg.Logging.Color)
	}

	return nil
}
