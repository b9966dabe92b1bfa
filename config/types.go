package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	Jikan     JikanConfig     `mapstructure:"jikan"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Firebase  FirebaseConfig  `mapstructure:"firebase"`
	Server    ServerConfig    `mapstructure:"server"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Search    SearchConfig    `mapstructure:"search"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Library   LibraryConfig   `mapstructure:"library"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Update    UpdateConfig    `mapstructure:"update"`
}

// JikanConfig holds catalog API connection details
type JikanConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	PageSize      int           `mapstructure:"page_size"`
	UserAgent     string        `mapstructure:"user_agent"`
}

// CacheConfig controls the query cache and its on-disk snapshot
type CacheConfig struct {
	Size      int           `mapstructure:"size"`
	StaleTime time.Duration `mapstructure:"stale_time"`
	Persist   bool          `mapstructure:"persist"`
	Path      string        `mapstructure:"path"`
	MaxAge    time.Duration `mapstructure:"max_age"`
}

// FirebaseConfig selects the Firebase project and credentials
type FirebaseConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ProjectID         string `mapstructure:"project_id"`
	CredentialsFile   string `mapstructure:"credentials_file"`
	CredentialsBase64 string `mapstructure:"credentials_base64"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
}

// SyncConfig tunes the per-user collections
type SyncConfig struct {
	FavoriteCap int           `mapstructure:"favorite_cap"`
	StudioCap   int           `mapstructure:"studio_cap"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// SearchConfig contains search input settings
type SearchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// RecommendConfig tunes the recommendation engine
type RecommendConfig struct {
	Seeds   int           `mapstructure:"seeds"`
	PerSeed int           `mapstructure:"per_seed"`
	Limit   int           `mapstructure:"limit"`
	Delay   time.Duration `mapstructure:"delay"`
}

// LibraryConfig contains library filter presets
type LibraryConfig struct {
	Filters       FilterConfig `mapstructure:"filters"`
	DefaultFilter string       `mapstructure:"default_filter"`
}

// FilterConfig maps preset names to filter expressions
type FilterConfig map[string]string

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// Color is auto, always or never
	Color string `mapstructure:"color"`
}

// UpdateConfig configures self-update
type UpdateConfig struct {
	Repository string `mapstructure:"repository"`
}
