package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int `yaml:"port"`
	ReadTimeoutMS     int `yaml:"read_timeout_ms"`
	WriteTimeoutMS    int `yaml:"write_timeout_ms"`
	ShutdownTimeoutMS int `yaml:"shutdown_timeout_ms"`
}

// SyncConfig controls the incremental trade sync.
type SyncConfig struct {
	FreshnessTTLMins int `yaml:"freshness_ttl_minutes"` // skip the source when the checkpoint is younger than this
	PageSize         int `yaml:"page_size"`
	RequestTimeoutMS int `yaml:"request_timeout_ms"`
}

// AnalyticsConfig holds the heuristic knobs for the behavioral analytics.
// The defaults are heuristics, not validated constants; operators may tune
// them without touching the engine.
type AnalyticsConfig struct {
	WakingStartHour     int     `yaml:"waking_start_hour"`     // local hour activity is expected to begin
	WakingEndHour       int     `yaml:"waking_end_hour"`       // local hour activity is expected to end
	ContrarianThreshold float64 `yaml:"contrarian_threshold"`  // entry price below this is a bet against the favorite
	TopCategories       int     `yaml:"top_categories"`        // categories exposed to callers
	CacheTTLMins        int     `yaml:"cache_ttl_minutes"`     // analytics summary cache TTL
}

// PaginationConfig controls the trade history endpoint.
type PaginationConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// Config aggregates all app configuration knobs.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Sync       SyncConfig       `yaml:"sync"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Pagination PaginationConfig `yaml:"pagination"`
}

// Load reads configuration from disk, falling back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	configPath := path
	if configPath == "" {
		configPath = filepath.Join("config", "default.yaml")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: unable to read %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: unable to parse %s: %w", configPath, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns baseline configuration values.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:              8080,
			ReadTimeoutMS:     10000,
			WriteTimeoutMS:    30000,
			ShutdownTimeoutMS: 5000,
		},
		Sync: SyncConfig{
			FreshnessTTLMins: 5,
			PageSize:         100,
			RequestTimeoutMS: 30000,
		},
		Analytics: AnalyticsConfig{
			WakingStartHour:     8,
			WakingEndHour:       23,
			ContrarianThreshold: 0.5,
			TopCategories:       8,
			CacheTTLMins:        10,
		},
		Pagination: PaginationConfig{
			DefaultPageSize: 50,
			MaxPageSize:     100,
		},
	}
}

// applyDefaults fills any zero values left after unmarshalling a partial file.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.ReadTimeoutMS == 0 {
		c.Server.ReadTimeoutMS = def.Server.ReadTimeoutMS
	}
	if c.Server.WriteTimeoutMS == 0 {
		c.Server.WriteTimeoutMS = def.Server.WriteTimeoutMS
	}
	if c.Server.ShutdownTimeoutMS == 0 {
		c.Server.ShutdownTimeoutMS = def.Server.ShutdownTimeoutMS
	}
	if c.Sync.FreshnessTTLMins == 0 {
		c.Sync.FreshnessTTLMins = def.Sync.FreshnessTTLMins
	}
	if c.Sync.PageSize == 0 {
		c.Sync.PageSize = def.Sync.PageSize
	}
	if c.Sync.RequestTimeoutMS == 0 {
		c.Sync.RequestTimeoutMS = def.Sync.RequestTimeoutMS
	}
	if c.Analytics.WakingStartHour == 0 && c.Analytics.WakingEndHour == 0 {
		c.Analytics.WakingStartHour = def.Analytics.WakingStartHour
		c.Analytics.WakingEndHour = def.Analytics.WakingEndHour
	}
	if c.Analytics.ContrarianThreshold == 0 {
		c.Analytics.ContrarianThreshold = def.Analytics.ContrarianThreshold
	}
	if c.Analytics.TopCategories == 0 {
		c.Analytics.TopCategories = def.Analytics.TopCategories
	}
	if c.Analytics.CacheTTLMins == 0 {
		c.Analytics.CacheTTLMins = def.Analytics.CacheTTLMins
	}
	if c.Pagination.DefaultPageSize == 0 {
		c.Pagination.DefaultPageSize = def.Pagination.DefaultPageSize
	}
	if c.Pagination.MaxPageSize == 0 {
		c.Pagination.MaxPageSize = def.Pagination.MaxPageSize
	}
}
