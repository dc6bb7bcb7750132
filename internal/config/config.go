// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

// Package config loads and validates Renown's configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Logging   LoggingConfig   `koanf:"logging"`
	Refresh   RefreshConfig   `koanf:"refresh"`
	AutoHeal  AutoHealConfig  `koanf:"autoheal"`
	Platforms PlatformsConfig `koanf:"platforms"`
	Insights  InsightsConfig  `koanf:"insights"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig configures the embedded DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads is the DuckDB worker thread count; 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// LoggingConfig configures the zerolog-based logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// RefreshConfig tunes the refresh orchestrator.
//
// The pacing delays are deliberate fixed constants, not adaptive: upstream
// review sources rate-limit aggressively and the orchestrator serializes
// platform calls per property with these gaps.
type RefreshConfig struct {
	// PlatformDelay is the pause between consecutive platform calls for
	// the same property.
	PlatformDelay time.Duration `koanf:"platform_delay"`

	// PropertyDelay is the pause between properties during a bulk run
	// (and between resolutions in the resolving phase).
	PropertyDelay time.Duration `koanf:"property_delay"`

	// RetryBackoff is the longer wait before the single extra attempt a
	// transient fetch failure gets.
	RetryBackoff time.Duration `koanf:"retry_backoff"`

	// FetchTimeout bounds one platform call.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	// MinConfidence is the resolver's threshold below which an ambiguous
	// multi-candidate match becomes needs_review instead of resolved.
	MinConfidence float64 `koanf:"min_confidence"`
}

// AutoHealConfig tunes the once-per-session gap sweep.
type AutoHealConfig struct {
	Enabled bool `koanf:"enabled"`

	// StartupDelay is how long after startup the sweep waits before
	// scanning for gaps, giving the initial data load time to land.
	StartupDelay time.Duration `koanf:"startup_delay"`

	BatchSize     int           `koanf:"batch_size"`
	BatchDelay    time.Duration `koanf:"batch_delay"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

// PlatformConfig configures one external rating source adapter.
type PlatformConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
}

// PlatformsConfig holds the per-platform adapter settings.
type PlatformsConfig struct {
	Google      PlatformConfig `koanf:"google"`
	TripAdvisor PlatformConfig `koanf:"tripadvisor"`
	Booking     PlatformConfig `koanf:"booking"`
	Expedia     PlatformConfig `koanf:"expedia"`
	Kasa        PlatformConfig `koanf:"kasa"`
}

// InsightsConfig configures the LLM-gateway review summaries.
type InsightsConfig struct {
	Enabled    bool   `koanf:"enabled"`
	GatewayURL string `koanf:"gateway_url"`
	APIKey     string `koanf:"api_key"`
	Model      string `koanf:"model"`

	// MaxReviews caps how many recent reviews feed one summary prompt.
	MaxReviews int `koanf:"max_reviews"`

	// AutoGenerate regenerates summaries in the background after each
	// bulk refresh completes.
	AutoGenerate bool `koanf:"auto_generate"`
}

// Validate checks the configuration for inconsistencies that would only
// surface later at runtime.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	if c.Refresh.FetchTimeout <= 0 {
		problems = append(problems, "refresh.fetch_timeout must be positive")
	}
	if c.Refresh.MinConfidence < 0 || c.Refresh.MinConfidence > 1 {
		problems = append(problems, "refresh.min_confidence must be within [0, 1]")
	}
	if c.AutoHeal.Enabled {
		if c.AutoHeal.BatchSize < 1 {
			problems = append(problems, "autoheal.batch_size must be at least 1")
		}
		if c.AutoHeal.RetryAttempts < 1 {
			problems = append(problems, "autoheal.retry_attempts must be at least 1")
		}
	}
	if c.Insights.Enabled {
		if c.Insights.GatewayURL == "" {
			problems = append(problems, "insights.gateway_url is required when insights are enabled")
		}
		if c.Insights.APIKey == "" {
			problems = append(problems, "insights.api_key is required when insights are enabled")
		}
	}
	for name, p := range c.EnabledPlatforms() {
		if p.BaseURL == "" {
			problems = append(problems, fmt.Sprintf("platforms.%s.base_url is required when enabled", name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// EnabledPlatforms returns the enabled platform configs keyed by platform name.
func (c *Config) EnabledPlatforms() map[string]PlatformConfig {
	all := map[string]PlatformConfig{
		"google":      c.Platforms.Google,
		"tripadvisor": c.Platforms.TripAdvisor,
		"booking":     c.Platforms.Booking,
		"expedia":     c.Platforms.Expedia,
		"kasa":        c.Platforms.Kasa,
	}
	enabled := make(map[string]PlatformConfig)
	for name, p := range all {
		if p.Enabled {
			enabled[name] = p
		}
	}
	return enabled
}
