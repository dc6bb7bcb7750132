// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/renown/config.yaml",
	"/etc/renown/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config
// file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8460,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "/data/renown.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Refresh: RefreshConfig{
			PlatformDelay: 1500 * time.Millisecond,
			PropertyDelay: 3 * time.Second,
			RetryBackoff:  10 * time.Second,
			FetchTimeout:  30 * time.Second,
			MinConfidence: 0.8,
		},
		AutoHeal: AutoHealConfig{
			Enabled:       true,
			StartupDelay:  30 * time.Second,
			BatchSize:     3,
			BatchDelay:    5 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    4 * time.Second,
		},
		Platforms: PlatformsConfig{
			Google:      PlatformConfig{Enabled: false, BaseURL: "https://places.googleapis.com"},
			TripAdvisor: PlatformConfig{Enabled: false, BaseURL: "https://api.content.tripadvisor.com"},
			Booking:     PlatformConfig{Enabled: false, BaseURL: "https://distribution-xml.booking.com"},
			Expedia:     PlatformConfig{Enabled: false, BaseURL: "https://api.ean.com"},
			Kasa:        PlatformConfig{Enabled: false, BaseURL: ""},
		},
		Insights: InsightsConfig{
			Enabled:      false,
			GatewayURL:   "",
			APIKey:       "",
			Model:        "gpt-4o-mini",
			MaxReviews:   50,
			AutoGenerate: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values
//  2. Config file: optional YAML (if found)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority).
	// RENOWN_ prefixed vars map onto koanf paths, and a handful of legacy
	// flat names are mapped explicitly: KASA_API_KEY -> platforms.kasa.api_key.
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Env vars arrive as strings; convert the known slice fields.
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when supplied via env vars.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from the YAML file)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - RENOWN_SERVER_PORT      -> server.port
//   - RENOWN_DATABASE_PATH    -> database.path
//   - KASA_API_KEY            -> platforms.kasa.api_key
//   - GOOGLE_PLACES_API_KEY   -> platforms.google.api_key
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	// Legacy flat names kept for operator convenience.
	legacy := map[string]string{
		"database_path":           "database.path",
		"http_port":               "server.port",
		"log_level":               "logging.level",
		"log_format":              "logging.format",
		"google_places_api_key":   "platforms.google.api_key",
		"google_enabled":          "platforms.google.enabled",
		"tripadvisor_api_key":     "platforms.tripadvisor.api_key",
		"tripadvisor_enabled":     "platforms.tripadvisor.enabled",
		"booking_api_key":         "platforms.booking.api_key",
		"booking_enabled":         "platforms.booking.enabled",
		"expedia_api_key":         "platforms.expedia.api_key",
		"expedia_enabled":         "platforms.expedia.enabled",
		"kasa_api_key":            "platforms.kasa.api_key",
		"kasa_base_url":           "platforms.kasa.base_url",
		"kasa_enabled":            "platforms.kasa.enabled",
		"insights_gateway_url":    "insights.gateway_url",
		"insights_api_key":        "insights.api_key",
		"insights_enabled":        "insights.enabled",
		"insights_auto_generate":  "insights.auto_generate",
		"autoheal_enabled":        "autoheal.enabled",
		"autoheal_retry_attempts": "autoheal.retry_attempts",
	}
	if mapped, ok := legacy[key]; ok {
		return mapped
	}

	// RENOWN_SECTION_FIELD_NAME -> section.field_name
	if rest, ok := strings.CutPrefix(key, "renown_"); ok {
		if section, field, found := strings.Cut(rest, "_"); found {
			return section + "." + field
		}
		return rest
	}

	// Unknown vars are dropped rather than polluting the config tree.
	return ""
}
