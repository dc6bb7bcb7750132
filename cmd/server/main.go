// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

// Package main is the entry point for the Renown server.
//
// Renown tracks guest-review reputation for a portfolio of short-stay
// properties. It collects ratings from the major travel platforms
// (Google, TripAdvisor, Booking.com, Expedia) plus the first-party Kasa
// API, normalizes them onto a common 0-10 scale, and serves a dashboard
// grid of per-property and per-group composites with full score history.
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, config.yaml,
//     environment variables)
//  2. Database: embedded DuckDB holding properties, identity aliases,
//     and append-only score snapshots
//  3. Platform registry: one adapter per enabled review platform, with
//     a circuit breaker around the first-party Kasa API
//  4. Refresh orchestrator: paced collection runs over the
//     property/platform grid
//  5. Auto-heal sweep: one-shot backfill of grid holes after startup
//  6. HTTP server: REST API plus WebSocket progress streaming
//
// All long-running services run under a suture supervisor tree; the
// collection layer restarts independently of the API layer.
//
// # Signal Handling
//
// SIGINT and SIGTERM shut the tree down gracefully: in-flight HTTP
// requests drain, a running refresh stops between cells, and the
// database closes last.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/renownhq/renown/internal/api"
	"github.com/renownhq/renown/internal/autoheal"
	"github.com/renownhq/renown/internal/cache"
	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/database"
	"github.com/renownhq/renown/internal/insights"
	"github.com/renownhq/renown/internal/logging"
	"github.com/renownhq/renown/internal/metrics"
	"github.com/renownhq/renown/internal/models"
	"github.com/renownhq/renown/internal/platform"
	"github.com/renownhq/renown/internal/refresh"
	"github.com/renownhq/renown/internal/resolve"
	"github.com/renownhq/renown/internal/supervisor"
	"github.com/renownhq/renown/internal/supervisor/services"
	ws "github.com/renownhq/renown/internal/websocket"
)

// version is set at build time via -ldflags.
var version = "dev"

// runHook reacts to refresh run events: it invalidates the score cache,
// streams progress to dashboard clients, and kicks off the follow-up
// work a completed run implies (group recomputes, insight regeneration).
type runHook struct {
	scoreCache *cache.Cache
	hub        *ws.Hub
	groups     *refresh.GroupAggregator
	insightGen *insights.Generator
	cfg        config.InsightsConfig
}

func (h *runHook) OnSnapshot(propertyID string, p models.Platform) {
	h.scoreCache.Clear()
	h.hub.BroadcastScoresUpdate(map[string]string{
		"property_id": propertyID,
		"platform":    string(p),
	})
}

func (h *runHook) OnProgress(status refresh.Status) {
	h.hub.BroadcastRefreshProgress(status)
}

func (h *runHook) OnRunComplete(status refresh.Status) {
	h.hub.BroadcastRefreshCompleted(status)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := h.groups.ComputeAll(ctx); err != nil {
		logging.Warn().Err(err).Msg("Group recompute after refresh failed")
	}

	if h.cfg.Enabled && h.cfg.AutoGenerate && status.Scope == "all" {
		seen := make(map[string]struct{})
		for _, cell := range status.Cells {
			if _, ok := seen[cell.PropertyID]; ok {
				continue
			}
			seen[cell.PropertyID] = struct{}{}
			h.insightGen.GenerateAsync(cell.PropertyID)
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
	})

	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Int("platforms", len(cfg.EnabledPlatforms())).
		Msg("Starting Renown")
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := platform.NewRegistry(cfg)
	resolver := resolve.New(db, registry, cfg.Refresh.MinConfidence)

	scoreCache := cache.New("scores", 5*time.Minute)
	defer scoreCache.Stop()

	hub := ws.NewHub()
	groups := refresh.NewGroupAggregator(db)
	insightGen := insights.New(db, registry, cfg.Insights)

	hook := &runHook{
		scoreCache: scoreCache,
		hub:        hub,
		groups:     groups,
		insightGen: insightGen,
		cfg:        cfg.Insights,
	}
	orchestrator := refresh.New(db, resolver, registry, hook, cfg.Refresh)
	sweeper := autoheal.New(db, registry, hub, cfg.AutoHeal, cfg.Refresh.FetchTimeout)

	handler := api.NewHandler(db, orchestrator, resolver, insightGen, scoreCache, hub)
	server := api.NewServer(handler, cfg.Server)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddCollectionService(services.NewWebSocketHubService(hub))
	tree.AddCollectionService(services.Named("refresh-orchestrator", orchestrator))
	tree.AddCollectionService(services.Named("autoheal-sweeper", sweeper))
	tree.AddAPIService(services.Named("http-server", server))

	// Uptime gauge for the /metrics endpoint.
	start := time.Now()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.AppUptime.Set(time.Since(start).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	logging.Info().Msg("Renown stopped gracefully")
}
