// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

// Package autoheal backfills holes in the score grid left by earlier
// failed runs.
//
// A sweep starts once per process, after a startup delay that lets the
// first scheduled refresh land. It scans for (property, platform) pairs
// with no snapshot at all, skips pairs whose alias says the property is
// not listed there, and works through the rest in small paced batches so
// the healing traffic never competes with a live refresh for rate-limit
// budget. Every pair that exhausts its retry budget, and every pair that
// recovers, is recorded in the heal log.
package autoheal

import (
	"context"
	"errors"
	"time"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/database"
	"github.com/renownhq/renown/internal/logging"
	"github.com/renownhq/renown/internal/metrics"
	"github.com/renownhq/renown/internal/models"
	"github.com/renownhq/renown/internal/platform"
	"github.com/renownhq/renown/internal/score"
)

// Store is the persistence surface the sweep needs.
type Store interface {
	ListProperties(ctx context.Context) ([]models.Property, error)
	LatestScores(ctx context.Context) ([]models.ScoreSnapshot, error)
	GetAlias(ctx context.Context, propertyID string, p models.Platform) (*models.PlatformAlias, error)
	InsertScoreSnapshot(ctx context.Context, s *models.ScoreSnapshot) error
	UpsertHealLog(ctx context.Context, entry *models.HealLogEntry) error
}

// FetcherSource hands out score fetchers per platform.
type FetcherSource interface {
	Fetcher(p models.Platform) (platform.Fetcher, bool)
	Platforms() []models.Platform
}

// Notifier pushes sweep progress to dashboard clients.
type Notifier interface {
	BroadcastHealProgress(data interface{})
}

type nopNotifier struct{}

func (nopNotifier) BroadcastHealProgress(interface{}) {}

// gap is one hole in the score grid.
type gap struct {
	property models.Property
	platform models.Platform
}

// Progress is the payload broadcast after each batch.
type Progress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Recovered int `json:"recovered"`
	Failed    int `json:"failed"`
}

// Sweeper is a suture service that runs one healing sweep per process
// start and then idles until shutdown.
type Sweeper struct {
	store    Store
	fetchers FetcherSource
	notifier Notifier
	cfg      config.AutoHealConfig
	timeout  time.Duration
}

func New(store Store, fetchers FetcherSource, notifier Notifier, cfg config.AutoHealConfig, fetchTimeout time.Duration) *Sweeper {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Sweeper{
		store:    store,
		fetchers: fetchers,
		notifier: notifier,
		cfg:      cfg,
		timeout:  fetchTimeout,
	}
}

// Serve waits out the startup delay, runs the sweep, then blocks until
// ctx is canceled. Supervisor restarts after a crash rerun the sweep,
// which is safe: healed pairs no longer scan as gaps.
func (s *Sweeper) Serve(ctx context.Context) error {
	if !s.cfg.Enabled {
		<-ctx.Done()
		return ctx.Err()
	}

	select {
	case <-time.After(s.cfg.StartupDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Auto-heal sweep failed")
	}

	<-ctx.Done()
	return ctx.Err()
}

// Sweep scans for gaps and heals them in batches.
func (s *Sweeper) Sweep(ctx context.Context) error {
	start := time.Now()
	gaps, err := s.findGaps(ctx)
	if err != nil {
		return err
	}
	metrics.AutoHealGapsFound.Set(float64(len(gaps)))
	if len(gaps) == 0 {
		logging.Info().Msg("Auto-heal sweep found no gaps")
		return nil
	}
	logging.Info().Int("gaps", len(gaps)).Msg("Auto-heal sweep started")

	progress := Progress{Total: len(gaps)}
	for i := 0; i < len(gaps); i += s.cfg.BatchSize {
		end := i + s.cfg.BatchSize
		if end > len(gaps) {
			end = len(gaps)
		}
		for _, g := range gaps[i:end] {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.healPair(ctx, g) {
				progress.Recovered++
			} else {
				progress.Failed++
			}
			progress.Processed++
		}
		s.notifier.BroadcastHealProgress(progress)

		if end < len(gaps) {
			select {
			case <-time.After(s.cfg.BatchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	metrics.AutoHealDuration.Observe(time.Since(start).Seconds())
	logging.Info().
		Int("recovered", progress.Recovered).
		Int("failed", progress.Failed).
		Dur("duration", time.Since(start)).
		Msg("Auto-heal sweep finished")
	return nil
}

// findGaps lists pairs with no snapshot history at all. Pairs whose alias
// is not_listed are excluded: absence there is a settled answer, not a
// hole to heal.
func (s *Sweeper) findGaps(ctx context.Context) ([]gap, error) {
	properties, err := s.store.ListProperties(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.LatestScores(ctx)
	if err != nil {
		return nil, err
	}

	covered := make(map[string]struct{}, len(latest))
	for _, snap := range latest {
		covered[snap.PropertyID+"/"+string(snap.Platform)] = struct{}{}
	}

	var gaps []gap
	for _, prop := range properties {
		for _, p := range s.fetchers.Platforms() {
			if _, ok := covered[prop.ID+"/"+string(p)]; ok {
				continue
			}
			alias, err := s.store.GetAlias(ctx, prop.ID, p)
			if err != nil && !errors.Is(err, database.ErrNotFound) {
				return nil, err
			}
			if alias != nil && alias.Status == models.AliasNotListed {
				continue
			}
			gaps = append(gaps, gap{property: prop, platform: p})
		}
	}
	return gaps, nil
}

// healPair retries one gap up to the configured attempt budget and
// records the final outcome in the heal log. Returns true on recovery.
func (s *Sweeper) healPair(ctx context.Context, g gap) bool {
	var lastResult models.FetchResult
	attempts := 0

	for attempts < s.cfg.RetryAttempts {
		attempts++
		lastResult = s.attempt(ctx, g)
		if lastResult.Outcome == models.FetchFound || lastResult.Outcome == models.FetchNotListed {
			break
		}
		if attempts < s.cfg.RetryAttempts {
			select {
			case <-time.After(s.cfg.RetryDelay):
			case <-ctx.Done():
				return false
			}
		}
	}

	recovered := lastResult.Outcome == models.FetchFound || lastResult.Outcome == models.FetchNotListed
	if recovered {
		if err := s.writeSnapshot(g, lastResult); err != nil {
			logging.Error().Err(err).Str("property", g.property.ID).Str("platform", string(g.platform)).Msg("Heal snapshot write failed")
			recovered = false
			lastResult = models.APIError(err.Error())
		}
	}

	entry := &models.HealLogEntry{
		PropertyID:  g.property.ID,
		Platform:    g.platform,
		Attempts:    attempts,
		FinalStatus: "recovered",
		UpdatedAt:   time.Now().UTC(),
	}
	result := "recovered"
	if !recovered {
		entry.FinalStatus = "exhausted"
		entry.LastError = lastResult.Message
		result = "exhausted"
	}
	metrics.AutoHealResults.WithLabelValues(result).Inc()
	// The log write must survive sweep shutdown.
	wctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.store.UpsertHealLog(wctx, entry); err != nil {
		logging.Error().Err(err).Str("property", g.property.ID).Str("platform", string(g.platform)).Msg("Heal log write failed")
	}
	return recovered
}

func (s *Sweeper) attempt(ctx context.Context, g gap) models.FetchResult {
	alias, err := s.store.GetAlias(ctx, g.property.ID, g.platform)
	if errors.Is(err, database.ErrNotFound) {
		return models.NoIdentity()
	}
	if err != nil {
		return models.APIError(err.Error())
	}
	if alias.Status != models.AliasResolved {
		return models.NoIdentity()
	}

	fetcher, ok := s.fetchers.Fetcher(g.platform)
	if !ok {
		return models.APIError("platform not enabled")
	}

	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	result := fetcher.FetchScore(fctx, alias.Identifier)
	metrics.RecordFetch(string(g.platform), string(result.Outcome), time.Since(start))
	return result
}

func (s *Sweeper) writeSnapshot(g gap, result models.FetchResult) error {
	wctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap := &models.ScoreSnapshot{
		PropertyID:  g.property.ID,
		Platform:    g.platform,
		Status:      models.SnapshotNotListed,
		CollectedAt: time.Now().UTC(),
	}
	if result.Outcome == models.FetchFound {
		normalized := score.Normalize(result.RawScore, result.Scale)
		snap.RawScore = result.RawScore
		snap.RawScale = result.Scale
		snap.ReviewCount = result.ReviewCount
		snap.Normalized = &normalized
		snap.Status = models.SnapshotFound
	}
	return s.store.InsertScoreSnapshot(wctx, snap)
}
