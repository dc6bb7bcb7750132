// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

// Package refresh drives score collection runs across the property/platform
// grid.
//
// A run moves through phases (resolving, then fetching, then complete) and
// tracks every cell it touches through queued, fetching, and a terminal
// state. Platform calls are paced to respect upstream rate limits: a
// limiter spaces consecutive fetches and a longer gap separates properties
// during bulk runs. One run executes at a time; triggers during a run are
// rejected, never queued behind it, and a started run always completes.
//
// Failed fetches never write snapshots. The failure lives only in the run
// status, where RetryFailed can pick it up; score history stays clean.
package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/database"
	"github.com/renownhq/renown/internal/logging"
	"github.com/renownhq/renown/internal/metrics"
	"github.com/renownhq/renown/internal/models"
	"github.com/renownhq/renown/internal/platform"
	"github.com/renownhq/renown/internal/score"
)

// ErrRunInProgress is returned by trigger methods while a run is active.
var ErrRunInProgress = errors.New("refresh run already in progress")

// Store is the persistence surface the orchestrator needs.
type Store interface {
	ListProperties(ctx context.Context) ([]models.Property, error)
	GetProperty(ctx context.Context, id string) (*models.Property, error)
	GetAlias(ctx context.Context, propertyID string, p models.Platform) (*models.PlatformAlias, error)
	InsertScoreSnapshot(ctx context.Context, s *models.ScoreSnapshot) error
}

// Resolver is the identity resolution surface. *resolve.Resolver
// satisfies this.
type Resolver interface {
	NeedsResolution(ctx context.Context, propertyID string, p models.Platform) (bool, error)
	Resolve(ctx context.Context, property *models.Property, p models.Platform) (*models.PlatformAlias, error)
}

// FetcherSource hands out score fetchers per platform. *platform.Registry
// satisfies this.
type FetcherSource interface {
	Fetcher(p models.Platform) (platform.Fetcher, bool)
	Platforms() []models.Platform
}

// Hook receives run lifecycle events. The wiring layer uses it to
// invalidate the score cache and push progress over WebSocket.
type Hook interface {
	// OnSnapshot fires after each snapshot commit.
	OnSnapshot(propertyID string, p models.Platform)
	// OnProgress fires after every cell reaches a terminal state.
	OnProgress(status Status)
	// OnRunComplete fires once per run, after the last cell.
	OnRunComplete(status Status)
}

// NopHook is a Hook that does nothing.
type NopHook struct{}

func (NopHook) OnSnapshot(string, models.Platform) {}
func (NopHook) OnProgress(Status)                  {}
func (NopHook) OnRunComplete(Status)               {}

type request struct {
	scope      string // "all", "property", "cell", "retry_failed"
	propertyID string
	platform   models.Platform
}

// target is one property with the platforms to process for it.
type target struct {
	property  models.Property
	platforms []models.Platform
}

// Orchestrator serializes refresh runs. It is a suture service: Serve
// consumes triggers until its context is canceled.
type Orchestrator struct {
	store    Store
	resolver Resolver
	fetchers FetcherSource
	hook     Hook
	cfg      config.RefreshConfig

	tracker  *tracker
	requests chan request
	running  atomic.Bool
}

func New(store Store, resolver Resolver, fetchers FetcherSource, hook Hook, cfg config.RefreshConfig) *Orchestrator {
	if hook == nil {
		hook = NopHook{}
	}
	return &Orchestrator{
		store:    store,
		resolver: resolver,
		fetchers: fetchers,
		hook:     hook,
		cfg:      cfg,
		tracker:  newTracker(),
		requests: make(chan request, 1),
	}
}

// Serve runs the trigger loop until ctx is canceled. A run that has
// started is not interrupted by later triggers; only ctx cancellation
// stops the loop, and then only between cells.
func (o *Orchestrator) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-o.requests:
			o.running.Store(true)
			o.run(ctx, req)
			o.running.Store(false)
		}
	}
}

// Status returns a copy of the current run state.
func (o *Orchestrator) Status() Status {
	return o.tracker.snapshot()
}

// FailedCount returns how many cells the current or last run left failed.
func (o *Orchestrator) FailedCount() int {
	return o.tracker.failedCount()
}

// TriggerAll starts a bulk run over every property and enabled platform.
func (o *Orchestrator) TriggerAll() error {
	return o.enqueue(request{scope: "all"})
}

// TriggerProperty starts a run over one property's row.
func (o *Orchestrator) TriggerProperty(propertyID string) error {
	return o.enqueue(request{scope: "property", propertyID: propertyID})
}

// TriggerCell starts a run over a single (property, platform) cell.
func (o *Orchestrator) TriggerCell(propertyID string, p models.Platform) error {
	return o.enqueue(request{scope: "cell", propertyID: propertyID, platform: p})
}

// TriggerRetryFailed re-runs only the cells the last run left failed.
func (o *Orchestrator) TriggerRetryFailed() error {
	return o.enqueue(request{scope: "retry_failed"})
}

func (o *Orchestrator) enqueue(req request) error {
	if o.running.Load() {
		return ErrRunInProgress
	}
	select {
	case o.requests <- req:
		return nil
	default:
		return ErrRunInProgress
	}
}

func (o *Orchestrator) run(ctx context.Context, req request) {
	targets, err := o.buildTargets(ctx, req)
	if err != nil {
		logging.Error().Err(err).Str("scope", req.scope).Msg("Refresh run aborted before start")
		return
	}

	start := time.Now()
	o.tracker.begin(req.scope)
	logging.Info().Str("scope", req.scope).Int("properties", len(targets)).Msg("Refresh run started")

	for _, t := range targets {
		for _, p := range t.platforms {
			o.tracker.setCell(t.property.ID, p, CellQueued, "", "")
		}
	}

	o.resolvePhase(ctx, targets)

	o.tracker.setPhase(PhaseFetching)
	limiter := rate.NewLimiter(rate.Every(o.cfg.PlatformDelay), 1)

	cells := 0
	for i, t := range targets {
		for _, p := range t.platforms {
			if err := limiter.Wait(ctx); err != nil {
				o.abandon(ctx, req.scope, start, cells)
				return
			}
			o.processCell(ctx, &t.property, p)
			cells++
			o.hook.OnProgress(o.tracker.snapshot())
		}
		// Bulk runs breathe between properties.
		if i < len(targets)-1 {
			if err := waitCtx(ctx, o.cfg.PropertyDelay); err != nil {
				o.abandon(ctx, req.scope, start, cells)
				return
			}
		}
	}

	o.tracker.setPhase(PhaseComplete)
	metrics.RecordRefreshRun(req.scope, time.Since(start), cells)
	status := o.tracker.snapshot()
	logging.Info().
		Str("scope", req.scope).
		Int("completed", status.Completed).
		Int("failed", status.Failed).
		Int("not_listed", status.NotListed).
		Dur("duration", time.Since(start)).
		Msg("Refresh run finished")
	o.hook.OnRunComplete(status)
}

// abandon finalizes a run cut short by shutdown. Processed cells keep
// their states; unprocessed cells stay queued in the final status.
func (o *Orchestrator) abandon(ctx context.Context, scope string, start time.Time, cells int) {
	o.tracker.setPhase(PhaseComplete)
	logging.Warn().Str("scope", scope).Int("cells_processed", cells).Err(ctx.Err()).Msg("Refresh run stopped by shutdown")
	o.hook.OnRunComplete(o.tracker.snapshot())
}

func (o *Orchestrator) buildTargets(ctx context.Context, req request) ([]target, error) {
	switch req.scope {
	case "all":
		properties, err := o.store.ListProperties(ctx)
		if err != nil {
			return nil, err
		}
		platforms := o.fetchers.Platforms()
		targets := make([]target, 0, len(properties))
		for _, prop := range properties {
			targets = append(targets, target{property: prop, platforms: platforms})
		}
		return targets, nil

	case "property":
		prop, err := o.store.GetProperty(ctx, req.propertyID)
		if err != nil {
			return nil, err
		}
		return []target{{property: *prop, platforms: o.fetchers.Platforms()}}, nil

	case "cell":
		prop, err := o.store.GetProperty(ctx, req.propertyID)
		if err != nil {
			return nil, err
		}
		return []target{{property: *prop, platforms: []models.Platform{req.platform}}}, nil

	case "retry_failed":
		failed := o.tracker.failedCells()
		byProperty := make(map[string][]models.Platform)
		for _, c := range failed {
			byProperty[c.PropertyID] = append(byProperty[c.PropertyID], c.Platform)
		}
		var targets []target
		for propertyID, platforms := range byProperty {
			prop, err := o.store.GetProperty(ctx, propertyID)
			if err != nil {
				logging.Warn().Err(err).Str("property", propertyID).Msg("Skipping failed cell retry, property gone")
				continue
			}
			targets = append(targets, target{property: *prop, platforms: platforms})
		}
		return targets, nil

	default:
		return nil, errors.New("unknown refresh scope " + req.scope)
	}
}

// resolvePhase runs identity resolution for every pair that needs it.
// Pairs with settled aliases (resolved, not_listed, needs_review) are
// skipped; only missing rows and transient failures re-resolve.
func (o *Orchestrator) resolvePhase(ctx context.Context, targets []target) {
	for _, t := range targets {
		for _, p := range t.platforms {
			if ctx.Err() != nil {
				return
			}
			needs, err := o.resolver.NeedsResolution(ctx, t.property.ID, p)
			if err != nil {
				logging.Warn().Err(err).Str("property", t.property.ID).Str("platform", string(p)).Msg("Needs-resolution check failed")
				continue
			}
			if !needs {
				continue
			}

			rctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
			_, err = o.resolver.Resolve(rctx, &t.property, p)
			cancel()
			if err != nil {
				logging.Warn().Err(err).Str("property", t.property.ID).Str("platform", string(p)).Msg("Resolution failed")
			}

			// Search endpoints rate-limit like fetch endpoints do.
			if err := waitCtx(ctx, o.cfg.PropertyDelay); err != nil {
				return
			}
		}
	}
}

// processCell runs the fetch for one cell and records the result. At most
// two attempts: the first, plus one retry after a longer backoff when the
// outcome was transient.
func (o *Orchestrator) processCell(ctx context.Context, property *models.Property, p models.Platform) {
	o.tracker.setCell(property.ID, p, CellFetching, "", "")

	alias, err := o.store.GetAlias(ctx, property.ID, p)
	if errors.Is(err, database.ErrNotFound) {
		o.finishCell(property, p, models.NoIdentity())
		return
	}
	if err != nil {
		o.finishCell(property, p, models.APIError(err.Error()))
		return
	}

	switch alias.Status {
	case models.AliasResolved:
		// fetchable
	case models.AliasNotListed:
		// Confirmed absence at resolution time. No identifier exists to
		// fetch, and re-confirming every run would hammer the search
		// endpoints; the cell just reports the known state.
		o.tracker.setCell(property.ID, p, CellNotListed, models.FetchNotListed, "")
		return
	default:
		o.finishCell(property, p, models.NoIdentity())
		return
	}

	fetcher, ok := o.fetchers.Fetcher(p)
	if !ok {
		o.finishCell(property, p, models.APIError("platform not enabled"))
		return
	}

	result := o.attempt(ctx, fetcher, alias.Identifier, p)
	if result.Transient() {
		if err := waitCtx(ctx, o.cfg.RetryBackoff); err != nil {
			o.finishCell(property, p, result)
			return
		}
		result = o.attempt(ctx, fetcher, alias.Identifier, p)
	}

	o.finishCell(property, p, result)
}

func (o *Orchestrator) attempt(ctx context.Context, fetcher platform.Fetcher, identifier string, p models.Platform) models.FetchResult {
	fctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	result := fetcher.FetchScore(fctx, identifier)
	metrics.RecordFetch(string(p), string(result.Outcome), time.Since(start))
	return result
}

// finishCell writes the snapshot for an observation and sets the cell's
// terminal state. Failures set state only; nothing reaches the database.
func (o *Orchestrator) finishCell(property *models.Property, p models.Platform, result models.FetchResult) {
	// The snapshot write must survive run shutdown, so it does not use
	// the run context.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	switch result.Outcome {
	case models.FetchFound:
		normalized := score.Normalize(result.RawScore, result.Scale)
		snap := &models.ScoreSnapshot{
			PropertyID:  property.ID,
			Platform:    p,
			RawScore:    result.RawScore,
			RawScale:    result.Scale,
			ReviewCount: result.ReviewCount,
			Normalized:  &normalized,
			Status:      models.SnapshotFound,
			CollectedAt: now,
		}
		if err := o.store.InsertScoreSnapshot(ctx, snap); err != nil {
			logging.Error().Err(err).Str("property", property.ID).Str("platform", string(p)).Msg("Snapshot write failed")
			o.tracker.setCell(property.ID, p, CellFailed, models.FetchAPIError, err.Error())
			return
		}
		o.tracker.setCell(property.ID, p, CellComplete, result.Outcome, "")
		o.hook.OnSnapshot(property.ID, p)

	case models.FetchNotListed:
		snap := &models.ScoreSnapshot{
			PropertyID:  property.ID,
			Platform:    p,
			Status:      models.SnapshotNotListed,
			CollectedAt: now,
		}
		if err := o.store.InsertScoreSnapshot(ctx, snap); err != nil {
			logging.Error().Err(err).Str("property", property.ID).Str("platform", string(p)).Msg("Snapshot write failed")
			o.tracker.setCell(property.ID, p, CellFailed, models.FetchAPIError, err.Error())
			return
		}
		o.tracker.setCell(property.ID, p, CellNotListed, result.Outcome, "")
		o.hook.OnSnapshot(property.ID, p)

	default:
		o.tracker.setCell(property.ID, p, CellFailed, result.Outcome, result.Message)
	}
}

func waitCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
