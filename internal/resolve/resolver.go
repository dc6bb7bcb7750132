// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

// Package resolve maps properties to their external platform identities.
//
// Resolution runs a platform's search surface with the property's name and
// location, scores the candidates by name similarity, and writes exactly
// one alias row per (property, platform) pair:
//
//	confident single winner  -> resolved
//	ambiguous or low score   -> needs_review (candidates kept for a human)
//	no candidates            -> not_listed
//	search error             -> scrape_failed or timeout (retried later)
//
// needs_review and not_listed are never retried automatically; only the
// transient failure states re-enter resolution.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/renownhq/renown/internal/database"
	"github.com/renownhq/renown/internal/logging"
	"github.com/renownhq/renown/internal/metrics"
	"github.com/renownhq/renown/internal/models"
	"github.com/renownhq/renown/internal/platform"
)

// ambiguityMargin is the minimum lead the best candidate needs over the
// runner-up to resolve without human review.
const ambiguityMargin = 0.1

// Store is the persistence surface the resolver needs. Missing rows are
// reported with an error satisfying errors.Is(err, database.ErrNotFound).
type Store interface {
	GetAlias(ctx context.Context, propertyID string, p models.Platform) (*models.PlatformAlias, error)
	UpsertAlias(ctx context.Context, alias *models.PlatformAlias) error
}

// SearcherSource hands out the identity search surface per platform.
// *platform.Registry satisfies this.
type SearcherSource interface {
	Searcher(p models.Platform) (platform.Searcher, bool)
}

// Resolver drives identity resolution for (property, platform) pairs.
type Resolver struct {
	store         Store
	searchers     SearcherSource
	minConfidence float64
}

func New(store Store, searchers SearcherSource, minConfidence float64) *Resolver {
	return &Resolver{
		store:         store,
		searchers:     searchers,
		minConfidence: minConfidence,
	}
}

// NeedsResolution reports whether a pair should go through resolution
// before fetching. True when no alias row exists yet (the implicit pending
// state) or the last attempt failed transiently. resolved, not_listed, and
// needs_review rows are left alone.
func (r *Resolver) NeedsResolution(ctx context.Context, propertyID string, p models.Platform) (bool, error) {
	alias, err := r.store.GetAlias(ctx, propertyID, p)
	if errors.Is(err, database.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return alias.Status.Transient(), nil
}

// Resolve searches the platform for the property's identity and writes the
// resulting alias row. The returned alias reflects what was stored.
func (r *Resolver) Resolve(ctx context.Context, property *models.Property, p models.Platform) (*models.PlatformAlias, error) {
	searcher, ok := r.searchers.Searcher(p)
	if !ok {
		return nil, fmt.Errorf("platform %s has no search surface", p)
	}

	candidates, err := searcher.Search(ctx, property.Name, property.City, property.State)
	if err != nil {
		alias := &models.PlatformAlias{
			PropertyID: property.ID,
			Platform:   p,
			Status:     classifySearchError(err),
			ResolvedAt: time.Now().UTC(),
			LastError:  err.Error(),
		}
		return r.finish(ctx, alias)
	}

	alias := r.decide(property, p, candidates)
	return r.finish(ctx, alias)
}

// ApplyManual records a human's identity pick, moving the pair straight to
// resolved with full confidence. The pair must already have an alias row
// (resolution ran and produced candidates or a failure).
func (r *Resolver) ApplyManual(ctx context.Context, propertyID string, p models.Platform, identifier string) (*models.PlatformAlias, error) {
	alias, err := r.store.GetAlias(ctx, propertyID, p)
	if err != nil {
		return nil, err
	}

	alias.Identifier = identifier
	alias.Status = models.AliasResolved
	alias.Confidence = 1.0
	alias.Candidates = nil
	alias.ResolvedAt = time.Now().UTC()
	alias.LastError = ""

	if err := r.store.UpsertAlias(ctx, alias); err != nil {
		return nil, err
	}
	logging.Info().Str("property", propertyID).Str("platform", string(p)).Str("identifier", identifier).Msg("Alias resolved manually")
	return alias, nil
}

// decide scores candidates and picks the alias outcome.
func (r *Resolver) decide(property *models.Property, p models.Platform, candidates []models.AliasCandidate) *models.PlatformAlias {
	alias := &models.PlatformAlias{
		PropertyID: property.ID,
		Platform:   p,
		ResolvedAt: time.Now().UTC(),
	}

	if len(candidates) == 0 {
		alias.Status = models.AliasNotListed
		return alias
	}

	scored := make([]models.AliasCandidate, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		conf := nameSimilarity(property.Name, scored[i].Name)
		if locationMatch(property.City, scored[i].Location) {
			// Location agreement breaks near-ties between sibling
			// properties in different cities.
			conf = conf + (1-conf)*0.2
		}
		scored[i].Confidence = conf
	}

	best, second := 0, -1
	for i := 1; i < len(scored); i++ {
		switch {
		case scored[i].Confidence > scored[best].Confidence:
			second = best
			best = i
		case second == -1 || scored[i].Confidence > scored[second].Confidence:
			second = i
		}
	}

	winner := scored[best]
	unambiguous := second == -1 || winner.Confidence-scored[second].Confidence >= ambiguityMargin

	if winner.Confidence >= r.minConfidence && unambiguous {
		alias.Status = models.AliasResolved
		alias.Identifier = winner.Identifier
		alias.Confidence = winner.Confidence
		return alias
	}

	alias.Status = models.AliasNeedsReview
	alias.Confidence = winner.Confidence
	alias.Candidates = scored
	return alias
}

func (r *Resolver) finish(ctx context.Context, alias *models.PlatformAlias) (*models.PlatformAlias, error) {
	if err := r.store.UpsertAlias(ctx, alias); err != nil {
		return nil, fmt.Errorf("failed to store alias: %w", err)
	}
	metrics.ResolveOutcomes.WithLabelValues(string(alias.Platform), string(alias.Status)).Inc()
	logging.Debug().
		Str("property", alias.PropertyID).
		Str("platform", string(alias.Platform)).
		Str("status", string(alias.Status)).
		Float64("confidence", alias.Confidence).
		Msg("Alias resolution stored")
	return alias, nil
}

func classifySearchError(err error) models.AliasStatus {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return models.AliasTimeout
	}
	return models.AliasScrapeFailed
}
