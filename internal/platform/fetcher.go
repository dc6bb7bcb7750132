// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

// Package platform holds the adapters for the external rating sources.
//
// Each adapter hides one platform's API behind three narrow capabilities:
// fetching the current rating for a known identifier (Fetcher), searching
// for a property's identity by name and location (Searcher), and pulling
// recent guest reviews (ReviewFetcher, first-party APIs only). Response
// quirks are normalized inside the adapter; callers see one taxonomy.
package platform

import (
	"context"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/models"
)

// Fetcher retrieves the current aggregate rating for a resolved identifier.
// Failures are reported through the FetchResult outcome, not an error:
// the orchestrator treats every attempt uniformly.
type Fetcher interface {
	Platform() models.Platform
	FetchScore(ctx context.Context, identifier string) models.FetchResult
}

// Searcher looks up a property's identity on a platform by name and
// location. Candidates come back without confidence scores; the resolver
// computes those from name similarity.
type Searcher interface {
	Platform() models.Platform
	Search(ctx context.Context, name, city, state string) ([]models.AliasCandidate, error)
}

// ReviewFetcher pulls recent guest reviews for a resolved identifier.
// Only the platforms whose APIs expose review text implement this.
type ReviewFetcher interface {
	Platform() models.Platform
	FetchReviews(ctx context.Context, identifier string, limit int) ([]models.Review, error)
}

// Registry holds the adapters for the enabled platforms.
type Registry struct {
	fetchers  map[models.Platform]Fetcher
	searchers map[models.Platform]Searcher
	reviews   map[models.Platform]ReviewFetcher
}

// NewRegistry builds adapters for every enabled platform. The Kasa client
// is wrapped in a circuit breaker: it is the first-party API every refresh
// touches, and an outage there should fail fast instead of stacking
// timeouts across a bulk run.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		fetchers:  make(map[models.Platform]Fetcher),
		searchers: make(map[models.Platform]Searcher),
		reviews:   make(map[models.Platform]ReviewFetcher),
	}

	timeout := cfg.Refresh.FetchTimeout

	if cfg.Platforms.Google.Enabled {
		g := NewGoogleClient(cfg.Platforms.Google, timeout)
		r.fetchers[models.PlatformGoogle] = g
		r.searchers[models.PlatformGoogle] = g
		r.reviews[models.PlatformGoogle] = g
	}
	if cfg.Platforms.TripAdvisor.Enabled {
		ta := NewTripAdvisorClient(cfg.Platforms.TripAdvisor, timeout)
		r.fetchers[models.PlatformTripAdvisor] = ta
		r.searchers[models.PlatformTripAdvisor] = ta
	}
	if cfg.Platforms.Booking.Enabled {
		b := NewBookingClient(cfg.Platforms.Booking, timeout)
		r.fetchers[models.PlatformBooking] = b
		r.searchers[models.PlatformBooking] = b
	}
	if cfg.Platforms.Expedia.Enabled {
		e := NewExpediaClient(cfg.Platforms.Expedia, timeout)
		r.fetchers[models.PlatformExpedia] = e
		r.searchers[models.PlatformExpedia] = e
	}
	if cfg.Platforms.Kasa.Enabled {
		k := NewKasaClient(cfg.Platforms.Kasa, timeout)
		r.fetchers[models.PlatformKasa] = NewBreakerFetcher(k)
		r.searchers[models.PlatformKasa] = k
		r.reviews[models.PlatformKasa] = k
	}

	return r
}

// Fetcher returns the score fetcher for a platform, if enabled.
func (r *Registry) Fetcher(p models.Platform) (Fetcher, bool) {
	f, ok := r.fetchers[p]
	return f, ok
}

// Searcher returns the identity searcher for a platform, if enabled.
func (r *Registry) Searcher(p models.Platform) (Searcher, bool) {
	s, ok := r.searchers[p]
	return s, ok
}

// ReviewFetcher returns the review fetcher for a platform, if it has one.
func (r *Registry) ReviewFetcher(p models.Platform) (ReviewFetcher, bool) {
	rf, ok := r.reviews[p]
	return rf, ok
}

// Platforms returns the enabled platforms in the stable display order.
func (r *Registry) Platforms() []models.Platform {
	var out []models.Platform
	for _, p := range models.AllPlatforms() {
		if _, ok := r.fetchers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
