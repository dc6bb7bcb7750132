// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

// Package insights summarizes a property's recent guest reviews into a
// short narrative via an LLM gateway. Reviews are pulled from every
// platform that exposes them, most recent first, capped to a configured
// budget before they feed the prompt. Summaries are cached in the
// database and only regenerated on request or after a bulk refresh.
package insights

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/logging"
	"github.com/renownhq/renown/internal/metrics"
	"github.com/renownhq/renown/internal/models"
	"github.com/renownhq/renown/internal/platform"
)

// ErrDisabled is returned when insight generation is not configured.
var ErrDisabled = errors.New("insights disabled")

// ErrNoReviews is returned when no platform produced any review text.
var ErrNoReviews = errors.New("no reviews available")

// Store is the persistence surface the generator needs.
type Store interface {
	GetProperty(ctx context.Context, id string) (*models.Property, error)
	GetAlias(ctx context.Context, propertyID string, p models.Platform) (*models.PlatformAlias, error)
	UpsertInsight(ctx context.Context, ins *models.Insight) error
	GetInsight(ctx context.Context, propertyID string) (*models.Insight, error)
}

// ReviewSource hands out review fetchers per platform. *platform.Registry
// satisfies this.
type ReviewSource interface {
	ReviewFetcher(p models.Platform) (platform.ReviewFetcher, bool)
	Platforms() []models.Platform
}

// completer abstracts the gateway for tests.
type completer interface {
	complete(ctx context.Context, prompt string) (string, error)
}

// Generator builds review summaries on demand.
type Generator struct {
	store   Store
	reviews ReviewSource
	gateway completer
	cfg     config.InsightsConfig
}

func New(store Store, reviews ReviewSource, cfg config.InsightsConfig) *Generator {
	return &Generator{
		store:   store,
		reviews: reviews,
		gateway: newGatewayClient(cfg),
		cfg:     cfg,
	}
}

// Get returns the cached insight for a property. database.ErrNotFound
// passes through when none has been generated yet.
func (g *Generator) Get(ctx context.Context, propertyID string) (*models.Insight, error) {
	return g.store.GetInsight(ctx, propertyID)
}

// Generate collects the property's recent reviews, summarizes them, and
// persists the result.
func (g *Generator) Generate(ctx context.Context, propertyID string) (*models.Insight, error) {
	if !g.cfg.Enabled {
		return nil, ErrDisabled
	}

	property, err := g.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	reviews := g.collectReviews(ctx, property)
	if len(reviews) == 0 {
		metrics.InsightsGenerated.WithLabelValues("failure").Inc()
		return nil, ErrNoReviews
	}

	summary, err := g.gateway.complete(ctx, buildPrompt(property, reviews))
	if err != nil {
		metrics.InsightsGenerated.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("summarize reviews: %w", err)
	}

	ins := &models.Insight{
		PropertyID:  propertyID,
		Summary:     summary,
		Model:       g.cfg.Model,
		ReviewCount: len(reviews),
		GeneratedAt: time.Now().UTC(),
	}
	if err := g.store.UpsertInsight(ctx, ins); err != nil {
		metrics.InsightsGenerated.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.InsightsGenerated.WithLabelValues("success").Inc()
	logging.Info().Str("property", propertyID).Int("reviews", len(reviews)).Msg("Insight generated")
	return ins, nil
}

// GenerateAsync fires Generate in the background with its own timeout.
// Used after bulk refreshes; failures are logged, never surfaced.
func (g *Generator) GenerateAsync(propertyID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := g.Generate(ctx, propertyID); err != nil &&
			!errors.Is(err, ErrDisabled) && !errors.Is(err, ErrNoReviews) {
			logging.Warn().Err(err).Str("property", propertyID).Msg("Background insight generation failed")
		}
	}()
}

// collectReviews fans out to every platform with review support and a
// resolved alias, then merges newest-first up to the configured cap.
// Per-platform failures degrade to fewer reviews, not an error.
func (g *Generator) collectReviews(ctx context.Context, property *models.Property) []models.Review {
	var (
		mu  sync.Mutex
		all []models.Review
		wg  sync.WaitGroup
	)

	for _, p := range g.reviews.Platforms() {
		fetcher, ok := g.reviews.ReviewFetcher(p)
		if !ok {
			continue
		}
		alias, err := g.store.GetAlias(ctx, property.ID, p)
		if err != nil || alias.Status != models.AliasResolved {
			continue
		}

		wg.Add(1)
		go func(p models.Platform, fetcher platform.ReviewFetcher, identifier string) {
			defer wg.Done()
			reviews, err := fetcher.FetchReviews(ctx, identifier, g.cfg.MaxReviews)
			if err != nil {
				logging.Warn().Err(err).Str("property", property.ID).Str("platform", string(p)).Msg("Review fetch failed")
				return
			}
			mu.Lock()
			all = append(all, reviews...)
			mu.Unlock()
		}(p, fetcher, alias.Identifier)
	}
	wg.Wait()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt > all[j].CreatedAt
	})
	if len(all) > g.cfg.MaxReviews {
		all = all[:g.cfg.MaxReviews]
	}
	return all
}

func buildPrompt(property *models.Property, reviews []models.Review) string {
	var sb strings.Builder
	sb.WriteString("Summarize guest sentiment for the property below in 3-5 sentences.\n")
	sb.WriteString("Cover recurring praise, recurring complaints, and any recent trend. Plain prose only, no headings or lists.\n\n")
	fmt.Fprintf(&sb, "Property: %s (%s, %s)\n\n", property.Name, property.City, property.State)
	sb.WriteString("Recent reviews:\n")
	for _, r := range reviews {
		// Ratings stay on each platform's native scale; the prompt names
		// the scale so the model reads them correctly.
		fmt.Fprintf(&sb, "- [%s, %.1f/%.0f] %s\n", r.Platform, r.Rating, r.Platform.NativeScale(), r.Text)
	}
	return sb.String()
}
