// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package insights

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/database"
	"github.com/renownhq/renown/internal/models"
	"github.com/renownhq/renown/internal/platform"
)

type fakeStore struct {
	property *models.Property
	aliases  map[models.Platform]*models.PlatformAlias
	insights map[string]models.Insight
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		property: &models.Property{ID: "p1", Name: "Kasa Austin Downtown", City: "Austin", State: "TX"},
		aliases:  make(map[models.Platform]*models.PlatformAlias),
		insights: make(map[string]models.Insight),
	}
}

func (s *fakeStore) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	if s.property == nil || s.property.ID != id {
		return nil, fmt.Errorf("property %s: %w", id, database.ErrNotFound)
	}
	return s.property, nil
}

func (s *fakeStore) GetAlias(ctx context.Context, propertyID string, p models.Platform) (*models.PlatformAlias, error) {
	alias, ok := s.aliases[p]
	if !ok {
		return nil, fmt.Errorf("alias %s/%s: %w", propertyID, p, database.ErrNotFound)
	}
	return alias, nil
}

func (s *fakeStore) UpsertInsight(ctx context.Context, ins *models.Insight) error {
	s.insights[ins.PropertyID] = *ins
	return nil
}

func (s *fakeStore) GetInsight(ctx context.Context, propertyID string) (*models.Insight, error) {
	ins, ok := s.insights[propertyID]
	if !ok {
		return nil, fmt.Errorf("insight %s: %w", propertyID, database.ErrNotFound)
	}
	return &ins, nil
}

func (s *fakeStore) resolve(p models.Platform, identifier string) {
	s.aliases[p] = &models.PlatformAlias{
		PropertyID: "p1",
		Platform:   p,
		Identifier: identifier,
		Status:     models.AliasResolved,
	}
}

type fakeReviewFetcher struct {
	platform models.Platform
	reviews  []models.Review
	err      error
}

func (f *fakeReviewFetcher) Platform() models.Platform { return f.platform }

func (f *fakeReviewFetcher) FetchReviews(ctx context.Context, identifier string, limit int) ([]models.Review, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.reviews) > limit {
		return f.reviews[:limit], nil
	}
	return f.reviews, nil
}

type fakeReviewSource struct {
	fetchers map[models.Platform]*fakeReviewFetcher
}

func (s *fakeReviewSource) ReviewFetcher(p models.Platform) (platform.ReviewFetcher, bool) {
	f, ok := s.fetchers[p]
	return f, ok
}

func (s *fakeReviewSource) Platforms() []models.Platform {
	out := make([]models.Platform, 0, len(s.fetchers))
	for _, p := range models.AllPlatforms() {
		if _, ok := s.fetchers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func insightsConfig(gatewayURL string) config.InsightsConfig {
	return config.InsightsConfig{
		Enabled:    true,
		GatewayURL: gatewayURL,
		APIKey:     "test-key",
		Model:      "claude-sonnet-4-20250514",
		MaxReviews: 10,
	}
}

func gatewayStub(t *testing.T, summary string, capture *gatewayRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		resp := map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": summary}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestGenerateSummarizesReviews(t *testing.T) {
	var captured gatewayRequest
	server := gatewayStub(t, "Guests love the location; several recent stays mention slow check-in.", &captured)
	defer server.Close()

	store := newFakeStore()
	store.resolve(models.PlatformGoogle, "g-p1")
	store.resolve(models.PlatformKasa, "k-p1")
	source := &fakeReviewSource{fetchers: map[models.Platform]*fakeReviewFetcher{
		models.PlatformGoogle: {platform: models.PlatformGoogle, reviews: []models.Review{
			{Platform: models.PlatformGoogle, Rating: 5, Text: "Great location", CreatedAt: "2026-08-20T10:00:00Z"},
		}},
		models.PlatformKasa: {platform: models.PlatformKasa, reviews: []models.Review{
			{Platform: models.PlatformKasa, Rating: 7.5, Text: "Check-in took forever", CreatedAt: "2026-08-25T10:00:00Z"},
		}},
	}}

	g := New(store, source, insightsConfig(server.URL))
	ins, err := g.Generate(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if ins.ReviewCount != 2 {
		t.Errorf("review count = %d, want 2", ins.ReviewCount)
	}
	if !strings.Contains(ins.Summary, "slow check-in") {
		t.Errorf("summary not persisted verbatim: %q", ins.Summary)
	}
	if _, err := store.GetInsight(context.Background(), "p1"); err != nil {
		t.Errorf("insight not stored: %v", err)
	}

	prompt := captured.Messages[0].Content
	if !strings.Contains(prompt, "Kasa Austin Downtown") {
		t.Errorf("prompt missing property name")
	}
	if !strings.Contains(prompt, "Check-in took forever") || !strings.Contains(prompt, "Great location") {
		t.Errorf("prompt missing review text:\n%s", prompt)
	}
	// Native scales are spelled out per review line.
	if !strings.Contains(prompt, "5.0/5") || !strings.Contains(prompt, "7.5/10") {
		t.Errorf("prompt missing scale annotations:\n%s", prompt)
	}
}

func TestGenerateCapsReviewBudget(t *testing.T) {
	server := gatewayStub(t, "ok", nil)
	defer server.Close()

	store := newFakeStore()
	store.resolve(models.PlatformKasa, "k-p1")
	var reviews []models.Review
	for i := 0; i < 30; i++ {
		reviews = append(reviews, models.Review{
			Platform:  models.PlatformKasa,
			Rating:    8,
			Text:      fmt.Sprintf("stay %d", i),
			CreatedAt: fmt.Sprintf("2026-08-%02dT10:00:00Z", i%28+1),
		})
	}
	source := &fakeReviewSource{fetchers: map[models.Platform]*fakeReviewFetcher{
		models.PlatformKasa: {platform: models.PlatformKasa, reviews: reviews},
	}}

	cfg := insightsConfig(server.URL)
	cfg.MaxReviews = 5
	g := New(store, source, cfg)
	ins, err := g.Generate(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if ins.ReviewCount != 5 {
		t.Errorf("review count = %d, want 5", ins.ReviewCount)
	}
}

func TestGeneratePartialSourceFailureDegrades(t *testing.T) {
	server := gatewayStub(t, "ok", nil)
	defer server.Close()

	store := newFakeStore()
	store.resolve(models.PlatformGoogle, "g-p1")
	store.resolve(models.PlatformKasa, "k-p1")
	source := &fakeReviewSource{fetchers: map[models.Platform]*fakeReviewFetcher{
		models.PlatformGoogle: {platform: models.PlatformGoogle, err: errors.New("upstream 500")},
		models.PlatformKasa: {platform: models.PlatformKasa, reviews: []models.Review{
			{Platform: models.PlatformKasa, Rating: 9, Text: "Spotless", CreatedAt: "2026-08-25T10:00:00Z"},
		}},
	}}

	g := New(store, source, insightsConfig(server.URL))
	ins, err := g.Generate(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if ins.ReviewCount != 1 {
		t.Errorf("review count = %d, want 1", ins.ReviewCount)
	}
}

func TestGenerateNoReviews(t *testing.T) {
	server := gatewayStub(t, "should never be called", nil)
	defer server.Close()

	store := newFakeStore()
	source := &fakeReviewSource{fetchers: map[models.Platform]*fakeReviewFetcher{}}

	g := New(store, source, insightsConfig(server.URL))
	if _, err := g.Generate(context.Background(), "p1"); !errors.Is(err, ErrNoReviews) {
		t.Fatalf("expected ErrNoReviews, got %v", err)
	}
}

func TestGenerateDisabled(t *testing.T) {
	g := New(newFakeStore(), &fakeReviewSource{}, config.InsightsConfig{Enabled: false})
	if _, err := g.Generate(context.Background(), "p1"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestGatewayErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer server.Close()

	store := newFakeStore()
	store.resolve(models.PlatformKasa, "k-p1")
	source := &fakeReviewSource{fetchers: map[models.Platform]*fakeReviewFetcher{
		models.PlatformKasa: {platform: models.PlatformKasa, reviews: []models.Review{
			{Platform: models.PlatformKasa, Rating: 9, Text: "Spotless", CreatedAt: "2026-08-25T10:00:00Z"},
		}},
	}}

	g := New(store, source, insightsConfig(server.URL))
	_, err := g.Generate(context.Background(), "p1")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected gateway status error, got %v", err)
	}
}
