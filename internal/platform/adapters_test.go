// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/models"
)

func adapterConfig(baseURL string) config.PlatformConfig {
	return config.PlatformConfig{Enabled: true, BaseURL: baseURL, APIKey: "test-key"}
}

func TestGoogleFetchScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/places/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Goog-Api-Key") != "test-key" {
			t.Error("missing API key header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rating": 4.6, "userRatingCount": 412}`))
	}))
	defer srv.Close()

	c := NewGoogleClient(adapterConfig(srv.URL), 5*time.Second)
	result := c.FetchScore(context.Background(), "ChIJabc123")

	if result.Outcome != models.FetchFound {
		t.Fatalf("outcome = %s, want found", result.Outcome)
	}
	if result.RawScore != 4.6 || result.Scale != 5 || result.ReviewCount != 412 {
		t.Errorf("result = %+v, want 4.6/5 with 412 reviews", result)
	}
}

func TestGoogleFetchScoreNotListed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewGoogleClient(adapterConfig(srv.URL), 5*time.Second)
	result := c.FetchScore(context.Background(), "gone")

	if result.Outcome != models.FetchNotListed {
		t.Fatalf("outcome = %s, want not_listed", result.Outcome)
	}
}

func TestGoogleSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"places": [
			{"id": "ChIJ1", "displayName": {"text": "Kasa Austin Downtown"}, "formattedAddress": "Austin, TX"},
			{"id": "ChIJ2", "displayName": {"text": "Kasa Austin North"}, "formattedAddress": "Austin, TX"}
		]}`))
	}))
	defer srv.Close()

	c := NewGoogleClient(adapterConfig(srv.URL), 5*time.Second)
	candidates, err := c.Search(context.Background(), "Kasa Austin Downtown", "Austin", "TX")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidate count = %d, want 2", len(candidates))
	}
	if candidates[0].Identifier != "ChIJ1" || candidates[0].Name != "Kasa Austin Downtown" {
		t.Errorf("first candidate = %+v", candidates[0])
	}
}

func TestTripAdvisorFetchScoreParsesStrings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Error("missing key query param")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"location_id": "188151", "name": "Some Hotel", "rating": "4.5", "num_reviews": "1322"}`))
	}))
	defer srv.Close()

	c := NewTripAdvisorClient(adapterConfig(srv.URL), 5*time.Second)
	result := c.FetchScore(context.Background(), "188151")

	if result.Outcome != models.FetchFound {
		t.Fatalf("outcome = %s, want found", result.Outcome)
	}
	if result.RawScore != 4.5 || result.Scale != 5 || result.ReviewCount != 1322 {
		t.Errorf("result = %+v, want 4.5/5 with 1322 reviews", result)
	}
}

func TestTripAdvisorFetchScoreBadRating(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rating": "n/a", "num_reviews": "0"}`))
	}))
	defer srv.Close()

	c := NewTripAdvisorClient(adapterConfig(srv.URL), 5*time.Second)
	result := c.FetchScore(context.Background(), "188151")

	if result.Outcome != models.FetchAPIError {
		t.Fatalf("outcome = %s, want api_error", result.Outcome)
	}
}

func TestBookingFetchScoreEmptyResultIsNotListed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result": []}`))
	}))
	defer srv.Close()

	c := NewBookingClient(adapterConfig(srv.URL), 5*time.Second)
	result := c.FetchScore(context.Background(), "77777")

	if result.Outcome != models.FetchNotListed {
		t.Fatalf("outcome = %s, want not_listed", result.Outcome)
	}
}

func TestBookingFetchScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result": [{"hotel_id": "77777", "review_score": 8.7, "review_nr": 954}]}`))
	}))
	defer srv.Close()

	c := NewBookingClient(adapterConfig(srv.URL), 5*time.Second)
	result := c.FetchScore(context.Background(), "77777")

	if result.Outcome != models.FetchFound {
		t.Fatalf("outcome = %s, want found", result.Outcome)
	}
	if result.RawScore != 8.7 || result.Scale != 10 || result.ReviewCount != 954 {
		t.Errorf("result = %+v, want 8.7/10 with 954 reviews", result)
	}
}

func TestExpediaFetchScoreKeyedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Api-Key") != "test-key" {
			t.Error("missing Api-Key header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"9999": {"property_id": "9999", "name": "Som Hotel", "ratings": {"guest": {"count": 210, "overall": "8.4"}}}}`))
	}))
	defer srv.Close()

	c := NewExpediaClient(adapterConfig(srv.URL), 5*time.Second)
	result := c.FetchScore(context.Background(), "9999")

	if result.Outcome != models.FetchFound {
		t.Fatalf("outcome = %s, want found", result.Outcome)
	}
	if result.RawScore != 8.4 || result.Scale != 10 || result.ReviewCount != 210 {
		t.Errorf("result = %+v, want 8.4/10 with 210 reviews", result)
	}
}

func TestExpediaFetchScoreMissingKeyIsNotListed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewExpediaClient(adapterConfig(srv.URL), 5*time.Second)
	result := c.FetchScore(context.Background(), "9999")

	if result.Outcome != models.FetchNotListed {
		t.Fatalf("outcome = %s, want not_listed", result.Outcome)
	}
}

func TestKasaFetchReviews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing bearer token")
		}
		if r.URL.Query().Get("limit") != "2" {
			t.Errorf("limit = %s, want 2", r.URL.Query().Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reviews": [
			{"rating": 9, "text": "Great stay", "author": "A.", "created_at": "2026-08-01T10:00:00Z"},
			{"rating": 6, "text": "Noisy street", "author": "B.", "created_at": "2026-07-28T18:30:00Z"}
		]}`))
	}))
	defer srv.Close()

	c := NewKasaClient(adapterConfig(srv.URL), 5*time.Second)
	reviews, err := c.FetchReviews(context.Background(), "prop-1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("review count = %d, want 2", len(reviews))
	}
	if reviews[0].Platform != models.PlatformKasa || reviews[0].Rating != 9 {
		t.Errorf("first review = %+v", reviews[0])
	}
}

func TestRegistryEnabledPlatforms(t *testing.T) {
	cfg := &config.Config{}
	cfg.Refresh.FetchTimeout = 5 * time.Second
	cfg.Platforms.Google = adapterConfig("http://google.test")
	cfg.Platforms.Kasa = adapterConfig("http://kasa.test")

	reg := NewRegistry(cfg)

	platforms := reg.Platforms()
	if len(platforms) != 2 {
		t.Fatalf("platform count = %d, want 2", len(platforms))
	}
	if _, ok := reg.Fetcher(models.PlatformBooking); ok {
		t.Error("booking fetcher registered but platform disabled")
	}
	if _, ok := reg.ReviewFetcher(models.PlatformKasa); !ok {
		t.Error("kasa review fetcher missing")
	}
	if _, ok := reg.Searcher(models.PlatformGoogle); !ok {
		t.Error("google searcher missing")
	}
}

// failingFetcher always reports an upstream failure.
type failingFetcher struct{}

func (failingFetcher) Platform() models.Platform { return models.PlatformKasa }
func (failingFetcher) FetchScore(ctx context.Context, id string) models.FetchResult {
	return models.APIError("upstream down")
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	b := NewBreakerFetcher(failingFetcher{})

	for i := 0; i < 10; i++ {
		result := b.FetchScore(context.Background(), "prop-1")
		if result.Outcome != models.FetchAPIError {
			t.Fatalf("attempt %d outcome = %s, want api_error", i, result.Outcome)
		}
	}

	// The breaker has seen 10 failures out of 10 requests and should now
	// reject without invoking the inner fetcher.
	result := b.FetchScore(context.Background(), "prop-1")
	if result.Outcome != models.FetchAPIError {
		t.Fatalf("outcome = %s, want api_error", result.Outcome)
	}
	if !strings.Contains(result.Message, "circuit breaker open") {
		t.Errorf("message = %q, want circuit breaker rejection", result.Message)
	}
}
