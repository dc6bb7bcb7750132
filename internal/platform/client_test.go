// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/models"
)

func testClient(baseURL string) *apiClient {
	c := newAPIClient(config.PlatformConfig{BaseURL: baseURL, APIKey: "test-key"}, 5*time.Second)
	c.retryBaseDelay = time.Millisecond
	return c
}

func TestDoRequestWithRateLimitRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	resp, err := c.doRequestWithRateLimit(context.Background(), http.MethodGet, srv.URL, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (2 rate limited + 1 success)", calls)
	}
}

func TestDoRequestWithRateLimitExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.maxRetries = 2

	_, err := c.doRequestWithRateLimit(context.Background(), http.MethodGet, srv.URL, nil, nil)
	if !errors.Is(err, errRateLimited) {
		t.Fatalf("error = %v, want errRateLimited", err)
	}
}

func TestDoRequestCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient(srv.URL)
	_, err := c.doRequestWithRateLimit(ctx, http.MethodGet, srv.URL, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestGetJSONNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	var out struct{}
	err := c.getJSON(context.Background(), srv.URL, nil, &out)
	if !errors.Is(err, errNotFound) {
		t.Fatalf("error = %v, want errNotFound", err)
	}
}

func TestOutcomeFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.FetchOutcome
	}{
		{"rate limited", errRateLimited, models.FetchRateLimited},
		{"deadline", context.DeadlineExceeded, models.FetchTimeout},
		{"other", errors.New("boom"), models.FetchAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outcomeFromError(tt.err); got.Outcome != tt.want {
				t.Errorf("outcome = %s, want %s", got.Outcome, tt.want)
			}
		})
	}
}
