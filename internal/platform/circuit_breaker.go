// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package platform

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/renownhq/renown/internal/logging"
	"github.com/renownhq/renown/internal/metrics"
	"github.com/renownhq/renown/internal/models"
)

// BreakerFetcher wraps a Fetcher with a circuit breaker. When the wrapped
// API is down, the breaker opens and fetches fail fast as api_error
// instead of each one burning a full timeout.
//
// DETERMINISM NOTE: the breaker uses real time (via sony/gobreaker) for
// its interval and timeout calculations. Tests that need deterministic
// behavior should test the wrapped fetcher directly.
type BreakerFetcher struct {
	inner Fetcher
	cb    *gobreaker.CircuitBreaker[models.FetchResult]
	name  string
}

// NewBreakerFetcher wraps a fetcher with circuit breaker protection.
// Configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewBreakerFetcher(inner Fetcher) *BreakerFetcher {
	cbName := string(inner.Platform()) + "-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[models.FetchResult](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false // Need at least 10 requests for statistical significance
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().Str("breaker", cbName).Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", stateToString(from)).Str("to", stateToString(to)).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &BreakerFetcher{
		inner: inner,
		cb:    cb,
		name:  cbName,
	}
}

func (b *BreakerFetcher) Platform() models.Platform { return b.inner.Platform() }

// FetchScore runs the wrapped fetch through the breaker. Transient and
// API failures count toward tripping it; found and not_listed count as
// successes.
func (b *BreakerFetcher) FetchScore(ctx context.Context, identifier string) models.FetchResult {
	result, err := b.cb.Execute(func() (models.FetchResult, error) {
		r := b.inner.FetchScore(ctx, identifier)
		return r, r.Err()
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Warn().Err(err).Str("breaker", b.name).Msg("[CIRCUIT BREAKER] Request rejected")
			return models.APIError("circuit breaker open: " + err.Error())
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		// The inner result still carries the precise outcome.
		return result
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
