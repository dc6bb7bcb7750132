// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package models

import "fmt"

// FetchOutcome classifies the result of one platform fetch attempt.
//
// Each platform adapter normalizes its own response quirks into this one
// taxonomy before returning to the orchestrator; there is no per-platform
// branching downstream.
type FetchOutcome string

const (
	// FetchFound means the platform returned a rating.
	FetchFound FetchOutcome = "found"

	// FetchNotListed means the platform confirmed the property does not
	// exist there. Terminal: never retried.
	FetchNotListed FetchOutcome = "not_listed"

	// FetchRateLimited means the platform rejected the call for pacing
	// reasons. Transient: retried with a longer backoff.
	FetchRateLimited FetchOutcome = "rate_limited"

	// FetchTimeout means the call did not complete in time. Transient.
	FetchTimeout FetchOutcome = "timeout"

	// FetchAPIError is an unclassified upstream failure. Bounded retry,
	// then the cell is marked failed.
	FetchAPIError FetchOutcome = "api_error"

	// FetchNoIdentity means no resolved alias exists for the pair, so the
	// fetch could not even be attempted. Not retried automatically;
	// resolution must run first.
	FetchNoIdentity FetchOutcome = "no_identity"
)

// FetchResult is the uniform result of a platform fetch.
// RawScore, Scale, and ReviewCount are meaningful only when Outcome is
// FetchFound; Message carries the upstream error text otherwise.
type FetchResult struct {
	Outcome     FetchOutcome
	RawScore    float64
	Scale       float64
	ReviewCount int
	Message     string
}

// Found builds a successful fetch result.
func Found(rawScore, scale float64, reviewCount int) FetchResult {
	return FetchResult{
		Outcome:     FetchFound,
		RawScore:    rawScore,
		Scale:       scale,
		ReviewCount: reviewCount,
	}
}

// NotListed builds a confirmed-absence result.
func NotListed() FetchResult {
	return FetchResult{Outcome: FetchNotListed}
}

// RateLimited builds a transient rate-limit result.
func RateLimited(msg string) FetchResult {
	return FetchResult{Outcome: FetchRateLimited, Message: msg}
}

// Timeout builds a transient timeout result.
func Timeout(msg string) FetchResult {
	return FetchResult{Outcome: FetchTimeout, Message: msg}
}

// APIError builds an unclassified upstream failure result.
func APIError(msg string) FetchResult {
	return FetchResult{Outcome: FetchAPIError, Message: msg}
}

// NoIdentity builds a result for a pair with no resolved alias.
func NoIdentity() FetchResult {
	return FetchResult{Outcome: FetchNoIdentity, Message: "no resolved identity for platform"}
}

// Transient reports whether the outcome is worth one more attempt.
func (r FetchResult) Transient() bool {
	return r.Outcome == FetchRateLimited || r.Outcome == FetchTimeout
}

// Err returns the result as an error for logging, or nil when the fetch
// found a rating or a confirmed absence.
func (r FetchResult) Err() error {
	switch r.Outcome {
	case FetchFound, FetchNotListed:
		return nil
	default:
		return fmt.Errorf("%s: %s", r.Outcome, r.Message)
	}
}

// Review is a single guest review as returned by the review-capable
// first-party APIs (Kasa, Google). Used by the insights generator.
type Review struct {
	Platform  Platform `json:"platform"`
	Rating    float64  `json:"rating"`
	Text      string   `json:"text"`
	Author    string   `json:"author,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
}
