// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package models

import "time"

// AliasStatus is the resolution state of a (property, platform) pair.
//
// The implicit initial state is "pending": no alias row exists yet.
// State machine:
//
//	pending -> resolved | not_listed | needs_review | scrape_failed | timeout
//
// resolved and not_listed are terminal. needs_review is terminal until a
// human picks a candidate (the manual alias update transitions straight to
// resolved). scrape_failed and timeout are transient: the orchestrator may
// re-invoke resolution later.
type AliasStatus string

const (
	AliasResolved     AliasStatus = "resolved"
	AliasNotListed    AliasStatus = "not_listed"
	AliasNeedsReview  AliasStatus = "needs_review"
	AliasScrapeFailed AliasStatus = "scrape_failed"
	AliasTimeout      AliasStatus = "timeout"
)

// Transient reports whether the status is a transient failure that allows
// automatic re-resolution.
func (s AliasStatus) Transient() bool {
	return s == AliasScrapeFailed || s == AliasTimeout
}

// PlatformAlias is the stable external identity of a property on one
// platform. At most one row exists per (property, platform); writes are
// upserts with conflict-overwrite semantics, last writer wins.
type PlatformAlias struct {
	PropertyID string      `json:"property_id"`
	Platform   Platform    `json:"platform"`
	Identifier string      `json:"identifier,omitempty"`
	Status     AliasStatus `json:"status"`

	// Confidence of the winning match, 0-1. Meaningful for resolved and
	// needs_review rows.
	Confidence float64 `json:"confidence,omitempty"`

	// Candidates holds the alternatives found for ambiguous matches, so a
	// human can pick one via the manual alias update.
	Candidates []AliasCandidate `json:"candidates,omitempty"`

	ResolvedAt time.Time `json:"resolved_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// AliasCandidate is one possible identity match returned by a platform's
// search surface.
type AliasCandidate struct {
	Identifier string  `json:"identifier"`
	Name       string  `json:"name"`
	Location   string  `json:"location,omitempty"`
	Confidence float64 `json:"confidence"`
}
