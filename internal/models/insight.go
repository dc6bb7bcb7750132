// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package models

import "time"

// Insight is an AI-generated summary of a property's recent guest reviews.
// One row per property; regeneration overwrites.
type Insight struct {
	PropertyID  string    `json:"property_id"`
	Summary     string    `json:"summary"`
	Model       string    `json:"model,omitempty"`
	ReviewCount int       `json:"review_count"`
	GeneratedAt time.Time `json:"generated_at"`
}
