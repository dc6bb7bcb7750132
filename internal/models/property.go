// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package models

import "time"

// Property is an accommodation listing tracked by Renown.
//
// External identifiers (Google place ID, OTA URLs) live in PlatformAlias rows
// and are filled in progressively by the identity resolver. The optional Kasa
// fields hold the proprietary aggregator's own composite when the property is
// also listed there.
type Property struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	City  string `json:"city"`
	State string `json:"state"`

	// KasaScore and KasaReviewCount mirror the proprietary aggregator's
	// composite for this property, when known. Nil when the property is not
	// listed on Kasa.
	KasaScore       *float64 `json:"kasa_score,omitempty"`
	KasaReviewCount *int     `json:"kasa_review_count,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Group is a named collection of properties (e.g. a market or a portfolio).
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PropertyIDs []string  `json:"property_ids"`
	CreatedAt   time.Time `json:"created_at"`
}
