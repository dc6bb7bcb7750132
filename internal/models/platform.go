// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

// Package models defines the core domain types shared across Renown:
// properties, platform aliases, score snapshots, groups, and the typed
// fetch-result taxonomy used by platform adapters and the refresh
// orchestrator.
package models

// Platform identifies an external rating source.
type Platform string

const (
	PlatformGoogle      Platform = "google"
	PlatformTripAdvisor Platform = "tripadvisor"
	PlatformBooking     Platform = "booking"
	PlatformExpedia     Platform = "expedia"
	PlatformKasa        Platform = "kasa"
)

// AllPlatforms returns every supported platform in display order.
// The order is stable: it drives column order in exports and the
// deterministic cell ordering of bulk refreshes.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformGoogle,
		PlatformTripAdvisor,
		PlatformBooking,
		PlatformExpedia,
		PlatformKasa,
	}
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformGoogle, PlatformTripAdvisor, PlatformBooking, PlatformExpedia, PlatformKasa:
		return true
	default:
		return false
	}
}

// NativeScale returns the platform's native rating scale.
// Google and TripAdvisor rate out of 5; the OTAs and Kasa rate out of 10.
// Adapters report this alongside raw scores; normalization happens centrally
// in the score package.
func (p Platform) NativeScale() float64 {
	switch p {
	case PlatformGoogle, PlatformTripAdvisor:
		return 5
	default:
		return 10
	}
}
