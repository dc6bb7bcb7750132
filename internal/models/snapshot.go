// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package models

import "time"

// SnapshotStatus marks whether a snapshot observed a rating or a confirmed
// absence. Failed fetches never produce snapshots, so there is no failure
// status here.
type SnapshotStatus string

const (
	SnapshotFound     SnapshotStatus = "found"
	SnapshotNotListed SnapshotStatus = "not_listed"
)

// ScoreSnapshot is an immutable point-in-time observation of a property's
// rating on one platform. Snapshots are append-only: never updated, only
// inserted. "Latest" is derived per (property, platform) by greatest
// CollectedAt.
//
// Invariant: Normalized is nil unless Status is found; ReviewCount >= 0.
type ScoreSnapshot struct {
	ID          int64          `json:"id,omitempty"`
	PropertyID  string         `json:"property_id"`
	Platform    Platform       `json:"platform"`
	RawScore    float64        `json:"raw_score"`
	RawScale    float64        `json:"raw_scale"`
	ReviewCount int            `json:"review_count"`
	Normalized  *float64       `json:"normalized,omitempty"`
	Status      SnapshotStatus `json:"status"`
	CollectedAt time.Time      `json:"collected_at"`
}

// GroupSnapshot is a point-in-time review-count-weighted average across a
// group's member properties. Same append-only semantics as ScoreSnapshot.
type GroupSnapshot struct {
	ID          int64     `json:"id,omitempty"`
	GroupID     string    `json:"group_id"`
	Score       float64   `json:"score"`
	ReviewCount int       `json:"review_count"`
	ComputedAt  time.Time `json:"computed_at"`
}

// HealLogEntry is the observability record the auto-heal sweep upserts for
// each pair that exhausted its retry budget (or finally recovered). Keyed by
// (property, platform): repeated sweeps overwrite rather than accumulate.
type HealLogEntry struct {
	PropertyID  string    `json:"property_id"`
	Platform    Platform  `json:"platform"`
	Attempts    int       `json:"attempts"`
	FinalStatus string    `json:"final_status"`
	LastError   string    `json:"last_error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
