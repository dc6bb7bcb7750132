// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

// Package score holds the one universal calculation in Renown: rescaling
// heterogeneous platform ratings onto a common 0-10 range and combining them
// into review-count-weighted averages. The same weighted average is reused
// for per-property composites, per-group composites, and per-platform
// portfolio views.
package score

import "github.com/renownhq/renown/internal/models"

// Normalize converts a raw rating on the given native scale to the common
// 0-10 range. Pure and total; callers must not pass scale 0.
func Normalize(raw, scale float64) float64 {
	return raw / scale * 10
}

// WeightedScore pairs a normalized 0-10 score with its weight
// (its review count).
type WeightedScore struct {
	Score  float64
	Weight float64
}

// WeightedAverage combines (score, weight) pairs into Σ(s·w)/Σ(w).
//
// Pairs with weight <= 0 or score <= 0 are filtered out: a zero score is
// treated as missing data, not an actual zero rating. All supported source
// scales are strictly positive for a found rating, so nothing legitimate is
// discarded. Returns ok=false when no valid pairs remain.
func WeightedAverage(pairs []WeightedScore) (avg float64, ok bool) {
	var sum, weight float64
	for _, p := range pairs {
		if p.Weight <= 0 || p.Score <= 0 {
			continue
		}
		sum += p.Score * p.Weight
		weight += p.Weight
	}
	if weight == 0 {
		return 0, false
	}
	return sum / weight, true
}

// PropertyScore is a property's composite over its latest per-platform
// scores: the weighted average plus the total review count backing it.
type PropertyScore struct {
	PropertyID  string
	Average     float64
	ReviewCount int
	HasScore    bool
}

// PropertyComposite computes one property's review-count-weighted average
// over its latest snapshots. Snapshots without a normalized score
// (not-listed rows) contribute nothing.
func PropertyComposite(propertyID string, latest []models.ScoreSnapshot) PropertyScore {
	pairs := make([]WeightedScore, 0, len(latest))
	total := 0
	for _, s := range latest {
		if s.PropertyID != propertyID || s.Normalized == nil {
			continue
		}
		pairs = append(pairs, WeightedScore{Score: *s.Normalized, Weight: float64(s.ReviewCount)})
		total += s.ReviewCount
	}

	avg, ok := WeightedAverage(pairs)
	if !ok {
		return PropertyScore{PropertyID: propertyID}
	}
	return PropertyScore{
		PropertyID:  propertyID,
		Average:     avg,
		ReviewCount: total,
		HasScore:    true,
	}
}

// GroupComposite computes the two-level weighted average across member
// properties: each member's own composite weighted by that member's total
// review count. Members without a valid score are excluded entirely (zero
// weight), not treated as zero.
func GroupComposite(members []PropertyScore) (avg float64, totalReviews int, ok bool) {
	pairs := make([]WeightedScore, 0, len(members))
	for _, m := range members {
		if !m.HasScore {
			continue
		}
		pairs = append(pairs, WeightedScore{Score: m.Average, Weight: float64(m.ReviewCount)})
		totalReviews += m.ReviewCount
	}

	avg, ok = WeightedAverage(pairs)
	if !ok {
		return 0, 0, false
	}
	return avg, totalReviews, true
}
