// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package score

import (
	"math"
	"testing"

	"github.com/renownhq/renown/internal/models"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-2
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		raw   float64
		scale float64
		want  float64
	}{
		{"five point midrange", 4.5, 5, 9.0},
		{"five point perfect", 5, 5, 10},
		{"ten point identity", 8.7, 10, 8.7},
		{"ten point perfect", 10, 10, 10},
		{"zero raw", 0, 5, 0},
		{"low booking score", 6.2, 10, 6.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw, tt.scale)
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("Normalize(%v, %v) = %v, want %v", tt.raw, tt.scale, got, tt.want)
			}
		})
	}
}

func TestNormalizeMonotonic(t *testing.T) {
	prev := math.Inf(-1)
	for raw := 0.0; raw <= 5.0; raw += 0.1 {
		got := Normalize(raw, 5)
		if got < prev {
			t.Fatalf("Normalize not monotonic at raw=%v: %v < %v", raw, got, prev)
		}
		prev = got
	}
}

func TestWeightedAverage(t *testing.T) {
	tests := []struct {
		name   string
		pairs  []WeightedScore
		want   float64
		wantOK bool
	}{
		{
			name:   "empty input",
			pairs:  nil,
			wantOK: false,
		},
		{
			name:   "all zero weights",
			pairs:  []WeightedScore{{9, 0}, {8, 0}},
			wantOK: false,
		},
		{
			name:   "zero scores treated as missing",
			pairs:  []WeightedScore{{0, 500}, {0, 100}},
			wantOK: false,
		},
		{
			name:   "heavily weighted high score dominates",
			pairs:  []WeightedScore{{9.0, 1000}, {6.0, 10}},
			want:   (9.0*1000 + 6.0*10) / 1010,
			wantOK: true,
		},
		{
			name:   "single pair",
			pairs:  []WeightedScore{{7.5, 42}},
			want:   7.5,
			wantOK: true,
		},
		{
			name:   "negative weight filtered",
			pairs:  []WeightedScore{{8, -3}, {6, 10}},
			want:   6,
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := WeightedAverage(tt.pairs)
			if ok != tt.wantOK {
				t.Fatalf("WeightedAverage ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > epsilon {
				t.Errorf("WeightedAverage = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeightedAverageSpotCheck(t *testing.T) {
	// (9.0*1000 + 6.0*10) / 1010 ≈ 8.97
	got, ok := WeightedAverage([]WeightedScore{{9.0, 1000}, {6.0, 10}})
	if !ok {
		t.Fatal("expected a valid average")
	}
	if !almostEqual(got, 8.97) {
		t.Errorf("WeightedAverage = %v, want ≈8.97", got)
	}
}

func ptr(f float64) *float64 { return &f }

func TestPropertyComposite(t *testing.T) {
	latest := []models.ScoreSnapshot{
		{PropertyID: "p1", Platform: models.PlatformGoogle, Normalized: ptr(9.0), ReviewCount: 400, Status: models.SnapshotFound},
		{PropertyID: "p1", Platform: models.PlatformBooking, Normalized: ptr(8.0), ReviewCount: 100, Status: models.SnapshotFound},
		{PropertyID: "p1", Platform: models.PlatformExpedia, Status: models.SnapshotNotListed},
		{PropertyID: "p2", Platform: models.PlatformGoogle, Normalized: ptr(2.0), ReviewCount: 5000, Status: models.SnapshotFound},
	}

	got := PropertyComposite("p1", latest)
	if !got.HasScore {
		t.Fatal("expected a composite score")
	}
	want := (9.0*400 + 8.0*100) / 500
	if math.Abs(got.Average-want) > epsilon {
		t.Errorf("Average = %v, want %v", got.Average, want)
	}
	if got.ReviewCount != 500 {
		t.Errorf("ReviewCount = %d, want 500", got.ReviewCount)
	}
}

func TestPropertyCompositeNoData(t *testing.T) {
	got := PropertyComposite("p9", []models.ScoreSnapshot{
		{PropertyID: "p9", Platform: models.PlatformGoogle, Status: models.SnapshotNotListed},
	})
	if got.HasScore {
		t.Error("expected no composite for not-listed-only property")
	}
}

func TestGroupComposite(t *testing.T) {
	members := []PropertyScore{
		{PropertyID: "a", Average: 9.0, ReviewCount: 500, HasScore: true},
		{PropertyID: "b", Average: 7.0, ReviewCount: 100, HasScore: true},
		{PropertyID: "c", HasScore: false}, // excluded, not treated as zero
	}

	avg, total, ok := GroupComposite(members)
	if !ok {
		t.Fatal("expected a group composite")
	}
	// (9.0*500 + 7.0*100) / 600 ≈ 8.67
	if !almostEqual(avg, 8.67) {
		t.Errorf("group average = %v, want ≈8.67", avg)
	}
	if total != 600 {
		t.Errorf("total reviews = %d, want 600", total)
	}
}

func TestGroupCompositeAllExcluded(t *testing.T) {
	_, _, ok := GroupComposite([]PropertyScore{{PropertyID: "a"}, {PropertyID: "b"}})
	if ok {
		t.Error("expected no composite when every member lacks a score")
	}
}
