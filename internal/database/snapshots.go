// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/renownhq/renown/internal/metrics"
	"github.com/renownhq/renown/internal/models"
)

// InsertScoreSnapshot appends one observation. Snapshots are never updated
// or deleted; the latest view is derived by greatest collected_at per pair.
func (db *DB) InsertScoreSnapshot(ctx context.Context, s *models.ScoreSnapshot) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO score_snapshots (property_id, platform, raw_score, raw_scale, review_count, normalized, status, collected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.PropertyID, string(s.Platform), s.RawScore, s.RawScale, s.ReviewCount,
		s.Normalized, string(s.Status), s.CollectedAt)
	metrics.RecordDBQuery("insert", "score_snapshots", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot %s/%s: %w", s.PropertyID, s.Platform, err)
	}
	metrics.SnapshotsInserted.WithLabelValues(string(s.Platform), string(s.Status)).Inc()
	return nil
}

// LatestScores returns the most recent snapshot for every (property,
// platform) pair, ties broken by greatest id.
func (db *DB) LatestScores(ctx context.Context) ([]models.ScoreSnapshot, error) {
	return db.querySnapshots(ctx,
		`SELECT id, property_id, platform, raw_score, raw_scale, review_count, normalized, status, collected_at
		 FROM (
			SELECT *, row_number() OVER (PARTITION BY property_id, platform ORDER BY collected_at DESC, id DESC) AS rn
			FROM score_snapshots
		 ) WHERE rn = 1
		 ORDER BY property_id, platform`)
}

// LatestScoresForProperty returns the most recent snapshot per platform for
// one property.
func (db *DB) LatestScoresForProperty(ctx context.Context, propertyID string) ([]models.ScoreSnapshot, error) {
	return db.querySnapshots(ctx,
		`SELECT id, property_id, platform, raw_score, raw_scale, review_count, normalized, status, collected_at
		 FROM (
			SELECT *, row_number() OVER (PARTITION BY platform ORDER BY collected_at DESC, id DESC) AS rn
			FROM score_snapshots WHERE property_id = ?
		 ) WHERE rn = 1
		 ORDER BY platform`, propertyID)
}

// SnapshotHistory returns snapshots for one pair, newest first.
func (db *DB) SnapshotHistory(ctx context.Context, propertyID string, platform models.Platform, limit int) ([]models.ScoreSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	return db.querySnapshots(ctx,
		`SELECT id, property_id, platform, raw_score, raw_scale, review_count, normalized, status, collected_at
		 FROM score_snapshots
		 WHERE property_id = ? AND platform = ?
		 ORDER BY collected_at DESC, id DESC
		 LIMIT ?`, propertyID, string(platform), limit)
}

func (db *DB) querySnapshots(ctx context.Context, query string, args ...interface{}) ([]models.ScoreSnapshot, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "score_snapshots", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.ScoreSnapshot
	for rows.Next() {
		var s models.ScoreSnapshot
		var platform, status string
		var normalized sql.NullFloat64

		if err := rows.Scan(&s.ID, &s.PropertyID, &platform, &s.RawScore, &s.RawScale,
			&s.ReviewCount, &normalized, &status, &s.CollectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.Platform = models.Platform(platform)
		s.Status = models.SnapshotStatus(status)
		if normalized.Valid {
			s.Normalized = &normalized.Float64
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
