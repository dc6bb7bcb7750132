// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/renownhq/renown/internal/metrics"
	"github.com/renownhq/renown/internal/models"
)

// UpsertHealLog writes the sweep outcome for one pair. Keyed by
// (property, platform): a later sweep overwrites the previous entry
// instead of accumulating rows.
func (db *DB) UpsertHealLog(ctx context.Context, entry *models.HealLogEntry) error {
	start := time.Now()
	err := withConflictRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO heal_log (property_id, platform, attempts, final_status, last_error, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (property_id, platform) DO UPDATE SET
				attempts = EXCLUDED.attempts,
				final_status = EXCLUDED.final_status,
				last_error = EXCLUDED.last_error,
				updated_at = EXCLUDED.updated_at`,
			entry.PropertyID, string(entry.Platform), entry.Attempts,
			entry.FinalStatus, entry.LastError, entry.UpdatedAt)
		return err
	})
	metrics.RecordDBQuery("upsert", "heal_log", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert heal log %s/%s: %w", entry.PropertyID, entry.Platform, err)
	}
	return nil
}

// ListHealLog returns every heal log entry, most recently updated first.
func (db *DB) ListHealLog(ctx context.Context) ([]models.HealLogEntry, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT property_id, platform, attempts, final_status, last_error, updated_at
		 FROM heal_log ORDER BY updated_at DESC`)
	metrics.RecordDBQuery("select", "heal_log", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list heal log: %w", err)
	}
	defer rows.Close()

	var out []models.HealLogEntry
	for rows.Next() {
		var e models.HealLogEntry
		var platform string
		if err := rows.Scan(&e.PropertyID, &platform, &e.Attempts, &e.FinalStatus, &e.LastError, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan heal log entry: %w", err)
		}
		e.Platform = models.Platform(platform)
		out = append(out, e)
	}
	return out, rows.Err()
}
