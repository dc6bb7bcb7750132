// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/renownhq/renown/internal/metrics"
	"github.com/renownhq/renown/internal/models"
)

// UpsertInsight writes a property's review summary, overwriting any
// previous generation.
func (db *DB) UpsertInsight(ctx context.Context, ins *models.Insight) error {
	start := time.Now()
	err := withConflictRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO insights (property_id, summary, model, review_count, generated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (property_id) DO UPDATE SET
				summary = EXCLUDED.summary,
				model = EXCLUDED.model,
				review_count = EXCLUDED.review_count,
				generated_at = EXCLUDED.generated_at`,
			ins.PropertyID, ins.Summary, ins.Model, ins.ReviewCount, ins.GeneratedAt)
		return err
	})
	metrics.RecordDBQuery("upsert", "insights", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert insight %s: %w", ins.PropertyID, err)
	}
	return nil
}

// GetInsight fetches the current summary for a property.
func (db *DB) GetInsight(ctx context.Context, propertyID string) (*models.Insight, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx,
		`SELECT property_id, summary, model, review_count, generated_at
		 FROM insights WHERE property_id = ?`, propertyID)

	var ins models.Insight
	err := row.Scan(&ins.PropertyID, &ins.Summary, &ins.Model, &ins.ReviewCount, &ins.GeneratedAt)
	metrics.RecordDBQuery("select", "insights", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get insight %s: %w", propertyID, err)
	}
	return &ins, nil
}
