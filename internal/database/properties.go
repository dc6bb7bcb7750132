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

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CreateProperty inserts a new property.
func (db *DB) CreateProperty(ctx context.Context, p *models.Property) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO properties (id, name, city, state, kasa_score, kasa_review_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.City, p.State, p.KasaScore, p.KasaReviewCount, p.CreatedAt, p.UpdatedAt)
	metrics.RecordDBQuery("insert", "properties", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to create property %s: %w", p.ID, err)
	}
	return nil
}

// UpdateProperty updates a property's mutable fields.
func (db *DB) UpdateProperty(ctx context.Context, p *models.Property) error {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE properties SET name = ?, city = ?, state = ?, kasa_score = ?, kasa_review_count = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.City, p.State, p.KasaScore, p.KasaReviewCount, p.UpdatedAt, p.ID)
	metrics.RecordDBQuery("update", "properties", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update property %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProperty fetches one property by ID.
func (db *DB) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name, city, state, kasa_score, kasa_review_count, created_at, updated_at
		 FROM properties WHERE id = ?`, id)

	p, err := scanProperty(row)
	metrics.RecordDBQuery("select", "properties", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property %s: %w", id, err)
	}
	return p, nil
}

// ListProperties returns all properties ordered by name.
func (db *DB) ListProperties(ctx context.Context) ([]models.Property, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, city, state, kasa_score, kasa_review_count, created_at, updated_at
		 FROM properties ORDER BY name`)
	metrics.RecordDBQuery("select", "properties", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	var out []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// DeleteProperty removes a property and its dependent rows. Snapshots are
// kept: history remains queryable even after a property is retired.
func (db *DB) DeleteProperty(ctx context.Context, id string) error {
	start := time.Now()
	err := withConflictRetry(ctx, func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, `DELETE FROM properties WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM platform_aliases WHERE property_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE property_id = ?`, id); err != nil {
			return err
		}
		return tx.Commit()
	})
	metrics.RecordDBQuery("delete", "properties", time.Since(start), err)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete property %s: %w", id, err)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProperty(r rowScanner) (*models.Property, error) {
	var p models.Property
	var kasaScore sql.NullFloat64
	var kasaReviews sql.NullInt64

	if err := r.Scan(&p.ID, &p.Name, &p.City, &p.State, &kasaScore, &kasaReviews, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if kasaScore.Valid {
		p.KasaScore = &kasaScore.Float64
	}
	if kasaReviews.Valid {
		n := int(kasaReviews.Int64)
		p.KasaReviewCount = &n
	}
	return &p, nil
}
