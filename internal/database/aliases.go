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

	"github.com/goccy/go-json"

	"github.com/renownhq/renown/internal/metrics"
	"github.com/renownhq/renown/internal/models"
)

// UpsertAlias writes the identity row for one (property, platform) pair.
// At most one row exists per pair; last writer wins.
func (db *DB) UpsertAlias(ctx context.Context, alias *models.PlatformAlias) error {
	candidates, err := json.Marshal(alias.Candidates)
	if err != nil {
		return fmt.Errorf("failed to encode candidates: %w", err)
	}
	if alias.Candidates == nil {
		candidates = []byte("[]")
	}

	start := time.Now()
	err = withConflictRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO platform_aliases (property_id, platform, identifier, status, confidence, candidates, resolved_at, last_error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (property_id, platform) DO UPDATE SET
				identifier = EXCLUDED.identifier,
				status = EXCLUDED.status,
				confidence = EXCLUDED.confidence,
				candidates = EXCLUDED.candidates,
				resolved_at = EXCLUDED.resolved_at,
				last_error = EXCLUDED.last_error`,
			alias.PropertyID, string(alias.Platform), alias.Identifier, string(alias.Status),
			alias.Confidence, string(candidates), alias.ResolvedAt, alias.LastError)
		return err
	})
	metrics.RecordDBQuery("upsert", "platform_aliases", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert alias %s/%s: %w", alias.PropertyID, alias.Platform, err)
	}
	return nil
}

// GetAlias fetches the identity row for one pair. ErrNotFound means the
// pair has never been resolved (the implicit pending state).
func (db *DB) GetAlias(ctx context.Context, propertyID string, platform models.Platform) (*models.PlatformAlias, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx,
		`SELECT property_id, platform, identifier, status, confidence, candidates, resolved_at, last_error
		 FROM platform_aliases WHERE property_id = ? AND platform = ?`,
		propertyID, string(platform))

	alias, err := scanAlias(row)
	metrics.RecordDBQuery("select", "platform_aliases", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alias %s/%s: %w", propertyID, platform, err)
	}
	return alias, nil
}

// ListAliasesForProperty returns every identity row for one property.
func (db *DB) ListAliasesForProperty(ctx context.Context, propertyID string) ([]models.PlatformAlias, error) {
	return db.queryAliases(ctx,
		`SELECT property_id, platform, identifier, status, confidence, candidates, resolved_at, last_error
		 FROM platform_aliases WHERE property_id = ? ORDER BY platform`, propertyID)
}

// ListAliases returns every identity row in the store.
func (db *DB) ListAliases(ctx context.Context) ([]models.PlatformAlias, error) {
	return db.queryAliases(ctx,
		`SELECT property_id, platform, identifier, status, confidence, candidates, resolved_at, last_error
		 FROM platform_aliases ORDER BY property_id, platform`)
}

func (db *DB) queryAliases(ctx context.Context, query string, args ...interface{}) ([]models.PlatformAlias, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "platform_aliases", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	defer rows.Close()

	var out []models.PlatformAlias
	for rows.Next() {
		alias, err := scanAlias(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		out = append(out, *alias)
	}
	return out, rows.Err()
}

func scanAlias(r rowScanner) (*models.PlatformAlias, error) {
	var alias models.PlatformAlias
	var platform, status, candidates string

	if err := r.Scan(&alias.PropertyID, &platform, &alias.Identifier, &status,
		&alias.Confidence, &candidates, &alias.ResolvedAt, &alias.LastError); err != nil {
		return nil, err
	}
	alias.Platform = models.Platform(platform)
	alias.Status = models.AliasStatus(status)

	if candidates != "" && candidates != "[]" {
		if err := json.Unmarshal([]byte(candidates), &alias.Candidates); err != nil {
			return nil, fmt.Errorf("failed to decode candidates: %w", err)
		}
	}
	return &alias, nil
}
