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

// CreateGroup inserts a group and its membership rows.
func (db *DB) CreateGroup(ctx context.Context, g *models.Group) error {
	start := time.Now()
	err := withConflictRetry(ctx, func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?)`,
			g.ID, g.Name, g.CreatedAt); err != nil {
			return err
		}
		for _, pid := range g.PropertyIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO group_members (group_id, property_id) VALUES (?, ?)`,
				g.ID, pid); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	metrics.RecordDBQuery("insert", "groups", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to create group %s: %w", g.ID, err)
	}
	return nil
}

// SetGroupMembers replaces a group's membership.
func (db *DB) SetGroupMembers(ctx context.Context, groupID string, propertyIDs []string) error {
	start := time.Now()
	err := withConflictRetry(ctx, func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, groupID); err != nil {
			return err
		}
		for _, pid := range propertyIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO group_members (group_id, property_id) VALUES (?, ?)`,
				groupID, pid); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	metrics.RecordDBQuery("update", "group_members", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to set members for group %s: %w", groupID, err)
	}
	return nil
}

// GetGroup fetches one group with its member IDs.
func (db *DB) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `SELECT id, name, created_at FROM groups WHERE id = ?`, id)

	var g models.Group
	err := row.Scan(&g.ID, &g.Name, &g.CreatedAt)
	metrics.RecordDBQuery("select", "groups", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group %s: %w", id, err)
	}

	g.PropertyIDs, err = db.groupMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGroups returns all groups with their member IDs, ordered by name.
func (db *DB) ListGroups(ctx context.Context) ([]models.Group, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name, created_at FROM groups ORDER BY name`)
	metrics.RecordDBQuery("select", "groups", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var out []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].PropertyIDs, err = db.groupMembers(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteGroup removes a group and its membership rows. Group snapshots are
// kept as history.
func (db *DB) DeleteGroup(ctx context.Context, id string) error {
	start := time.Now()
	err := withConflictRetry(ctx, func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, id); err != nil {
			return err
		}
		return tx.Commit()
	})
	metrics.RecordDBQuery("delete", "groups", time.Since(start), err)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete group %s: %w", id, err)
	}
	return err
}

func (db *DB) groupMembers(ctx context.Context, groupID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT property_id FROM group_members WHERE group_id = ? ORDER BY property_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members for group %s: %w", groupID, err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return nil, err
		}
		members = append(members, pid)
	}
	return members, rows.Err()
}

// InsertGroupSnapshot appends one group composite observation.
func (db *DB) InsertGroupSnapshot(ctx context.Context, s *models.GroupSnapshot) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO group_snapshots (group_id, score, review_count, computed_at) VALUES (?, ?, ?, ?)`,
		s.GroupID, s.Score, s.ReviewCount, s.ComputedAt)
	metrics.RecordDBQuery("insert", "group_snapshots", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert group snapshot %s: %w", s.GroupID, err)
	}
	return nil
}

// LatestGroupSnapshot returns the most recent composite for a group, or
// ErrNotFound when none has been computed yet.
func (db *DB) LatestGroupSnapshot(ctx context.Context, groupID string) (*models.GroupSnapshot, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, group_id, score, review_count, computed_at
		 FROM group_snapshots WHERE group_id = ?
		 ORDER BY computed_at DESC, id DESC LIMIT 1`, groupID)

	var s models.GroupSnapshot
	err := row.Scan(&s.ID, &s.GroupID, &s.Score, &s.ReviewCount, &s.ComputedAt)
	metrics.RecordDBQuery("select", "group_snapshots", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group snapshot %s: %w", groupID, err)
	}
	return &s, nil
}
