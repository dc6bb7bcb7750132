// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

// Package database is the embedded DuckDB store. Score history is
// append-only; identities and the heal log are keyed upserts.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/renownhq/renown/internal/config"
	"github.com/renownhq/renown/internal/logging"
)

// DB wraps the DuckDB connection.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New creates a new database connection and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure parent directory exists for the database file.
	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	// Disable auto-install/auto-load to prevent hangs in restricted
	// network environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn: conn,
		cfg:  cfg,
	}

	// DuckDB is an embedded single-writer engine; a small pool is enough.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("Database initialized")
	return db, nil
}

// Conn exposes the underlying connection for health checks.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database connection")
	}
}

func (db *DB) createTables() error {
	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_score_snapshots START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_group_snapshots START 1`,
		`CREATE TABLE IF NOT EXISTS properties (
			id VARCHAR PRIMARY KEY,
			name VARCHAR NOT NULL,
			city VARCHAR NOT NULL DEFAULT '',
			state VARCHAR NOT NULL DEFAULT '',
			kasa_score DOUBLE,
			kasa_review_count INTEGER,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS groups (
			id VARCHAR PRIMARY KEY,
			name VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS group_members (
			group_id VARCHAR NOT NULL,
			property_id VARCHAR NOT NULL,
			PRIMARY KEY (group_id, property_id)
		)`,
		`CREATE TABLE IF NOT EXISTS platform_aliases (
			property_id VARCHAR NOT NULL,
			platform VARCHAR NOT NULL,
			identifier VARCHAR NOT NULL DEFAULT '',
			status VARCHAR NOT NULL,
			confidence DOUBLE NOT NULL DEFAULT 0,
			candidates VARCHAR NOT NULL DEFAULT '[]',
			resolved_at TIMESTAMP NOT NULL,
			last_error VARCHAR NOT NULL DEFAULT '',
			PRIMARY KEY (property_id, platform)
		)`,
		`CREATE TABLE IF NOT EXISTS score_snapshots (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_score_snapshots'),
			property_id VARCHAR NOT NULL,
			platform VARCHAR NOT NULL,
			raw_score DOUBLE NOT NULL DEFAULT 0,
			raw_scale DOUBLE NOT NULL DEFAULT 0,
			review_count INTEGER NOT NULL DEFAULT 0,
			normalized DOUBLE,
			status VARCHAR NOT NULL,
			collected_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS group_snapshots (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_group_snapshots'),
			group_id VARCHAR NOT NULL,
			score DOUBLE NOT NULL,
			review_count INTEGER NOT NULL,
			computed_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS heal_log (
			property_id VARCHAR NOT NULL,
			platform VARCHAR NOT NULL,
			attempts INTEGER NOT NULL,
			final_status VARCHAR NOT NULL,
			last_error VARCHAR NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (property_id, platform)
		)`,
		`CREATE TABLE IF NOT EXISTS insights (
			property_id VARCHAR PRIMARY KEY,
			summary VARCHAR NOT NULL,
			model VARCHAR NOT NULL DEFAULT '',
			review_count INTEGER NOT NULL DEFAULT 0,
			generated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_pair ON score_snapshots (property_id, platform, collected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_group_snapshots ON group_snapshots (group_id, computed_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// isTransactionConflict checks if an error is a DuckDB transaction conflict
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Transaction conflict") ||
		strings.Contains(errStr, "Conflict on update") ||
		strings.Contains(errStr, "cannot update a table that has been altered")
}

// withConflictRetry runs op, retrying DuckDB transaction conflicts with a
// short exponential backoff (1ms, 2ms, 4ms). Other errors fail immediately.
func withConflictRetry(ctx context.Context, op func() error) error {
	const maxRetries = 3
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("operation timed out or canceled: %w", ctx.Err())
		}
		if !isTransactionConflict(err) {
			return err
		}

		if attempt < maxRetries-1 {
			backoff := time.Millisecond * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
