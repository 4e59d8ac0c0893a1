// Package postgres is the pgx-backed adapter for the repo ports.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements repo.TargetStore and repo.RuleStore. AlertStore lives in
// alerts.go on its own type so method sets do not collide.
type Store struct {
	pool *pgxpool.Pool
}

func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS targets (
		id                    TEXT PRIMARY KEY,
		name                  TEXT NOT NULL DEFAULT '',
		url                   TEXT NOT NULL,
		method                TEXT NOT NULL DEFAULT '',
		expected_status       INT NOT NULL DEFAULT 0,
		timeout_ms            BIGINT NOT NULL DEFAULT 0,
		follow_redirects      BOOLEAN NOT NULL DEFAULT TRUE,
		max_redirects         INT NOT NULL DEFAULT 0,
		expected_content      TEXT NOT NULL DEFAULT '',
		forbidden_content     TEXT NOT NULL DEFAULT '',
		max_response_time_ms  BIGINT NOT NULL DEFAULT 0,
		check_uptime          BOOLEAN NOT NULL DEFAULT TRUE,
		check_ssl             BOOLEAN NOT NULL DEFAULT FALSE,
		render_js             BOOLEAN NOT NULL DEFAULT FALSE,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS alert_rules (
		id                          TEXT PRIMARY KEY,
		target_id                   TEXT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
		type                        TEXT NOT NULL,
		severity                    TEXT NOT NULL DEFAULT '',
		enabled                     BOOLEAN NOT NULL DEFAULT TRUE,
		threshold_days              INT NOT NULL DEFAULT 0,
		threshold_response_time_ms  BIGINT NOT NULL DEFAULT 0,
		channels                    TEXT NOT NULL DEFAULT '',
		cooldown_seconds            BIGINT NOT NULL DEFAULT 0,
		last_triggered_at           TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS alerts (
		id                 TEXT PRIMARY KEY,
		target_id          TEXT NOT NULL,
		type               TEXT NOT NULL,
		severity           TEXT NOT NULL DEFAULT '',
		title              TEXT NOT NULL DEFAULT '',
		message            TEXT NOT NULL DEFAULT '',
		trigger_payload    JSONB NOT NULL DEFAULT '{}',
		threshold_payload  JSONB NOT NULL DEFAULT '{}',
		first_detected_at  TIMESTAMPTZ NOT NULL,
		last_occurred_at   TIMESTAMPTZ NOT NULL,
		occurrence_count   INT NOT NULL DEFAULT 1,
		acknowledged_at    TIMESTAMPTZ,
		acknowledged_by    TEXT NOT NULL DEFAULT '',
		ack_note           TEXT NOT NULL DEFAULT '',
		resolved_at        TIMESTAMPTZ,
		resolution_note    TEXT NOT NULL DEFAULT ''
	);
	-- The dedup invariant, enforced in storage as well as by the correlator's
	-- keyed locks: at most one unresolved alert per (target, type).
	CREATE UNIQUE INDEX IF NOT EXISTS alerts_open_dedup
		ON alerts (target_id, type) WHERE resolved_at IS NULL;
	`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
