package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// migrations run in order from version 0. Existing entries never change.
var migrations = []func(ctx context.Context, tx *sql.Tx) error{
	migrateV0,
	migrateV1,
}

func migrateV0(ctx context.Context, tx *sql.Tx) error {
	const schema = `
CREATE TABLE IF NOT EXISTS credit_accounts (
    session_id TEXT PRIMARY KEY,
    balance_minutes INTEGER NOT NULL DEFAULT 0,
    last_earned_at INTEGER NOT NULL DEFAULT 0,
    in_zone INTEGER NOT NULL DEFAULT 0,
    relocated_at INTEGER NOT NULL DEFAULT 0,
    decay_warned_at INTEGER NOT NULL DEFAULT 0,
    return_world TEXT,
    return_x REAL,
    return_y REAL,
    return_z REAL
);

CREATE TABLE IF NOT EXISTS credit_transactions (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    type TEXT NOT NULL,
    amount_minutes INTEGER NOT NULL,
    balance_after INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    note TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_credit_transactions_session ON credit_transactions(session_id, created_at);
`
	_, err := tx.ExecContext(ctx, schema)
	return err
}

func migrateV1(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "ALTER TABLE credit_accounts ADD COLUMN updated_at INTEGER NOT NULL DEFAULT 0")
	return err
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for i := current + 1; i < len(migrations); i++ {
		if err := s.runMigration(ctx, i); err != nil {
			return fmt.Errorf("run migration %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) runMigration(ctx context.Context, version int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := migrations[version](ctx, tx); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", version, now); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

// SchemaVersion returns the highest applied migration, or -1.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), -1) FROM schema_version")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return version, nil
}
