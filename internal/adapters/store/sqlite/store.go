// Package sqlite keeps credit balances in a relational table and every
// balance change in an append-only transactions table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/ports"
	_ "modernc.org/sqlite"
)

const dirMode = 0o700

type Store struct {
	db *sql.DB
}

var (
	_ ports.CreditStore    = (*Store)(nil)
	_ ports.TransactionLog = (*Store)(nil)
)

// Open opens or creates the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadAll(ctx context.Context) (map[domain.SessionID]domain.CreditAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, balance_minutes, last_earned_at, in_zone, relocated_at, decay_warned_at,
       return_world, return_x, return_y, return_z, updated_at
FROM credit_accounts`)
	if err != nil {
		return nil, fmt.Errorf("query credit accounts: %w", err)
	}
	defer rows.Close()

	accounts := map[domain.SessionID]domain.CreditAccount{}
	for rows.Next() {
		var (
			id                                        string
			balance                                   int
			lastEarned, relocated, decayWarn, updated int64
			inZone                                    bool
			world                                     sql.NullString
			x, y, z                                   sql.NullFloat64
		)
		if err := rows.Scan(&id, &balance, &lastEarned, &inZone, &relocated, &decayWarn, &world, &x, &y, &z, &updated); err != nil {
			return nil, fmt.Errorf("scan credit account: %w", err)
		}

		account := domain.NewCreditAccount(domain.SessionID(id))
		account.BalanceMinutes = balance
		account.LastEarnedAt = fromUnixNano(lastEarned)
		account.InZone = inZone
		account.RelocatedAt = fromUnixNano(relocated)
		account.DecayWarnedAt = fromUnixNano(decayWarn)
		account.UpdatedAt = fromUnixNano(updated)
		if world.Valid {
			account.ReturnLocation = &domain.Location{World: world.String, X: x.Float64, Y: y.Float64, Z: z.Float64}
		}
		accounts[account.SessionID] = account
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit accounts: %w", err)
	}
	return accounts, nil
}

const upsertAccount = `
INSERT INTO credit_accounts (session_id, balance_minutes, last_earned_at, in_zone, relocated_at, decay_warned_at,
                             return_world, return_x, return_y, return_z, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
    balance_minutes = excluded.balance_minutes,
    last_earned_at = excluded.last_earned_at,
    in_zone = excluded.in_zone,
    relocated_at = excluded.relocated_at,
    decay_warned_at = excluded.decay_warned_at,
    return_world = excluded.return_world,
    return_x = excluded.return_x,
    return_y = excluded.return_y,
    return_z = excluded.return_z,
    updated_at = excluded.updated_at`

// SaveAll upserts every account in one transaction.
func (s *Store) SaveAll(ctx context.Context, accounts map[domain.SessionID]domain.CreditAccount) error {
	if len(accounts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertAccount)
	if err != nil {
		return fmt.Errorf("prepare account upsert: %w", err)
	}
	defer stmt.Close()

	for id, account := range accounts {
		account.SessionID = id
		if _, err := stmt.ExecContext(ctx, accountArgs(account)...); err != nil {
			return fmt.Errorf("upsert credit account %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credit accounts: %w", err)
	}
	return nil
}

func (s *Store) SaveOne(ctx context.Context, account domain.CreditAccount) error {
	if _, err := s.db.ExecContext(ctx, upsertAccount, accountArgs(account)...); err != nil {
		return fmt.Errorf("upsert credit account %s: %w", account.SessionID, err)
	}
	return nil
}

func (s *Store) RecordTransaction(ctx context.Context, tx domain.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO credit_transactions (id, session_id, type, amount_minutes, balance_after, created_at, note)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, string(tx.SessionID), string(tx.Type), tx.AmountMinutes, tx.BalanceAfter, toUnixNano(tx.At), tx.Note)
	if err != nil {
		return fmt.Errorf("insert credit transaction: %w", err)
	}
	return nil
}

// History returns up to limit transactions for id, newest first. A limit of
// zero or less returns all of them.
func (s *Store) History(ctx context.Context, id domain.SessionID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, type, amount_minutes, balance_after, created_at, note
FROM credit_transactions
WHERE session_id = ?
ORDER BY created_at DESC, rowid DESC
LIMIT ?`, string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("query credit transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			tx        domain.Transaction
			sessionID string
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&tx.ID, &sessionID, &kind, &tx.AmountMinutes, &tx.BalanceAfter, &createdAt, &tx.Note); err != nil {
			return nil, fmt.Errorf("scan credit transaction: %w", err)
		}
		tx.SessionID = domain.SessionID(sessionID)
		tx.Type = domain.TransactionType(kind)
		tx.At = fromUnixNano(createdAt)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit transactions: %w", err)
	}
	return out, nil
}

func accountArgs(account domain.CreditAccount) []any {
	var (
		world   sql.NullString
		x, y, z sql.NullFloat64
	)
	if loc := account.ReturnLocation; loc != nil {
		world = sql.NullString{String: loc.World, Valid: true}
		x = sql.NullFloat64{Float64: loc.X, Valid: true}
		y = sql.NullFloat64{Float64: loc.Y, Valid: true}
		z = sql.NullFloat64{Float64: loc.Z, Valid: true}
	}
	return []any{
		string(account.SessionID),
		account.BalanceMinutes,
		toUnixNano(account.LastEarnedAt),
		account.InZone,
		toUnixNano(account.RelocatedAt),
		toUnixNano(account.DecayWarnedAt),
		world, x, y, z,
		toUnixNano(account.UpdatedAt),
	}
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}
