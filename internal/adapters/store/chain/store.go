// Package chain composes two credit stores: every operation goes to the
// primary and falls back to the secondary when the primary fails.
//
// A write the primary refused is still reported as an error after the
// fallback took it, so callers keep the account dirty and retry. Loads merge
// both backends and keep the most recently updated copy of each account.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/ports"
	"github.com/hashicorp/go-multierror"
)

type Store struct {
	primary  ports.CreditStore
	fallback ports.CreditStore
}

var _ ports.CreditStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary credit store is nil")
	errNilFallbackStore = errors.New("fallback credit store is nil")

	errFallbackHoldsWrite = errors.New("primary backend save failed, fallback backend holds the write")
)

func NewStore(primary ports.CreditStore, fallback ports.CreditStore) *Store {
	store, err := NewStoreChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(primary ports.CreditStore, fallback ports.CreditStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

func (s *Store) LoadAll(ctx context.Context) (map[domain.SessionID]domain.CreditAccount, error) {
	accounts, err := s.primary.LoadAll(ctx)
	if err != nil && shouldSkipFallback(err) {
		return nil, err
	}

	fallbackAccounts, fallbackErr := s.fallback.LoadAll(ctx)
	switch {
	case err == nil && fallbackErr == nil:
		return merge(accounts, fallbackAccounts), nil
	case err == nil:
		// The primary alone is authoritative when the fallback is unreadable.
		return accounts, nil
	case fallbackErr == nil:
		return fallbackAccounts, nil
	}

	return nil, fmt.Errorf("primary backend load failed: %w; fallback backend load failed: %w", err, fallbackErr)
}

// merge keeps the primary copy of each account unless the fallback holds a
// strictly newer one.
func merge(primary, fallback map[domain.SessionID]domain.CreditAccount) map[domain.SessionID]domain.CreditAccount {
	out := make(map[domain.SessionID]domain.CreditAccount, len(primary)+len(fallback))
	for id, acct := range primary {
		out[id] = acct
	}
	for id, acct := range fallback {
		current, ok := out[id]
		if !ok || acct.UpdatedAt.After(current.UpdatedAt) {
			out[id] = acct
		}
	}
	return out
}

func (s *Store) SaveAll(ctx context.Context, accounts map[domain.SessionID]domain.CreditAccount) error {
	err := s.primary.SaveAll(ctx, accounts)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.SaveAll(ctx, accounts)
	if fallbackErr == nil {
		return fmt.Errorf("%w: %w", errFallbackHoldsWrite, err)
	}

	return fmt.Errorf("primary backend save failed: %w; fallback backend save failed: %w", err, fallbackErr)
}

func (s *Store) SaveOne(ctx context.Context, account domain.CreditAccount) error {
	err := s.primary.SaveOne(ctx, account)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.SaveOne(ctx, account)
	if fallbackErr == nil {
		return fmt.Errorf("%w: %w", errFallbackHoldsWrite, err)
	}

	return fmt.Errorf("primary backend save failed: %w; fallback backend save failed: %w", err, fallbackErr)
}

// Close closes both backends and reports every failure.
func (s *Store) Close() error {
	var result *multierror.Error
	if err := s.primary.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close primary backend: %w", err))
	}
	if err := s.fallback.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close fallback backend: %w", err))
	}
	return result.ErrorOrNil()
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
