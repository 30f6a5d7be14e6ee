package ports

import (
	"context"

	"github.com/bnema/afkguard/internal/domain"
)

// CreditStore persists credit balances.
type CreditStore interface {
	LoadAll(ctx context.Context) (map[domain.SessionID]domain.CreditAccount, error)
	SaveAll(ctx context.Context, accounts map[domain.SessionID]domain.CreditAccount) error
	SaveOne(ctx context.Context, account domain.CreditAccount) error
	Close() error
}

// TransactionLog is implemented by backends that keep credit history.
type TransactionLog interface {
	RecordTransaction(ctx context.Context, tx domain.Transaction) error
	History(ctx context.Context, id domain.SessionID, limit int) ([]domain.Transaction, error)
}
