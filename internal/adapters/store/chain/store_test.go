package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bnema/afkguard/internal/domain"
	portmocks "github.com/bnema/afkguard/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadAllUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockCreditStore(t)
	fallback := portmocks.NewMockCreditStore(t)
	store := NewStore(primary, fallback)

	want := map[domain.SessionID]domain.CreditAccount{"steve": {SessionID: "steve", BalanceMinutes: 5}}
	primary.EXPECT().LoadAll(mock.Anything).Return(want, nil).Once()
	fallback.EXPECT().LoadAll(mock.Anything).Return(nil, errors.New("decode credits file")).Once()

	got, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStoreLoadAllKeepsNewestCopyOfEachAccount(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockCreditStore(t)
	fallback := portmocks.NewMockCreditStore(t)
	store := NewStore(primary, fallback)

	older := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	newer := older.Add(time.Minute)
	primary.EXPECT().LoadAll(mock.Anything).Return(map[domain.SessionID]domain.CreditAccount{
		"steve": {SessionID: "steve", BalanceMinutes: 10, UpdatedAt: older},
		"alex":  {SessionID: "alex", BalanceMinutes: 7, UpdatedAt: newer},
	}, nil).Once()
	fallback.EXPECT().LoadAll(mock.Anything).Return(map[domain.SessionID]domain.CreditAccount{
		"steve": {SessionID: "steve", BalanceMinutes: 50, UpdatedAt: newer},
		"alex":  {SessionID: "alex", BalanceMinutes: 1, UpdatedAt: older},
		"notch": {SessionID: "notch", BalanceMinutes: 3},
	}, nil).Once()

	got, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 50, got["steve"].BalanceMinutes)
	assert.Equal(t, 7, got["alex"].BalanceMinutes)
	assert.Equal(t, 3, got["notch"].BalanceMinutes)
}

func TestStoreLoadAllPrefersPrimaryOnEqualTimestamps(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockCreditStore(t)
	fallback := portmocks.NewMockCreditStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().LoadAll(mock.Anything).Return(map[domain.SessionID]domain.CreditAccount{
		"steve": {SessionID: "steve", BalanceMinutes: 10},
	}, nil).Once()
	fallback.EXPECT().LoadAll(mock.Anything).Return(map[domain.SessionID]domain.CreditAccount{
		"steve": {SessionID: "steve", BalanceMinutes: 2},
	}, nil).Once()

	got, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, got["steve"].BalanceMinutes)
}

func TestStoreLoadAllFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockCreditStore(t)
	fallback := portmocks.NewMockCreditStore(t)
	store := NewStore(primary, fallback)

	want := map[domain.SessionID]domain.CreditAccount{"steve": {SessionID: "steve", BalanceMinutes: 9}}
	primary.EXPECT().LoadAll(mock.Anything).Return(nil, errors.New("database locked")).Once()
	fallback.EXPECT().LoadAll(mock.Anything).Return(want, nil).Once()

	got, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStoreSaveReturnsCombinedErrorWhenBothBackendsFail(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockCreditStore(t)
	fallback := portmocks.NewMockCreditStore(t)
	store := NewStore(primary, fallback)

	acct := domain.CreditAccount{SessionID: "steve", BalanceMinutes: 1}
	primary.EXPECT().SaveOne(mock.Anything, acct).Return(errors.New("sqlite failed")).Once()
	fallback.EXPECT().SaveOne(mock.Anything, acct).Return(errors.New("toml failed")).Once()

	err := store.SaveOne(context.Background(), acct)
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary backend save failed")
	assert.ErrorContains(t, err, "fallback backend save failed")
	assert.ErrorContains(t, err, "sqlite failed")
	assert.ErrorContains(t, err, "toml failed")
}

func TestStoreSaveAllFallsBack(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockCreditStore(t)
	fallback := portmocks.NewMockCreditStore(t)
	store := NewStore(primary, fallback)

	batch := map[domain.SessionID]domain.CreditAccount{"steve": {SessionID: "steve"}}
	primary.EXPECT().SaveAll(mock.Anything, batch).Return(errors.New("disk full")).Once()
	fallback.EXPECT().SaveAll(mock.Anything, batch).Return(nil).Once()

	err := store.SaveAll(context.Background(), batch)
	require.ErrorIs(t, err, errFallbackHoldsWrite)
	assert.ErrorContains(t, err, "disk full")
}

// A write only the fallback accepted must surface as an error so the caller
// retries, and must win over the stale primary copy if it never does.
func TestStoreFallbackWriteIsNotLostBehindStalePrimary(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockCreditStore(t)
	fallback := portmocks.NewMockCreditStore(t)
	store := NewStore(primary, fallback)
	ctx := context.Background()

	savedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := domain.CreditAccount{SessionID: "steve", BalanceMinutes: 10, UpdatedAt: savedAt}
	second := domain.CreditAccount{SessionID: "steve", BalanceMinutes: 50, UpdatedAt: savedAt.Add(time.Minute)}

	primary.EXPECT().SaveOne(mock.Anything, first).Return(nil).Once()
	primary.EXPECT().SaveOne(mock.Anything, second).Return(errors.New("database is locked")).Once()
	fallback.EXPECT().SaveOne(mock.Anything, second).Return(nil).Once()

	require.NoError(t, store.SaveOne(ctx, first))
	err := store.SaveOne(ctx, second)
	require.ErrorIs(t, err, errFallbackHoldsWrite)

	primary.EXPECT().LoadAll(mock.Anything).Return(map[domain.SessionID]domain.CreditAccount{"steve": first}, nil).Once()
	fallback.EXPECT().LoadAll(mock.Anything).Return(map[domain.SessionID]domain.CreditAccount{"steve": second}, nil).Once()

	got, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, got["steve"].BalanceMinutes)
}

func TestStoreDoesNotFallbackOnContextCancellation(t *testing.T) {
	t.Parallel()

	for _, ctxErr := range []error{context.Canceled, context.DeadlineExceeded} {
		ctxErr := ctxErr
		t.Run(ctxErr.Error(), func(t *testing.T) {
			t.Parallel()

			primary := portmocks.NewMockCreditStore(t)
			fallback := portmocks.NewMockCreditStore(t)
			store := NewStore(primary, fallback)

			acct := domain.CreditAccount{SessionID: "steve"}
			primary.EXPECT().SaveOne(mock.Anything, acct).Return(fmt.Errorf("upsert: %w", ctxErr)).Once()

			err := store.SaveOne(context.Background(), acct)
			require.ErrorIs(t, err, ctxErr)
		})
	}
}

func TestStoreCloseClosesBoth(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockCreditStore(t)
	fallback := portmocks.NewMockCreditStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Close().Return(errors.New("busy")).Once()
	fallback.EXPECT().Close().Return(nil).Once()

	err := store.Close()
	require.Error(t, err)
	assert.ErrorContains(t, err, "close primary backend: busy")
}

func TestNewStoreCheckedRejectsNilBackends(t *testing.T) {
	t.Parallel()

	_, err := NewStoreChecked(nil, portmocks.NewMockCreditStore(t))
	require.ErrorIs(t, err, errNilPrimaryStore)

	_, err = NewStoreChecked(portmocks.NewMockCreditStore(t), nil)
	require.ErrorIs(t, err, errNilFallbackStore)

	assert.Panics(t, func() { NewStore(nil, nil) })
}
