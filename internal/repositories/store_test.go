package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"chainvault/internal/errs"
	"chainvault/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemoryStore(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedBalance(t *testing.T, s *Store, balance string) {
	t.Helper()
	now := time.Now()
	ok, err := s.InsertBalance(context.Background(), &models.WalletBalanceEntry{
		WalletID: "w1", ChainID: "ethereum", Symbol: "ETH", Name: "Ether", Decimals: 18,
		Balance: decimal.RequireFromString(balance), IsVisible: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context) error {
		assert.True(t, InTransaction(ctx))
		seedBalanceCtx(t, ctx, s)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetBalance(ctx, "w1", "ethereum", "ETH")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestInTxNestedJoinsOuter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(ctx context.Context) error {
		return s.InTx(ctx, func(ctx context.Context) error {
			seedBalanceCtx(t, ctx, s)
			return nil
		})
	})
	require.NoError(t, err)

	e, err := s.GetBalance(ctx, "w1", "ethereum", "ETH")
	require.NoError(t, err)
	assert.Equal(t, "0", e.Balance.String())
}

func seedBalanceCtx(t *testing.T, ctx context.Context, s *Store) {
	now := time.Now()
	_, err := s.InsertBalance(ctx, &models.WalletBalanceEntry{
		WalletID: "w1", ChainID: "ethereum", Symbol: "ETH", Balance: decimal.Zero, IsVisible: true,
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
}

func TestInsertBalanceIgnoresDuplicate(t *testing.T) {
	s := newTestStore(t)
	seedBalance(t, s, "5")

	ok, err := s.InsertBalance(context.Background(), &models.WalletBalanceEntry{
		WalletID: "w1", ChainID: "ethereum", Symbol: "ETH", Balance: decimal.Zero,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	e, err := s.GetBalance(context.Background(), "w1", "ethereum", "ETH")
	require.NoError(t, err)
	assert.Equal(t, "5", e.Balance.String())
}

func TestCompareAndSetBalance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedBalance(t, s, "5")
	now := time.Now()

	err := s.CompareAndSetBalance(ctx, "w1", "ethereum", "ETH", decimal.RequireFromString("4"), decimal.RequireFromString("9"), nil, now)
	require.ErrorIs(t, err, errs.ErrConcurrentUpdate)

	err = s.CompareAndSetBalance(ctx, "w1", "ethereum", "ETH", decimal.RequireFromString("5"), decimal.RequireFromString("7.25"), &now, now)
	require.NoError(t, err)

	e, err := s.GetBalance(ctx, "w1", "ethereum", "ETH")
	require.NoError(t, err)
	assert.Equal(t, "7.25", e.Balance.String())
	require.NotNil(t, e.LastInboundAt)
	assert.Equal(t, now.UnixMilli(), e.LastInboundAt.UnixMilli())
}

func TestUpdateTransactionStatusOnlyFromPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fee := decimal.RequireFromString("0.0012")
	now := time.Now()
	require.NoError(t, s.InsertTransaction(ctx, &models.Transaction{
		ID: "tx_1", WalletID: "w1", ChainID: "ethereum", Hash: "0xabc", From: "a", To: "b",
		Value: decimal.RequireFromString("1.5"), TokenSymbol: "ETH", Status: models.TransactionPending,
		Type: models.TransactionSend, Fee: &fee, CreatedAt: now, UpdatedAt: now,
	}))

	changed, err := s.UpdateTransactionStatus(ctx, "tx_1", models.TransactionConfirmed, now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.UpdateTransactionStatus(ctx, "tx_1", models.TransactionFailed, now)
	require.NoError(t, err)
	assert.False(t, changed)

	tx, err := s.GetTransaction(ctx, "tx_1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionConfirmed, tx.Status)
	require.NotNil(t, tx.Fee)
	assert.Equal(t, "0.0012", tx.Fee.String())
}

func TestTransitionSwapOrderGuards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.InsertSwapOrder(ctx, &models.SwapOrder{
		ID: "swap_1", UserID: "u1", WalletID: "w1", SourceToken: "ETH", SourceAmount: decimal.NewFromInt(1),
		DestToken: "USDT", DestAmount: decimal.NewFromInt(1960), ChainID: "ethereum", DestChainID: "ethereum",
		Status: models.SwapPending, Rate: decimal.NewFromInt(2000), FromPrice: decimal.NewFromInt(2000),
		ToPrice: decimal.NewFromInt(1), Provider: "internal", CreatedAt: now, UpdatedAt: now,
	}))

	ok, err := s.TransitionSwapOrder(ctx, "swap_1", models.SwapPending, models.SwapProcessing, "", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TransitionSwapOrder(ctx, "swap_1", models.SwapPending, models.SwapProcessing, "", now)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.TransitionSwapOrder(ctx, "swap_1", models.SwapCompleted, models.SwapPending, "", now)
	assert.ErrorIs(t, err, errs.ErrInvalidStatusTransition)

	o, err := s.GetSwapOrder(ctx, "swap_1")
	require.NoError(t, err)
	assert.Equal(t, models.SwapProcessing, o.Status)
	assert.Equal(t, "1960", o.DestAmount.String())
}

func TestFeeOverrideUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := &models.FeeOverride{UserID: "u1", TokenSymbol: "USDT", ChainID: "ethereum",
		FeeAmount: "0.5", FeePercentage: "1", UpdatedAt: time.Now()}
	require.NoError(t, s.UpsertFeeOverride(ctx, f))

	f.FeeAmount = "0.70"
	require.NoError(t, s.UpsertFeeOverride(ctx, f))

	got, err := s.GetFeeOverride(ctx, "u1", "USDT", "ethereum")
	require.NoError(t, err)
	assert.Equal(t, "0.70", got.FeeAmount)

	deleted, err := s.DeleteFeeOverride(ctx, "u1", "USDT", "ethereum")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = s.GetFeeOverride(ctx, "u1", "USDT", "ethereum")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCountUnreadExcludesSubCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i, sub := range []string{"", models.SubCategorySupportChat, ""} {
		require.NoError(t, s.InsertNotification(ctx, &models.Notification{
			ID: "n" + string(rune('a'+i)), WalletID: "w1", Category: models.CategorySystem, SubCategory: sub,
			Type: "info", Title: "t", Description: "d", Metadata: map[string]any{"i": i}, CreatedAt: time.Now(),
		}))
	}

	n, err := s.CountUnreadNotifications(ctx, "w1", []string{models.SubCategorySupportChat})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountUnreadNotifications(ctx, "w1", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := s.ListNotifications(ctx, "w1", false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestResolveUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertUser(ctx, &models.User{ID: "u1", Email: "Alice@Example.com", Role: models.RoleUser, WalletID: "w1", CanSend: true}))

	u, err := s.ResolveUser(ctx, models.ByEmail("alice@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "w1", u.WalletID)
	assert.True(t, u.CanSend)

	u, err = s.ResolveUser(ctx, models.ByID("u1"))
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = s.ResolveUser(ctx, models.ByID("nobody"))
	assert.ErrorIs(t, err, errs.ErrNotFound)

	u, err = s.GetUserByWalletID(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestPutWalletAddressKeepsFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.PutWalletAddress(ctx, &models.WalletAddress{WalletID: "w1", ChainID: "ethereum", Address: "0x1", CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, "0x1", a.Address)

	a, err = s.PutWalletAddress(ctx, &models.WalletAddress{WalletID: "w1", ChainID: "ethereum", Address: "0x2", CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, "0x1", a.Address)
}
