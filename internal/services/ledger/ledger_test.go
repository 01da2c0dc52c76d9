package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chainvault/internal/errs"
	"chainvault/internal/models"
	"chainvault/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var usdtMeta = models.TokenMeta{Symbol: "USDT", Name: "Tether USD", Decimals: 6}

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *repositories.Store) {
	t.Helper()
	store, err := repositories.NewMemoryStore(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, opts...), store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" 1.25 ")
	require.NoError(t, err)
	assert.Equal(t, "1.25", d.String())

	for _, bad := range []string{"", "abc", "0", "-1"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, errs.ErrInvalidAmount, bad)
	}
}

func TestParseTokenAmountHonorsDecimals(t *testing.T) {
	d, err := ParseTokenAmount("1.000001", 6)
	require.NoError(t, err)
	assert.Equal(t, "1.000001", d.String())

	d, err = ParseTokenAmount("2.5000000000", 6)
	require.NoError(t, err, "trailing zeros are not extra precision")
	assert.Equal(t, "2.5", d.String())

	_, err = ParseTokenAmount("0.0000001", 6)
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)
	_, err = ParseTokenAmount("0.5", 0)
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)
	_, err = ParseTokenAmount("0", 18)
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)
}

func TestCreditCreatesRowLazily(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	k := NewKey("w1", "Ethereum", "usdt")

	_, err := l.GetBalance(ctx, k)
	require.ErrorIs(t, err, errs.ErrNotFound)

	e, err := l.Credit(ctx, k, dec("10"))
	require.NoError(t, err)
	assert.Equal(t, "10", e.Balance.String())
	assert.Equal(t, "ethereum", e.ChainID)
	assert.Equal(t, "USDT", e.Symbol)
	require.NotNil(t, e.LastInboundAt)
}

func TestDebitConservation(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	k := NewKey("w1", "ethereum", "ETH")

	_, err := l.Credit(ctx, k, dec("3.12345678"))
	require.NoError(t, err)

	e, err := l.Debit(ctx, k, dec("1.00000001"))
	require.NoError(t, err)
	assert.Equal(t, "2.12345677", e.Balance.String())

	stored, err := l.GetBalance(ctx, k)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(dec("3.12345678").Sub(dec("1.00000001"))))
}

func TestDebitInsufficientLeavesBalance(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	k := NewKey("w1", "ethereum", "ETH")

	_, err := l.Debit(ctx, k, dec("1"))
	require.ErrorIs(t, err, errs.ErrInsufficientBalance)

	_, err = l.Credit(ctx, k, dec("0.5"))
	require.NoError(t, err)
	_, err = l.Debit(ctx, k, dec("0.50000001"))
	require.ErrorIs(t, err, errs.ErrInsufficientBalance)

	e, err := l.GetBalance(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, "0.5", e.Balance.String())
}

func TestEnsureEntryIsIdempotent(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000).UTC()
	clock := func() time.Time { return now }
	l, _ := newTestLedger(t, WithClock(clock))
	ctx := context.Background()
	k := NewKey("w1", "ethereum", "USDT")

	e, err := l.EnsureEntry(ctx, k, usdtMeta)
	require.NoError(t, err)
	assert.True(t, e.Balance.IsZero())
	assert.Equal(t, "Tether USD", e.Name)
	assert.Equal(t, 6, e.Decimals)

	_, err = l.Credit(ctx, k, dec("7"))
	require.NoError(t, err)

	now = now.Add(time.Minute)
	e, err = l.EnsureEntry(ctx, k, usdtMeta)
	require.NoError(t, err)
	assert.Equal(t, "7", e.Balance.String())
	assert.True(t, e.IsVisible)
	require.NotNil(t, e.LastInboundAt)
	assert.Equal(t, now.UnixMilli(), e.LastInboundAt.UnixMilli())

	list, err := l.List(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEnsureEntryAssignsDisplayOrder(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	a, err := l.EnsureEntry(ctx, NewKey("w1", "ethereum", "ETH"), models.TokenMeta{Name: "Ether", Decimals: 18})
	require.NoError(t, err)
	b, err := l.EnsureEntry(ctx, NewKey("w1", "ethereum", "USDT"), usdtMeta)
	require.NoError(t, err)
	assert.Equal(t, 0, a.DisplayOrder)
	assert.Equal(t, 1, b.DisplayOrder)
}

func TestWithinRollsBackEveryWrite(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	src := NewKey("w1", "ethereum", "ETH")
	dst := NewKey("w1", "ethereum", "USDT")
	_, err := l.Credit(ctx, src, dec("2"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = l.Within(ctx, []Key{dst, src}, func(ctx context.Context) error {
		if _, err := l.Debit(ctx, src, dec("1")); err != nil {
			return err
		}
		if _, err := l.Credit(ctx, dst, dec("1960")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err := l.Available(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "2", bal.String())
	bal, err = l.Available(ctx, dst)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestWithinRejectsUnheldKey(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	err := l.Within(ctx, []Key{NewKey("w1", "ethereum", "ETH")}, func(ctx context.Context) error {
		_, err := l.Credit(ctx, NewKey("w2", "ethereum", "ETH"), dec("1"))
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not held")
}

func TestConcurrentMutationsConserve(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	k := NewKey("w1", "ethereum", "USDT")
	_, err := l.Credit(ctx, k, dec("100"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := l.Credit(ctx, k, dec("0.25"))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := l.Debit(ctx, k, dec("0.1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	bal, err := l.Available(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, "106", bal.String())
	assert.Zero(t, l.locks.size())
}

type conflictingStore struct {
	Store
	failures int
}

func (c *conflictingStore) CompareAndSetBalance(ctx context.Context, walletID, chainID, symbol string, prev, next decimal.Decimal, inbound *time.Time, now time.Time) error {
	if c.failures > 0 {
		c.failures--
		return errs.ErrConcurrentUpdate
	}
	return c.Store.CompareAndSetBalance(ctx, walletID, chainID, symbol, prev, next, inbound, now)
}

func TestConflictRetriesUnitOfWork(t *testing.T) {
	_, store := newTestLedger(t)
	cs := &conflictingStore{Store: store, failures: 2}
	l := New(cs)
	ctx := context.Background()

	e, err := l.Credit(ctx, NewKey("w1", "ethereum", "ETH"), dec("1"))
	require.NoError(t, err)
	assert.Equal(t, "1", e.Balance.String())

	cs.failures = 100
	_, err = New(cs, WithMaxConflictRetries(1)).Credit(ctx, NewKey("w1", "ethereum", "ETH"), dec("1"))
	assert.ErrorIs(t, err, errs.ErrConcurrentUpdate)
}

func TestSortedUnique(t *testing.T) {
	a, b := NewKey("w2", "x", "A"), NewKey("w1", "x", "A")
	assert.Equal(t, []Key{b, a}, sortedUnique([]Key{a, b, a}))
}
