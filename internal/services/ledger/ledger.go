// Package ledger owns every balance mutation. Writes to one (wallet, chain,
// symbol) key are serialized in process by a keyed mutex and across processes
// by a compare-and-swap UPDATE inside a SQL transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainvault/internal/errs"
	"chainvault/internal/metrics"
	"chainvault/internal/models"
	"chainvault/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultMaxConflictRetries = 5

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetBalance(ctx context.Context, walletID, chainID, symbol string) (*models.WalletBalanceEntry, error)
	InsertBalance(ctx context.Context, e *models.WalletBalanceEntry) (bool, error)
	CompareAndSetBalance(ctx context.Context, walletID, chainID, symbol string, prev, next decimal.Decimal, inbound *time.Time, now time.Time) error
	TouchBalance(ctx context.Context, walletID, chainID, symbol string, inbound time.Time) error
	ListBalances(ctx context.Context, walletID string, visibleOnly bool) ([]models.WalletBalanceEntry, error)
	NextDisplayOrder(ctx context.Context, walletID string) (int, error)
}

// Key identifies one ledger row.
type Key struct {
	WalletID string
	ChainID  string
	Symbol   string
}

func NewKey(walletID, chainID, symbol string) Key {
	return Key{WalletID: walletID, ChainID: strings.ToLower(chainID), Symbol: strings.ToUpper(symbol)}
}

func (k Key) String() string { return k.WalletID + "/" + k.ChainID + "/" + k.Symbol }

type Ledger struct {
	store      Store
	locks      *keyedMutex
	now        func() time.Time
	maxRetries int
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithMaxConflictRetries(n int) Option {
	return func(l *Ledger) { l.maxRetries = n }
}

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:      store,
		locks:      newKeyedMutex(),
		now:        time.Now,
		maxRetries: defaultMaxConflictRetries,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ParseAmount parses a user supplied decimal string. Only strictly positive
// amounts are accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%q: %w", s, errs.ErrInvalidAmount)
	}
	return d, nil
}

// ParseTokenAmount is ParseAmount for a token with the given number of
// decimals. Amounts finer than the token's smallest unit are rejected.
func ParseTokenAmount(s string, decimals int) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.Equal(d.Truncate(int32(decimals))) {
		return decimal.Zero, fmt.Errorf("%q has more than %d decimal places: %w", s, decimals, errs.ErrInvalidAmount)
	}
	return d, nil
}

// Within runs fn as one unit of work: the locks of keys are held and every
// store call made with the ctx passed to fn joins a single SQL transaction.
// When a compare-and-swap write loses a race, the whole unit is rolled back
// and run again. fn must therefore keep its side effects inside the store.
//
// A nested Within may only name keys the outer unit already holds.
func (l *Ledger) Within(ctx context.Context, keys []Key, fn func(ctx context.Context) error) error {
	if held := heldFrom(ctx); held != nil {
		for _, k := range keys {
			if !held[k] {
				return fmt.Errorf("ledger key %s is not held by the enclosing unit of work", k)
			}
		}
		return fn(ctx)
	}

	unlock := l.locks.Lock(keys...)
	defer unlock()
	ctx = withHeld(ctx, keys)

	var err error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		err = l.store.InTx(ctx, fn)
		if !errors.Is(err, errs.ErrConcurrentUpdate) {
			return err
		}
		metrics.LedgerConflicts.Inc()
		utils.Logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("ledger write conflict, retrying unit of work")
	}
	return err
}

func (l *Ledger) GetBalance(ctx context.Context, k Key) (*models.WalletBalanceEntry, error) {
	return l.store.GetBalance(ctx, k.WalletID, k.ChainID, k.Symbol)
}

// Available returns the balance of k, zero when the row does not exist.
func (l *Ledger) Available(ctx context.Context, k Key) (decimal.Decimal, error) {
	e, err := l.GetBalance(ctx, k)
	if errors.Is(err, errs.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return e.Balance, nil
}

// List returns the visible entries of a wallet in display order.
func (l *Ledger) List(ctx context.Context, walletID string) ([]models.WalletBalanceEntry, error) {
	return l.store.ListBalances(ctx, walletID, true)
}

// Credit adds amount to k, creating the row on first credit.
func (l *Ledger) Credit(ctx context.Context, k Key, amount decimal.Decimal) (*models.WalletBalanceEntry, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("credit %s: %w", k, errs.ErrInvalidAmount)
	}
	return l.mutate(ctx, "credit", k, true, func(cur decimal.Decimal) (decimal.Decimal, error) {
		return cur.Add(amount), nil
	})
}

// Debit removes amount from k. It fails with errs.ErrInsufficientBalance and
// leaves the row untouched when amount exceeds the balance.
func (l *Ledger) Debit(ctx context.Context, k Key, amount decimal.Decimal) (*models.WalletBalanceEntry, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("debit %s: %w", k, errs.ErrInvalidAmount)
	}
	return l.mutate(ctx, "debit", k, false, func(cur decimal.Decimal) (decimal.Decimal, error) {
		if amount.GreaterThan(cur) {
			return cur, fmt.Errorf("debit %s of %s with balance %s: %w", k, amount, cur, errs.ErrInsufficientBalance)
		}
		return cur.Sub(amount), nil
	})
}

// EnsureEntry makes k exist and be visible. A new row starts at zero with the
// catalog metadata; an existing row only gets is_visible and last_inbound_at
// refreshed. The balance is never changed.
func (l *Ledger) EnsureEntry(ctx context.Context, k Key, meta models.TokenMeta) (*models.WalletBalanceEntry, error) {
	var out *models.WalletBalanceEntry
	err := l.Within(ctx, []Key{k}, func(ctx context.Context) error {
		now := l.now()
		_, err := l.store.GetBalance(ctx, k.WalletID, k.ChainID, k.Symbol)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			if err := l.insertZero(ctx, k, meta, now); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := l.store.TouchBalance(ctx, k.WalletID, k.ChainID, k.Symbol, now); err != nil {
				return err
			}
		}
		out, err = l.store.GetBalance(ctx, k.WalletID, k.ChainID, k.Symbol)
		return err
	})
	metrics.LedgerMutations.WithLabelValues("ensure", metrics.Result(err)).Inc()
	return out, err
}

func (l *Ledger) insertZero(ctx context.Context, k Key, meta models.TokenMeta, now time.Time) error {
	order, err := l.store.NextDisplayOrder(ctx, k.WalletID)
	if err != nil {
		return err
	}
	name := meta.Name
	if name == "" {
		name = k.Symbol
	}
	inserted, err := l.store.InsertBalance(ctx, &models.WalletBalanceEntry{
		WalletID:      k.WalletID,
		ChainID:       k.ChainID,
		Symbol:        k.Symbol,
		Name:          name,
		Icon:          meta.Icon,
		Decimals:      meta.Decimals,
		Balance:       decimal.Zero,
		IsVisible:     true,
		DisplayOrder:  order,
		LastInboundAt: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return err
	}
	if !inserted {
		return l.store.TouchBalance(ctx, k.WalletID, k.ChainID, k.Symbol, now)
	}
	return nil
}

func (l *Ledger) mutate(ctx context.Context, op string, k Key, inbound bool,
	apply func(cur decimal.Decimal) (decimal.Decimal, error)) (*models.WalletBalanceEntry, error) {
	var out *models.WalletBalanceEntry
	err := l.Within(ctx, []Key{k}, func(ctx context.Context) error {
		now := l.now()
		cur, err := l.store.GetBalance(ctx, k.WalletID, k.ChainID, k.Symbol)
		if errors.Is(err, errs.ErrNotFound) {
			if !inbound {
				return fmt.Errorf("%s %s: no balance: %w", op, k, errs.ErrInsufficientBalance)
			}
			if err := l.insertZero(ctx, k, models.TokenMeta{}, now); err != nil {
				return err
			}
			cur, err = l.store.GetBalance(ctx, k.WalletID, k.ChainID, k.Symbol)
		}
		if err != nil {
			return err
		}

		next, err := apply(cur.Balance)
		if err != nil {
			return err
		}
		var stamp *time.Time
		if inbound {
			stamp = &now
		}
		if err := l.store.CompareAndSetBalance(ctx, k.WalletID, k.ChainID, k.Symbol, cur.Balance, next, stamp, now); err != nil {
			return err
		}

		cur.Balance = next
		cur.UpdatedAt = now
		if inbound {
			cur.LastInboundAt = &now
			cur.IsVisible = true
		}
		out = cur
		return nil
	})
	metrics.LedgerMutations.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	utils.Logger.WithFields(logrus.Fields{
		"op":      op,
		"key":     k.String(),
		"balance": out.Balance.String(),
	}).Debug("ledger mutation applied")
	return out, nil
}
