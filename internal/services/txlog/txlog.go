// Package txlog is the append-only record of ledger movements.
package txlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chainvault/internal/errs"
	"chainvault/internal/models"
	"chainvault/internal/services/chains"
	"chainvault/pkg/utils"

	"github.com/shopspring/decimal"
)

type Store interface {
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus, now time.Time) (bool, error)
	ListTransactionsByWallet(ctx context.Context, walletID string, limit, offset int) ([]models.Transaction, error)
	CountTransactionsByWallet(ctx context.Context, walletID string) (int, error)
	ListTransactionsBySwapOrder(ctx context.Context, orderID string) ([]models.Transaction, error)
	ListPendingTransactions(ctx context.Context, txType models.TransactionType, cutoff time.Time, limit int) ([]models.Transaction, error)
}

// Entry is what Record needs. An empty Hash is synthesized for the chain.
type Entry struct {
	WalletID    string
	ChainID     string
	Hash        string
	From        string
	To          string
	Value       decimal.Decimal
	TokenSymbol string
	Type        models.TransactionType
	Status      models.TransactionStatus
	Extra       models.TransactionExtra
}

type Log struct {
	store  Store
	family func(chainID string) chains.Family
	now    func() time.Time
}

type Option func(*Log)

// WithFamilies sets how a chain id maps to its hash encoding.
func WithFamilies(f func(chainID string) chains.Family) Option {
	return func(l *Log) { l.family = f }
}

func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

func New(store Store, opts ...Option) *Log {
	l := &Log{store: store, family: chains.FamilyOf, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewHash returns a synthetic hash in the encoding of chainID.
func (l *Log) NewHash(chainID string) (string, error) {
	return chains.NewHash(l.family(chainID))
}

func (l *Log) Record(ctx context.Context, e Entry) (*models.Transaction, error) {
	if !e.Type.Valid() {
		return nil, fmt.Errorf("transaction type %q: %w", e.Type, errs.ErrInvalidInput)
	}
	if !e.Status.Valid() {
		return nil, fmt.Errorf("transaction status %q: %w", e.Status, errs.ErrInvalidInput)
	}
	if e.WalletID == "" || e.ChainID == "" || e.TokenSymbol == "" {
		return nil, fmt.Errorf("wallet, chain and token are required: %w", errs.ErrInvalidInput)
	}
	if e.Hash == "" {
		hash, err := l.NewHash(e.ChainID)
		if err != nil {
			return nil, err
		}
		e.Hash = hash
	}

	now := l.now()
	t := &models.Transaction{
		ID:             utils.NewID("tx"),
		WalletID:       e.WalletID,
		ChainID:        strings.ToLower(e.ChainID),
		Hash:           e.Hash,
		From:           e.From,
		To:             e.To,
		Value:          e.Value,
		TokenSymbol:    strings.ToUpper(e.TokenSymbol),
		Status:         e.Status,
		Type:           e.Type,
		Fee:            e.Extra.Fee,
		SwapOrderID:    e.Extra.SwapOrderID,
		AdminID:        e.Extra.AdminID,
		AdminNote:      e.Extra.AdminNote,
		AdminInitiated: e.Extra.AdminInitiated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := l.store.InsertTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SetStatus moves a pending transaction to a terminal status. Writing the
// status a transaction already has is a no-op reported as changed=false;
// moving between two different terminal statuses is refused.
func (l *Log) SetStatus(ctx context.Context, id string, status models.TransactionStatus) (*models.Transaction, bool, error) {
	if !status.Terminal() {
		return nil, false, fmt.Errorf("transaction %s -> %s: %w", id, status, errs.ErrInvalidStatusTransition)
	}
	changed, err := l.store.UpdateTransactionStatus(ctx, id, status, l.now())
	if err != nil {
		return nil, false, err
	}
	t, err := l.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !changed && t.Status != status {
		return t, false, fmt.Errorf("transaction %s is %s, not %s: %w", id, t.Status, status, errs.ErrInvalidStatusTransition)
	}
	return t, changed, nil
}

func (l *Log) Get(ctx context.Context, id string) (*models.Transaction, error) {
	return l.store.GetTransaction(ctx, id)
}

// ListByWallet returns one page of the wallet's transactions, newest first, and the total count.
func (l *Log) ListByWallet(ctx context.Context, walletID string, page, limit int) ([]models.Transaction, int, error) {
	if page < 1 {
		page = 1
	}
	txs, err := l.store.ListTransactionsByWallet(ctx, walletID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := l.store.CountTransactionsByWallet(ctx, walletID)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (l *Log) ListBySwapOrder(ctx context.Context, orderID string) ([]models.Transaction, error) {
	return l.store.ListTransactionsBySwapOrder(ctx, orderID)
}

// ListPendingOlderThan returns pending transactions of txType created before cutoff.
func (l *Log) ListPendingOlderThan(ctx context.Context, txType models.TransactionType, cutoff time.Time, limit int) ([]models.Transaction, error) {
	return l.store.ListPendingTransactions(ctx, txType, cutoff, limit)
}
