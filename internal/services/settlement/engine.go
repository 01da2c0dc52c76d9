// Package settlement orchestrates sends, admin adjustments and deferred
// confirmations on top of the ledger, the transaction log and the
// notification dispatcher.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainvault/internal/errs"
	"chainvault/internal/metrics"
	"chainvault/internal/models"
	"chainvault/internal/services/addresses"
	"chainvault/internal/services/ledger"
	"chainvault/internal/services/notifications"
	"chainvault/internal/services/scheduler"
	"chainvault/internal/services/txlog"
	"chainvault/internal/tracing"
	"chainvault/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultConfirmDelay = 5 * time.Second
	confirmTask         = "tx.confirm"
)

type Store interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByWalletID(ctx context.Context, walletID string) (*models.User, error)
	ResolveUser(ctx context.Context, ref models.UserRef) (*models.User, error)
	InsertAdminTransfer(ctx context.Context, a *models.AdminTransfer) error
}

type Catalog interface {
	Lookup(chainID, symbol string) (models.TokenMeta, error)
}

type FeeResolver interface {
	ResolveFee(ctx context.Context, userID, tokenSymbol, chainID string) (models.FeeQuote, error)
}

type Notifier interface {
	Notify(ctx context.Context, n notifications.Notice) (*models.Notification, error)
}

type Publisher interface {
	Publish(ctx context.Context, events ...models.Event)
}

type Scheduler interface {
	Schedule(delay time.Duration, name string, task scheduler.Task) scheduler.TaskID
}

type Deps struct {
	Store     Store
	Ledger    *ledger.Ledger
	TxLog     *txlog.Log
	Addresses *addresses.Book
	Catalog   Catalog
	Fees      FeeResolver
	Notifier  Notifier
	Publisher Publisher
	Scheduler Scheduler
}

type Engine struct {
	store        Store
	ledger       *ledger.Ledger
	txlog        *txlog.Log
	addresses    *addresses.Book
	catalog      Catalog
	fees         FeeResolver
	notifier     Notifier
	publisher    Publisher
	scheduler    Scheduler
	confirmDelay time.Duration
	now          func() time.Time
}

type Option func(*Engine)

// WithConfirmDelay sets the simulated network delay before a send confirms.
func WithConfirmDelay(d time.Duration) Option {
	return func(e *Engine) { e.confirmDelay = d }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(d Deps, opts ...Option) *Engine {
	e := &Engine{
		store:        d.Store,
		ledger:       d.Ledger,
		txlog:        d.TxLog,
		addresses:    d.Addresses,
		catalog:      d.Catalog,
		fees:         d.Fees,
		notifier:     d.Notifier,
		publisher:    d.Publisher,
		scheduler:    d.Scheduler,
		confirmDelay: defaultConfirmDelay,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type SendRequest struct {
	To          string `json:"to"`
	Amount      string `json:"amount"`
	TokenSymbol string `json:"tokenSymbol"`
	ChainID     string `json:"chainId"`
}

// Send debits amount from the user right away and records a pending send.
// The quoted fee is attached to the transaction and included in amount.
// Confirmation happens later on the scheduler.
func (e *Engine) Send(ctx context.Context, userID string, req SendRequest) (tx *models.Transaction, err error) {
	ctx, span := tracing.Start(ctx, "settlement", "settlement.Send", "user.id", userID, "token", req.TokenSymbol, "chain", req.ChainID)
	defer func() { tracing.End(span, err) }()
	defer observe("send", time.Now(), &err)

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.CanSend {
		return nil, fmt.Errorf("user %s may not send: %w", userID, errs.ErrPermissionDenied)
	}

	chainID := strings.ToLower(strings.TrimSpace(req.ChainID))
	meta, err := e.catalog.Lookup(chainID, req.TokenSymbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidToken, err)
	}
	to := strings.TrimSpace(req.To)
	if to == "" {
		return nil, fmt.Errorf("recipient address is required: %w", errs.ErrInvalidInput)
	}
	amount, err := ledger.ParseTokenAmount(req.Amount, meta.Decimals)
	if err != nil {
		return nil, err
	}

	key := ledger.NewKey(user.WalletID, chainID, req.TokenSymbol)
	quote, err := e.fees.ResolveFee(ctx, user.ID, key.Symbol, key.ChainID)
	if err != nil {
		return nil, err
	}
	fee, err := decimal.NewFromString(quote.FeeAmount)
	if err != nil {
		return nil, utils.ErrorHandler(err, "invalid fee quote", logrus.Fields{
			"token": key.Symbol,
			"chain": key.ChainID,
			"fee":   quote.FeeAmount,
		})
	}

	var note *models.Notification
	err = e.ledger.Within(ctx, []ledger.Key{key}, func(ctx context.Context) error {
		from, err := e.addresses.WalletAddress(ctx, user.WalletID, chainID)
		if err != nil {
			return err
		}
		if _, err := e.ledger.Debit(ctx, key, amount); err != nil {
			return err
		}
		tx, err = e.txlog.Record(ctx, txlog.Entry{
			WalletID: user.WalletID, ChainID: chainID, From: from, To: to,
			Value: amount, TokenSymbol: key.Symbol,
			Type: models.TransactionSend, Status: models.TransactionPending,
			Extra: models.TransactionExtra{Fee: &fee},
		})
		if err != nil {
			return err
		}
		note, err = e.notifier.Notify(ctx, notifications.Notice{
			WalletID:      user.WalletID,
			Category:      models.CategoryTransaction,
			Type:          string(models.TransactionSend),
			Title:         "Transaction sent",
			Description:   fmt.Sprintf("You sent %s %s to %s", amount, key.Symbol, to),
			TransactionID: tx.ID,
			Metadata:      map[string]any{"chainId": chainID, "fee": quote.FeeAmount},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	utils.Logger.WithFields(logrus.Fields{
		"tx_id":   tx.ID,
		"user_id": user.ID,
		"key":     key.String(),
		"amount":  amount.String(),
		"fee":     quote.FeeAmount,
	}).Info("send recorded")

	e.publisher.Publish(ctx,
		txEvent(models.EventTransactionCreated, user.ID, tx),
		notificationEvent(user.ID, note),
		balanceEvent(user.ID, key),
	)
	e.scheduleConfirm(tx.ID)
	return tx, nil
}

func (e *Engine) scheduleConfirm(txID string) {
	e.scheduler.Schedule(e.confirmDelay, confirmTask, func(ctx context.Context) error {
		_, err := e.ConfirmTransaction(ctx, txID)
		return err
	})
}

// ConfirmTransaction flips a pending transaction to confirmed. Confirming a
// transaction twice is a no-op; a failed transaction is left as it is.
func (e *Engine) ConfirmTransaction(ctx context.Context, txID string) (tx *models.Transaction, err error) {
	ctx, span := tracing.Start(ctx, "settlement", "settlement.ConfirmTransaction", "tx.id", txID)
	defer func() { tracing.End(span, err) }()
	defer observe("confirm", time.Now(), &err)

	tx, changed, err := e.txlog.SetStatus(ctx, txID, models.TransactionConfirmed)
	if errors.Is(err, errs.ErrInvalidStatusTransition) && tx != nil {
		utils.Logger.WithFields(logrus.Fields{
			"tx_id":  txID,
			"status": tx.Status,
		}).Warn("skipping confirmation of a settled transaction")
		return tx, nil
	}
	if err != nil {
		return nil, err
	}
	if !changed {
		return tx, nil
	}

	user, err := e.store.GetUserByWalletID(ctx, tx.WalletID)
	if err != nil {
		utils.Logger.WithFields(logrus.Fields{
			"tx_id":     txID,
			"wallet_id": tx.WalletID,
			"error":     err.Error(),
		}).Warn("confirmed transaction has no owner to notify")
		return tx, nil
	}
	e.publisher.Publish(ctx, txEvent(models.EventTransactionUpdated, user.ID, tx))
	return tx, nil
}

// ConfirmStale confirms pending sends created before cutoff and returns how
// many it moved. They are the confirmations a restart dropped.
func (e *Engine) ConfirmStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	pending, err := e.txlog.ListPendingOlderThan(ctx, models.TransactionSend, cutoff, limit)
	if err != nil {
		return 0, err
	}
	confirmed := 0
	for _, t := range pending {
		got, err := e.ConfirmTransaction(ctx, t.ID)
		if err != nil {
			utils.Logger.WithFields(logrus.Fields{
				"tx_id": t.ID,
				"error": err.Error(),
			}).Warn("stale transaction still unconfirmed")
			continue
		}
		if got.Status == models.TransactionConfirmed {
			confirmed++
		}
	}
	return confirmed, nil
}

// FeeQuote returns the fee the user would pay for a token on a chain.
func (e *Engine) FeeQuote(ctx context.Context, userID, tokenSymbol, chainID string) (models.FeeQuote, error) {
	if _, err := e.catalog.Lookup(chainID, tokenSymbol); err != nil {
		return models.FeeQuote{}, err
	}
	return e.fees.ResolveFee(ctx, userID, tokenSymbol, chainID)
}

func (e *Engine) User(ctx context.Context, userID string) (*models.User, error) {
	return e.store.GetUserByID(ctx, userID)
}

// Balances returns the visible ledger entries of the user's wallet.
func (e *Engine) Balances(ctx context.Context, userID string) ([]models.WalletBalanceEntry, error) {
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.ledger.List(ctx, user.WalletID)
}

// Transactions returns one page of the user's transactions and the total count.
func (e *Engine) Transactions(ctx context.Context, userID string, page, limit int) ([]models.Transaction, int, error) {
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return e.txlog.ListByWallet(ctx, user.WalletID, page, limit)
}

// Transaction returns txID only when it belongs to the user's wallet.
func (e *Engine) Transaction(ctx context.Context, userID, txID string) (*models.Transaction, error) {
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	tx, err := e.txlog.Get(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.WalletID != user.WalletID {
		return nil, fmt.Errorf("transaction %s: %w", txID, errs.ErrNotFound)
	}
	return tx, nil
}

func observe(op string, start time.Time, err *error) {
	metrics.SettlementOps.WithLabelValues(op, metrics.Result(*err)).Inc()
	metrics.SettlementLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func txEvent(typ models.EventType, userID string, t *models.Transaction) models.Event {
	return models.Event{
		Type:          typ,
		WalletID:      t.WalletID,
		UserID:        userID,
		TransactionID: t.ID,
		Status:        string(t.Status),
		Data:          t,
	}
}

func notificationEvent(userID string, n *models.Notification) models.Event {
	return models.Event{
		Type:           models.EventNotificationCreated,
		WalletID:       n.WalletID,
		UserID:         userID,
		NotificationID: n.ID,
		Data:           n,
	}
}

func balanceEvent(userID string, k ledger.Key) models.Event {
	return models.Event{
		Type:     models.EventBalanceUpdated,
		WalletID: k.WalletID,
		UserID:   userID,
		Data:     map[string]string{"chainId": k.ChainID, "symbol": k.Symbol},
	}
}
