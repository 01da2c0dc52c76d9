// Package swaps drives swap orders through pending, processing and a terminal
// status, settling both legs against the ledger in one unit of work.
package swaps

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
	"chainvault/internal/services/pricing"
	"chainvault/internal/services/scheduler"
	"chainvault/internal/services/txlog"
	"chainvault/internal/tracing"
	"chainvault/pkg/utils"

	"github.com/sirupsen/logrus"
)

const (
	Provider = "internal"

	defaultSettleDelay = 5 * time.Second
	settleTask         = "swap.settle"
)

// errSettled aborts a unit of work whose order another writer already moved on.
var errSettled = errors.New("swap order already settled")

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	InsertSwapOrder(ctx context.Context, o *models.SwapOrder) error
	GetSwapOrder(ctx context.Context, id string) (*models.SwapOrder, error)
	TransitionSwapOrder(ctx context.Context, id string, from, to models.SwapOrderStatus, failReason string, now time.Time) (bool, error)
	ListSwapOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]models.SwapOrder, error)
	ListStaleSwapOrders(ctx context.Context, status models.SwapOrderStatus, cutoff time.Time, limit int) ([]models.SwapOrder, error)
}

type Catalog interface {
	Lookup(chainID, symbol string) (models.TokenMeta, error)
	HomeChain(symbol string) (string, error)
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

// Deps are the collaborators of a Service.
type Deps struct {
	Store     Store
	Ledger    *ledger.Ledger
	TxLog     *txlog.Log
	Addresses *addresses.Book
	Catalog   Catalog
	Prices    pricing.Source
	Notifier  Notifier
	Publisher Publisher
	Scheduler Scheduler
}

type Service struct {
	store       Store
	ledger      *ledger.Ledger
	txlog       *txlog.Log
	addresses   *addresses.Book
	catalog     Catalog
	prices      pricing.Source
	notifier    Notifier
	publisher   Publisher
	scheduler   Scheduler
	settleDelay time.Duration
	now         func() time.Time
}

type Option func(*Service)

// WithSettleDelay sets how long after creation an order is settled.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Service) { s.settleDelay = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(d Deps, opts ...Option) *Service {
	s := &Service{
		store:       d.Store,
		ledger:      d.Ledger,
		txlog:       d.TxLog,
		addresses:   d.Addresses,
		catalog:     d.Catalog,
		prices:      d.Prices,
		notifier:    d.Notifier,
		publisher:   d.Publisher,
		scheduler:   d.Scheduler,
		settleDelay: defaultSettleDelay,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request is a user's swap request. ChainID is the source chain.
type Request struct {
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	Amount    string `json:"amount"`
	ChainID   string `json:"chainId"`
}

// Create validates and prices a swap, then persists the order and its two
// pending legs together. The source balance is checked, not debited; the
// debit happens at settlement.
func (s *Service) Create(ctx context.Context, userID string, req Request) (order *models.SwapOrder, err error) {
	ctx, span := tracing.Start(ctx, "swaps", "swaps.Create", "user.id", userID, "from", req.FromToken, "to", req.ToToken)
	defer func() { tracing.End(span, err) }()
	defer observe("swap_create", time.Now(), &err)

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.CanSend {
		return nil, fmt.Errorf("user %s may not swap: %w", userID, errs.ErrPermissionDenied)
	}

	srcChain := strings.ToLower(strings.TrimSpace(req.ChainID))
	srcMeta, err := s.catalog.Lookup(srcChain, req.FromToken)
	if err != nil {
		return nil, err
	}
	dstChain, err := s.catalog.HomeChain(req.ToToken)
	if err != nil {
		return nil, err
	}
	dstMeta, err := s.catalog.Lookup(dstChain, req.ToToken)
	if err != nil {
		return nil, err
	}
	amount, err := ledger.ParseTokenAmount(req.Amount, srcMeta.Decimals)
	if err != nil {
		return nil, err
	}

	srcKey := ledger.NewKey(user.WalletID, srcChain, req.FromToken)
	dstKey := ledger.NewKey(user.WalletID, dstChain, req.ToToken)
	if srcKey == dstKey {
		return nil, fmt.Errorf("cannot swap %s into itself: %w", srcKey.Symbol, errs.ErrInvalidInput)
	}

	available, err := s.ledger.Available(ctx, srcKey)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(available) {
		return nil, fmt.Errorf("swap %s %s with balance %s: %w", amount, srcKey.Symbol, available, errs.ErrInsufficientBalance)
	}

	q := s.quote(ctx, srcKey.Symbol, dstKey.Symbol, amount, dstMeta.Decimals)
	if !q.DestAmount.IsPositive() {
		return nil, fmt.Errorf("swap of %s %s is worth less than one unit of %s: %w",
			amount, srcKey.Symbol, dstKey.Symbol, errs.ErrInvalidAmount)
	}

	providerSrc, err := s.addresses.Counterparty(srcChain)
	if err != nil {
		return nil, err
	}
	providerDst, err := s.addresses.Counterparty(dstChain)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order = &models.SwapOrder{
		ID:           utils.NewID("swap"),
		UserID:       user.ID,
		WalletID:     user.WalletID,
		SourceToken:  srcKey.Symbol,
		SourceAmount: amount,
		DestToken:    dstKey.Symbol,
		DestAmount:   q.DestAmount,
		ChainID:      srcChain,
		DestChainID:  dstChain,
		Status:       models.SwapPending,
		Rate:         q.Rate,
		FromPrice:    q.FromPrice,
		ToPrice:      q.ToPrice,
		Degraded:     q.Degraded,
		Provider:     Provider,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var sendLeg, receiveLeg *models.Transaction
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		walletSrc, err := s.addresses.WalletAddress(ctx, user.WalletID, srcChain)
		if err != nil {
			return err
		}
		walletDst, err := s.addresses.WalletAddress(ctx, user.WalletID, dstChain)
		if err != nil {
			return err
		}

		extra := models.TransactionExtra{SwapOrderID: order.ID}
		sendLeg, err = s.txlog.Record(ctx, txlog.Entry{
			WalletID: user.WalletID, ChainID: srcChain, From: walletSrc, To: providerSrc,
			Value: amount, TokenSymbol: srcKey.Symbol,
			Type: models.TransactionSwapLeg, Status: models.TransactionPending, Extra: extra,
		})
		if err != nil {
			return err
		}
		receiveLeg, err = s.txlog.Record(ctx, txlog.Entry{
			WalletID: user.WalletID, ChainID: dstChain, From: providerDst, To: walletDst,
			Value: q.DestAmount, TokenSymbol: dstKey.Symbol,
			Type: models.TransactionSwapLeg, Status: models.TransactionPending, Extra: extra,
		})
		if err != nil {
			return err
		}

		order.SendTxID = sendLeg.ID
		order.ReceiveTxID = receiveLeg.ID
		return s.store.InsertSwapOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	metrics.SwapTransitions.WithLabelValues(string(models.SwapPending)).Inc()

	utils.Logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"user_id":     user.ID,
		"source":      srcKey.String(),
		"destination": dstKey.String(),
		"amount":      amount.String(),
		"dest_amount": q.DestAmount.String(),
		"degraded":    q.Degraded,
	}).Info("swap order created")

	s.publisher.Publish(ctx,
		orderEvent(order),
		txEvent(models.EventTransactionCreated, user.ID, sendLeg),
		txEvent(models.EventTransactionCreated, user.ID, receiveLeg),
	)
	s.scheduleSettle(order.ID)
	return order, nil
}

func (s *Service) scheduleSettle(orderID string) {
	s.scheduler.Schedule(s.settleDelay, settleTask, func(ctx context.Context) error {
		_, err := s.Settle(ctx, orderID)
		return err
	})
}

// Settle completes an order: both legs confirmed, the source debited and the
// destination credited by the amount priced at creation. Settling an order
// that already reached a terminal status returns it unchanged. When the
// source balance no longer covers the order, or its amounts cannot be
// applied to the ledger, the order and its legs fail.
// Any other error leaves the order where it was so the caller can retry.
func (s *Service) Settle(ctx context.Context, orderID string) (order *models.SwapOrder, err error) {
	ctx, span := tracing.Start(ctx, "swaps", "swaps.Settle", "order.id", orderID)
	defer func() { tracing.End(span, err) }()
	defer observe("swap_settle", time.Now(), &err)

	order, err = s.store.GetSwapOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return order, nil
	}
	if order.Status == models.SwapPending {
		claimed, err := s.store.TransitionSwapOrder(ctx, orderID, models.SwapPending, models.SwapProcessing, "", s.now())
		if err != nil {
			return nil, err
		}
		if !claimed {
			return s.reload(ctx, orderID)
		}
		metrics.SwapTransitions.WithLabelValues(string(models.SwapProcessing)).Inc()
		order.Status = models.SwapProcessing
	}

	srcKey := ledger.NewKey(order.WalletID, order.ChainID, order.SourceToken)
	dstKey := ledger.NewKey(order.WalletID, order.DestChainID, order.DestToken)
	dstMeta, err := s.catalog.Lookup(order.DestChainID, order.DestToken)
	if err != nil {
		return nil, err
	}

	var (
		legs []*models.Transaction
		note *models.Notification
	)
	err = s.ledger.Within(ctx, []ledger.Key{srcKey, dstKey}, func(ctx context.Context) error {
		legs, note = nil, nil
		if err := s.stillProcessing(ctx, orderID); err != nil {
			return err
		}
		for _, id := range []string{order.SendTxID, order.ReceiveTxID} {
			leg, _, err := s.txlog.SetStatus(ctx, id, models.TransactionConfirmed)
			if err != nil {
				return err
			}
			legs = append(legs, leg)
		}
		if _, err := s.ledger.Debit(ctx, srcKey, order.SourceAmount); err != nil {
			return err
		}
		if _, err := s.ledger.EnsureEntry(ctx, dstKey, dstMeta); err != nil {
			return err
		}
		if _, err := s.ledger.Credit(ctx, dstKey, order.DestAmount); err != nil {
			return err
		}
		moved, err := s.store.TransitionSwapOrder(ctx, orderID, models.SwapProcessing, models.SwapCompleted, "", s.now())
		if err != nil {
			return err
		}
		if !moved {
			return errSettled
		}

		note, err = s.notifier.Notify(ctx, notifications.Notice{
			WalletID:      order.WalletID,
			Category:      models.CategoryTransaction,
			Type:          "swap",
			Title:         "Swap completed",
			Description:   fmt.Sprintf("Swapped %s %s for %s %s", order.SourceAmount, order.SourceToken, order.DestAmount, order.DestToken),
			TransactionID: order.ReceiveTxID,
			Metadata:      map[string]any{"orderId": order.ID, "status": string(models.SwapCompleted)},
		})
		return err
	})

	switch {
	case errors.Is(err, errSettled):
		return s.reload(ctx, orderID)
	case errors.Is(err, errs.ErrInsufficientBalance):
		return s.fail(ctx, order, "insufficient balance at settlement")
	case errors.Is(err, errs.ErrInvalidAmount):
		return s.fail(ctx, order, "order amount cannot be settled")
	case err != nil:
		utils.Logger.WithFields(logrus.Fields{
			"order_id": orderID,
			"error":    err.Error(),
		}).Warn("swap settlement failed, order left in processing")
		return nil, err
	}

	order.Status = models.SwapCompleted
	order.UpdatedAt = s.now()
	metrics.SwapTransitions.WithLabelValues(string(models.SwapCompleted)).Inc()
	utils.Logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"dest_amount": order.DestAmount.String(),
	}).Info("swap order completed")

	s.publisher.Publish(ctx, append([]models.Event{
		notificationEvent(order.UserID, note),
		orderEvent(order),
		txEvent(models.EventTransactionUpdated, order.UserID, legs[0]),
		txEvent(models.EventTransactionUpdated, order.UserID, legs[1]),
	}, balanceEvents(order.UserID, srcKey, dstKey)...)...)
	return order, nil
}

func (s *Service) stillProcessing(ctx context.Context, orderID string) error {
	cur, err := s.store.GetSwapOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if cur.Status != models.SwapProcessing {
		return errSettled
	}
	return nil
}

// fail moves a processing order and its legs to failed and tells the user.
func (s *Service) fail(ctx context.Context, order *models.SwapOrder, reason string) (*models.SwapOrder, error) {
	var (
		legs []*models.Transaction
		note *models.Notification
	)
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		legs, note = nil, nil
		moved, err := s.store.TransitionSwapOrder(ctx, order.ID, models.SwapProcessing, models.SwapFailed, reason, s.now())
		if err != nil {
			return err
		}
		if !moved {
			return errSettled
		}
		if legs, err = s.failLegs(ctx, order); err != nil {
			return err
		}
		note, err = s.notifier.Notify(ctx, notifications.Notice{
			WalletID:    order.WalletID,
			Category:    models.CategoryTransaction,
			Type:        "swap",
			Title:       "Swap failed",
			Description: fmt.Sprintf("Swap of %s %s to %s failed: %s", order.SourceAmount, order.SourceToken, order.DestToken, reason),
			Metadata:    map[string]any{"orderId": order.ID, "status": string(models.SwapFailed)},
		})
		return err
	})
	if errors.Is(err, errSettled) {
		return s.reload(ctx, order.ID)
	}
	if err != nil {
		return nil, err
	}

	order.Status = models.SwapFailed
	order.FailReason = reason
	metrics.SwapTransitions.WithLabelValues(string(models.SwapFailed)).Inc()
	utils.Logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"reason":   reason,
	}).Warn("swap order failed")

	events := []models.Event{notificationEvent(order.UserID, note), orderEvent(order)}
	for _, leg := range legs {
		events = append(events, txEvent(models.EventTransactionUpdated, order.UserID, leg))
	}
	s.publisher.Publish(ctx, events...)
	return order, nil
}

func (s *Service) failLegs(ctx context.Context, order *models.SwapOrder) ([]*models.Transaction, error) {
	var legs []*models.Transaction
	for _, id := range []string{order.SendTxID, order.ReceiveTxID} {
		leg, _, err := s.txlog.SetStatus(ctx, id, models.TransactionFailed)
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

// Suspend stops a pending order from ever settling. Its legs are failed.
func (s *Service) Suspend(ctx context.Context, orderID, reason string) (order *models.SwapOrder, err error) {
	defer observe("swap_suspend", time.Now(), &err)

	order, err = s.store.GetSwapOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "suspended by admin"
	}

	var legs []*models.Transaction
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		moved, err := s.store.TransitionSwapOrder(ctx, orderID, models.SwapPending, models.SwapSuspended, reason, s.now())
		if err != nil {
			return err
		}
		if !moved {
			cur, err := s.store.GetSwapOrder(ctx, orderID)
			if err != nil {
				return err
			}
			return fmt.Errorf("swap order %s is %s: %w", orderID, cur.Status, errs.ErrInvalidStatusTransition)
		}
		legs, err = s.failLegs(ctx, order)
		return err
	})
	if err != nil {
		return nil, err
	}

	order.Status = models.SwapSuspended
	order.FailReason = reason
	metrics.SwapTransitions.WithLabelValues(string(models.SwapSuspended)).Inc()

	events := []models.Event{orderEvent(order)}
	for _, leg := range legs {
		events = append(events, txEvent(models.EventTransactionUpdated, order.UserID, leg))
	}
	s.publisher.Publish(ctx, events...)
	return order, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*models.SwapOrder, error) {
	return s.store.GetSwapOrder(ctx, orderID)
}

// GetForUser returns the order only if userID owns it.
func (s *Service) GetForUser(ctx context.Context, userID, orderID string) (*models.SwapOrder, error) {
	o, err := s.store.GetSwapOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("swap order %s: %w", orderID, errs.ErrNotFound)
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string, page, limit int) ([]models.SwapOrder, error) {
	if page < 1 {
		page = 1
	}
	return s.store.ListSwapOrdersByUser(ctx, userID, limit, (page-1)*limit)
}

// SettleStale re-drives orders that have sat in pending or processing since
// before cutoff, and returns how many reached a terminal status.
func (s *Service) SettleStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	settled := 0
	for _, status := range []models.SwapOrderStatus{models.SwapProcessing, models.SwapPending} {
		orders, err := s.store.ListStaleSwapOrders(ctx, status, cutoff, limit)
		if err != nil {
			return settled, err
		}
		for _, o := range orders {
			got, err := s.Settle(ctx, o.ID)
			if err != nil {
				utils.Logger.WithFields(logrus.Fields{
					"order_id": o.ID,
					"error":    err.Error(),
				}).Warn("stale swap order still unsettled")
				continue
			}
			if got.Status.Terminal() {
				settled++
			}
		}
	}
	return settled, nil
}

func (s *Service) reload(ctx context.Context, orderID string) (*models.SwapOrder, error) {
	return s.store.GetSwapOrder(ctx, orderID)
}

func observe(op string, start time.Time, err *error) {
	metrics.SettlementOps.WithLabelValues(op, metrics.Result(*err)).Inc()
	metrics.SettlementLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func orderEvent(o *models.SwapOrder) models.Event {
	return models.Event{
		Type:     models.EventSwapOrderUpdated,
		WalletID: o.WalletID,
		UserID:   o.UserID,
		OrderID:  o.ID,
		Status:   string(o.Status),
		Data:     o,
	}
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

func balanceEvents(userID string, keys ...ledger.Key) []models.Event {
	out := make([]models.Event, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.Event{
			Type:     models.EventBalanceUpdated,
			WalletID: k.WalletID,
			UserID:   userID,
			Data:     map[string]string{"chainId": k.ChainID, "symbol": k.Symbol},
		})
	}
	return out
}
