package settlement

import (
	"context"
	"testing"
	"time"

	"chainvault/internal/errs"
	"chainvault/internal/models"
	"chainvault/internal/repositories"
	"chainvault/internal/services/addresses"
	"chainvault/internal/services/catalog"
	"chainvault/internal/services/events"
	"chainvault/internal/services/fees"
	"chainvault/internal/services/ledger"
	"chainvault/internal/services/notifications"
	"chainvault/internal/services/scheduler"
	"chainvault/internal/services/txlog"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const confirmDelay = 3 * time.Second

type capturePusher struct{ events []models.Event }

func (c *capturePusher) SendToUser(_ string, event any) int {
	c.events = append(c.events, event.(models.Event))
	return 1
}

func (c *capturePusher) count(typ models.EventType) int {
	n := 0
	for _, ev := range c.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

type harness struct {
	engine *Engine
	store  *repositories.Store
	ledger *ledger.Ledger
	fees   *fees.Resolver
	clock  *scheduler.FakeClock
	sched  *scheduler.Scheduler
	pushed *capturePusher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := repositories.NewMemoryStore(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cat := catalog.Default()
	clock := scheduler.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	sched := scheduler.New(scheduler.WithClock(clock))
	pushed := &capturePusher{}
	l := ledger.New(store, ledger.WithClock(clock.Now))
	resolver := fees.NewResolver(store, fees.WithClock(clock.Now))

	engine := New(Deps{
		Store:     store,
		Ledger:    l,
		TxLog:     txlog.New(store, txlog.WithFamilies(cat.Family), txlog.WithClock(clock.Now)),
		Addresses: addresses.NewBook(store, cat.Family),
		Catalog:   cat,
		Fees:      resolver,
		Notifier:  notifications.NewDispatcher(store, clock.Now),
		Publisher: events.NewPublisher(pushed),
		Scheduler: sched,
	}, WithConfirmDelay(confirmDelay), WithClock(clock.Now))

	return &harness{engine: engine, store: store, ledger: l, fees: resolver, clock: clock, sched: sched, pushed: pushed}
}

func (h *harness) user(t *testing.T, id string, canSend bool) *models.User {
	t.Helper()
	u := &models.User{ID: id, Email: id + "@example.com", Role: models.RoleUser, WalletID: "w_" + id, CanSend: canSend}
	require.NoError(t, h.store.InsertUser(context.Background(), u))
	return u
}

func (h *harness) balance(t *testing.T, u *models.User, chain, symbol string) string {
	t.Helper()
	d, err := h.ledger.Available(context.Background(), ledger.NewKey(u.WalletID, chain, symbol))
	require.NoError(t, err)
	return d.String()
}

func (h *harness) notifications(t *testing.T, u *models.User) []models.Notification {
	t.Helper()
	out, err := h.store.ListNotifications(context.Background(), u.WalletID, false, 50, 0)
	require.NoError(t, err)
	return out
}

func credit(amount string) CreditRequest {
	return CreditRequest{TokenSymbol: "USDT", Amount: amount, ChainID: "ethereum", Note: "welcome bonus"}
}

func TestAdminCreditCreatesEntryTransactionAndOneNotification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "userA", true)

	res, err := h.engine.AdminCredit(ctx, "admin1", models.ByID(u.ID), credit("10"))
	require.NoError(t, err)
	assert.Equal(t, "10", res.Balance.Balance.String())

	entry, err := h.ledger.GetBalance(ctx, ledger.NewKey(u.WalletID, "ethereum", "USDT"))
	require.NoError(t, err)
	assert.Equal(t, "10", entry.Balance.String())
	assert.Equal(t, "Tether USD", entry.Name)
	assert.Equal(t, 6, entry.Decimals)

	require.NotNil(t, res.Transaction)
	tx, err := h.store.GetTransaction(ctx, res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionConfirmed, tx.Status)
	assert.Equal(t, models.TransactionReceive, tx.Type)
	assert.True(t, tx.AdminInitiated)
	assert.Equal(t, "admin1", tx.AdminID)
	assert.Equal(t, "welcome bonus", tx.AdminNote)

	notes := h.notifications(t, u)
	require.Len(t, notes, 1)
	assert.Equal(t, models.CategoryTransaction, notes[0].Category)
	assert.Equal(t, tx.ID, notes[0].TransactionID)

	transfers, err := h.store.ListAdminTransfers(ctx, u.WalletID)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.False(t, transfers[0].Silent)
	assert.Equal(t, tx.ID, transfers[0].TransactionID)

	assert.Equal(t, 1, h.pushed.count(models.EventTransactionCreated))
	assert.Equal(t, 1, h.pushed.count(models.EventNotificationCreated))
}

func TestAdminCreditByEmail(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, "kate", true)

	_, err := h.engine.AdminCredit(context.Background(), "admin1", models.ByEmail("KATE@example.com"), credit("2.5"))
	require.NoError(t, err)
	assert.Equal(t, "2.5", h.balance(t, u, "ethereum", "USDT"))

	_, err = h.engine.AdminCredit(context.Background(), "admin1", models.ByEmail("nobody@example.com"), credit("1"))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSilentAdminOperationsLeaveOnlyAuditRows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "leo", true)

	res, err := h.engine.AdminCreditSilent(ctx, "admin1", models.ByID(u.ID), credit("5"))
	require.NoError(t, err)
	assert.Nil(t, res.Transaction)
	assert.Nil(t, res.Notification)
	assert.Equal(t, "5", h.balance(t, u, "ethereum", "USDT"))

	_, err = h.engine.AdminDebit(ctx, "admin1", models.ByID(u.ID), DebitRequest{TokenSymbol: "USDT", Amount: "2", ChainID: "ethereum"})
	require.NoError(t, err)
	assert.Equal(t, "3", h.balance(t, u, "ethereum", "USDT"))

	_, err = h.engine.AdminDebit(ctx, "admin1", models.ByID(u.ID), DebitRequest{TokenSymbol: "USDT", Amount: "4", ChainID: "ethereum"})
	assert.ErrorIs(t, err, errs.ErrInsufficientBalance)
	assert.Equal(t, "3", h.balance(t, u, "ethereum", "USDT"))

	txs, total, err := h.engine.Transactions(ctx, u.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Zero(t, total)
	assert.Empty(t, h.notifications(t, u))

	transfers, err := h.store.ListAdminTransfers(ctx, u.WalletID)
	require.NoError(t, err)
	require.Len(t, transfers, 2, "the refused debit leaves no audit row")
	assert.Equal(t, models.AdminTransferCredit, transfers[0].Direction)
	assert.Equal(t, models.AdminTransferDebit, transfers[1].Direction)
	for _, tr := range transfers {
		assert.True(t, tr.Silent)
	}
}

func TestSendDebitsNowAndConfirmsLater(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "mia", true)
	_, err := h.engine.AdminCreditSilent(ctx, "admin1", models.ByID(u.ID), credit("10"))
	require.NoError(t, err)

	tx, err := h.engine.Send(ctx, u.ID, SendRequest{To: "0xabc", Amount: "4", TokenSymbol: "usdt", ChainID: "ethereum"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, tx.Status)
	assert.Equal(t, models.TransactionSend, tx.Type)
	require.NotNil(t, tx.Fee)
	assert.Equal(t, "0.0014", tx.Fee.StringFixed(4))
	assert.Equal(t, "6", h.balance(t, u, "ethereum", "USDT"), "the fee is included in the amount")

	notes := h.notifications(t, u)
	require.Len(t, notes, 1)
	assert.Equal(t, "Transaction sent", notes[0].Title)

	require.Equal(t, 1, h.sched.Pending())
	h.clock.Advance(confirmDelay)
	require.Equal(t, 1, h.sched.RunDue(ctx))

	got, err := h.engine.Transaction(ctx, u.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionConfirmed, got.Status)
	assert.Equal(t, 1, h.pushed.count(models.EventTransactionUpdated))

	again, err := h.engine.ConfirmTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionConfirmed, again.Status)
	assert.Equal(t, 1, h.pushed.count(models.EventTransactionUpdated), "a repeated confirmation pushes nothing")
}

func TestSendRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	blocked := h.user(t, "ned", false)
	u := h.user(t, "olga", true)
	_, err := h.engine.AdminCreditSilent(ctx, "admin1", models.ByID(u.ID), credit("1"))
	require.NoError(t, err)

	_, err = h.engine.Send(ctx, blocked.ID, SendRequest{To: "0xabc", Amount: "1", TokenSymbol: "USDT", ChainID: "ethereum"})
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)

	_, err = h.engine.Send(ctx, u.ID, SendRequest{To: "0xabc", Amount: "1", TokenSymbol: "DOGE", ChainID: "ethereum"})
	assert.ErrorIs(t, err, errs.ErrInvalidToken)

	_, err = h.engine.Send(ctx, u.ID, SendRequest{To: "0xabc", Amount: "1.01", TokenSymbol: "USDT", ChainID: "ethereum"})
	assert.ErrorIs(t, err, errs.ErrInsufficientBalance)

	_, err = h.engine.Send(ctx, u.ID, SendRequest{To: "0xabc", Amount: "0.0000001", TokenSymbol: "USDT", ChainID: "ethereum"})
	assert.ErrorIs(t, err, errs.ErrInvalidAmount, "finer than USDT's 6 decimals")

	_, err = h.engine.Send(ctx, u.ID, SendRequest{Amount: "1", TokenSymbol: "USDT", ChainID: "ethereum"})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	assert.Equal(t, "1", h.balance(t, u, "ethereum", "USDT"))
	assert.Empty(t, h.notifications(t, u))
	assert.Zero(t, h.sched.Pending())
}

func TestSendAndCreditConserveBalances(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "pia", true)

	total := decimal.Zero
	for _, amt := range []string{"3.5", "0.25", "10"} {
		_, err := h.engine.AdminCredit(ctx, "admin1", models.ByID(u.ID), credit(amt))
		require.NoError(t, err)
		total = total.Add(decimal.RequireFromString(amt))
	}
	for _, amt := range []string{"1.75", "2"} {
		_, err := h.engine.Send(ctx, u.ID, SendRequest{To: "0xabc", Amount: amt, TokenSymbol: "USDT", ChainID: "ethereum"})
		require.NoError(t, err)
		total = total.Sub(decimal.RequireFromString(amt))
	}
	assert.Equal(t, total.String(), h.balance(t, u, "ethereum", "USDT"))
	assert.Equal(t, "10", total.String())
}

func TestFeeQuoteUsesOverride(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	q, err := h.engine.FeeQuote(ctx, "u1", "USDT", "ethereum")
	require.NoError(t, err)
	assert.Equal(t, models.FeeQuote{FeeAmount: "0.0014", FeePercentage: "0.12"}, q)

	_, err = h.fees.UpsertOverride(ctx, "admin1", "u1", "USDT", "ethereum", "0.5", "1")
	require.NoError(t, err)
	q, err = h.engine.FeeQuote(ctx, "u1", "USDT", "ethereum")
	require.NoError(t, err)
	assert.True(t, q.IsUserSpecific)
	assert.Equal(t, "0.5", q.FeeAmount)

	_, err = h.engine.FeeQuote(ctx, "u1", "DOGE", "ethereum")
	assert.ErrorIs(t, err, errs.ErrUnsupportedToken)
}

func TestConfirmStaleRecoversDroppedConfirmations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "quinn", true)
	_, err := h.engine.AdminCreditSilent(ctx, "admin1", models.ByID(u.ID), credit("5"))
	require.NoError(t, err)

	tx, err := h.engine.Send(ctx, u.ID, SendRequest{To: "0xabc", Amount: "1", TokenSymbol: "USDT", ChainID: "ethereum"})
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	n, err := h.engine.ConfirmStale(ctx, h.clock.Now().Add(-30*time.Second), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.engine.Transaction(ctx, u.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionConfirmed, got.Status)

	assert.Equal(t, 1, h.sched.RunDue(ctx), "the scheduled confirmation becomes a no-op")
	assert.Equal(t, 1, h.pushed.count(models.EventTransactionUpdated))
}

func TestTransactionHiddenFromOtherUsers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "rita", true)
	h.user(t, "sam", true)

	res, err := h.engine.AdminCredit(ctx, "admin1", models.ByID(u.ID), credit("1"))
	require.NoError(t, err)

	_, err = h.engine.Transaction(ctx, "sam", res.Transaction.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
