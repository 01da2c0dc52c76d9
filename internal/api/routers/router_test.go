package routers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chainvault/internal/api/handlers/admin"
	"chainvault/internal/api/handlers/notifications"
	"chainvault/internal/api/handlers/transactions"
	"chainvault/internal/api/handlers/wallet"
	"chainvault/internal/api/handlers/ws"
	"chainvault/internal/models"
	"chainvault/internal/realtime"
	"chainvault/internal/repositories"
	"chainvault/internal/services/addresses"
	"chainvault/internal/services/catalog"
	"chainvault/internal/services/events"
	"chainvault/internal/services/fees"
	"chainvault/internal/services/ledger"
	notify "chainvault/internal/services/notifications"
	"chainvault/internal/services/pricing"
	"chainvault/internal/services/scheduler"
	"chainvault/internal/services/settlement"
	"chainvault/internal/services/swaps"
	"chainvault/internal/services/txlog"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "router-test-secret"

type stack struct {
	handler http.Handler
	ledger  *ledger.Ledger
	sched   *scheduler.Scheduler
	clock   *scheduler.FakeClock
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	store, err := repositories.NewMemoryStore(ctx, t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.InsertUser(ctx, &models.User{
		ID: "userA", Email: "a@example.com", Role: models.RoleUser, WalletID: "w_userA", CanSend: true,
	}))

	cat := catalog.Default()
	clock := scheduler.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	sched := scheduler.New(scheduler.WithClock(clock))
	registry := realtime.NewRegistry()
	publisher := events.NewPublisher(registry)
	l := ledger.New(store, ledger.WithClock(clock.Now))
	log := txlog.New(store, txlog.WithFamilies(cat.Family), txlog.WithClock(clock.Now))
	book := addresses.NewBook(store, cat.Family)
	dispatcher := notify.NewDispatcher(store, clock.Now)
	resolver := fees.NewResolver(store, fees.WithClock(clock.Now))

	engine := settlement.New(settlement.Deps{
		Store: store, Ledger: l, TxLog: log, Addresses: book, Catalog: cat,
		Fees: resolver, Notifier: dispatcher, Publisher: publisher, Scheduler: sched,
	}, settlement.WithClock(clock.Now))
	swapSvc := swaps.New(swaps.Deps{
		Store: store, Ledger: l, TxLog: log, Addresses: book, Catalog: cat,
		Prices: pricing.DefaultStatic(), Notifier: dispatcher, Publisher: publisher, Scheduler: sched,
	}, swaps.WithClock(clock.Now))

	h := MainRouter(Handlers{
		Wallet:        wallet.NewHandler(engine, swapSvc),
		Transactions:  transactions.NewHandler(engine),
		Notifications: notifications.NewHandler(engine, dispatcher),
		Admin:         admin.NewHandler(engine, resolver, swapSvc),
		Realtime:      ws.NewHandler(registry, time.Minute, []string{"*"}),
	}, Options{JWTSecret: secret, CORSOrigins: []string{"*"}})

	return &stack{handler: h, ledger: l, sched: sched, clock: clock}
}

func token(t *testing.T, uid string, role models.Role) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":  uid,
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func (s *stack) do(t *testing.T, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthAndAdminGates(t *testing.T) {
	s := newStack(t)
	user := token(t, "userA", models.RoleUser)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/wallet/balances", "", "").Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/admin/credit", user,
		`{"userId":"userA","tokenSymbol":"USDT","amount":"10","chainId":"ethereum"}`).Code)
}

func TestCreditThenSendOverHTTP(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	adminTok := token(t, "admin1", models.RoleAdmin)
	user := token(t, "userA", models.RoleUser)
	key := ledger.NewKey("w_userA", "ethereum", "USDT")

	rec := s.do(t, http.MethodPost, "/admin/credit", adminTok,
		`{"userId":"userA","tokenSymbol":"USDT","amount":"10","chainId":"ethereum"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/wallet/send", user,
		`{"to":"0x000000000000000000000000000000000000dead","amount":"4","tokenSymbol":"USDT","chainId":"ethereum"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sent struct {
		Status string             `json:"status"`
		Data   models.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.Equal(t, "success", sent.Status)
	assert.Equal(t, models.TransactionPending, sent.Data.Status)

	avail, err := s.ledger.Available(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "6", avail.String())

	s.clock.Advance(time.Minute)
	s.sched.RunDue(ctx)

	rec = s.do(t, http.MethodGet, "/transactions/"+sent.Data.ID+"/user", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data models.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.TransactionConfirmed, got.Data.Status)

	rec = s.do(t, http.MethodGet, "/notifications/unread-count", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var counts struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, 2, counts.Data["unread"])

	rec = s.do(t, http.MethodPost, "/wallet/send", user,
		`{"to":"0x000000000000000000000000000000000000dead","amount":"100","tokenSymbol":"USDT","chainId":"ethereum"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	s := newStack(t)
	user := token(t, "userA", models.RoleUser)
	rec := s.do(t, http.MethodPost, "/wallet/send", user, `{"to":"0xabc","amount":"1","tokenSymbol":"USDT","chainId":"ethereum","memo":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
