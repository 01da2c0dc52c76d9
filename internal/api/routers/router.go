package routers

import (
	"net/http"
	"time"

	"chainvault/internal/api/handlers/admin"
	"chainvault/internal/api/handlers/notifications"
	"chainvault/internal/api/handlers/transactions"
	"chainvault/internal/api/handlers/wallet"
	"chainvault/internal/api/handlers/ws"
	mw "chainvault/internal/api/middlewares"
	"chainvault/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Wallet        *wallet.Handler
	Transactions  *transactions.Handler
	Notifications *notifications.Handler
	Admin         *admin.Handler
	Realtime      *ws.Handler
}

type Options struct {
	JWTSecret   string
	CORSOrigins []string
	// RateLimit is requests per minute per client; zero disables limiting.
	RateLimit int
}

func MainRouter(h Handlers, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if opts.RateLimit > 0 {
		r.Use(mw.NewRateLimiter(opts.RateLimit, opts.RateLimit/4+1).Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(mw.JWTMiddleware(opts.JWTSecret))

		r.Get("/ws", h.Realtime.Serve)

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balances", h.Wallet.Balances)
			r.Get("/fee", h.Wallet.Fee)
			r.Post("/send", h.Wallet.Send)
			r.Post("/swap", h.Wallet.Swap)
			r.Get("/swaps", h.Wallet.ListSwaps)
			r.Get("/swaps/{id}", h.Wallet.GetSwap)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/user", h.Transactions.GetAllUserTransactions)
			r.Get("/{id}/user", h.Transactions.GetTransactionByID)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.Notifications.List)
			r.Get("/unread-count", h.Notifications.UnreadCount)
			r.Post("/read-all", h.Notifications.MarkAllRead)
			r.Post("/{id}/read", h.Notifications.MarkRead)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireAdmin)
			r.Post("/credit", h.Admin.Credit)
			r.Post("/debit", h.Admin.Debit)
			r.Put("/fees", h.Admin.UpsertFee)
			r.Delete("/fees", h.Admin.DeleteFee)
			r.Post("/swaps/{id}/suspend", h.Admin.SuspendSwap)
		})
	})

	return r
}
