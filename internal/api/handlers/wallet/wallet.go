package wallet

import (
	"context"
	"net/http"
	"time"

	"chainvault/internal/api/handlers"
	"chainvault/internal/models"
	"chainvault/internal/services/settlement"
	"chainvault/internal/services/swaps"
	"chainvault/pkg/utils"

	"github.com/go-chi/chi/v5"
)

const requestTimeout = 5 * time.Second

type Engine interface {
	Send(ctx context.Context, userID string, req settlement.SendRequest) (*models.Transaction, error)
	Balances(ctx context.Context, userID string) ([]models.WalletBalanceEntry, error)
	FeeQuote(ctx context.Context, userID, tokenSymbol, chainID string) (models.FeeQuote, error)
}

type Swaps interface {
	Create(ctx context.Context, userID string, req swaps.Request) (*models.SwapOrder, error)
	ListByUser(ctx context.Context, userID string, page, limit int) ([]models.SwapOrder, error)
	GetForUser(ctx context.Context, userID, orderID string) (*models.SwapOrder, error)
}

type Handler struct {
	engine Engine
	swaps  Swaps
}

func NewHandler(engine Engine, swaps Swaps) *Handler {
	return &Handler{engine: engine, swaps: swaps}
}

type dataResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// Send debits the caller and records a pending send.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := handlers.UserID(w, r)
	if !ok {
		return
	}

	var req settlement.SendRequest
	if !handlers.DecodeJSON(w, r, &req) {
		return
	}
	if err := handlers.CheckBlankFields(req); err != nil {
		utils.WriteAppError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	tx, err := h.engine.Send(ctx, userID, req)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSONStatus(w, http.StatusCreated, dataResponse{Status: "success", Data: tx})
}

// Swap creates a pending swap order that settles after the confirmation delay.
func (h *Handler) Swap(w http.ResponseWriter, r *http.Request) {
	userID, ok := handlers.UserID(w, r)
	if !ok {
		return
	}

	var req swaps.Request
	if !handlers.DecodeJSON(w, r, &req) {
		return
	}
	if err := handlers.CheckBlankFields(req); err != nil {
		utils.WriteAppError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	order, err := h.swaps.Create(ctx, userID, req)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSONStatus(w, http.StatusCreated, dataResponse{Status: "success", Data: order})
}

func (h *Handler) ListSwaps(w http.ResponseWriter, r *http.Request) {
	userID, ok := handlers.UserID(w, r)
	if !ok {
		return
	}
	page, limit := utils.GetPaginationParams(r)

	orders, err := h.swaps.ListByUser(r.Context(), userID, page, limit)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	if orders == nil {
		orders = []models.SwapOrder{}
	}

	utils.WriteJSON(w, struct {
		Status   string             `json:"status"`
		Count    int                `json:"count"`
		Page     int                `json:"page"`
		PageSize int                `json:"page_size"`
		Data     []models.SwapOrder `json:"data"`
	}{
		Status:   "success",
		Count:    len(orders),
		Page:     page,
		PageSize: limit,
		Data:     orders,
	})
}

func (h *Handler) GetSwap(w http.ResponseWriter, r *http.Request) {
	userID, ok := handlers.UserID(w, r)
	if !ok {
		return
	}

	order, err := h.swaps.GetForUser(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, dataResponse{Status: "success", Data: order})
}

func (h *Handler) Balances(w http.ResponseWriter, r *http.Request) {
	userID, ok := handlers.UserID(w, r)
	if !ok {
		return
	}

	entries, err := h.engine.Balances(r.Context(), userID)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	if entries == nil {
		entries = []models.WalletBalanceEntry{}
	}
	utils.WriteJSON(w, dataResponse{Status: "success", Data: entries})
}

// Fee returns the caller's fee quote for ?tokenSymbol=&chainId=.
func (h *Handler) Fee(w http.ResponseWriter, r *http.Request) {
	userID, ok := handlers.UserID(w, r)
	if !ok {
		return
	}
	symbol := r.URL.Query().Get("tokenSymbol")
	chainID := r.URL.Query().Get("chainId")
	if symbol == "" || chainID == "" {
		utils.WriteError(w, "tokenSymbol and chainId are required", http.StatusBadRequest)
		return
	}

	quote, err := h.engine.FeeQuote(r.Context(), userID, symbol, chainID)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, dataResponse{Status: "success", Data: quote})
}
