package transactions

import (
	"context"
	"net/http"

	"chainvault/internal/api/handlers"
	"chainvault/internal/models"
	"chainvault/pkg/utils"

	"github.com/go-chi/chi/v5"
)

type Engine interface {
	Transactions(ctx context.Context, userID string, page, limit int) ([]models.Transaction, int, error)
	Transaction(ctx context.Context, userID, txID string) (*models.Transaction, error)
}

type Handler struct {
	engine Engine
}

func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine}
}

// GetAllUserTransactions lists the caller's transactions, newest first.
func (h *Handler) GetAllUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := handlers.UserID(w, r)
	if !ok {
		return
	}
	page, limit := utils.GetPaginationParams(r)

	txs, total, err := h.engine.Transactions(r.Context(), userID, page, limit)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}

	utils.WriteJSON(w, struct {
		Status   string               `json:"status"`
		Count    int                  `json:"count"`
		Total    int                  `json:"total"`
		Page     int                  `json:"page"`
		PageSize int                  `json:"page_size"`
		Data     []models.Transaction `json:"data"`
	}{
		Status:   "success",
		Count:    len(txs),
		Total:    total,
		Page:     page,
		PageSize: limit,
		Data:     txs,
	})
}

func (h *Handler) GetTransactionByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := handlers.UserID(w, r)
	if !ok {
		return
	}

	tx, err := h.engine.Transaction(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, struct {
		Status string              `json:"status"`
		Data   *models.Transaction `json:"data"`
	}{
		Status: "success",
		Data:   tx,
	})
}
