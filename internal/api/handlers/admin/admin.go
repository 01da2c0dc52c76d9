package admin

import (
	"context"
	"net/http"
	"strings"

	"chainvault/internal/api/handlers"
	"chainvault/internal/models"
	"chainvault/internal/services/settlement"
	"chainvault/pkg/utils"

	"github.com/go-chi/chi/v5"
)

type Engine interface {
	AdminCredit(ctx context.Context, adminID string, ref models.UserRef, req settlement.CreditRequest) (*settlement.AdminResult, error)
	AdminCreditSilent(ctx context.Context, adminID string, ref models.UserRef, req settlement.CreditRequest) (*settlement.AdminResult, error)
	AdminDebit(ctx context.Context, adminID string, ref models.UserRef, req settlement.DebitRequest) (*settlement.AdminResult, error)
}

type Fees interface {
	UpsertOverride(ctx context.Context, adminID, userID, tokenSymbol, chainID, feeAmount, feePercentage string) (*models.FeeOverride, error)
	DeleteOverride(ctx context.Context, userID, tokenSymbol, chainID string) error
}

type Swaps interface {
	Suspend(ctx context.Context, orderID, reason string) (*models.SwapOrder, error)
}

type Handler struct {
	engine Engine
	fees   Fees
	swaps  Swaps
}

func NewHandler(engine Engine, fees Fees, swaps Swaps) *Handler {
	return &Handler{engine: engine, fees: fees, swaps: swaps}
}

type dataResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type creditRequest struct {
	UserID              string `json:"userId,omitempty"`
	Email               string `json:"email,omitempty"`
	TokenSymbol         string `json:"tokenSymbol"`
	Amount              string `json:"amount"`
	ChainID             string `json:"chainId"`
	SenderWalletAddress string `json:"senderWalletAddress,omitempty"`
	Silent              bool   `json:"silent,omitempty"`
	Note                string `json:"note,omitempty"`
}

type debitRequest struct {
	UserID      string `json:"userId,omitempty"`
	Email       string `json:"email,omitempty"`
	TokenSymbol string `json:"tokenSymbol"`
	Amount      string `json:"amount"`
	ChainID     string `json:"chainId"`
	Note        string `json:"note,omitempty"`
}

// Credit credits a user named by userId or email. silent=true leaves no
// transaction and no notification behind.
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	adminID, ok := handlers.UserID(w, r)
	if !ok {
		return
	}
	var req creditRequest
	if !handlers.DecodeJSON(w, r, &req) {
		return
	}
	if err := handlers.CheckBlankFields(req); err != nil {
		utils.WriteAppError(w, err)
		return
	}
	ref, err := models.ParseUserRef(req.UserID, req.Email)
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	credit := settlement.CreditRequest{
		TokenSymbol:         req.TokenSymbol,
		Amount:              req.Amount,
		ChainID:             req.ChainID,
		SenderWalletAddress: req.SenderWalletAddress,
		Note:                req.Note,
	}
	var res *settlement.AdminResult
	if req.Silent {
		res, err = h.engine.AdminCreditSilent(r.Context(), adminID, ref, credit)
	} else {
		res, err = h.engine.AdminCredit(r.Context(), adminID, ref, credit)
	}
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, dataResponse{Status: "success", Data: res})
}

func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	adminID, ok := handlers.UserID(w, r)
	if !ok {
		return
	}
	var req debitRequest
	if !handlers.DecodeJSON(w, r, &req) {
		return
	}
	if err := handlers.CheckBlankFields(req); err != nil {
		utils.WriteAppError(w, err)
		return
	}
	ref, err := models.ParseUserRef(req.UserID, req.Email)
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.engine.AdminDebit(r.Context(), adminID, ref, settlement.DebitRequest{
		TokenSymbol: req.TokenSymbol,
		Amount:      req.Amount,
		ChainID:     req.ChainID,
		Note:        req.Note,
	})
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, dataResponse{Status: "success", Data: res})
}

type feeRequest struct {
	UserID        string `json:"userId"`
	TokenSymbol   string `json:"tokenSymbol"`
	ChainID       string `json:"chainId"`
	FeeAmount     string `json:"feeAmount"`
	FeePercentage string `json:"feePercentage"`
}

func (h *Handler) UpsertFee(w http.ResponseWriter, r *http.Request) {
	adminID, ok := handlers.UserID(w, r)
	if !ok {
		return
	}
	var req feeRequest
	if !handlers.DecodeJSON(w, r, &req) {
		return
	}

	f, err := h.fees.UpsertOverride(r.Context(), adminID, req.UserID, req.TokenSymbol, req.ChainID, req.FeeAmount, req.FeePercentage)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, dataResponse{Status: "success", Data: f})
}

// DeleteFee removes the override named by ?userId=&tokenSymbol=&chainId=.
func (h *Handler) DeleteFee(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.fees.DeleteOverride(r.Context(), q.Get("userId"), q.Get("tokenSymbol"), q.Get("chainId")); err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, map[string]string{"status": "success", "message": "fee override removed"})
}

// SuspendSwap stops a pending swap order. The body {"reason": "..."} is optional.
func (h *Handler) SuspendSwap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 && !handlers.DecodeJSON(w, r, &req) {
		return
	}

	order, err := h.swaps.Suspend(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.Reason))
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, dataResponse{Status: "success", Data: order})
}
