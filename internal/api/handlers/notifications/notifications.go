package notifications

import (
	"context"
	"net/http"
	"strconv"

	"chainvault/internal/api/handlers"
	"chainvault/internal/models"
	"chainvault/pkg/utils"

	"github.com/go-chi/chi/v5"
)

type Users interface {
	User(ctx context.Context, userID string) (*models.User, error)
}

type Dispatcher interface {
	ListByWallet(ctx context.Context, walletID string, unreadOnly bool, page, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, walletID, id string) error
	MarkAllRead(ctx context.Context, walletID string) (int64, error)
	UnreadCount(ctx context.Context, walletID string, excludeSubCategories ...string) (int, error)
	BadgeCount(ctx context.Context, walletID string) (int, error)
}

type Handler struct {
	users      Users
	dispatcher Dispatcher
}

func NewHandler(users Users, dispatcher Dispatcher) *Handler {
	return &Handler{users: users, dispatcher: dispatcher}
}

// walletID resolves the caller's wallet, writing the error response itself.
func (h *Handler) walletID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := handlers.UserID(w, r)
	if !ok {
		return "", false
	}
	u, err := h.users.User(r.Context(), userID)
	if err != nil {
		utils.WriteAppError(w, err)
		return "", false
	}
	return u.WalletID, true
}

// List returns the caller's notifications; ?unread=true keeps only unread ones.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletID(w, r)
	if !ok {
		return
	}
	page, limit := utils.GetPaginationParams(r)
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))

	list, err := h.dispatcher.ListByWallet(r.Context(), walletID, unreadOnly, page, limit)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}

	utils.WriteJSON(w, struct {
		Status   string                `json:"status"`
		Count    int                   `json:"count"`
		Page     int                   `json:"page"`
		PageSize int                   `json:"page_size"`
		Data     []models.Notification `json:"data"`
	}{
		Status:   "success",
		Count:    len(list),
		Page:     page,
		PageSize: limit,
		Data:     list,
	})
}

// UnreadCount returns the badge count, which leaves support chat out, and the
// unread total.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletID(w, r)
	if !ok {
		return
	}

	badge, err := h.dispatcher.BadgeCount(r.Context(), walletID)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	total, err := h.dispatcher.UnreadCount(r.Context(), walletID)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}

	utils.WriteJSON(w, map[string]any{
		"status": "success",
		"data":   map[string]int{"unread": badge, "total": total},
	})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletID(w, r)
	if !ok {
		return
	}
	if err := h.dispatcher.MarkRead(r.Context(), walletID, chi.URLParam(r, "id")); err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, map[string]string{"status": "success", "message": "notification marked as read"})
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletID(w, r)
	if !ok {
		return
	}
	n, err := h.dispatcher.MarkAllRead(r.Context(), walletID)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, map[string]any{"status": "success", "data": map[string]int64{"updated": n}})
}
