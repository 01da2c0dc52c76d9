// Package notifications stores the durable notifications of a wallet.
package notifications

import (
	"context"
	"fmt"
	"time"

	"chainvault/internal/errs"
	"chainvault/internal/metrics"
	"chainvault/internal/models"
	"chainvault/pkg/utils"
)

type Store interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, walletID string) (int64, error)
	CountUnreadNotifications(ctx context.Context, walletID string, excludeSubCategories []string) (int, error)
	ListNotifications(ctx context.Context, walletID string, unreadOnly bool, limit, offset int) ([]models.Notification, error)
}

type Notice struct {
	WalletID      string
	Category      models.NotificationCategory
	Type          string
	Title         string
	Description   string
	TransactionID string
	Metadata      map[string]any
}

type Dispatcher struct {
	store Store
	now   func() time.Time
}

func NewDispatcher(store Store, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{store: store, now: now}
}

// SubCategory derives the stored sub-category from notification metadata.
func SubCategory(metadata map[string]any) string {
	if v, ok := metadata["supportChat"].(bool); ok && v {
		return models.SubCategorySupportChat
	}
	if v, ok := metadata["subCategory"].(string); ok {
		return v
	}
	return ""
}

// Notify creates an unread notification.
func (d *Dispatcher) Notify(ctx context.Context, n Notice) (*models.Notification, error) {
	if !n.Category.Valid() {
		return nil, fmt.Errorf("notification category %q: %w", n.Category, errs.ErrInvalidInput)
	}
	if n.WalletID == "" || n.Title == "" {
		return nil, fmt.Errorf("notification needs a wallet and a title: %w", errs.ErrInvalidInput)
	}

	rec := &models.Notification{
		ID:            utils.NewID("ntf"),
		WalletID:      n.WalletID,
		Category:      n.Category,
		SubCategory:   SubCategory(n.Metadata),
		Type:          n.Type,
		Title:         n.Title,
		Description:   n.Description,
		TransactionID: n.TransactionID,
		Metadata:      n.Metadata,
		CreatedAt:     d.now(),
	}
	if err := d.store.InsertNotification(ctx, rec); err != nil {
		return nil, err
	}
	metrics.NotificationsCreated.WithLabelValues(string(rec.Category)).Inc()
	return rec, nil
}

// MarkRead flips one notification of walletID to read. Marking it twice is fine.
func (d *Dispatcher) MarkRead(ctx context.Context, walletID, id string) error {
	n, err := d.store.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if n.WalletID != walletID {
		return fmt.Errorf("notification %s: %w", id, errs.ErrNotFound)
	}
	_, err = d.store.MarkNotificationRead(ctx, id)
	return err
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, walletID string) (int64, error) {
	return d.store.MarkAllNotificationsRead(ctx, walletID)
}

// UnreadCount counts unread notifications, leaving out the named sub-categories.
func (d *Dispatcher) UnreadCount(ctx context.Context, walletID string, excludeSubCategories ...string) (int, error) {
	return d.store.CountUnreadNotifications(ctx, walletID, excludeSubCategories)
}

// BadgeCount is the primary unread count; support chat keeps its own badge.
func (d *Dispatcher) BadgeCount(ctx context.Context, walletID string) (int, error) {
	return d.UnreadCount(ctx, walletID, models.SubCategorySupportChat)
}

func (d *Dispatcher) ListByWallet(ctx context.Context, walletID string, unreadOnly bool, page, limit int) ([]models.Notification, error) {
	if page < 1 {
		page = 1
	}
	return d.store.ListNotifications(ctx, walletID, unreadOnly, limit, (page-1)*limit)
}
