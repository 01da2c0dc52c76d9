package models

import "time"

type NotificationCategory string

const (
	CategoryTransaction NotificationCategory = "Transaction"
	CategorySystem      NotificationCategory = "System"
)

func (c NotificationCategory) Valid() bool {
	return c == CategoryTransaction || c == CategorySystem
}

// SubCategorySupportChat marks support-chat notifications, which stay out of the badge count.
const SubCategorySupportChat = "supportChat"

type Notification struct {
	ID            string               `json:"id" db:"id"`
	WalletID      string               `json:"walletId" db:"wallet_id"`
	Category      NotificationCategory `json:"category" db:"category"`
	SubCategory   string               `json:"subCategory,omitempty" db:"sub_category"`
	Type          string               `json:"type" db:"type"`
	Title         string               `json:"title" db:"title"`
	Description   string               `json:"description" db:"description"`
	TransactionID string               `json:"transactionId,omitempty" db:"transaction_id"`
	IsRead        bool                 `json:"isRead" db:"is_read"`
	Metadata      map[string]any       `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time            `json:"createdAt" db:"created_at"`
}
