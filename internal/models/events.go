package models

type EventType string

const (
	EventNotificationCreated EventType = "notification_created"
	EventTransactionCreated  EventType = "transaction_created"
	EventTransactionUpdated  EventType = "transaction_updated"
	EventSwapOrderUpdated    EventType = "swap_order_updated"
	EventBalanceUpdated      EventType = "balance_updated"
)

// Event is the flat realtime envelope. Consumers ignore types they do not know.
type Event struct {
	Type           EventType `json:"type"`
	WalletID       string    `json:"walletId,omitempty"`
	UserID         string    `json:"userId,omitempty"`
	TransactionID  string    `json:"transactionId,omitempty"`
	OrderID        string    `json:"orderId,omitempty"`
	NotificationID string    `json:"notificationId,omitempty"`
	Status         string    `json:"status,omitempty"`
	Data           any       `json:"data,omitempty"`
}
