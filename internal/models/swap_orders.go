package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SwapOrderStatus string

const (
	SwapPending    SwapOrderStatus = "pending"
	SwapProcessing SwapOrderStatus = "processing"
	SwapCompleted  SwapOrderStatus = "completed"
	SwapSuspended  SwapOrderStatus = "suspended"
	SwapFailed     SwapOrderStatus = "failed"
)

// rank orders the statuses; a write may never lower it.
func (s SwapOrderStatus) rank() int {
	switch s {
	case SwapPending:
		return 0
	case SwapProcessing:
		return 1
	case SwapCompleted, SwapSuspended, SwapFailed:
		return 2
	}
	return -1
}

func (s SwapOrderStatus) Valid() bool { return s.rank() >= 0 }

func (s SwapOrderStatus) Terminal() bool { return s.rank() == 2 }

// CanMoveTo reports whether next is a legal successor of s.
func (s SwapOrderStatus) CanMoveTo(next SwapOrderStatus) bool {
	switch s {
	case SwapPending:
		return next == SwapProcessing || next == SwapFailed || next == SwapSuspended
	case SwapProcessing:
		return next == SwapCompleted || next == SwapFailed
	}
	return false
}

type SwapOrder struct {
	ID           string          `json:"orderId" db:"id"`
	UserID       string          `json:"userId" db:"user_id"`
	WalletID     string          `json:"walletId" db:"wallet_id"`
	SourceToken  string          `json:"sourceToken" db:"source_token"`
	SourceAmount decimal.Decimal `json:"sourceAmount" db:"source_amount"`
	DestToken    string          `json:"destToken" db:"dest_token"`
	DestAmount   decimal.Decimal `json:"destAmount" db:"dest_amount"`
	ChainID      string          `json:"chainId" db:"chain_id"`
	DestChainID  string          `json:"destChainId" db:"dest_chain_id"`
	Status       SwapOrderStatus `json:"status" db:"status"`
	SendTxID     string          `json:"sendTransactionId" db:"send_tx_id"`
	ReceiveTxID  string          `json:"receiveTransactionId" db:"receive_tx_id"`
	Rate         decimal.Decimal `json:"rate" db:"rate"`
	FromPrice    decimal.Decimal `json:"fromPrice" db:"from_price"`
	ToPrice      decimal.Decimal `json:"toPrice" db:"to_price"`
	Degraded     bool            `json:"degraded" db:"degraded"`
	Provider     string          `json:"provider" db:"provider"`
	FailReason   string          `json:"failReason,omitempty" db:"fail_reason"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}
