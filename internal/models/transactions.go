package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionConfirmed TransactionStatus = "confirmed"
	TransactionFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionConfirmed, TransactionFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionConfirmed || s == TransactionFailed
}

type TransactionType string

const (
	TransactionSend    TransactionType = "send"
	TransactionReceive TransactionType = "receive"
	TransactionSwapLeg TransactionType = "swap-leg"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionSend, TransactionReceive, TransactionSwapLeg:
		return true
	}
	return false
}

type Transaction struct {
	ID             string            `json:"id" db:"id"`
	WalletID       string            `json:"walletId" db:"wallet_id"`
	ChainID        string            `json:"chainId" db:"chain_id"`
	Hash           string            `json:"hash" db:"hash"`
	From           string            `json:"from" db:"from_address"`
	To             string            `json:"to" db:"to_address"`
	Value          decimal.Decimal   `json:"value" db:"value"`
	TokenSymbol    string            `json:"tokenSymbol" db:"token_symbol"`
	Status         TransactionStatus `json:"status" db:"status"`
	Type           TransactionType   `json:"type" db:"type"`
	Fee            *decimal.Decimal  `json:"fee,omitempty" db:"fee"`
	SwapOrderID    string            `json:"swapOrderId,omitempty" db:"swap_order_id"`
	AdminID        string            `json:"adminId,omitempty" db:"admin_id"`
	AdminNote      string            `json:"adminNote,omitempty" db:"admin_note"`
	AdminInitiated bool              `json:"adminInitiated" db:"admin_initiated"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
}

// TransactionExtra carries the optional columns of a Transaction at record time.
type TransactionExtra struct {
	Fee            *decimal.Decimal
	SwapOrderID    string
	AdminID        string
	AdminNote      string
	AdminInitiated bool
}
