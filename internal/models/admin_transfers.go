package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AdminTransferDirection string

const (
	AdminTransferCredit AdminTransferDirection = "credit"
	AdminTransferDebit  AdminTransferDirection = "debit"
)

// AdminTransfer is the audit row left by every admin balance adjustment, including the silent ones.
type AdminTransfer struct {
	ID            string                 `json:"id" db:"id"`
	AdminID       string                 `json:"adminId" db:"admin_id"`
	UserID        string                 `json:"userId" db:"user_id"`
	WalletID      string                 `json:"walletId" db:"wallet_id"`
	ChainID       string                 `json:"chainId" db:"chain_id"`
	TokenSymbol   string                 `json:"tokenSymbol" db:"token_symbol"`
	Amount        decimal.Decimal        `json:"amount" db:"amount"`
	Direction     AdminTransferDirection `json:"direction" db:"direction"`
	Silent        bool                   `json:"silent" db:"silent"`
	TransactionID string                 `json:"transactionId,omitempty" db:"transaction_id"`
	Note          string                 `json:"note,omitempty" db:"note"`
	CreatedAt     time.Time              `json:"createdAt" db:"created_at"`
}
