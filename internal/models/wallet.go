package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletBalanceEntry is one ledger row: the balance a wallet holds of one token on one chain.
type WalletBalanceEntry struct {
	WalletID      string          `json:"walletId" db:"wallet_id"`
	ChainID       string          `json:"chainId" db:"chain_id"`
	Symbol        string          `json:"symbol" db:"symbol"`
	Name          string          `json:"name,omitempty" db:"name"`
	Icon          string          `json:"icon,omitempty" db:"icon"`
	Decimals      int             `json:"decimals" db:"decimals"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	IsVisible     bool            `json:"isVisible" db:"is_visible"`
	DisplayOrder  int             `json:"displayOrder" db:"display_order"`
	LastInboundAt *time.Time      `json:"lastInboundAt,omitempty" db:"last_inbound_at"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// WalletAddress is the synthetic deposit address a wallet uses on a chain.
type WalletAddress struct {
	WalletID  string    `json:"walletId" db:"wallet_id"`
	ChainID   string    `json:"chainId" db:"chain_id"`
	Address   string    `json:"address" db:"address"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
