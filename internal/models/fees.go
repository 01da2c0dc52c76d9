package models

import "time"

// FeeOverride is an admin-configured fee for one user, token and chain.
// Amounts are kept exactly as the admin wrote them.
type FeeOverride struct {
	UserID        string    `json:"userId" db:"user_id"`
	TokenSymbol   string    `json:"tokenSymbol" db:"token_symbol"`
	ChainID       string    `json:"chainId" db:"chain_id"`
	FeeAmount     string    `json:"feeAmount" db:"fee_amount"`
	FeePercentage string    `json:"feePercentage" db:"fee_percentage"`
	UpdatedBy     string    `json:"updatedBy,omitempty" db:"updated_by"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// FeeQuote is what a client sees for a token on a chain. Amounts are fixed-point strings.
type FeeQuote struct {
	FeeAmount      string `json:"feeAmount"`
	FeePercentage  string `json:"feePercentage"`
	IsUserSpecific bool   `json:"isUserSpecific"`
}
