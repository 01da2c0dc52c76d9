package models

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the slice of the account record the settlement engine needs.
type User struct {
	ID       string `json:"id" db:"id"`
	Email    string `json:"email" db:"email"`
	Role     Role   `json:"role" db:"role"`
	WalletID string `json:"walletId" db:"wallet_id"`
	CanSend  bool   `json:"canSend" db:"can_send"`
}
