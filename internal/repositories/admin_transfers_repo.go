package repositories

import (
	"context"
	"fmt"

	"chainvault/internal/models"
)

func (s *Store) InsertAdminTransfer(ctx context.Context, a *models.AdminTransfer) error {
	_, err := s.exec(ctx, `INSERT INTO admin_transfers
		(id, admin_id, user_id, wallet_id, chain_id, token_symbol, amount, direction, silent, transaction_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AdminID, a.UserID, a.WalletID, a.ChainID, a.TokenSymbol, a.Amount.String(), string(a.Direction),
		a.Silent, a.TransactionID, a.Note, toMillis(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert admin transfer: %w", err)
	}
	return nil
}

func (s *Store) ListAdminTransfers(ctx context.Context, walletID string) ([]models.AdminTransfer, error) {
	rows, err := s.query(ctx, `SELECT id, admin_id, user_id, wallet_id, chain_id, token_symbol, amount, direction,
		silent, transaction_id, note, created_at FROM admin_transfers WHERE wallet_id = ? ORDER BY created_at, id`, walletID)
	if err != nil {
		return nil, fmt.Errorf("list admin transfers: %w", err)
	}
	defer rows.Close()

	var out []models.AdminTransfer
	for rows.Next() {
		var (
			a         models.AdminTransfer
			createdAt int64
		)
		if err := rows.Scan(&a.ID, &a.AdminID, &a.UserID, &a.WalletID, &a.ChainID, &a.TokenSymbol, &a.Amount,
			&a.Direction, &a.Silent, &a.TransactionID, &a.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("scan admin transfer: %w", err)
		}
		a.CreatedAt = fromMillis(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}
