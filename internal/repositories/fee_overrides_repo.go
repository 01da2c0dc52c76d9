package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chainvault/internal/errs"
	"chainvault/internal/models"
)

func (s *Store) GetFeeOverride(ctx context.Context, userID, tokenSymbol, chainID string) (*models.FeeOverride, error) {
	var (
		f         models.FeeOverride
		updatedAt int64
	)
	err := s.queryRow(ctx, `SELECT user_id, token_symbol, chain_id, fee_amount, fee_percentage, updated_by, updated_at
		FROM fee_overrides WHERE user_id = ? AND token_symbol = ? AND chain_id = ?`, userID, tokenSymbol, chainID).
		Scan(&f.UserID, &f.TokenSymbol, &f.ChainID, &f.FeeAmount, &f.FeePercentage, &f.UpdatedBy, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fee override %s/%s/%s: %w", userID, tokenSymbol, chainID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get fee override: %w", err)
	}
	f.UpdatedAt = fromMillis(updatedAt)
	return &f, nil
}

// UpsertFeeOverride keeps at most one override per (user, token, chain).
func (s *Store) UpsertFeeOverride(ctx context.Context, f *models.FeeOverride) error {
	_, err := s.exec(ctx, `INSERT INTO fee_overrides
		(user_id, token_symbol, chain_id, fee_amount, fee_percentage, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`+
		s.dialect.Upsert([]string{"user_id", "token_symbol", "chain_id"},
			[]string{"fee_amount", "fee_percentage", "updated_by", "updated_at"}),
		f.UserID, f.TokenSymbol, f.ChainID, f.FeeAmount, f.FeePercentage, f.UpdatedBy,
		toMillis(f.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert fee override: %w", err)
	}
	return nil
}

func (s *Store) DeleteFeeOverride(ctx context.Context, userID, tokenSymbol, chainID string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM fee_overrides WHERE user_id = ? AND token_symbol = ? AND chain_id = ?`,
		userID, tokenSymbol, chainID)
	if err != nil {
		return false, fmt.Errorf("delete fee override: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete fee override: %w", err)
	}
	return n > 0, nil
}
