package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chainvault/internal/errs"
	"chainvault/internal/models"

	"github.com/shopspring/decimal"
)

const balanceColumns = `wallet_id, chain_id, symbol, name, icon, decimals, balance, is_visible,
	display_order, last_inbound_at, created_at, updated_at`

func scanBalance(row scanner) (*models.WalletBalanceEntry, error) {
	var (
		e         models.WalletBalanceEntry
		inbound   sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&e.WalletID, &e.ChainID, &e.Symbol, &e.Name, &e.Icon, &e.Decimals, &e.Balance,
		&e.IsVisible, &e.DisplayOrder, &inbound, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if inbound.Valid {
		t := fromMillis(inbound.Int64)
		e.LastInboundAt = &t
	}
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	return &e, nil
}

func (s *Store) GetBalance(ctx context.Context, walletID, chainID, symbol string) (*models.WalletBalanceEntry, error) {
	row := s.queryRow(ctx, `SELECT `+balanceColumns+` FROM wallet_balances
		WHERE wallet_id = ? AND chain_id = ? AND symbol = ?`, walletID, chainID, symbol)
	e, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("balance %s/%s/%s: %w", walletID, chainID, symbol, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return e, nil
}

// InsertBalance creates e unless the key already exists, and reports whether it did.
func (s *Store) InsertBalance(ctx context.Context, e *models.WalletBalanceEntry) (bool, error) {
	var inbound any
	if e.LastInboundAt != nil {
		inbound = toMillis(*e.LastInboundAt)
	}
	prefix, suffix := s.dialect.InsertIgnore()
	res, err := s.exec(ctx, prefix+` wallet_balances (`+balanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`+suffix,
		e.WalletID, e.ChainID, e.Symbol, e.Name, e.Icon, e.Decimals, e.Balance.String(), e.IsVisible,
		e.DisplayOrder, inbound, toMillis(e.CreatedAt), toMillis(e.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("insert balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert balance: %w", err)
	}
	return n > 0, nil
}

// CompareAndSetBalance writes next only while the stored balance still equals prev.
// A lost race reports errs.ErrConcurrentUpdate. A non-nil inbound stamps last_inbound_at.
func (s *Store) CompareAndSetBalance(ctx context.Context, walletID, chainID, symbol string,
	prev, next decimal.Decimal, inbound *time.Time, now time.Time) error {
	query := `UPDATE wallet_balances SET balance = ?, updated_at = ?`
	args := []any{next.String(), toMillis(now)}
	if inbound != nil {
		query += `, last_inbound_at = ?, is_visible = ?`
		args = append(args, toMillis(*inbound), true)
	}
	query += ` WHERE wallet_id = ? AND chain_id = ? AND symbol = ? AND balance = ?`
	args = append(args, walletID, chainID, symbol, prev.String())

	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("balance %s/%s/%s: %w", walletID, chainID, symbol, errs.ErrConcurrentUpdate)
	}
	return nil
}

// TouchBalance marks the entry visible and stamps last_inbound_at. The balance is untouched.
func (s *Store) TouchBalance(ctx context.Context, walletID, chainID, symbol string, inbound time.Time) error {
	_, err := s.exec(ctx, `UPDATE wallet_balances SET is_visible = ?, last_inbound_at = ?, updated_at = ?
		WHERE wallet_id = ? AND chain_id = ? AND symbol = ?`,
		true, toMillis(inbound), toMillis(inbound), walletID, chainID, symbol)
	if err != nil {
		return fmt.Errorf("touch balance: %w", err)
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context, walletID string, visibleOnly bool) ([]models.WalletBalanceEntry, error) {
	query := `SELECT ` + balanceColumns + ` FROM wallet_balances WHERE wallet_id = ?`
	args := []any{walletID}
	if visibleOnly {
		query += ` AND is_visible = ?`
		args = append(args, true)
	}
	query += ` ORDER BY display_order, chain_id, symbol`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var out []models.WalletBalanceEntry
	for rows.Next() {
		e, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// NextDisplayOrder returns one past the highest display order of the wallet.
func (s *Store) NextDisplayOrder(ctx context.Context, walletID string) (int, error) {
	var top sql.NullInt64
	if err := s.queryRow(ctx, `SELECT MAX(display_order) FROM wallet_balances WHERE wallet_id = ?`, walletID).Scan(&top); err != nil {
		return 0, fmt.Errorf("next display order: %w", err)
	}
	if !top.Valid {
		return 0, nil
	}
	return int(top.Int64) + 1, nil
}
