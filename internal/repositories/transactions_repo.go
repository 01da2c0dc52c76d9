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

const transactionColumns = `id, wallet_id, chain_id, hash, from_address, to_address, value, token_symbol,
	status, type, fee, swap_order_id, admin_id, admin_note, admin_initiated, created_at, updated_at`

func scanTransaction(row scanner) (*models.Transaction, error) {
	var (
		t         models.Transaction
		fee       decimal.NullDecimal
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&t.ID, &t.WalletID, &t.ChainID, &t.Hash, &t.From, &t.To, &t.Value, &t.TokenSymbol,
		&t.Status, &t.Type, &fee, &t.SwapOrderID, &t.AdminID, &t.AdminNote, &t.AdminInitiated,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if fee.Valid {
		f := fee.Decimal
		t.Fee = &f
	}
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return &t, nil
}

func (s *Store) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	var fee any
	if t.Fee != nil {
		fee = t.Fee.String()
	}
	_, err := s.exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.WalletID, t.ChainID, t.Hash, t.From, t.To, t.Value.String(), t.TokenSymbol,
		string(t.Status), string(t.Type), fee, t.SwapOrderID, t.AdminID, t.AdminNote, t.AdminInitiated,
		toMillis(t.CreatedAt), toMillis(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	t, err := scanTransaction(s.queryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// UpdateTransactionStatus moves a pending transaction to status and reports
// whether a row changed. Rows that already left pending are never rewritten.
func (s *Store) UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus, now time.Time) (bool, error) {
	res, err := s.exec(ctx, `UPDATE transactions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(status), toMillis(now), id, string(models.TransactionPending))
	if err != nil {
		return false, fmt.Errorf("update transaction status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update transaction status: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListTransactionsByWallet(ctx context.Context, walletID string, limit, offset int) ([]models.Transaction, error) {
	return s.listTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE wallet_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, walletID, limit, offset)
}

func (s *Store) CountTransactionsByWallet(ctx context.Context, walletID string) (int, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE wallet_id = ?`, walletID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// ListTransactionsBySwapOrder returns the legs of an order, oldest first.
func (s *Store) ListTransactionsBySwapOrder(ctx context.Context, orderID string) ([]models.Transaction, error) {
	return s.listTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE swap_order_id = ? ORDER BY created_at, id`, orderID)
}

// ListPendingTransactions returns pending transactions of type txType created before cutoff.
func (s *Store) ListPendingTransactions(ctx context.Context, txType models.TransactionType, cutoff time.Time, limit int) ([]models.Transaction, error) {
	return s.listTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE status = ? AND type = ? AND created_at < ? ORDER BY created_at LIMIT ?`,
		string(models.TransactionPending), string(txType), toMillis(cutoff), limit)
}

func (s *Store) listTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
