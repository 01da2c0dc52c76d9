package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chainvault/internal/errs"
	"chainvault/internal/models"
)

const swapOrderColumns = `id, user_id, wallet_id, source_token, source_amount, dest_token, dest_amount,
	chain_id, dest_chain_id, status, send_tx_id, receive_tx_id, rate, from_price, to_price, degraded,
	provider, fail_reason, created_at, updated_at`

func scanSwapOrder(row scanner) (*models.SwapOrder, error) {
	var (
		o         models.SwapOrder
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.WalletID, &o.SourceToken, &o.SourceAmount, &o.DestToken,
		&o.DestAmount, &o.ChainID, &o.DestChainID, &o.Status, &o.SendTxID, &o.ReceiveTxID, &o.Rate,
		&o.FromPrice, &o.ToPrice, &o.Degraded, &o.Provider, &o.FailReason, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	o.CreatedAt = fromMillis(createdAt)
	o.UpdatedAt = fromMillis(updatedAt)
	return &o, nil
}

func (s *Store) InsertSwapOrder(ctx context.Context, o *models.SwapOrder) error {
	_, err := s.exec(ctx, `INSERT INTO swap_orders (`+swapOrderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.WalletID, o.SourceToken, o.SourceAmount.String(), o.DestToken, o.DestAmount.String(),
		o.ChainID, o.DestChainID, string(o.Status), o.SendTxID, o.ReceiveTxID, o.Rate.String(),
		o.FromPrice.String(), o.ToPrice.String(), o.Degraded, o.Provider, o.FailReason,
		toMillis(o.CreatedAt), toMillis(o.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert swap order: %w", err)
	}
	return nil
}

func (s *Store) GetSwapOrder(ctx context.Context, id string) (*models.SwapOrder, error) {
	o, err := scanSwapOrder(s.queryRow(ctx, `SELECT `+swapOrderColumns+` FROM swap_orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("swap order %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get swap order: %w", err)
	}
	return o, nil
}

// TransitionSwapOrder moves the order from -> to only if it is still in from.
// It reports false when another writer moved the order first. Illegal pairs
// are rejected before touching the row, so the status never regresses.
func (s *Store) TransitionSwapOrder(ctx context.Context, id string, from, to models.SwapOrderStatus, failReason string, now time.Time) (bool, error) {
	if !from.CanMoveTo(to) {
		return false, fmt.Errorf("swap order %s %s -> %s: %w", id, from, to, errs.ErrInvalidStatusTransition)
	}
	res, err := s.exec(ctx, `UPDATE swap_orders SET status = ?, fail_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`, string(to), failReason, toMillis(now), id, string(from))
	if err != nil {
		return false, fmt.Errorf("transition swap order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition swap order: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListSwapOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]models.SwapOrder, error) {
	return s.listSwapOrders(ctx, `SELECT `+swapOrderColumns+` FROM swap_orders
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, userID, limit, offset)
}

// ListStaleSwapOrders returns orders in status that were last touched before cutoff.
func (s *Store) ListStaleSwapOrders(ctx context.Context, status models.SwapOrderStatus, cutoff time.Time, limit int) ([]models.SwapOrder, error) {
	return s.listSwapOrders(ctx, `SELECT `+swapOrderColumns+` FROM swap_orders
		WHERE status = ? AND updated_at < ? ORDER BY updated_at LIMIT ?`, string(status), toMillis(cutoff), limit)
}

func (s *Store) listSwapOrders(ctx context.Context, query string, args ...any) ([]models.SwapOrder, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list swap orders: %w", err)
	}
	defer rows.Close()

	var out []models.SwapOrder
	for rows.Next() {
		o, err := scanSwapOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swap order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
