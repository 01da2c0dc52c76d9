package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"chainvault/internal/errs"
	"chainvault/internal/models"
)

const notificationColumns = `id, wallet_id, category, sub_category, type, title, description,
	transaction_id, is_read, metadata, created_at`

func scanNotification(row scanner) (*models.Notification, error) {
	var (
		n         models.Notification
		metadata  string
		createdAt int64
	)
	if err := row.Scan(&n.ID, &n.WalletID, &n.Category, &n.SubCategory, &n.Type, &n.Title, &n.Description,
		&n.TransactionID, &n.IsRead, &metadata, &createdAt); err != nil {
		return nil, err
	}
	if metadata != "" && metadata != "null" {
		if err := json.Unmarshal([]byte(metadata), &n.Metadata); err != nil {
			return nil, fmt.Errorf("decode notification metadata: %w", err)
		}
	}
	n.CreatedAt = fromMillis(createdAt)
	return &n, nil
}

func (s *Store) InsertNotification(ctx context.Context, n *models.Notification) error {
	metadata := []byte("{}")
	if len(n.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(n.Metadata); err != nil {
			return fmt.Errorf("encode notification metadata: %w", err)
		}
	}
	_, err := s.exec(ctx, `INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.WalletID, string(n.Category), n.SubCategory, n.Type, n.Title, n.Description,
		n.TransactionID, n.IsRead, string(metadata), toMillis(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	n, err := scanNotification(s.queryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(ctx, `UPDATE notifications SET is_read = ? WHERE id = ? AND is_read = ?`, true, id, false)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return n > 0, nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, walletID string) (int64, error) {
	res, err := s.exec(ctx, `UPDATE notifications SET is_read = ? WHERE wallet_id = ? AND is_read = ?`, true, walletID, false)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}

// CountUnreadNotifications counts unread rows of the wallet, skipping the given sub-categories.
func (s *Store) CountUnreadNotifications(ctx context.Context, walletID string, excludeSubCategories []string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE wallet_id = ? AND is_read = ?`
	args := []any{walletID, false}
	if len(excludeSubCategories) > 0 {
		query += ` AND sub_category NOT IN (` + placeholders(len(excludeSubCategories)) + `)`
		for _, c := range excludeSubCategories {
			args = append(args, c)
		}
	}
	var n int
	if err := s.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, walletID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE wallet_id = ?`
	args := []any{walletID}
	if unreadOnly {
		query += ` AND is_read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}
