package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chainvault/internal/errs"
	"chainvault/internal/models"
)

const userColumns = `id, email, role, wallet_id, can_send`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Role, &u.WalletID, &u.CanSend); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	_, err := s.exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, string(u.Role), u.WalletID, u.CanSend)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = ?`, email)
}

// GetUserByWalletID returns the owner of a wallet.
func (s *Store) GetUserByWalletID(ctx context.Context, walletID string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE wallet_id = ?`, walletID)
}

// ResolveUser resolves a UserRef to its user record.
func (s *Store) ResolveUser(ctx context.Context, ref models.UserRef) (*models.User, error) {
	switch {
	case !ref.Valid():
		return nil, fmt.Errorf("user %s: %w", ref, errs.ErrNotFound)
	case ref.IsEmail():
		return s.GetUserByEmail(ctx, ref.Value())
	}
	return s.GetUserByID(ctx, ref.Value())
}

func (s *Store) getUser(ctx context.Context, query, arg string) (*models.User, error) {
	u, err := scanUser(s.queryRow(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", arg, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) SetCanSend(ctx context.Context, userID string, canSend bool) error {
	res, err := s.exec(ctx, `UPDATE users SET can_send = ? WHERE id = ?`, canSend, userID)
	if err != nil {
		return fmt.Errorf("set can_send: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, errs.ErrNotFound)
	}
	return nil
}

func (s *Store) GetWalletAddress(ctx context.Context, walletID, chainID string) (*models.WalletAddress, error) {
	var (
		a         models.WalletAddress
		createdAt int64
	)
	err := s.queryRow(ctx, `SELECT wallet_id, chain_id, address, created_at FROM wallet_addresses
		WHERE wallet_id = ? AND chain_id = ?`, walletID, chainID).Scan(&a.WalletID, &a.ChainID, &a.Address, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("address %s/%s: %w", walletID, chainID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet address: %w", err)
	}
	a.CreatedAt = fromMillis(createdAt)
	return &a, nil
}

// PutWalletAddress stores a unless the wallet already has an address on that
// chain, and returns whichever address is stored.
func (s *Store) PutWalletAddress(ctx context.Context, a *models.WalletAddress) (*models.WalletAddress, error) {
	prefix, suffix := s.dialect.InsertIgnore()
	if _, err := s.exec(ctx, prefix+` wallet_addresses (wallet_id, chain_id, address, created_at)
		VALUES (?, ?, ?, ?)`+suffix, a.WalletID, a.ChainID, a.Address, toMillis(a.CreatedAt)); err != nil {
		return nil, fmt.Errorf("put wallet address: %w", err)
	}
	return s.GetWalletAddress(ctx, a.WalletID, a.ChainID)
}
