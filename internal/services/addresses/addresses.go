// Package addresses hands out the synthetic deposit address a wallet uses on
// each chain, and throwaway counterparty addresses for provider legs.
package addresses

import (
	"context"
	"errors"
	"time"

	"chainvault/internal/errs"
	"chainvault/internal/models"
	"chainvault/internal/services/chains"
)

type Store interface {
	GetWalletAddress(ctx context.Context, walletID, chainID string) (*models.WalletAddress, error)
	PutWalletAddress(ctx context.Context, a *models.WalletAddress) (*models.WalletAddress, error)
}

type Book struct {
	store  Store
	family func(chainID string) chains.Family
	now    func() time.Time
}

func NewBook(store Store, family func(chainID string) chains.Family) *Book {
	if family == nil {
		family = chains.FamilyOf
	}
	return &Book{store: store, family: family, now: time.Now}
}

// WalletAddress returns the stored address of walletID on chainID, minting
// one on first use. Concurrent first uses converge on a single address.
func (b *Book) WalletAddress(ctx context.Context, walletID, chainID string) (string, error) {
	a, err := b.store.GetWalletAddress(ctx, walletID, chainID)
	if err == nil {
		return a.Address, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return "", err
	}

	addr, err := chains.NewAddress(b.family(chainID))
	if err != nil {
		return "", err
	}
	a, err = b.store.PutWalletAddress(ctx, &models.WalletAddress{
		WalletID:  walletID,
		ChainID:   chainID,
		Address:   addr,
		CreatedAt: b.now(),
	})
	if err != nil {
		return "", err
	}
	return a.Address, nil
}

// Counterparty returns a fresh address in the encoding of chainID.
func (b *Book) Counterparty(chainID string) (string, error) {
	return chains.NewAddress(b.family(chainID))
}
