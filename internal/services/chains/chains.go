// Package chains synthesizes chain-shaped addresses and transaction hashes.
// Nothing produced here is ever broadcast or signed against.
package chains

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type Family string

const (
	FamilyEVM     Family = "evm"
	FamilySolana  Family = "solana"
	FamilyBitcoin Family = "bitcoin"
)

const solanaSignatureLen = 88

// ParseFamily accepts a catalog family name. Empty means the family is
// derived from the chain id.
func ParseFamily(s string) (Family, error) {
	switch Family(strings.ToLower(s)) {
	case FamilyEVM:
		return FamilyEVM, nil
	case FamilySolana:
		return FamilySolana, nil
	case FamilyBitcoin:
		return FamilyBitcoin, nil
	}
	return "", fmt.Errorf("unknown chain family %q", s)
}

// FamilyOf picks the encoding family from a chain identifier.
func FamilyOf(chainID string) Family {
	id := strings.ToLower(chainID)
	switch {
	case strings.HasPrefix(id, "solana"):
		return FamilySolana
	case strings.HasPrefix(id, "bitcoin"):
		return FamilyBitcoin
	}
	return FamilyEVM
}

// NewHash returns a random transaction hash in the family's native shape.
func NewHash(f Family) (string, error) {
	switch f {
	case FamilySolana:
		buf := make([]byte, 64)
		for {
			if _, err := rand.Read(buf); err != nil {
				return "", fmt.Errorf("read entropy: %w", err)
			}
			// Leading zero bytes shorten the encoding; redraw until it has the canonical length.
			if sig := base58.Encode(buf); len(sig) == solanaSignatureLen {
				return sig, nil
			}
		}
	case FamilyBitcoin:
		var h [32]byte
		if _, err := rand.Read(h[:]); err != nil {
			return "", fmt.Errorf("read entropy: %w", err)
		}
		return hex.EncodeToString(h[:]), nil
	}

	var h [32]byte
	if _, err := rand.Read(h[:]); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	return common.BytesToHash(h[:]).Hex(), nil
}

// NewAddress returns a fresh address for the family. The private key is discarded.
func NewAddress(f Family) (string, error) {
	switch f {
	case FamilySolana:
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return "", fmt.Errorf("generate ed25519 key: %w", err)
		}
		return base58.Encode(pub), nil
	case FamilyBitcoin:
		key, err := btcec.NewPrivateKey()
		if err != nil {
			return "", fmt.Errorf("generate secp256k1 key: %w", err)
		}
		hash := btcutil.Hash160(key.PubKey().SerializeCompressed())
		addr, err := btcutil.NewAddressWitnessPubKeyHash(hash, &chaincfg.MainNetParams)
		if err != nil {
			return "", fmt.Errorf("encode p2wpkh address: %w", err)
		}
		return addr.EncodeAddress(), nil
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generate secp256k1 key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
