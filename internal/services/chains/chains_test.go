package chains

import (
	"regexp"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestFamilyOf(t *testing.T) {
	assert.Equal(t, FamilyEVM, FamilyOf("ethereum"))
	assert.Equal(t, FamilyEVM, FamilyOf("polygon"))
	assert.Equal(t, FamilySolana, FamilyOf("solana"))
	assert.Equal(t, FamilySolana, FamilyOf("Solana-devnet"))
	assert.Equal(t, FamilyBitcoin, FamilyOf("bitcoin"))
}

func TestParseFamily(t *testing.T) {
	f, err := ParseFamily("EVM")
	require.NoError(t, err)
	assert.Equal(t, FamilyEVM, f)

	_, err = ParseFamily("cosmos")
	assert.Error(t, err)
}

func TestNewHashShapes(t *testing.T) {
	for i := 0; i < 20; i++ {
		evm, err := NewHash(FamilyEVM)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(evm, "0x"))
		assert.Regexp(t, hex64, evm[2:])

		sol, err := NewHash(FamilySolana)
		require.NoError(t, err)
		require.Len(t, sol, 88)
		assert.Len(t, base58.Decode(sol), 64)

		btc, err := NewHash(FamilyBitcoin)
		require.NoError(t, err)
		assert.Regexp(t, hex64, btc)
	}
}

func TestNewAddressShapes(t *testing.T) {
	evm, err := NewAddress(FamilyEVM)
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(evm))
	assert.Equal(t, common.HexToAddress(evm).Hex(), evm, "checksummed")

	sol, err := NewAddress(FamilySolana)
	require.NoError(t, err)
	assert.Len(t, base58.Decode(sol), 32)

	btc, err := NewAddress(FamilyBitcoin)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(btc, "bc1q"))
}
