package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"chainvault/internal/errs"
	"chainvault/internal/services/chains"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	tok, err := c.Lookup("ethereum", "usdt")
	require.NoError(t, err)
	assert.Equal(t, "USDT", tok.Symbol)
	assert.Equal(t, 6, tok.Decimals)

	home, err := c.HomeChain("USDT")
	require.NoError(t, err)
	assert.Equal(t, "ethereum", home)

	home, err = c.HomeChain("SOL")
	require.NoError(t, err)
	assert.Equal(t, "solana", home)

	assert.Equal(t, chains.FamilySolana, c.Family("solana"))
	assert.Equal(t, chains.FamilyBitcoin, c.Family("bitcoin"))
}

func TestLookupErrors(t *testing.T) {
	c := Default()

	_, err := c.Lookup("ethereum", "DOGE")
	assert.ErrorIs(t, err, errs.ErrUnsupportedToken)

	_, err = c.Lookup("avalanche", "AVAX")
	assert.ErrorIs(t, err, errs.ErrUnsupportedChain)

	_, err = c.HomeChain("DOGE")
	assert.ErrorIs(t, err, errs.ErrUnsupportedToken)
}

func TestHomeChainFallsBackToFirstListing(t *testing.T) {
	c, err := Parse([]byte(`
chains:
  - id: polygon
    tokens:
      - {symbol: usdc, name: USD Coin, decimals: 6}
  - id: ethereum
    tokens:
      - {symbol: USDC, name: USD Coin, decimals: 6}
`))
	require.NoError(t, err)

	home, err := c.HomeChain("USDC")
	require.NoError(t, err)
	assert.Equal(t, "polygon", home)
	assert.Equal(t, chains.FamilyEVM, c.Family("polygon"))
}

func TestParseRejectsTwoHomes(t *testing.T) {
	_, err := Parse([]byte(`
chains:
  - id: a
    tokens: [{symbol: X, decimals: 1, home: true}]
  - id: b
    tokens: [{symbol: X, decimals: 1, home: true}]
`))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chains:\n  - id: bitcoin\n    tokens: [{symbol: BTC, decimals: 8, home: true}]\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c.Chains(), 1)
	assert.Equal(t, chains.FamilyBitcoin, c.Chains()[0].Family)
}
