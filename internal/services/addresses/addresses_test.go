package addresses

import (
	"context"
	"strings"
	"testing"

	"chainvault/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletAddressIsStable(t *testing.T) {
	store, err := repositories.NewMemoryStore(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	book := NewBook(store, nil)
	ctx := context.Background()

	first, err := book.WalletAddress(ctx, "w1", "ethereum")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "0x"))

	again, err := book.WalletAddress(ctx, "w1", "ethereum")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	btc, err := book.WalletAddress(ctx, "w1", "bitcoin")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(btc, "bc1"))

	other, err := book.Counterparty("ethereum")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}
