package notifications

import (
	"context"
	"testing"

	"chainvault/internal/errs"
	"chainvault/internal/models"
	"chainvault/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	store, err := repositories.NewMemoryStore(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewDispatcher(store, nil)
}

func notice(meta map[string]any) Notice {
	return Notice{WalletID: "w1", Category: models.CategoryTransaction, Type: "send", Title: "Transaction sent",
		Description: "You sent 1 ETH", Metadata: meta}
}

func TestSubCategory(t *testing.T) {
	assert.Equal(t, models.SubCategorySupportChat, SubCategory(map[string]any{"supportChat": true}))
	assert.Equal(t, "", SubCategory(map[string]any{"supportChat": false}))
	assert.Equal(t, "promo", SubCategory(map[string]any{"subCategory": "promo"}))
	assert.Equal(t, "", SubCategory(nil))
}

func TestNotifyCreatesUnread(t *testing.T) {
	d := newTestDispatcher(t)
	n, err := d.Notify(context.Background(), notice(map[string]any{"amount": "1"}))
	require.NoError(t, err)
	assert.False(t, n.IsRead)
	assert.Equal(t, models.CategoryTransaction, n.Category)

	_, err = d.Notify(context.Background(), Notice{WalletID: "w1", Category: "Promo", Title: "x"})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestSupportChatExcludedFromBadgeButListed(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Notify(ctx, notice(nil))
	require.NoError(t, err)
	_, err = d.Notify(ctx, Notice{WalletID: "w1", Category: models.CategorySystem, Type: "support_message",
		Title: "New support reply", Metadata: map[string]any{"supportChat": true}})
	require.NoError(t, err)

	badge, err := d.BadgeCount(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, badge)

	all, err := d.UnreadCount(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 2, all)

	list, err := d.ListByWallet(ctx, "w1", false, 1, 20)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMarkRead(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	n, err := d.Notify(ctx, notice(nil))
	require.NoError(t, err)
	_, err = d.Notify(ctx, notice(nil))
	require.NoError(t, err)

	assert.ErrorIs(t, d.MarkRead(ctx, "w2", n.ID), errs.ErrNotFound)
	require.NoError(t, d.MarkRead(ctx, "w1", n.ID))
	require.NoError(t, d.MarkRead(ctx, "w1", n.ID))

	count, err := d.BadgeCount(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	changed, err := d.MarkAllRead(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	unread, err := d.ListByWallet(ctx, "w1", true, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, unread)
}
