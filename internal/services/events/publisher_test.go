package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"chainvault/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPusher struct {
	sent map[string][]any
}

func (r *recordingPusher) SendToUser(userID string, event any) int {
	r.sent[userID] = append(r.sent[userID], event)
	return 1
}

type failingSink struct{ calls int }

func (f *failingSink) Name() string { return "failing" }

func (f *failingSink) Publish(context.Context, ...models.Event) error {
	f.calls++
	return errors.New("broker down")
}

type memWriter struct{ msgs []kafka.Message }

func (m *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *memWriter) Close() error { return nil }

func TestPublishPushesToUsersAndSinks(t *testing.T) {
	pusher := &recordingPusher{sent: map[string][]any{}}
	sink := &failingSink{}
	p := NewPublisher(pusher, sink)

	require.NotPanics(t, func() {
		p.Publish(context.Background(),
			models.Event{Type: models.EventTransactionCreated, UserID: "u1", TransactionID: "tx_1"},
			models.Event{Type: models.EventBalanceUpdated, WalletID: "w1"},
		)
	})

	assert.Len(t, pusher.sent["u1"], 1)
	assert.Equal(t, 1, sink.calls, "a failing sink is called once per batch and swallowed")
}

func TestKafkaSinkKeysByWallet(t *testing.T) {
	w := &memWriter{}
	sink := &KafkaSink{writer: w}

	err := sink.Publish(context.Background(), models.Event{Type: models.EventSwapOrderUpdated, WalletID: "w1", OrderID: "swap_1", Status: "completed"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "w1", string(w.msgs[0].Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "swap_order_updated", decoded["type"])
	assert.Equal(t, "swap_1", decoded["orderId"])
	assert.NotContains(t, decoded, "transactionId")
}
