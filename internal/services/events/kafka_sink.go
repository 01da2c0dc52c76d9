package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chainvault/internal/models"
	"chainvault/pkg/utils"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink streams events to a topic keyed by wallet id, so the events of
// one wallet stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			utils.Logger.Errorf("kafka: "+msg, args...)
		}),
	}}
}

func (k *KafkaSink) Name() string { return "kafka" }

func (k *KafkaSink) Publish(ctx context.Context, events ...models.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s event: %w", ev.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.WalletID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(ev.Type)},
			},
		})
	}
	return k.writer.WriteMessages(ctx, msgs...)
}

func (k *KafkaSink) Close() error { return k.writer.Close() }
