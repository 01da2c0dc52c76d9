// Package events fans settlement events out to live connections and to
// optional downstream sinks.
package events

import (
	"context"

	"chainvault/internal/metrics"
	"chainvault/internal/models"
	"chainvault/pkg/utils"

	"github.com/sirupsen/logrus"
)

// Pusher delivers an event to the live connections of a user.
type Pusher interface {
	SendToUser(userID string, event any) int
}

// Sink receives every published event. Failures are logged and never
// reach the caller.
type Sink interface {
	Name() string
	Publish(ctx context.Context, events ...models.Event) error
}

type Publisher struct {
	pusher Pusher
	sinks  []Sink
}

func NewPublisher(pusher Pusher, sinks ...Sink) *Publisher {
	return &Publisher{pusher: pusher, sinks: sinks}
}

// Publish pushes each event to its user and hands the batch to every sink.
func (p *Publisher) Publish(ctx context.Context, events ...models.Event) {
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		if p.pusher != nil && ev.UserID != "" {
			p.pusher.SendToUser(ev.UserID, ev)
		}
	}
	for _, s := range p.sinks {
		if err := s.Publish(ctx, events...); err != nil {
			metrics.EventSinkErrors.WithLabelValues(s.Name()).Inc()
			utils.Logger.WithFields(logrus.Fields{
				"sink":   s.Name(),
				"events": len(events),
				"error":  err.Error(),
			}).Warn("event sink publish failed")
		}
	}
}
