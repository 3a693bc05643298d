package rediscache

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/rollcall/core/session"
)

const (
	channelPrefix    = "rollcall:auth:"
	subscriberBuffer = 16
)

// Broker publishes auth events on one Redis channel per subject, JSON encoded.
// A signed out event travels as "null".
type Broker struct {
	client *redis.Client
}

var _ session.Broker = (*Broker)(nil) // interface compliance check

func NewBroker(client *redis.Client) *Broker {
	return &Broker{client: client}
}

func (b *Broker) Publish(ctx context.Context, subjectID string, evt *session.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	return errors.Wrap(b.client.Publish(ctx, channelPrefix+subjectID, payload).Err(), "publishing event")
}

func (b *Broker) Subscribe(ctx context.Context, subjectID string) (<-chan *session.Event, error) {
	pubsub := b.client.Subscribe(ctx, channelPrefix+subjectID)
	// wait for the subscription to be confirmed, so no event published afterwards is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrap(err, "subscribing")
	}

	out := make(chan *session.Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt *session.Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
