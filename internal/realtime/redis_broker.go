package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker fans events out across server instances with PUBLISH/SUBSCRIBE.
type RedisBroker struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisBroker(client *redis.Client, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, topic, data).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, topic)

	// wait for the subscribe ack so nothing published after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	in := ps.Channel()
	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range in {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("dropping malformed event",
					zap.String("topic", topic),
					zap.Error(err))
				continue
			}
			select {
			case out <- event:
			default:
				b.logger.Warn("subscriber too slow, closing subscription",
					zap.String("topic", topic),
					zap.String("type", event.Type))
				_ = ps.Close()
				return
			}
		}
	}()

	return &Subscription{
		C: out,
		close: func() {
			_ = ps.Close()
		},
	}, nil
}
