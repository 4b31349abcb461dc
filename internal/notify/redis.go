package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nhle/teamtasks/internal/model"
)

// channelPrefix namespaces per-user pub/sub channels.
const channelPrefix = "teamtasks:notifications:"

// ChannelFor returns the Redis channel carrying userID's notifications.
func ChannelFor(userID string) string {
	return channelPrefix + userID
}

// RedisBroker is a Broker backed by Redis pub/sub, so notifications written
// by one process reach feeds open in another.
type RedisBroker struct {
	client *redis.Client
	log    *zap.Logger
}

var _ Broker = (*RedisBroker)(nil)

// NewRedisBroker wraps an existing client.
func NewRedisBroker(client *redis.Client, log *zap.Logger) *RedisBroker {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBroker{client: client, log: log}
}

// Publish sends n as JSON on its user's channel.
func (b *RedisBroker) Publish(ctx context.Context, n model.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification %s: %w", n.ID, err)
	}
	if err := b.client.Publish(ctx, ChannelFor(n.UserID), data).Err(); err != nil {
		return fmt.Errorf("publishing notification %s: %w", n.ID, err)
	}
	return nil
}

// Subscribe listens on userID's channel. The returned channel closes when
// cancel is called, ctx ends or the subscription drops.
func (b *RedisBroker) Subscribe(ctx context.Context, userID string) (<-chan model.Notification, func(), error) {
	pubsub := b.client.Subscribe(ctx, ChannelFor(userID))

	// Wait for the subscription confirmation so publish errors surface now.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", ChannelFor(userID), err)
	}

	out := make(chan model.Notification, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var n model.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					b.log.Warn("dropping malformed notification message",
						zap.String("channel", msg.Channel),
						zap.Error(err),
					)
					continue
				}
				select {
				case out <- n:
				default:
				}
			}
		}
	}()

	return out, cancel, nil
}
