// Package events publishes permission change notifications to consumers
// outside the process.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/permission"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix prefixes the Redis channel; the event type completes it.
const DefaultChannelPrefix = "identity.events."

// ErrPublishFailed wraps Redis failures from [RedisPublisher.Publish].
var ErrPublishFailed = errors.New("event publish failed")

// RedisPublisher sends events as JSON over Redis pub/sub, one channel per
// event type. Delivery is at most once.
type RedisPublisher struct {
	redis  redis.UniversalClient
	prefix string
}

var _ permission.EventPublisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a [RedisPublisher].
func NewRedisPublisher(rdb redis.UniversalClient, channelPrefix string) *RedisPublisher {
	if channelPrefix == "" {
		channelPrefix = DefaultChannelPrefix
	}
	return &RedisPublisher{redis: rdb, prefix: channelPrefix}
}

// Channel returns the channel events of eventType are published on.
func (p *RedisPublisher) Channel(eventType string) string {
	return p.prefix + eventType
}

// Publish sends event. Events without an ID get a fresh UUID.
func (p *RedisPublisher) Publish(ctx context.Context, event permission.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.redis.Publish(ctx, p.Channel(event.Type), payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return nil
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, permission.Event) error { return nil }
