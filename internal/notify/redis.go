package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel events are published on.
const DefaultChannel = "gigmatch:events"

// envelope is the wire shape of a published event.
type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// RedisNotifier publishes events as JSON on a Redis channel for the
// messaging and email workers to consume.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisNotifier creates a RedisNotifier. An empty channel uses DefaultChannel.
func NewRedisNotifier(client redis.UniversalClient, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) NotifyCandidateAccepted(ctx context.Context, e CandidateAcceptedEvent) error {
	return n.publish(ctx, EventCandidateAccepted, e)
}

func (n *RedisNotifier) NotifyBatchComposed(ctx context.Context, e BatchComposedEvent) error {
	return n.publish(ctx, EventBatchComposed, e)
}

func (n *RedisNotifier) publish(ctx context.Context, eventType string, payload interface{}) error {
	body, err := json.Marshal(envelope{Type: eventType, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	if err := n.client.Publish(ctx, n.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

var _ Notifier = (*RedisNotifier)(nil)
