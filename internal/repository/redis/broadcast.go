package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-authz/internal/core/domain"
	"github.com/arklim/social-platform-authz/internal/core/port"
)

// Broadcaster carries session events between processes over a Redis
// pub/sub channel. Redis pub/sub is fire and forget: subscribers that are
// down miss events, and nothing is redelivered, which matches the session
// channel contract.
type Broadcaster struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewBroadcaster constructs a Redis-backed session channel.
func NewBroadcaster(client *redis.Client, channel string, logger *zap.Logger) *Broadcaster {
	if channel == "" {
		channel = "authz:session"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{client: client, channel: channel, logger: logger}
}

// Publish sends the event on the channel.
func (b *Broadcaster) Publish(ctx context.Context, event domain.SessionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish session event: %w", err)
	}
	return nil
}

// Subscribe delivers channel events to the handler until ctx is
// cancelled. Messages that fail to decode are logged and dropped.
func (b *Broadcaster) Subscribe(ctx context.Context, handler func(domain.SessionEvent)) error {
	sub := b.client.Subscribe(ctx, b.channel)

	// Force the subscription to be established before returning so the
	// caller cannot miss events published right after Subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe session channel: %w", err)
	}

	go func() {
		defer func() {
			if err := sub.Close(); err != nil {
				b.logger.Warn("close session subscription", zap.Error(err))
			}
		}()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event domain.SessionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("drop malformed session event", zap.Error(err))
					continue
				}
				b.deliver(handler, event)
			}
		}
	}()

	return nil
}

func (b *Broadcaster) deliver(handler func(domain.SessionEvent), event domain.SessionEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("session event handler panicked", zap.Any("panic", r))
		}
	}()
	handler(event)
}

var _ port.Broadcaster = (*Broadcaster)(nil)
