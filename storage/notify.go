package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-app/domain"
)

// RedisNotifier publishes board events on a pub/sub channel so that other
// processes can react to state changes.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier publishes on channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

// Publish sends ev to subscribers.
func (n *RedisNotifier) Publish(ctx context.Context, ev domain.BoardEvent) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return n.client.Publish(ctx, n.channel, data).Err()
}

// Subscribe delivers events to handle until ctx is done, resubscribing when
// the channel is closed underneath it.
func (n *RedisNotifier) Subscribe(ctx context.Context, logger *log.Logger, handle func(domain.BoardEvent)) {
	for {
		sub := n.client.Subscribe(ctx, n.channel)
		n.consume(ctx, logger, sub.Channel(), handle)
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (n *RedisNotifier) consume(ctx context.Context, logger *log.Logger, ch <-chan *redis.Message, handle func(domain.BoardEvent)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev domain.BoardEvent
			if err := sonic.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Errorf("unable to parse board event: %v", err)
				continue
			}
			handle(ev)
		}
	}
}
