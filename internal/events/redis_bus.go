package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

// RedisEventBus implements the change-notification bus over Redis Pub/Sub.
// Every repository mutation is published as an Envelope; consumers register
// handlers per channel. Delivery is at-least-once from the consumer's point
// of view (reconnects can replay), so handlers must be idempotent.
type RedisEventBus struct {
	client   *redis.Client
	resolver ChannelResolver
	log      *logger.Logger
	handlers map[string][]Handler
	pubsub   *redis.PubSub
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	running  bool
}

func NewRedisEventBus(client *redis.Client, resolver ChannelResolver, log *logger.Logger) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:   client,
		resolver: resolver,
		log:      log,
		handlers: make(map[string][]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (b *RedisEventBus) Start() error {
	b.running = true
	b.pubsub = b.client.PSubscribe(b.ctx, "channel:*")
	go b.listen()
	return nil
}

func (b *RedisEventBus) Stop() error {
	b.cancel()
	b.running = false
	if b.pubsub != nil {
		b.pubsub.Close()
	}
	return nil
}

func (b *RedisEventBus) Publish(ctx context.Context, env Envelope) error {
	if !b.running {
		return fmt.Errorf("event bus not started")
	}

	channels := b.resolver.ResolveChannels(env)
	if len(channels) == 0 {
		return nil
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	for _, channel := range channels {
		if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
			if b.log != nil {
				b.log.Errorf("failed to publish to %s: %v", channel, err)
			}
		}
	}
	return nil
}

// Subscribe registers a handler for a channel. Handlers run on the bus
// goroutine; anything slow should hop to its own goroutine.
func (b *RedisEventBus) Subscribe(channel string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], handler)
}

func (b *RedisEventBus) listen() {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg := <-ch:
			if msg == nil {
				continue
			}

			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				if b.log != nil {
					b.log.Warnf("dropping malformed envelope on %s: %v", msg.Channel, err)
				}
				continue
			}

			b.dispatch(msg.Channel, env)
		}
	}
}

func (b *RedisEventBus) dispatch(channel string, env Envelope) {
	b.mu.RLock()
	handlers := b.handlers[channel]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(b.ctx, env)
	}
}
