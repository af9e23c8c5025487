// internal/bus/redis.go
package bus

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisBus carries sync messages over a Redis pub/sub channel, letting store
// instances in separate processes on the same machine converge.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	log     *logrus.Logger
}

// NewRedisBus wraps an already-connected client. The caller owns the client's
// lifecycle.
func NewRedisBus(rdb *redis.Client, channel string, log *logrus.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, channel: channel, log: log}
}

// Publish sends msg to the sync channel.
func (b *RedisBus) Publish(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe starts a receive loop for the sync channel. Redis echoes a
// publisher's own messages back to it; filtering by origin is the
// subscriber's job.
func (b *RedisBus) Subscribe(fn func(Message)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := b.rdb.Subscribe(ctx, b.channel)

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warnf("bus: dropping undecodable sync message: %v", err)
					continue
				}
				fn(msg)
			}
		}
	}()

	return cancel
}
