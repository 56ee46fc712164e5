package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so that every API
// replica sees events published by the others.
type RedisBroker struct {
	rdb *redis.Client
	log zerolog.Logger

	mu   sync.Mutex
	subs map[chan Event]*redis.PubSub
}

func NewRedisBroker(url string, log zerolog.Logger) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBroker{rdb: rdb, log: log.With().Str("component", "redis-broker").Logger(), subs: map[chan Event]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(topic string) chan Event {
	ch := make(chan Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(topic))
	// wait for the subscription confirmation
	if _, err := ps.Receive(ctx); err != nil {
		b.log.Warn().Err(err).Str("topic", topic).Msg("subscribe failed")
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.log.Debug().Err(err).Str("channel", msg.Channel).Msg("dropping malformed event")
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the Redis subscription; the reader goroutine then closes ch.
func (b *RedisBroker) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	ps := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(topic string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(topic), data).Err(); err != nil {
		b.log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
	}
}

func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Close() error { return b.rdb.Close() }

func (b *RedisBroker) chanName(topic string) string { return "patrolnav:" + topic }
