package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the lightweight feed transport: one pub/sub channel,
// fire-and-forget delivery. Missed events are recovered by the next
// full reload, so the weaker delivery guarantee is acceptable here.
type Redis struct {
	client  *redis.Client
	channel string
}

func NewRedis(addr, password, channel string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Redis{client: client, channel: channel}, nil
}

func (f *Redis) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, body).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (f *Redis) Subscribe(ctx context.Context, handler func(Event) error) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	slog.InfoContext(ctx, "Subscribed to change events", "channel", f.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription channel closed")
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal change event", "error", err)
				continue
			}
			if err := handler(ev); err != nil {
				// No redelivery on pub/sub; the next full reload heals.
				slog.ErrorContext(ctx, "Failed to handle change event",
					"error", err,
					"kind", ev.Kind,
					"table", ev.Table)
			}
		}
	}
}

func (f *Redis) Close() error { return f.client.Close() }
