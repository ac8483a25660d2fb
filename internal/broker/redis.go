package broker

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// Redis appends each message to a Redis stream named after the topic.
type Redis struct {
	client *redis.Client
	maxLen int64
}

// NewRedis creates a Redis Streams bus. The client connects lazily.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: -1,
	})
	return &Redis{client: client, maxLen: cfg.StreamMaxLen}, nil
}

func (r *Redis) Publish(ctx context.Context, topic string, msg Message) error {
	values := make([]any, 0, 4+2*len(msg.Headers))
	values = append(values, "key", string(msg.Key), "value", string(msg.Value))
	for k, v := range msg.Headers {
		values = append(values, k, v)
	}

	args := &redis.XAddArgs{
		Stream: topic,
		Values: values,
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return errors.Wrap(err, "redis xadd")
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
