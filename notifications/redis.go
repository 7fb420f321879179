package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "invoicer:notifications"

// RedisQueue is a list-backed queue that survives restarts and can be shared
// by several server processes.
type RedisQueue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
}

func CreateRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{client: client, key: key, pollTimeout: 5 * time.Second}
}

func (q *RedisQueue) Enqueue(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Notification, error) {
	for {
		result, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to dequeue notification: %w", err)
		}

		// BRPOP replies with the key followed by the value.
		var n Notification
		if err := json.Unmarshal([]byte(result[1]), &n); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %w", err)
		}
		return &n, nil
	}
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close leaves the shared client open; its owner closes it.
func (q *RedisQueue) Close() error {
	return nil
}
