package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"SlotChat/internal/learning"
)

// RedisExample is the JSON document pushed for each completed intent
type RedisExample struct {
	Intent      string            `json:"intent"`
	Data        map[string]string `json:"data"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// RedisLearner queues examples on a Redis list for an offline trainer
type RedisLearner struct {
	client *redis.Client
	key    string
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisLearner connects to addr and pushes to key
func NewRedisLearner(addr, key string, logger *slog.Logger) *RedisLearner {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &RedisLearner{client: rdb, key: key, logger: logger, now: time.Now}
}

// Name returns the learner identifier
func (l *RedisLearner) Name() string {
	return "redis"
}

// Ping tests the Redis connection
func (l *RedisLearner) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Submit appends the example to the list
func (l *RedisLearner) Submit(ctx context.Context, intent string, data map[string]string) learning.Outcome {
	payload, err := json.Marshal(RedisExample{Intent: intent, Data: data, SubmittedAt: l.now().UTC()})
	if err != nil {
		return learning.Failed(fmt.Errorf("failed to marshal example: %w", err))
	}

	n, err := l.client.RPush(ctx, l.key, payload).Result()
	if err != nil {
		return learning.Failed(fmt.Errorf("failed to push example: %w", err))
	}

	l.logger.InfoContext(ctx, "queued learning example", "key", l.key, "queue_length", n)
	return learning.Succeeded(fmt.Sprintf("queued at position %d", n))
}

// Close closes the Redis connection
func (l *RedisLearner) Close() error {
	return l.client.Close()
}
