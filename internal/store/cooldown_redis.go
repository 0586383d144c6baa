package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cooldownKeyPrefix = "saathi:escalation:cooldown:"

// RedisCooldownStore implements the cooldown check-and-mark with SET NX PX,
// which is atomic on the server, so the dedupe guarantee holds across
// multiple pipeline processes sharing one Redis.
type RedisCooldownStore struct {
	client *redis.Client
}

// NewRedisCooldownStore connects to Redis and verifies the connection.
func NewRedisCooldownStore(ctx context.Context, redisURL string) (*RedisCooldownStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisCooldownStore{client: client}, nil
}

// TryAcquire wins only when no key exists; the key expires with the window.
func (s *RedisCooldownStore) TryAcquire(ctx context.Context, userID string, window time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, cooldownKeyPrefix+userID, time.Now().UTC().Format(time.RFC3339Nano), window).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown setnx: %w", err)
	}
	return ok, nil
}

func (s *RedisCooldownStore) Close() error {
	return s.client.Close()
}
