package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix       = "idempotency:"
	processingValue = "processing"
)

// RedisStore keeps idempotency state in Redis: SETNX takes the key, SET stores the result
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis backed store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Acquire(ctx context.Context, key string, lockTTL time.Duration) (bool, *Result, error) {
	storageKey := keyPrefix + key
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, storageKey, processingValue, lockTTL).Result()
		if err != nil {
			return false, nil, fmt.Errorf("idempotency acquire: %w", err)
		}
		if ok {
			return true, nil, nil
		}

		val, err := s.client.Get(ctx, storageKey).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return false, nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if val == processingValue {
			return false, nil, nil
		}

		var res Result
		if err := json.Unmarshal([]byte(val), &res); err != nil {
			return false, nil, fmt.Errorf("idempotency decode: %w", err)
		}
		return false, &res, nil
	}
	return false, nil, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, result *Result, ttl time.Duration) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("idempotency encode: %w", err)
	}
	return s.client.Set(ctx, keyPrefix+key, payload, ttl).Err()
}

func (s *RedisStore) Abandon(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}
