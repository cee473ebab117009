package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/consent-lineage/consent-sync-service/domain"
)

const dedupKeyPrefix = "consent:attempt:"

// RedisDedup shares the duplicate-submission cache across server
// instances.
type RedisDedup struct {
	client *redis.Client
}

func NewRedisDedup(client *redis.Client) *RedisDedup {
	return &RedisDedup{client: client}
}

func (s *RedisDedup) Get(ctx context.Context, key string) (domain.Decision, bool, error) {
	value, err := s.client.Get(ctx, dedupKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return domain.Decision(value), true, nil
}

func (s *RedisDedup) Set(ctx context.Context, key string, decision domain.Decision, ttl time.Duration) error {
	if key == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	if err := s.client.Set(ctx, dedupKeyPrefix+key, string(decision), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}
