package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"roomly/pkg/logger"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "roomly:idempotency:"

	// redisPendingMarker is stored under a key while its first request runs.
	redisPendingMarker = "pending"
)

// RedisIdempotencyStore shares cached responses between replicas. Expiry is
// delegated to Redis.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl, log: log}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("Idempotency lookup failed", "error", err)
		}
		return nil, false
	}

	if string(data) == redisPendingMarker {
		return nil, false
	}

	var cached CachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		s.log.Warn("Discarding malformed idempotency entry", "error", err)
		return nil, false
	}
	return &cached, true
}

// Reserve claims the key with SETNX so that only one replica runs the
// request. When Redis is unreachable the request is let through.
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string) bool {
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, redisPendingMarker, pendingTTL).Result()
	if err != nil {
		s.log.Warn("Idempotency reservation failed", "error", err)
		return true
	}
	return ok
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		s.log.Warn("Failed to release idempotency key", "error", err)
	}
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, response *CachedResponse) {
	response.CreatedAt = time.Now()

	data, err := json.Marshal(response)
	if err != nil {
		s.log.Warn("Failed to encode idempotency entry", "error", err)
		return
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		s.log.Warn("Failed to store idempotency entry", "error", err)
	}
}

// Stop is a no-op; the client is owned by pkg/client.
func (s *RedisIdempotencyStore) Stop() {}
