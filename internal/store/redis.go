package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const statsCacheKey = "newsletter:stats"

type RedisStore struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetCachedStats returns nil, nil on a cache miss.
func (s *RedisStore) GetCachedStats(ctx context.Context) (*domain.SubscriberStats, error) {
	raw, err := s.client.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cached stats: %w", err)
	}

	var stats domain.SubscriberStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("decoding cached stats: %w", err)
	}
	return &stats, nil
}

func (s *RedisStore) SetCachedStats(ctx context.Context, stats domain.SubscriberStats, ttl time.Duration) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	if err := s.client.Set(ctx, statsCacheKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("caching stats: %w", err)
	}
	return nil
}

func (s *RedisStore) InvalidateStats(ctx context.Context) error {
	if err := s.client.Del(ctx, statsCacheKey).Err(); err != nil {
		return fmt.Errorf("invalidating cached stats: %w", err)
	}
	return nil
}
