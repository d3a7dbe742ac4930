package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisStatusStore stores crawl status in Redis as JSON with a TTL.
type RedisStatusStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStatusStore initialises a Redis-backed StatusStore.
func NewRedisStatusStore(addr, prefix string, ttl time.Duration) *RedisStatusStore {
	return &RedisStatusStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
		ttl:    ttl,
	}
}

// Ping checks the connection.
func (s *RedisStatusStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStatusStore) Close() error {
	return s.client.Close()
}

// Set writes the status record to Redis.
func (s *RedisStatusStore) Set(ctx context.Context, status models.CrawlStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal crawl status: %w", err)
	}
	return s.client.Set(ctx, s.prefix+status.JobID, payload, s.ttl).Err()
}

// Get reads the status record from Redis.
func (s *RedisStatusStore) Get(ctx context.Context, jobID string) (*models.CrawlStatus, error) {
	val, err := s.client.Get(ctx, s.prefix+jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStatusNotFound
		}
		return nil, err
	}

	var status models.CrawlStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return nil, fmt.Errorf("decode crawl status %s: %w", jobID, err)
	}
	return &status, nil
}
