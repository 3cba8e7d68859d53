package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
)

// RedisStore keeps aggregation results in redis so several dashboard
// instances can share one cache. Entries are JSON documents with a
// server-side TTL.
type RedisStore struct {
	client *redis.Client
	log    *logrus.Entry
}

// NewRedisStore connects to redis and verifies the connection
func NewRedisStore(redisURL string, log *logrus.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		log:    log.WithField("component", "cache"),
	}, nil
}

// Get retrieves and decodes a live entry; decode failures count as
// misses so a schema change never wedges the cache
func (s *RedisStore) Get(ctx context.Context, key string) (*domain.DashboardMetrics, bool) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.WithError(err).Warn("Redis get failed, treating as miss")
		}
		return nil, false
	}

	var value domain.DashboardMetrics
	if err := json.Unmarshal(raw, &value); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Stale cache entry discarded")
		return nil, false
	}
	return &value, true
}

// Set stores an entry; failures are logged and dropped, the next
// request recomputes
func (s *RedisStore) Set(ctx context.Context, key string, value *domain.DashboardMetrics, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.WithError(err).Error("Encode cache entry failed")
		return
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		s.log.WithError(err).Warn("Redis set failed")
	}
}

// Close releases the redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
