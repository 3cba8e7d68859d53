package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
)

// Store is a TTL-keyed backing store for aggregation results. Entries
// are immutable once written and expire strictly by TTL.
type Store interface {
	Get(ctx context.Context, key string) (*domain.DashboardMetrics, bool)
	Set(ctx context.Context, key string, value *domain.DashboardMetrics, ttl time.Duration)
}

// Cache fronts the metrics aggregator with a TTL store and a
// single-flight slot per key: concurrent requests for the same
// fingerprint share one in-progress computation instead of issuing
// duplicate GLPI calls.
type Cache struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
	log   *logrus.Entry
}

// New creates a cache over the given store
func New(store Store, ttl time.Duration, log *logrus.Logger) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{
		store: store,
		ttl:   ttl,
		log:   log.WithField("component", "cache"),
	}
}

// GetOrCompute returns the cached value for key, computing and storing
// it on miss. Computation failures are not cached.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (*domain.DashboardMetrics, error)) (*domain.DashboardMetrics, error) {
	if value, ok := c.store.Get(ctx, key); ok {
		c.log.WithField("key", key).Debug("Cache hit")
		return value, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		// a concurrent flight may have filled the store while this
		// caller waited on the slot
		if value, ok := c.store.Get(ctx, key); ok {
			return value, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.store.Set(ctx, key, value, c.ttl)
		c.log.WithField("key", key).Debug("Cache filled")
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.DashboardMetrics), nil
}
