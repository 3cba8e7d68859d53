package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
)

type memoryItem struct {
	value     *domain.DashboardMetrics
	expiresAt time.Time
}

// MemoryStore is the in-process TTL store. Expired entries are unread
// immediately and swept by a janitor goroutine; there is no LRU
// eviction at this scale.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]memoryItem
	stopCh chan struct{}
	once   sync.Once
}

// NewMemoryStore creates a memory store and starts its janitor
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s := &MemoryStore{
		items:  make(map[string]memoryItem),
		stopCh: make(chan struct{}),
	}
	go s.janitor(cleanupInterval)
	return s
}

// Get retrieves a live entry
func (s *MemoryStore) Get(_ context.Context, key string) (*domain.DashboardMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.value, true
}

// Set stores an entry with its TTL
func (s *MemoryStore) Set(_ context.Context, key string, value *domain.DashboardMetrics, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryItem{value: value, expiresAt: time.Now().Add(ttl)}
}

// Close stops the janitor
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stopCh) })
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, item := range s.items {
				if now.After(item.expiresAt) {
					delete(s.items, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
