package cache

import (
	"context"
	"sync"
	"time"

	"github.com/nutricam/backend/internal/domain"
)

// MemoryStore is a thread-safe in-memory nutrition cache. Rows are keyed
// by normalized query text and expire lazily: an expired row is never
// returned and is simply overwritten by the next upsert for its key.
type MemoryStore struct {
	data  map[string]*domain.CacheEntry
	mutex sync.RWMutex
	now   func() time.Time
}

// NewMemoryStore creates a new in-memory cache store.
func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{
		data: make(map[string]*domain.CacheEntry),
		now:  time.Now,
	}

	// Background sweep keeps the map from accumulating dead rows; reads
	// never depend on it.
	go store.sweepExpired()

	return store
}

// Get returns the entry for key, or domain.ErrCacheMiss when the key is
// absent or the entry has expired.
func (s *MemoryStore) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, ok := s.data[key]
	if !ok || entry.Expired(s.now()) {
		return nil, domain.ErrCacheMiss
	}
	return entry, nil
}

// GetMany resolves all keys in one pass. Missing and expired keys are
// simply absent from the returned map.
func (s *MemoryStore) GetMany(ctx context.Context, keys []string) (map[string]*domain.CacheEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	found := make(map[string]*domain.CacheEntry, len(keys))
	now := s.now()
	for _, key := range keys {
		if entry, ok := s.data[key]; ok && !entry.Expired(now) {
			found[key] = entry
		}
	}
	return found, nil
}

// Upsert stores the entry under its key, replacing any previous row.
// Last write wins; cached nutrition data is idempotent per key.
func (s *MemoryStore) Upsert(ctx context.Context, entry *domain.CacheEntry) error {
	if entry == nil || entry.Key == "" {
		return domain.ErrInvalidRequest
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data[entry.Key] = entry
	return nil
}

// Size returns the current number of rows, expired included.
func (s *MemoryStore) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data)
}

// sweepExpired removes expired rows periodically.
func (s *MemoryStore) sweepExpired() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mutex.Lock()
		now := s.now()
		for key, entry := range s.data {
			if entry.Expired(now) {
				delete(s.data, key)
			}
		}
		s.mutex.Unlock()
	}
}
