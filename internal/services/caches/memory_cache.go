package caches

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"scan-service/internal/services/cache"
)

type memoryEntry struct {
	data      []byte
	createdAt time.Time
}

// MemoryCache is the in-process layer of the mesh byte cache. Entries expire
// by TTL and the oldest entry is evicted when the size cap is hit.
type MemoryCache struct {
	mu          sync.RWMutex
	entries     map[uuid.UUID]*memoryEntry
	maxSize     int64
	currentSize int64
	ttl         time.Duration

	hits   int64
	misses int64
}

func NewMemoryCache(maxSizeBytes int64, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[uuid.UUID]*memoryEntry),
		maxSize: maxSizeBytes,
		ttl:     ttl,
	}
}

func (mc *MemoryCache) Name() string { return "MEMORY" }

func (mc *MemoryCache) Store(scanID uuid.UUID, data []byte) error {
	size := int64(len(data))
	if size > mc.maxSize {
		return fmt.Errorf("mesh of %d bytes exceeds memory cache capacity", size)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if old, ok := mc.entries[scanID]; ok {
		mc.currentSize -= int64(len(old.data))
	}
	for mc.currentSize+size > mc.maxSize {
		if !mc.evictOldestLocked() {
			break
		}
	}
	mc.entries[scanID] = &memoryEntry{data: data, createdAt: time.Now()}
	mc.currentSize += size
	return nil
}

func (mc *MemoryCache) Get(scanID uuid.UUID) ([]byte, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.entries[scanID]
	if !ok || time.Since(entry.createdAt) > mc.ttl {
		if ok {
			mc.removeLocked(scanID)
		}
		mc.misses++
		return nil, nil
	}
	mc.hits++
	return entry.data, nil
}

func (mc *MemoryCache) Exists(scanID uuid.UUID) (bool, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	entry, ok := mc.entries[scanID]
	return ok && time.Since(entry.createdAt) <= mc.ttl, nil
}

func (mc *MemoryCache) Delete(scanID uuid.UUID) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.removeLocked(scanID)
	return nil
}

func (mc *MemoryCache) Clear() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.entries = make(map[uuid.UUID]*memoryEntry)
	mc.currentSize = 0
	return nil
}

func (mc *MemoryCache) GetStats() cache.LayerStats {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	stats := cache.LayerStats{
		Name:      mc.Name(),
		Objects:   len(mc.entries),
		SizeBytes: mc.currentSize,
		Hits:      mc.hits,
		Misses:    mc.misses,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

func (mc *MemoryCache) removeLocked(scanID uuid.UUID) {
	if entry, ok := mc.entries[scanID]; ok {
		mc.currentSize -= int64(len(entry.data))
		delete(mc.entries, scanID)
	}
}

func (mc *MemoryCache) evictOldestLocked() bool {
	var oldest uuid.UUID
	var oldestAt time.Time
	found := false
	for id, entry := range mc.entries {
		if !found || entry.createdAt.Before(oldestAt) {
			oldest = id
			oldestAt = entry.createdAt
			found = true
		}
	}
	if found {
		mc.removeLocked(oldest)
	}
	return found
}
