package caches

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"scan-service/internal/services/cache"
	"scan-service/internal/storage"
)

// RedisCache is the shared layer of the mesh byte cache, keyed mesh:{scanID}.
type RedisCache struct {
	client *storage.RedisClient
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewRedisCache(client *storage.RedisClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (rc *RedisCache) Name() string { return "REDIS" }

func redisKey(scanID uuid.UUID) string {
	return fmt.Sprintf("mesh:%s", scanID.String())
}

func (rc *RedisCache) Store(scanID uuid.UUID, data []byte) error {
	if err := rc.client.SetBytes(redisKey(scanID), data, rc.ttl); err != nil {
		return fmt.Errorf("failed to store mesh in Redis: %w", err)
	}
	return nil
}

func (rc *RedisCache) Get(scanID uuid.UUID) ([]byte, error) {
	data, err := rc.client.GetBytes(redisKey(scanID))
	if err != nil {
		return nil, fmt.Errorf("failed to read mesh from Redis: %w", err)
	}
	if data == nil {
		rc.misses.Add(1)
		return nil, nil
	}
	rc.hits.Add(1)
	return data, nil
}

func (rc *RedisCache) Exists(scanID uuid.UUID) (bool, error) {
	n, err := rc.client.Exists(redisKey(scanID))
	return n > 0, err
}

func (rc *RedisCache) Delete(scanID uuid.UUID) error {
	return rc.client.Delete(redisKey(scanID))
}

func (rc *RedisCache) Clear() error {
	keys, err := rc.client.Keys("mesh:*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rc.client.Delete(keys...)
}

func (rc *RedisCache) GetStats() cache.LayerStats {
	stats := cache.LayerStats{
		Name:   rc.Name(),
		Hits:   rc.hits.Load(),
		Misses: rc.misses.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	if keys, err := rc.client.Keys("mesh:*"); err == nil {
		stats.Objects = len(keys)
	}
	return stats
}
