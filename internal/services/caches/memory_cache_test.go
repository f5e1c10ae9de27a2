package caches

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheStoreAndGet(t *testing.T) {
	mc := NewMemoryCache(1<<20, time.Minute)
	id := uuid.New()

	require.NoError(t, mc.Store(id, []byte("mesh-bytes")))

	data, err := mc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("mesh-bytes"), data)

	exists, err := mc.Exists(id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryCacheMissReturnsNilNil(t *testing.T) {
	mc := NewMemoryCache(1<<20, time.Minute)
	data, err := mc.Get(uuid.New())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	mc := NewMemoryCache(1<<20, 10*time.Millisecond)
	id := uuid.New()
	require.NoError(t, mc.Store(id, []byte("mesh-bytes")))

	time.Sleep(25 * time.Millisecond)

	data, err := mc.Get(id)
	require.NoError(t, err)
	assert.Nil(t, data)

	stats := mc.GetStats()
	assert.Equal(t, 0, stats.Objects)
	assert.Equal(t, int64(0), stats.SizeBytes)
}

func TestMemoryCacheRejectsOversizedEntry(t *testing.T) {
	mc := NewMemoryCache(8, time.Minute)
	err := mc.Store(uuid.New(), []byte("way more than eight bytes"))
	assert.Error(t, err)
}

func TestMemoryCacheEvictsOldestAtCapacity(t *testing.T) {
	mc := NewMemoryCache(20, time.Minute)
	first := uuid.New()
	second := uuid.New()
	third := uuid.New()

	require.NoError(t, mc.Store(first, []byte("0123456789")))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, mc.Store(second, []byte("0123456789")))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, mc.Store(third, []byte("0123456789")))

	data, err := mc.Get(first)
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = mc.Get(third)
	require.NoError(t, err)
	assert.NotNil(t, data)

	stats := mc.GetStats()
	assert.Equal(t, 2, stats.Objects)
	assert.Equal(t, int64(20), stats.SizeBytes)
}

func TestMemoryCacheOverwriteReleasesOldSize(t *testing.T) {
	mc := NewMemoryCache(16, time.Minute)
	id := uuid.New()
	require.NoError(t, mc.Store(id, []byte("0123456789")))
	require.NoError(t, mc.Store(id, []byte("abcdefghij")))

	stats := mc.GetStats()
	assert.Equal(t, 1, stats.Objects)
	assert.Equal(t, int64(10), stats.SizeBytes)

	data, err := mc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdefghij"), data)
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	mc := NewMemoryCache(1<<20, time.Minute)
	id := uuid.New()
	require.NoError(t, mc.Store(id, []byte("mesh-bytes")))

	require.NoError(t, mc.Delete(id))
	data, err := mc.Get(id)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, mc.Store(uuid.New(), []byte("a")))
	require.NoError(t, mc.Store(uuid.New(), []byte("b")))
	require.NoError(t, mc.Clear())
	assert.Equal(t, 0, mc.GetStats().Objects)
}

func TestMemoryCacheStats(t *testing.T) {
	mc := NewMemoryCache(1<<20, time.Minute)
	id := uuid.New()
	require.NoError(t, mc.Store(id, []byte("mesh-bytes")))

	_, _ = mc.Get(id)         // hit
	_, _ = mc.Get(uuid.New()) // miss

	stats := mc.GetStats()
	assert.Equal(t, "MEMORY", stats.Name)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}
