package cache

import "github.com/google/uuid"

// MeshCache is one layer of the mesh byte cache. Keys are scan ids; values
// are the raw STL bytes as stored, so a cache hit skips the object store on
// the viewer fetch path.
type MeshCache interface {
	Name() string
	Store(scanID uuid.UUID, data []byte) error
	Get(scanID uuid.UUID) ([]byte, error)
	Exists(scanID uuid.UUID) (bool, error)
	Delete(scanID uuid.UUID) error
	Clear() error
	GetStats() LayerStats
}

// LayerStats describes a layer's occupancy and hit rate.
type LayerStats struct {
	Name      string  `json:"name"`
	Objects   int     `json:"objects"`
	SizeBytes int64   `json:"sizeBytes"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hitRate"`
}
