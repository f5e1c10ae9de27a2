package models

import "github.com/google/uuid"

// Landmark is a user-placed 3D point on a mesh surface. Landmarks live only
// in the viewer session that created them and are exported on demand; they
// are never written to the scan store.
type Landmark struct {
	ID       uuid.UUID  `json:"id"`
	Position [3]float64 `json:"position"`
}

// LandmarkExportFormat is the fixed format tag expected by the downstream
// Grasshopper Point component.
const LandmarkExportFormat = "grasshopper_points"

// LandmarkExport is the one-way JSON contract for external CAD tooling.
type LandmarkExport struct {
	Points [][3]float64 `json:"points"`
	Count  int          `json:"count"`
	Format string       `json:"format"`
}
