package models

import (
	"time"

	"github.com/google/uuid"
)

// Canonical scan types. The type column stays an open string tag because the
// vocabulary grew over the system's history; legacy tags are mapped through
// ScanTypeAliases so older rows remain interpretable.
const (
	TypeOriginalMesh  = "original-mesh"
	TypeCorrectedMesh = "corrected-mesh"
	TypeFinalMesh     = "final-mesh"
)

// ScanTypeAliases maps legacy type tags to their canonical form.
var ScanTypeAliases = map[string]string{
	"raw_file":        TypeOriginalMesh,
	"auto-correction": TypeCorrectedMesh,
}

// CanonicalTypes lists the known scan types in viewer slot order.
var CanonicalTypes = []string{TypeOriginalMesh, TypeCorrectedMesh, TypeFinalMesh}

// Scan represents the metadata of one uploaded or generated mesh artifact.
// File bytes live in object storage; the record only carries the URL.
type Scan struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PatientID uuid.UUID `gorm:"type:uuid;index:idx_scans_patient_type" json:"patient_id"`
	Type      string    `gorm:"index:idx_scans_patient_type" json:"type"`
	FileURL   string    `gorm:"column:file_url" json:"file_url"`
	Version   int       `gorm:"default:1" json:"version"`
	IsCurrent bool      `gorm:"index" json:"is_current"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanonicalType resolves legacy aliases to the canonical tag. Unknown tags
// pass through unchanged.
func CanonicalType(t string) string {
	if c, ok := ScanTypeAliases[t]; ok {
		return c
	}
	return t
}

// AliasesFor returns every tag (canonical plus legacy) that should match a
// lookup for the given canonical type.
func AliasesFor(canonical string) []string {
	tags := []string{canonical}
	for alias, c := range ScanTypeAliases {
		if c == canonical {
			tags = append(tags, alias)
		}
	}
	return tags
}

// IsKnownType reports whether t resolves to one of the canonical scan types.
func IsKnownType(t string) bool {
	c := CanonicalType(t)
	for _, k := range CanonicalTypes {
		if c == k {
			return true
		}
	}
	return false
}

// ProvenanceColor returns the display color for a scan type: neutral gray
// for raw uploads, green for corrected and final meshes.
func ProvenanceColor(t string) string {
	switch CanonicalType(t) {
	case TypeCorrectedMesh, TypeFinalMesh:
		return "#22c55e"
	default:
		return "#d3d2d0"
	}
}
