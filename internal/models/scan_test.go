package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalTypeResolvesLegacyAliases(t *testing.T) {
	assert.Equal(t, TypeOriginalMesh, CanonicalType("raw_file"))
	assert.Equal(t, TypeCorrectedMesh, CanonicalType("auto-correction"))
	assert.Equal(t, TypeOriginalMesh, CanonicalType(TypeOriginalMesh))
	// Unknown tags pass through so old rows stay listable.
	assert.Equal(t, "cbct-export", CanonicalType("cbct-export"))
}

func TestAliasesForIncludesLegacyTags(t *testing.T) {
	assert.ElementsMatch(t, []string{TypeOriginalMesh, "raw_file"}, AliasesFor(TypeOriginalMesh))
	assert.ElementsMatch(t, []string{TypeCorrectedMesh, "auto-correction"}, AliasesFor(TypeCorrectedMesh))
	assert.Equal(t, []string{TypeFinalMesh}, AliasesFor(TypeFinalMesh))
}

func TestIsKnownType(t *testing.T) {
	assert.True(t, IsKnownType(TypeOriginalMesh))
	assert.True(t, IsKnownType("raw_file"))
	assert.True(t, IsKnownType("auto-correction"))
	assert.False(t, IsKnownType("cbct-export"))
	assert.False(t, IsKnownType(""))
}

func TestProvenanceColor(t *testing.T) {
	assert.Equal(t, "#d3d2d0", ProvenanceColor(TypeOriginalMesh))
	assert.Equal(t, "#d3d2d0", ProvenanceColor("raw_file"))
	assert.Equal(t, "#22c55e", ProvenanceColor(TypeCorrectedMesh))
	assert.Equal(t, "#22c55e", ProvenanceColor("auto-correction"))
	assert.Equal(t, "#22c55e", ProvenanceColor(TypeFinalMesh))
}
