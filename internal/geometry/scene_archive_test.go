package geometry

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scan-service/internal/pipeline"
)

func TestSceneArchiveRoundTrip(t *testing.T) {
	mesh := unitTriangleMesh()
	data := EncodeSceneArchive(UnitsMillimeters, mesh)

	require.True(t, IsSceneArchive(data))
	arc, err := DecodeSceneArchive(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), arc.Version)
	assert.Equal(t, UnitsMillimeters, arc.Units)
	require.Len(t, arc.Meshes, 1)
	assert.Equal(t, 2, arc.Meshes[0].TriangleCount())
}

func TestSceneArchiveMergedAppliesUnitScale(t *testing.T) {
	mesh := &Mesh{Triangles: []Triangle{
		{V: [3]Vec3{{}, {X: 1}, {Y: 1}}},
	}}
	data := EncodeSceneArchive(UnitsMeters, mesh)

	arc, err := DecodeSceneArchive(data)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, arc.UnitScale())

	merged := arc.Merged()
	assert.InDelta(t, 1000, merged.Triangles[0].V[1].X, 1e-6)
}

func TestSceneArchiveMergedFlattensMeshes(t *testing.T) {
	a := unitTriangleMesh()
	b := unitTriangleMesh()
	data := EncodeSceneArchive(UnitsCentimeters, a, b)

	arc, err := DecodeSceneArchive(data)
	require.NoError(t, err)
	require.Len(t, arc.Meshes, 2)

	merged := arc.Merged()
	assert.Equal(t, 4, merged.TriangleCount())
	// Centimeters scale into millimeters.
	assert.InDelta(t, 10, merged.Triangles[0].V[1].X, 1e-6)
}

func TestDecodeSceneArchiveRejectsBadMagic(t *testing.T) {
	_, err := DecodeSceneArchive([]byte("NOPExxxxxxxx"))
	assert.True(t, errors.Is(err, pipeline.ErrCorruptFile))
}

func TestDecodeSceneArchiveRejectsFutureVersion(t *testing.T) {
	data := EncodeSceneArchive(UnitsMillimeters, unitTriangleMesh())
	data[4] = 99
	_, err := DecodeSceneArchive(data)
	assert.True(t, errors.Is(err, pipeline.ErrCorruptFile))
}

func TestDecodeSceneArchiveRejectsOverrunningChunk(t *testing.T) {
	data := EncodeSceneArchive(UnitsMillimeters, unitTriangleMesh())
	_, err := DecodeSceneArchive(data[:len(data)-4])
	assert.True(t, errors.Is(err, pipeline.ErrCorruptFile))
}

func TestDecodeSceneArchiveRejectsEmptyScene(t *testing.T) {
	data := EncodeSceneArchive(UnitsMillimeters)
	_, err := DecodeSceneArchive(data)
	assert.True(t, errors.Is(err, pipeline.ErrCorruptFile))
}

func TestIsSceneArchiveDoesNotMatchSTL(t *testing.T) {
	assert.False(t, IsSceneArchive(EncodeBinarySTL(unitTriangleMesh())))
}
