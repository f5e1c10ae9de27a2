package viewer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scan-service/internal/geometry"
	"scan-service/internal/models"
)

func testMeshBytes() []byte {
	return geometry.EncodeBinarySTL(&geometry.Mesh{Triangles: []geometry.Triangle{
		{
			Normal: geometry.Vec3{Z: 1},
			V: [3]geometry.Vec3{
				{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10},
			},
		},
	}})
}

func TestLoadSlotsIsolatesFailures(t *testing.T) {
	scanID := uuid.New()
	source := func(ctx context.Context, scanType string) (uuid.UUID, []byte, error) {
		switch scanType {
		case models.TypeOriginalMesh:
			return scanID, testMeshBytes(), nil
		case models.TypeCorrectedMesh:
			return uuid.Nil, nil, ErrNoScan
		default:
			return uuid.Nil, nil, errors.New("storage unreachable")
		}
	}

	slots := NewComposer().LoadSlots(context.Background(), models.CanonicalTypes, source)
	require.Len(t, slots, 3)

	loaded := slots[models.TypeOriginalMesh]
	assert.Equal(t, SlotLoaded, loaded.State)
	assert.Equal(t, scanID, loaded.ScanID)
	require.NotNil(t, loaded.Mesh)
	assert.Equal(t, 1, loaded.Mesh.TriangleCount())

	assert.Equal(t, SlotEmpty, slots[models.TypeCorrectedMesh].State)

	failed := slots[models.TypeFinalMesh]
	assert.Equal(t, SlotFailed, failed.State)
	assert.NotEmpty(t, failed.Error)
	assert.Nil(t, failed.Mesh)
}

func TestLoadSlotsCorruptBytesFailOnlyTheirSlot(t *testing.T) {
	source := func(ctx context.Context, scanType string) (uuid.UUID, []byte, error) {
		if scanType == models.TypeOriginalMesh {
			return uuid.New(), []byte("not an stl"), nil
		}
		return uuid.New(), testMeshBytes(), nil
	}

	slots := NewComposer().LoadSlots(context.Background(), models.CanonicalTypes, source)
	assert.Equal(t, SlotFailed, slots[models.TypeOriginalMesh].State)
	assert.Equal(t, SlotLoaded, slots[models.TypeCorrectedMesh].State)
	assert.Equal(t, SlotLoaded, slots[models.TypeFinalMesh].State)
}

func TestLoadSlotsAppliesProvenanceColorsAndFit(t *testing.T) {
	source := func(ctx context.Context, scanType string) (uuid.UUID, []byte, error) {
		return uuid.New(), testMeshBytes(), nil
	}
	slots := NewComposer().LoadSlots(context.Background(), models.CanonicalTypes, source)

	assert.Equal(t, "#d3d2d0", slots[models.TypeOriginalMesh].Color)
	assert.Equal(t, "#22c55e", slots[models.TypeCorrectedMesh].Color)

	// The 10-unit mesh is scaled up to the target extent.
	fit := slots[models.TypeOriginalMesh].Fit
	assert.InDelta(t, TargetExtent/10, fit.Scale, 1e-9)
}

func TestComposeListsOnlyLoadedMeshes(t *testing.T) {
	composer := NewComposer()
	source := func(ctx context.Context, scanType string) (uuid.UUID, []byte, error) {
		if scanType == models.TypeFinalMesh {
			return uuid.Nil, nil, ErrNoScan
		}
		return uuid.New(), testMeshBytes(), nil
	}
	slots := composer.LoadSlots(context.Background(), models.CanonicalTypes, source)

	scene := composer.Compose(slots)
	assert.Len(t, scene.Meshes, 2)
	assert.Len(t, scene.Slots, 3)
	assert.Equal(t, 60.0, scene.Camera.FOV)
	assert.Len(t, scene.Lights, 4)
	assert.Equal(t, "orbit", scene.Controls)
	assert.Equal(t, "bottom-right", scene.Gizmo)

	// Slot order in the mesh list follows the canonical type order.
	assert.Equal(t, models.TypeOriginalMesh, scene.Meshes[0].Type)
	assert.Equal(t, models.TypeCorrectedMesh, scene.Meshes[1].Type)
}

func TestLoadSlotsResolvesAliasTypes(t *testing.T) {
	source := func(ctx context.Context, scanType string) (uuid.UUID, []byte, error) {
		return uuid.New(), testMeshBytes(), nil
	}
	slots := NewComposer().LoadSlots(context.Background(), []string{"raw_file"}, source)
	require.Contains(t, slots, "raw_file")
	assert.Equal(t, models.TypeOriginalMesh, slots["raw_file"].Type)
}
