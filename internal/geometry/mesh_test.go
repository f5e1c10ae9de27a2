package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBoxAndCenter(t *testing.T) {
	mesh := &Mesh{Triangles: []Triangle{
		{V: [3]Vec3{{X: -2, Y: 0, Z: 1}, {X: 4, Y: 2, Z: 1}, {X: 0, Y: 6, Z: 3}}},
	}}
	min, max := mesh.BoundingBox()
	assert.Equal(t, Vec3{X: -2, Y: 0, Z: 1}, min)
	assert.Equal(t, Vec3{X: 4, Y: 6, Z: 3}, max)
	assert.Equal(t, Vec3{X: 1, Y: 3, Z: 2}, mesh.Center())
	assert.Equal(t, 6.0, mesh.MaxDimension())
}

func TestBoundingBoxEmptyMesh(t *testing.T) {
	mesh := &Mesh{}
	min, max := mesh.BoundingBox()
	assert.Equal(t, Vec3{}, min)
	assert.Equal(t, Vec3{}, max)
}

func TestFitScalesLargestDimensionToTarget(t *testing.T) {
	// A 200-unit wide mesh centered at (100, 0, 0).
	mesh := &Mesh{Triangles: []Triangle{
		{V: [3]Vec3{{X: 0}, {X: 200}, {X: 100, Y: 10}}},
	}}
	fit := mesh.Fit(100)
	assert.InDelta(t, 0.5, fit.Scale, 1e-12)
	assert.InDelta(t, -50, fit.Offset.X, 1e-12)
	assert.InDelta(t, -2.5, fit.Offset.Y, 1e-12)
}

func TestFitDegenerateMeshIsIdentity(t *testing.T) {
	mesh := &Mesh{Triangles: []Triangle{
		{V: [3]Vec3{{X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}}},
	}}
	fit := mesh.Fit(100)
	assert.Equal(t, FitTransform{Scale: 1}, fit)
}

func TestApplyScale(t *testing.T) {
	mesh := &Mesh{Triangles: []Triangle{
		{V: [3]Vec3{{X: 1}, {Y: 2}, {Z: 3}}},
	}}
	mesh.ApplyScale(10)
	assert.Equal(t, Vec3{X: 10}, mesh.Triangles[0].V[0])
	assert.Equal(t, Vec3{Y: 20}, mesh.Triangles[0].V[1])
	assert.Equal(t, Vec3{Z: 30}, mesh.Triangles[0].V[2])
}

func TestComputedNormal(t *testing.T) {
	tri := Triangle{V: [3]Vec3{{}, {X: 1}, {Y: 1}}}
	assert.Equal(t, Vec3{Z: 1}, tri.ComputedNormal())
}

func TestNormalizeDegenerateVector(t *testing.T) {
	assert.Equal(t, Vec3{}, Vec3{}.Normalize())
	n := Vec3{X: 3, Y: 4}.Normalize()
	assert.InDelta(t, 1.0, n.Length(), 1e-12)
}
