package viewer

import (
	"encoding/json"
	"math"
	"sync"

	"github.com/google/uuid"

	"scan-service/internal/geometry"
	"scan-service/internal/models"
)

const (
	// ClickThreshold is the max pointer displacement (normalized device
	// coordinates) between down and up for the gesture to count as a click
	// rather than an orbit drag.
	ClickThreshold = 0.01

	// surfaceOffset nudges a placed point along the face normal so the
	// marker never renders coplanar with the surface.
	surfaceOffset = 0.001
)

// Camera is the ray-casting state of the active view.
type Camera struct {
	Position geometry.Vec3 `json:"position"`
	Target   geometry.Vec3 `json:"target"`
	Up       geometry.Vec3 `json:"up"`
	FOV      float64       `json:"fov"`
	Aspect   float64       `json:"aspect"`
}

// Ray through the given normalized device coordinates (x, y in [-1, 1]).
func (c Camera) RayThroughNDC(x, y float64) (origin, dir geometry.Vec3) {
	forward := c.Target.Sub(c.Position).Normalize()
	up := c.Up
	if up.Length() == 0 {
		up = geometry.Vec3{Y: 1}
	}
	right := forward.Cross(up).Normalize()
	trueUp := right.Cross(forward)

	tanHalf := math.Tan(c.FOV * math.Pi / 360)
	dir = forward.
		Add(right.Scale(x * tanHalf * c.Aspect)).
		Add(trueUp.Scale(y * tanHalf)).
		Normalize()
	return c.Position, dir
}

// Annotator places landmarks on a decoded mesh surface via ray intersection.
// State is owned by one viewer session; landmarks are never persisted.
type Annotator struct {
	mu        sync.Mutex
	mesh      *geometry.Mesh
	camera    Camera
	downX     float64
	downY     float64
	hasDown   bool
	landmarks []models.Landmark
}

// NewAnnotator binds an annotator to the session's active mesh.
func NewAnnotator(mesh *geometry.Mesh, camera Camera) *Annotator {
	return &Annotator{mesh: mesh, camera: camera}
}

// SetCamera updates the ray-casting state after the user orbits.
func (a *Annotator) SetCamera(camera Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = camera
}

// PointerDown records the gesture start in normalized device coordinates.
func (a *Annotator) PointerDown(x, y float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.downX, a.downY = x, y
	a.hasDown = true
}

// PointerUp completes the gesture. A displacement within ClickThreshold and
// a positive ray/mesh intersection appends exactly one landmark and returns
// it; a drag or a miss returns nil.
func (a *Annotator) PointerUp(x, y float64) *models.Landmark {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.hasDown || a.mesh == nil {
		return nil
	}
	a.hasDown = false

	dx, dy := x-a.downX, y-a.downY
	if math.Sqrt(dx*dx+dy*dy) > ClickThreshold {
		return nil
	}

	origin, dir := a.camera.RayThroughNDC(x, y)
	point, normal, ok := nearestIntersection(a.mesh, origin, dir)
	if !ok {
		return nil
	}
	point = point.Add(normal.Scale(surfaceOffset))

	lm := models.Landmark{
		ID:       uuid.New(),
		Position: [3]float64{point.X, point.Y, point.Z},
	}
	a.landmarks = append(a.landmarks, lm)
	return &lm
}

// Remove deletes one landmark by id; reports whether it existed.
func (a *Annotator) Remove(id uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, lm := range a.landmarks {
		if lm.ID == id {
			a.landmarks = append(a.landmarks[:i], a.landmarks[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every landmark.
func (a *Annotator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.landmarks = nil
}

// Landmarks returns a snapshot in placement order.
func (a *Annotator) Landmarks() []models.Landmark {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.Landmark, len(a.landmarks))
	copy(out, a.landmarks)
	return out
}

// Export serializes the landmark set to the Grasshopper point contract.
// Coordinates are rounded to 6 decimals; count always equals len(points).
func (a *Annotator) Export() models.LandmarkExport {
	a.mu.Lock()
	defer a.mu.Unlock()

	points := make([][3]float64, 0, len(a.landmarks))
	for _, lm := range a.landmarks {
		points = append(points, [3]float64{
			round6(lm.Position[0]),
			round6(lm.Position[1]),
			round6(lm.Position[2]),
		})
	}
	return models.LandmarkExport{
		Points: points,
		Count:  len(points),
		Format: models.LandmarkExportFormat,
	}
}

// ExportJSON renders the export document. Same landmark set, same bytes.
func (a *Annotator) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(a.Export(), "", "  ")
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// nearestIntersection runs Möller–Trumbore over every facet and keeps the
// hit nearest the camera. Returns the hit point and the face normal.
func nearestIntersection(mesh *geometry.Mesh, origin, dir geometry.Vec3) (geometry.Vec3, geometry.Vec3, bool) {
	const epsilon = 1e-9
	bestT := math.Inf(1)
	var bestNormal geometry.Vec3
	found := false

	for _, tri := range mesh.Triangles {
		e1 := tri.V[1].Sub(tri.V[0])
		e2 := tri.V[2].Sub(tri.V[0])
		p := dir.Cross(e2)
		det := e1.Dot(p)
		if math.Abs(det) < epsilon {
			continue
		}
		inv := 1 / det
		s := origin.Sub(tri.V[0])
		u := s.Dot(p) * inv
		if u < 0 || u > 1 {
			continue
		}
		q := s.Cross(e1)
		v := dir.Dot(q) * inv
		if v < 0 || u+v > 1 {
			continue
		}
		t := e2.Dot(q) * inv
		if t > epsilon && t < bestT {
			bestT = t
			n := tri.Normal
			if n.Length() == 0 {
				n = tri.ComputedNormal()
			}
			// Face the normal toward the camera so the nudge lifts the
			// marker off the visible side.
			if n.Dot(dir) > 0 {
				n = n.Scale(-1)
			}
			bestNormal = n.Normalize()
			found = true
		}
	}
	if !found {
		return geometry.Vec3{}, geometry.Vec3{}, false
	}
	return origin.Add(dir.Scale(bestT)), bestNormal, true
}
