package geometry

import "math"

// Vec3 is a point or direction in the mesh's local space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns the unit vector, or the zero vector for degenerate input.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Triangle is one facet: a stored normal plus three vertices, matching the
// STL facet layout.
type Triangle struct {
	Normal Vec3
	V      [3]Vec3
}

// ComputedNormal derives the facet normal from the winding order. Used when
// the stored normal is zero or inconsistent.
func (t Triangle) ComputedNormal() Vec3 {
	return t.V[1].Sub(t.V[0]).Cross(t.V[2].Sub(t.V[0])).Normalize()
}

// Mesh is an ephemeral, in-memory triangulated surface decoded from a scan's
// byte content. It is owned by the viewer session that decoded it and is
// never persisted.
type Mesh struct {
	Triangles []Triangle
}

// TriangleCount returns the number of facets.
func (m *Mesh) TriangleCount() int { return len(m.Triangles) }

// BoundingBox returns the axis-aligned bounds. An empty mesh yields zero
// bounds.
func (m *Mesh) BoundingBox() (min, max Vec3) {
	if len(m.Triangles) == 0 {
		return Vec3{}, Vec3{}
	}
	min = m.Triangles[0].V[0]
	max = min
	for _, t := range m.Triangles {
		for _, v := range t.V {
			min.X = math.Min(min.X, v.X)
			min.Y = math.Min(min.Y, v.Y)
			min.Z = math.Min(min.Z, v.Z)
			max.X = math.Max(max.X, v.X)
			max.Y = math.Max(max.Y, v.Y)
			max.Z = math.Max(max.Z, v.Z)
		}
	}
	return min, max
}

// Center returns the bounding box center.
func (m *Mesh) Center() Vec3 {
	min, max := m.BoundingBox()
	return min.Add(max).Scale(0.5)
}

// MaxDimension returns the largest bounding box edge.
func (m *Mesh) MaxDimension() float64 {
	min, max := m.BoundingBox()
	d := max.Sub(min)
	return math.Max(d.X, math.Max(d.Y, d.Z))
}

// ApplyScale scales every vertex uniformly about the origin. Used for unit
// conversion on correction responses (mm vs m).
func (m *Mesh) ApplyScale(s float64) {
	for i := range m.Triangles {
		for j := range m.Triangles[i].V {
			m.Triangles[i].V[j] = m.Triangles[i].V[j].Scale(s)
		}
	}
}

// FitTransform describes the uniform scale and recentering translation that
// maps a mesh into the viewport regardless of source units.
type FitTransform struct {
	Scale  float64 `json:"scale"`
	Offset Vec3    `json:"offset"`
}

// Fit computes the transform that recenters the mesh about the origin and
// scales its largest dimension to targetExtent. A degenerate mesh gets the
// identity transform.
func (m *Mesh) Fit(targetExtent float64) FitTransform {
	maxDim := m.MaxDimension()
	if maxDim == 0 {
		return FitTransform{Scale: 1}
	}
	center := m.Center()
	scale := targetExtent / maxDim
	return FitTransform{
		Scale:  scale,
		Offset: center.Scale(-scale),
	}
}
