package viewer

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"scan-service/internal/geometry"
	"scan-service/internal/models"
)

// ErrNoScan is returned by a MeshSource when the patient has no scan of the
// requested type; the slot stays Empty and offers an upload action.
var ErrNoScan = errors.New("no scan available")

// SlotState is the per-mesh-slot state machine:
// Empty → Loading → Loaded | Failed.
type SlotState string

const (
	SlotEmpty   SlotState = "empty"
	SlotLoading SlotState = "loading"
	SlotLoaded  SlotState = "loaded"
	SlotFailed  SlotState = "failed"
)

// Slot is one scan type's viewer slot. Each slot owns its decoded geometry
// exclusively; nothing is shared between slots.
type Slot struct {
	Type   string                `json:"type"`
	State  SlotState             `json:"state"`
	Color  string                `json:"color"`
	ScanID uuid.UUID             `json:"scan_id,omitempty"`
	Fit    geometry.FitTransform `json:"fit"`
	Error  string                `json:"error,omitempty"`

	Mesh *geometry.Mesh `json:"-"`
}

// MeshSource fetches the current scan bytes for one type. It returns
// ErrNoScan when nothing exists; any other error fails the slot.
type MeshSource func(ctx context.Context, scanType string) (uuid.UUID, []byte, error)

// TargetExtent is the on-screen size the largest mesh dimension is scaled
// to, normalizing mm and m sources without a unit declaration.
const TargetExtent = 100.0

// Composer arranges decoded geometries into a renderable scene.
type Composer struct {
	targetExtent float64
}

func NewComposer() *Composer {
	return &Composer{targetExtent: TargetExtent}
}

// LoadSlots fetches and decodes every scan type concurrently, one goroutine
// per slot. A failed fetch or decode only fails its own slot; siblings load
// to their own terminal state.
func (c *Composer) LoadSlots(ctx context.Context, types []string, source MeshSource) map[string]*Slot {
	slots := make(map[string]*Slot, len(types))
	for _, t := range types {
		slots[t] = &Slot{
			Type:  models.CanonicalType(t),
			State: SlotLoading,
			Color: models.ProvenanceColor(t),
		}
	}

	var wg sync.WaitGroup
	for t, slot := range slots {
		wg.Add(1)
		go func(scanType string, slot *Slot) {
			defer wg.Done()
			c.loadSlot(ctx, scanType, slot, source)
		}(t, slot)
	}
	wg.Wait()
	return slots
}

func (c *Composer) loadSlot(ctx context.Context, scanType string, slot *Slot, source MeshSource) {
	start := time.Now()
	scanID, data, err := source(ctx, scanType)
	if err != nil {
		if errors.Is(err, ErrNoScan) {
			slot.State = SlotEmpty
			return
		}
		log.Printf("Slot %s fetch failed: %v", scanType, err)
		slot.State = SlotFailed
		slot.Error = "failed to fetch mesh"
		return
	}

	mesh, err := geometry.DecodeSTL(data)
	if err != nil {
		log.Printf("Slot %s decode failed: %v", scanType, err)
		slot.State = SlotFailed
		slot.Error = "mesh file is corrupt"
		return
	}

	slot.ScanID = scanID
	slot.Mesh = mesh
	slot.Fit = mesh.Fit(c.targetExtent)
	slot.State = SlotLoaded
	log.Printf("Slot %s loaded: %d facets in %dms", scanType, mesh.TriangleCount(), time.Since(start).Milliseconds())
}

// Light is one fixture of the fixed light rig.
type Light struct {
	Kind      string        `json:"kind"`
	Position  geometry.Vec3 `json:"position,omitempty"`
	Intensity float64       `json:"intensity"`
	Color     string        `json:"color,omitempty"`
}

// CameraSpec is the scene's starting camera.
type CameraSpec struct {
	Position geometry.Vec3 `json:"position"`
	Target   geometry.Vec3 `json:"target"`
	FOV      float64       `json:"fov"`
}

// MeshEntry is one renderable mesh in the composed scene.
type MeshEntry struct {
	Type          string                `json:"type"`
	Color         string                `json:"color"`
	TriangleCount int                   `json:"triangle_count"`
	Fit           geometry.FitTransform `json:"fit"`
}

// SceneDescription is the full renderable scene sent to the viewer client:
// loaded meshes color-coded by provenance, camera, light rig, grid/axes
// helpers and the orientation gizmo.
type SceneDescription struct {
	Camera     CameraSpec            `json:"camera"`
	Lights     []Light               `json:"lights"`
	Meshes     []MeshEntry           `json:"meshes"`
	Slots      map[string]*Slot      `json:"slots"`
	GridSize   float64               `json:"grid_size"`
	AxesLength float64               `json:"axes_length"`
	Gizmo      string                `json:"gizmo"`
	Controls   string                `json:"controls"`
}

// Compose builds the scene description over the given slots. Empty and
// failed slots appear with their state so the client can offer an upload
// action, but contribute no mesh.
func (c *Composer) Compose(slots map[string]*Slot) *SceneDescription {
	desc := &SceneDescription{
		Camera: CameraSpec{
			Position: geometry.Vec3{X: 50, Y: 50, Z: 100},
			FOV:      60,
		},
		Lights: []Light{
			{Kind: "ambient", Intensity: 0.4},
			{Kind: "directional", Position: geometry.Vec3{X: 50, Y: 50, Z: 50}, Intensity: 0.8},
			{Kind: "directional", Position: geometry.Vec3{X: -50, Y: -50, Z: -50}, Intensity: 0.3, Color: "#ffffff"},
			{Kind: "point", Position: geometry.Vec3{Y: 100}, Intensity: 0.5, Color: "#ffffff"},
		},
		Slots:      slots,
		GridSize:   1000,
		AxesLength: 200,
		Gizmo:      "bottom-right",
		Controls:   "orbit",
	}
	for _, t := range models.CanonicalTypes {
		slot, ok := slots[t]
		if !ok || slot.State != SlotLoaded {
			continue
		}
		desc.Meshes = append(desc.Meshes, MeshEntry{
			Type:          slot.Type,
			Color:         slot.Color,
			TriangleCount: slot.Mesh.TriangleCount(),
			Fit:           slot.Fit,
		})
	}
	return desc
}
