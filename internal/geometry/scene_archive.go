package geometry

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"scan-service/internal/pipeline"
)

// The compute service can answer with a richer scene archive instead of a
// bare STL: a versioned chunked container carrying one or more meshes plus a
// model-units chunk. The archive converts back to STL for export.
//
// Layout (little endian):
//
//	magic   [4]byte "3DSC"
//	version uint32  (1 or 2)
//	chunks  repeated: id uint32, length uint64, payload
//
// Chunk ids: 1 = units (uint8 code), 2 = mesh (uint32 facet count followed
// by 48 bytes per facet: normal + 3 vertices as float32 triples).

var sceneArchiveMagic = [4]byte{'3', 'D', 'S', 'C'}

const (
	sceneArchiveMaxVersion = 2

	chunkUnits uint32 = 1
	chunkMesh  uint32 = 2
)

// Unit codes carried by the units chunk.
const (
	UnitsMillimeters uint8 = 0
	UnitsCentimeters uint8 = 1
	UnitsMeters      uint8 = 2
)

// SceneArchive is a decoded scene container.
type SceneArchive struct {
	Version uint32
	Units   uint8
	Meshes  []*Mesh
}

// IsSceneArchive sniffs the archive magic.
func IsSceneArchive(data []byte) bool {
	return len(data) >= 8 && bytes.Equal(data[:4], sceneArchiveMagic[:])
}

// DecodeSceneArchive parses the container. Unknown chunk ids are skipped so
// newer writers stay readable; a bad frame yields ErrCorruptFile.
func DecodeSceneArchive(data []byte) (*SceneArchive, error) {
	if !IsSceneArchive(data) {
		return nil, errors.Wrap(pipeline.ErrCorruptFile, "missing scene archive magic")
	}
	version := binary.LittleEndian.Uint32(data[4:])
	if version == 0 || version > sceneArchiveMaxVersion {
		return nil, errors.Wrapf(pipeline.ErrCorruptFile, "unsupported scene archive version %d", version)
	}
	arc := &SceneArchive{Version: version, Units: UnitsMillimeters}
	off := 8
	for off < len(data) {
		if len(data)-off < 12 {
			return nil, errors.Wrap(pipeline.ErrCorruptFile, "truncated chunk header")
		}
		id := binary.LittleEndian.Uint32(data[off:])
		length := binary.LittleEndian.Uint64(data[off+4:])
		off += 12
		if uint64(len(data)-off) < length {
			return nil, errors.Wrapf(pipeline.ErrCorruptFile, "chunk %d overruns stream", id)
		}
		payload := data[off : off+int(length)]
		off += int(length)

		switch id {
		case chunkUnits:
			if len(payload) != 1 || payload[0] > UnitsMeters {
				return nil, errors.Wrap(pipeline.ErrCorruptFile, "bad units chunk")
			}
			arc.Units = payload[0]
		case chunkMesh:
			mesh, err := decodeMeshChunk(payload)
			if err != nil {
				return nil, err
			}
			arc.Meshes = append(arc.Meshes, mesh)
		}
	}
	if len(arc.Meshes) == 0 {
		return nil, errors.Wrap(pipeline.ErrCorruptFile, "scene archive contains no mesh")
	}
	return arc, nil
}

func decodeMeshChunk(payload []byte) (*Mesh, error) {
	if len(payload) < 4 {
		return nil, errors.Wrap(pipeline.ErrCorruptFile, "truncated mesh chunk")
	}
	count := binary.LittleEndian.Uint32(payload)
	if 4+int(count)*48 != len(payload) {
		return nil, errors.Wrapf(pipeline.ErrCorruptFile, "mesh chunk declares %d facets for %d bytes", count, len(payload))
	}
	mesh := &Mesh{Triangles: make([]Triangle, 0, count)}
	off := 4
	readVec := func() Vec3 {
		v := Vec3{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off+4:]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off+8:]))),
		}
		off += 12
		return v
	}
	for i := uint32(0); i < count; i++ {
		t := Triangle{Normal: readVec()}
		t.V[0] = readVec()
		t.V[1] = readVec()
		t.V[2] = readVec()
		mesh.Triangles = append(mesh.Triangles, t)
	}
	return mesh, nil
}

// UnitScale returns the factor that maps the archive's units to millimeters,
// the pipeline's working unit.
func (a *SceneArchive) UnitScale() float64 {
	switch a.Units {
	case UnitsCentimeters:
		return 10
	case UnitsMeters:
		return 1000
	default:
		return 1
	}
}

// Merged flattens every mesh in the archive into one surface, scaled into
// millimeters, ready for STL export.
func (a *SceneArchive) Merged() *Mesh {
	out := &Mesh{}
	for _, m := range a.Meshes {
		out.Triangles = append(out.Triangles, m.Triangles...)
	}
	if s := a.UnitScale(); s != 1 {
		out.ApplyScale(s)
	}
	return out
}

// EncodeSceneArchive serializes meshes into a version-2 archive. Used by
// tests and by tooling that fakes the compute service.
func EncodeSceneArchive(units uint8, meshes ...*Mesh) []byte {
	var buf bytes.Buffer
	buf.Write(sceneArchiveMagic[:])
	binary.Write(&buf, binary.LittleEndian, uint32(sceneArchiveMaxVersion))

	binary.Write(&buf, binary.LittleEndian, chunkUnits)
	binary.Write(&buf, binary.LittleEndian, uint64(1))
	buf.WriteByte(units)

	for _, m := range meshes {
		binary.Write(&buf, binary.LittleEndian, chunkMesh)
		binary.Write(&buf, binary.LittleEndian, uint64(4+len(m.Triangles)*48))
		binary.Write(&buf, binary.LittleEndian, uint32(len(m.Triangles)))
		writeVec := func(v Vec3) {
			binary.Write(&buf, binary.LittleEndian, math.Float32bits(float32(v.X)))
			binary.Write(&buf, binary.LittleEndian, math.Float32bits(float32(v.Y)))
			binary.Write(&buf, binary.LittleEndian, math.Float32bits(float32(v.Z)))
		}
		for _, t := range m.Triangles {
			writeVec(t.Normal)
			writeVec(t.V[0])
			writeVec(t.V[1])
			writeVec(t.V[2])
		}
	}
	return buf.Bytes()
}
