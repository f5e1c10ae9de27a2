package geometry

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"scan-service/internal/pipeline"
)

const (
	binarySTLHeaderLen = 80
	binarySTLFacetLen  = 50 // 12 floats + uint16 attribute
)

// DecodeSTL is a pure transform from raw bytes to a triangle mesh. It serves
// every byte source in the pipeline: local uploads, storage fetches and
// correction responses. Malformed input yields ErrCorruptFile, never a panic.
func DecodeSTL(data []byte) (*Mesh, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(pipeline.ErrCorruptFile, "empty byte stream")
	}
	if isASCIISTL(data) {
		return decodeASCIISTL(data)
	}
	return decodeBinarySTL(data)
}

// isASCIISTL sniffs the container flavor. A "solid" prefix alone is not
// enough: binary exporters routinely write "solid" into the 80-byte header,
// so the facet keyword must appear too.
func isASCIISTL(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("solid")) && bytes.Contains(head, []byte("facet"))
}

func decodeBinarySTL(data []byte) (*Mesh, error) {
	if len(data) < binarySTLHeaderLen+4 {
		return nil, errors.Wrapf(pipeline.ErrCorruptFile, "binary stl truncated at %d bytes", len(data))
	}
	count := binary.LittleEndian.Uint32(data[binarySTLHeaderLen:])
	want := binarySTLHeaderLen + 4 + int(count)*binarySTLFacetLen
	if want != len(data) {
		return nil, errors.Wrapf(pipeline.ErrCorruptFile,
			"binary stl declares %d facets (%d bytes) but stream has %d bytes", count, want, len(data))
	}
	mesh := &Mesh{Triangles: make([]Triangle, 0, count)}
	off := binarySTLHeaderLen + 4
	for i := uint32(0); i < count; i++ {
		var vals [12]float64
		for j := 0; j < 12; j++ {
			bits := binary.LittleEndian.Uint32(data[off+j*4:])
			f := float64(math.Float32frombits(bits))
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, errors.Wrapf(pipeline.ErrCorruptFile, "facet %d has non-finite coordinate", i)
			}
			vals[j] = f
		}
		mesh.Triangles = append(mesh.Triangles, Triangle{
			Normal: Vec3{vals[0], vals[1], vals[2]},
			V: [3]Vec3{
				{vals[3], vals[4], vals[5]},
				{vals[6], vals[7], vals[8]},
				{vals[9], vals[10], vals[11]},
			},
		})
		off += binarySTLFacetLen
	}
	return mesh, nil
}

func decodeASCIISTL(data []byte) (*Mesh, error) {
	mesh := &Mesh{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var cur Triangle
	vertexIdx := -1 // -1 outside a facet
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "facet":
			if len(fields) != 5 || fields[1] != "normal" {
				return nil, errors.Wrap(pipeline.ErrCorruptFile, "malformed facet line")
			}
			n, err := parseVec3(fields[2:5])
			if err != nil {
				return nil, err
			}
			cur = Triangle{Normal: n}
			vertexIdx = 0
		case "vertex":
			if vertexIdx < 0 || vertexIdx > 2 || len(fields) != 4 {
				return nil, errors.Wrap(pipeline.ErrCorruptFile, "vertex outside facet or malformed")
			}
			v, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, err
			}
			cur.V[vertexIdx] = v
			vertexIdx++
		case "endfacet":
			if vertexIdx != 3 {
				return nil, errors.Wrapf(pipeline.ErrCorruptFile, "facet closed with %d vertices", vertexIdx)
			}
			mesh.Triangles = append(mesh.Triangles, cur)
			vertexIdx = -1
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(pipeline.ErrCorruptFile, err.Error())
	}
	if vertexIdx != -1 {
		return nil, errors.Wrap(pipeline.ErrCorruptFile, "unterminated facet")
	}
	if len(mesh.Triangles) == 0 {
		return nil, errors.Wrap(pipeline.ErrCorruptFile, "ascii stl contains no facets")
	}
	return mesh, nil
}

func parseVec3(fields []string) (Vec3, error) {
	var out [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Vec3{}, errors.Wrapf(pipeline.ErrCorruptFile, "bad coordinate %q", f)
		}
		out[i] = v
	}
	return Vec3{out[0], out[1], out[2]}, nil
}

// EncodeBinarySTL serializes the mesh as binary STL. Decode→encode→decode is
// stable in triangle count and bounding box.
func EncodeBinarySTL(m *Mesh) []byte {
	buf := make([]byte, binarySTLHeaderLen+4+len(m.Triangles)*binarySTLFacetLen)
	copy(buf, fmt.Sprintf("scan-service binary stl, %d facets", len(m.Triangles)))
	binary.LittleEndian.PutUint32(buf[binarySTLHeaderLen:], uint32(len(m.Triangles)))
	off := binarySTLHeaderLen + 4
	for _, t := range m.Triangles {
		putVec3 := func(v Vec3) {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v.X)))
			binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(float32(v.Y)))
			binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(float32(v.Z)))
			off += 12
		}
		putVec3(t.Normal)
		putVec3(t.V[0])
		putVec3(t.V[1])
		putVec3(t.V[2])
		off += 2 // attribute byte count, zero
	}
	return buf
}
