package correction

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scan-service/internal/geometry"
	"scan-service/internal/pipeline"
)

func wallMesh() *geometry.Mesh {
	return &geometry.Mesh{Triangles: []geometry.Triangle{
		{
			Normal: geometry.Vec3{Z: 1},
			V: [3]geometry.Vec3{
				{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1},
			},
		},
	}}
}

func TestSubmitNotConfigured(t *testing.T) {
	d := NewDispatcher("")
	assert.False(t, d.Configured())

	_, err := d.Submit(context.Background(), "jaw.stl", []byte("x"))
	assert.True(t, errors.Is(err, pipeline.ErrNotConfigured))
}

func TestSubmitPostsMultipartToFixMesh(t *testing.T) {
	input := geometry.EncodeBinarySTL(wallMesh())
	corrected := geometry.EncodeBinarySTL(wallMesh())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/fix-mesh", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "jaw.stl", header.Filename)

		w.Write(corrected)
	}))
	defer srv.Close()

	result, err := NewDispatcher(srv.URL).Submit(context.Background(), "jaw.stl", input)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Mesh.TriangleCount())
	assert.Equal(t, corrected, result.Bytes)
	assert.Empty(t, result.Units)
}

func TestSubmitScalesMetersResponseToMillimeters(t *testing.T) {
	corrected := geometry.EncodeBinarySTL(wallMesh())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(UnitsHeader, "meters")
		w.Write(corrected)
	}))
	defer srv.Close()

	result, err := NewDispatcher(srv.URL).Submit(context.Background(), "jaw.stl", []byte("input"))
	require.NoError(t, err)
	assert.Equal(t, "meters", result.Units)
	assert.InDelta(t, 1000, result.Mesh.Triangles[0].V[1].X, 1e-6)

	// The staged bytes carry the normalized geometry.
	reparsed, err := geometry.DecodeSTL(result.Bytes)
	require.NoError(t, err)
	assert.InDelta(t, 1000, reparsed.Triangles[0].V[1].X, 1e-3)
}

func TestSubmitScalesCentimetersResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(UnitsHeader, "Centimeters")
		w.Write(geometry.EncodeBinarySTL(wallMesh()))
	}))
	defer srv.Close()

	result, err := NewDispatcher(srv.URL).Submit(context.Background(), "jaw.stl", []byte("input"))
	require.NoError(t, err)
	assert.InDelta(t, 10, result.Mesh.Triangles[0].V[1].X, 1e-6)
}

func TestSubmitDecodesSceneArchiveResponse(t *testing.T) {
	archive := geometry.EncodeSceneArchive(geometry.UnitsMeters, wallMesh(), wallMesh())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The archive's own unit chunk wins; no header set.
		w.Write(archive)
	}))
	defer srv.Close()

	result, err := NewDispatcher(srv.URL).Submit(context.Background(), "jaw.stl", []byte("input"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Mesh.TriangleCount())
	assert.InDelta(t, 1000, result.Mesh.Triangles[0].V[1].X, 1e-6)
}

func TestSubmitNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mesh too degenerate", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewDispatcher(srv.URL).Submit(context.Background(), "jaw.stl", []byte("input"))
	assert.True(t, errors.Is(err, pipeline.ErrCorrectionFailed))
	assert.Contains(t, err.Error(), "422")
}

func TestSubmitCorruptResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a mesh"))
	}))
	defer srv.Close()

	_, err := NewDispatcher(srv.URL).Submit(context.Background(), "jaw.stl", []byte("input"))
	assert.True(t, errors.Is(err, pipeline.ErrCorruptFile))
}

func TestSubmitUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewDispatcher(srv.URL).Submit(context.Background(), "jaw.stl", []byte("input"))
	assert.True(t, errors.Is(err, pipeline.ErrCorrectionFailed))
}
