package correction

import (
	"bytes"
	"context"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"scan-service/internal/geometry"
	"scan-service/internal/pipeline"
)

// UnitsHeader carries the model units of a correction response. Absent
// header means the service answered in the pipeline's working unit (mm).
const UnitsHeader = "X-Model-Units"

// Result is a staged correction: decoded for display but not yet promoted to
// a scan record. Bytes hold the binary STL of the (unit-normalized) mesh.
type Result struct {
	Mesh  *geometry.Mesh
	Bytes []byte
	Units string
}

// Dispatcher packages the current mesh into a request to the external
// correction service and decodes its response. It never retries: a failed
// correction leaves the previously displayed mesh untouched.
type Dispatcher struct {
	endpoint string
	client   *http.Client
}

// NewDispatcher creates a Dispatcher for the configured endpoint. An empty
// endpoint is legal; Submit then fails with ErrNotConfigured.
func NewDispatcher(endpoint string) *Dispatcher {
	return &Dispatcher{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 5 * time.Minute},
	}
}

// Configured reports whether a correction endpoint is set.
func (d *Dispatcher) Configured() bool { return d.endpoint != "" }

// Submit POSTs the mesh as a multipart file body to {endpoint}/fix-mesh and
// decodes the response (binary/ASCII STL, or a scene archive converted back
// to STL). Any non-success status is a CorrectionFailed carrying the status
// text.
func (d *Dispatcher) Submit(ctx context.Context, filename string, meshBytes []byte) (*Result, error) {
	if !d.Configured() {
		return nil, pipeline.ErrNotConfigured
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, errors.Wrap(pipeline.ErrCorrectionFailed, err.Error())
	}
	if _, err := part.Write(meshBytes); err != nil {
		return nil, errors.Wrap(pipeline.ErrCorrectionFailed, err.Error())
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(pipeline.ErrCorrectionFailed, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/fix-mesh", &body)
	if err != nil {
		return nil, errors.Wrap(pipeline.ErrCorrectionFailed, err.Error())
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(pipeline.ErrCorrectionFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrap(pipeline.ErrCorrectionFailed, resp.Status)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(pipeline.ErrCorrectionFailed, err.Error())
	}
	log.Printf("Correction service answered: %d bytes in %dms", len(respBytes), time.Since(start).Milliseconds())

	units := resp.Header.Get(UnitsHeader)
	mesh, err := decodeResponse(respBytes, units)
	if err != nil {
		return nil, err
	}
	return &Result{
		Mesh:  mesh,
		Bytes: geometry.EncodeBinarySTL(mesh),
		Units: units,
	}, nil
}

// decodeResponse routes the response bytes through the right decoder and
// applies the unit scale so the staged mesh is always in millimeters.
func decodeResponse(data []byte, units string) (*geometry.Mesh, error) {
	if geometry.IsSceneArchive(data) {
		arc, err := geometry.DecodeSceneArchive(data)
		if err != nil {
			return nil, err
		}
		// Merged already folds the archive's own unit chunk in.
		return arc.Merged(), nil
	}
	mesh, err := geometry.DecodeSTL(data)
	if err != nil {
		return nil, err
	}
	if s := unitScale(units); s != 1 {
		mesh.ApplyScale(s)
	}
	return mesh, nil
}

// unitScale maps a units header value to a factor into millimeters.
func unitScale(units string) float64 {
	switch strings.ToLower(units) {
	case "meters":
		return 1000
	case "centimeters":
		return 10
	default:
		return 1
	}
}
