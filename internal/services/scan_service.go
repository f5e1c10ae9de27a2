package services

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"scan-service/internal/correction"
	"scan-service/internal/extraction"
	"scan-service/internal/geometry"
	"scan-service/internal/metrics"
	"scan-service/internal/models"
	"scan-service/internal/pipeline"
	"scan-service/internal/repository"
	"scan-service/internal/services/cache"
	"scan-service/internal/storage"
	"scan-service/internal/utils"
	"scan-service/internal/validation"
)

const meshContentType = "model/stl"

// ErrScanNotFound is returned when a patient has no current scan of the
// requested type.
var ErrScanNotFound = errors.New("scan not found")

// StagedCorrection is a corrected mesh held in memory between compute and
// explicit promotion, so a bad correction never overwrites the last-known-
// good scan.
type StagedCorrection struct {
	Token         uuid.UUID          `json:"token"`
	PatientID     uuid.UUID          `json:"patient_id"`
	SourceScanID  uuid.UUID          `json:"source_scan_id"`
	Result        *correction.Result `json:"-"`
	TriangleCount int                `json:"triangle_count"`
	CreatedAt     time.Time          `json:"created_at"`
}

// ScanService provides methods for managing patient mesh scans: the ingest
// saga, cached retrieval, and the correction staging/promotion flow.
type ScanService struct {
	Repo       repository.ScanRepository
	Store      storage.BlobStore
	Caches     []cache.MeshCache
	Dispatcher *correction.Dispatcher
	Metrics    *utils.Metrics

	mu     sync.Mutex
	staged map[uuid.UUID]*StagedCorrection
}

// NewScanService wires the pipeline. Caches may be empty; Metrics may be nil
// in tests.
func NewScanService(repo repository.ScanRepository, store storage.BlobStore,
	caches []cache.MeshCache, dispatcher *correction.Dispatcher, m *utils.Metrics) *ScanService {
	return &ScanService{
		Repo:       repo,
		Store:      store,
		Caches:     caches,
		Dispatcher: dispatcher,
		Metrics:    m,
		staged:     make(map[uuid.UUID]*StagedCorrection),
	}
}

// IngestScan runs the full upload saga for one mesh: validate, decode,
// upload, transactional record replace. Validation and decode failures abort
// before any I/O; upload failure aborts before the database is touched; a
// database failure after upload leaves an orphaned blob, which is logged and
// surfaced as a persistence failure rather than rolled back.
func (s *ScanService) IngestScan(ctx context.Context, patientID uuid.UUID, scanType, filename string, data []byte) (*models.Scan, error) {
	scanType = models.CanonicalType(scanType)
	timings := metrics.NewStageTimings()

	if err := timings.Stage("validate", func() error {
		return validation.ValidateMeshUpload(filename, int64(len(data)))
	}); err != nil {
		s.countRejection(err)
		return nil, err
	}

	var mesh *geometry.Mesh
	if err := timings.Stage("decode", func() error {
		var derr error
		mesh, derr = geometry.DecodeSTL(data)
		return derr
	}); err != nil {
		if s.Metrics != nil {
			s.Metrics.DecodeFailure()
		}
		return nil, err
	}

	key := storage.ScanKey(patientID.String(), scanType)
	var fileURL string
	if err := timings.Stage("upload", func() error {
		var uerr error
		fileURL, uerr = s.Store.Upload(ctx, key, data, meshContentType, true)
		return uerr
	}); err != nil {
		return nil, errors.Wrap(pipeline.ErrUploadFailed, err.Error())
	}

	scan := &models.Scan{
		ID:        uuid.New(),
		PatientID: patientID,
		Type:      scanType,
		FileURL:   fileURL,
	}
	if err := timings.Stage("persist", func() error {
		return s.Repo.Replace(scan)
	}); err != nil {
		// The blob upload already succeeded; the orphaned object is an
		// accepted inconsistency, logged for cleanup tooling.
		log.Printf("Scan record write failed, orphaned blob at %s: %v", key, err)
		return nil, errors.Wrap(pipeline.ErrPersistenceFailed, err.Error())
	}

	s.cacheStore(scan.ID, data)

	timings.Finish()
	if s.Metrics != nil {
		s.Metrics.ScanUploaded(scanType)
	}
	log.Printf("Ingested scan: ID=%s, Patient=%s, Type=%s, Facets=%d, Version=%d, TotalMs=%.1f",
		scan.ID, patientID, scanType, mesh.TriangleCount(), scan.Version, timings.TotalLatencyMs)
	return scan, nil
}

// IngestArchive accepts a ZIP containing exactly one STL and runs the normal
// ingest saga on its content.
func (s *ScanService) IngestArchive(ctx context.Context, patientID uuid.UUID, scanType, archiveName, archivePath string) (*models.Scan, error) {
	name, data, err := extraction.ExtractSTLFromArchive(archivePath)
	if err != nil {
		s.countRejection(err)
		return nil, err
	}
	log.Printf("Extracted %s (%d bytes) from archive %s", name, len(data), archiveName)
	return s.IngestScan(ctx, patientID, scanType, name, data)
}

// FetchCurrentMeshBytes returns the stored bytes of the current scan for
// (patientId, type), consulting the cache layers before object storage.
func (s *ScanService) FetchCurrentMeshBytes(ctx context.Context, patientID uuid.UUID, scanType string) (*models.Scan, []byte, error) {
	scan, err := s.Repo.FindCurrentByTypeAndPatient(scanType, patientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrScanNotFound
		}
		return nil, nil, errors.Wrap(pipeline.ErrFetchFailed, err.Error())
	}

	if data := s.cacheGet(scan.ID); data != nil {
		return scan, data, nil
	}

	data, err := s.Store.Download(ctx, s.storageKey(scan))
	if err != nil {
		return nil, nil, errors.Wrap(pipeline.ErrFetchFailed, err.Error())
	}
	s.cacheStore(scan.ID, data)
	return scan, data, nil
}

// FetchActiveMeshBytes resolves the mesh the single-mesh workflows operate
// on: the corrected mesh when one exists, otherwise the original upload.
func (s *ScanService) FetchActiveMeshBytes(ctx context.Context, patientID uuid.UUID) (*models.Scan, []byte, error) {
	scan, data, err := s.FetchCurrentMeshBytes(ctx, patientID, models.TypeCorrectedMesh)
	if errors.Is(err, ErrScanNotFound) {
		return s.FetchCurrentMeshBytes(ctx, patientID, models.TypeOriginalMesh)
	}
	return scan, data, err
}

// Correct dispatches the patient's active mesh to the external correction
// service and stages the result under a token. Nothing is persisted until
// the staged result is explicitly promoted.
func (s *ScanService) Correct(ctx context.Context, patientID uuid.UUID) (*StagedCorrection, error) {
	scan, data, err := s.FetchActiveMeshBytes(ctx, patientID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.Dispatcher.Submit(ctx, scan.Type+".stl", data)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.Correction("failed")
			s.Metrics.ObserveCorrection(elapsed)
		}
		return nil, err
	}
	if s.Metrics != nil {
		s.Metrics.Correction("success")
		s.Metrics.ObserveCorrection(elapsed)
	}

	staged := &StagedCorrection{
		Token:         uuid.New(),
		PatientID:     patientID,
		SourceScanID:  scan.ID,
		Result:        result,
		TriangleCount: result.Mesh.TriangleCount(),
		CreatedAt:     time.Now(),
	}
	s.mu.Lock()
	s.staged[staged.Token] = staged
	s.mu.Unlock()

	log.Printf("Staged correction: Token=%s, Patient=%s, Source=%s, Facets=%d",
		staged.Token, patientID, scan.ID, staged.TriangleCount)
	return staged, nil
}

// GetStaged returns a staged correction by token.
func (s *ScanService) GetStaged(token uuid.UUID) (*StagedCorrection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged, ok := s.staged[token]
	return staged, ok
}

// PromoteStaged commits a staged correction as the new current scan of the
// target type (corrected-mesh by default) and discards the staging entry.
func (s *ScanService) PromoteStaged(ctx context.Context, token uuid.UUID, targetType string) (*models.Scan, error) {
	staged, ok := s.GetStaged(token)
	if !ok {
		return nil, errors.Wrap(pipeline.ErrCorrectionFailed, "no staged correction for token")
	}
	if targetType == "" {
		targetType = models.TypeCorrectedMesh
	}
	targetType = models.CanonicalType(targetType)
	if !models.IsKnownType(targetType) {
		return nil, errors.Wrapf(pipeline.ErrInvalidFileType, "unknown scan type %q", targetType)
	}

	scan, err := s.IngestScan(ctx, staged.PatientID, targetType, targetType+".stl", staged.Result.Bytes)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.staged, token)
	s.mu.Unlock()
	return scan, nil
}

// DiscardStaged drops a staged correction without persisting it.
func (s *ScanService) DiscardStaged(token uuid.UUID) {
	s.mu.Lock()
	delete(s.staged, token)
	s.mu.Unlock()
}

// GetScan retrieves scan metadata by id.
func (s *ScanService) GetScan(id uuid.UUID) (*models.Scan, error) {
	return s.Repo.GetByID(id)
}

// ListScans returns all scan rows for a patient.
func (s *ScanService) ListScans(patientID uuid.UUID) ([]models.Scan, error) {
	return s.Repo.ListByPatient(patientID)
}

// DownloadScan streams the stored bytes for a scan record.
func (s *ScanService) DownloadScan(ctx context.Context, id uuid.UUID) (*models.Scan, []byte, error) {
	scan, err := s.Repo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if data := s.cacheGet(scan.ID); data != nil {
		return scan, data, nil
	}
	data, err := s.Store.Download(ctx, s.storageKey(scan))
	if err != nil {
		return nil, nil, errors.Wrap(pipeline.ErrFetchFailed, err.Error())
	}
	s.cacheStore(scan.ID, data)
	return scan, data, nil
}

// DeleteScan removes the record and makes a best-effort attempt at the blob;
// a failed blob delete is logged, never fatal.
func (s *ScanService) DeleteScan(ctx context.Context, id uuid.UUID) error {
	scan, err := s.Repo.GetByID(id)
	if err != nil {
		return err
	}
	if err := s.Store.Remove(ctx, s.storageKey(scan)); err != nil {
		log.Printf("Blob delete failed for scan %s (continuing): %v", id, err)
	}
	for _, layer := range s.Caches {
		_ = layer.Delete(id)
	}
	return s.Repo.Delete(id)
}

// storageKey recovers the object key from a scan's public URL so legacy rows
// with filename-based keys keep resolving; new rows use {patientId}/{type}.stl.
func (s *ScanService) storageKey(scan *models.Scan) string {
	segs := strings.Split(strings.TrimRight(scan.FileURL, "/"), "/")
	if len(segs) >= 2 {
		return segs[len(segs)-2] + "/" + segs[len(segs)-1]
	}
	return storage.ScanKey(scan.PatientID.String(), models.CanonicalType(scan.Type))
}

func (s *ScanService) cacheGet(scanID uuid.UUID) []byte {
	for _, layer := range s.Caches {
		data, err := layer.Get(scanID)
		if err != nil {
			log.Printf("Cache layer %s read error: %v", layer.Name(), err)
			continue
		}
		if data != nil {
			if s.Metrics != nil {
				s.Metrics.CacheHit(layer.Name())
			}
			return data
		}
		if s.Metrics != nil {
			s.Metrics.CacheMiss(layer.Name())
		}
	}
	return nil
}

func (s *ScanService) cacheStore(scanID uuid.UUID, data []byte) {
	for _, layer := range s.Caches {
		if err := layer.Store(scanID, data); err != nil {
			log.Printf("Cache layer %s store error: %v", layer.Name(), err)
		}
	}
}

func (s *ScanService) countRejection(err error) {
	if s.Metrics == nil {
		return
	}
	switch {
	case errors.Is(err, pipeline.ErrInvalidFileType):
		s.Metrics.UploadRejected("invalid_file_type")
	case errors.Is(err, pipeline.ErrFileTooLarge):
		s.Metrics.UploadRejected("file_too_large")
	}
}
