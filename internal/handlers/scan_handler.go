package handlers

import (
	"errors"
	"io"
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"scan-service/internal/pipeline"
	"scan-service/internal/services"
	"scan-service/internal/validation"
)

const (
	InvalidUuidError  = "invalid UUID"
	ScanNotFoundError = "scan not found"
)

// ScanHandler defines handlers for managing patient mesh scans.
type ScanHandler struct {
	Service *services.ScanService
}

// NewScanHandler creates a new ScanHandler with the given ScanService.
func NewScanHandler(service *services.ScanService) *ScanHandler {
	return &ScanHandler{Service: service}
}

// statusForPipelineError maps pipeline sentinels to HTTP statuses. Users get
// a short message; internals stay in the logs.
func statusForPipelineError(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidFileType):
		return fiber.StatusBadRequest, "Please select a valid STL file"
	case errors.Is(err, pipeline.ErrFileTooLarge):
		return fiber.StatusBadRequest, "File too large. Please select a file smaller than 100MB"
	case errors.Is(err, pipeline.ErrCorruptFile):
		return fiber.StatusUnprocessableEntity, "Failed to parse STL file. The file might be corrupted"
	case errors.Is(err, pipeline.ErrNotConfigured):
		return fiber.StatusServiceUnavailable, "Auto correction is not configured"
	case errors.Is(err, pipeline.ErrCorrectionFailed):
		return fiber.StatusBadGateway, "Auto correction failed"
	case errors.Is(err, pipeline.ErrFetchFailed):
		return fiber.StatusBadGateway, "Failed to fetch mesh file"
	case errors.Is(err, pipeline.ErrUploadFailed):
		return fiber.StatusInternalServerError, "Upload failed"
	case errors.Is(err, pipeline.ErrPersistenceFailed):
		return fiber.StatusInternalServerError, "Failed to save scan"
	case errors.Is(err, services.ErrScanNotFound):
		return fiber.StatusNotFound, "No STL file found for this patient"
	default:
		return fiber.StatusInternalServerError, "Internal error"
	}
}

func pipelineError(c *fiber.Ctx, err error) error {
	status, msg := statusForPipelineError(err)
	return c.Status(status).JSON(fiber.Map{"error": true, "message": msg})
}

// ListScans handles GET /patients/:patientId/scans.
// @Summary List a patient's scans
// @Description Gets all scan records (every type and version) for a patient
// @Tags scans
// @Produce json
// @Param patientId path string true "Patient ID"
// @Success 200 {array} models.Scan "Scan records"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /patients/{patientId}/scans [get]
func (h *ScanHandler) ListScans(c *fiber.Ctx) error {
	patientID, err := uuid.Parse(c.Params("patientId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": InvalidUuidError})
	}
	scans, err := h.Service.ListScans(patientID)
	if err != nil {
		log.Printf("Error listing scans for patient %s: %v", patientID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": true, "message": err.Error()})
	}
	log.Printf("Listed %d scans for patient %s", len(scans), patientID)
	return c.JSON(scans)
}

// GetCurrentScan handles GET /patients/:patientId/scans/:type.
// @Summary Get the current scan of a type
// @Description Gets the current scan record for (patient, type); legacy type aliases resolve
// @Tags scans
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param type path string true "Scan type (original-mesh, corrected-mesh, final-mesh)"
// @Success 200 {object} models.Scan "Current scan"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "No scan of this type"
// @Router /patients/{patientId}/scans/{type} [get]
func (h *ScanHandler) GetCurrentScan(c *fiber.Ctx) error {
	patientID, err := uuid.Parse(c.Params("patientId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": InvalidUuidError})
	}
	scan, err := h.Service.Repo.FindCurrentByTypeAndPatient(c.Params("type"), patientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": true, "message": ScanNotFoundError})
		}
		log.Printf("Error fetching current scan: Patient=%s, Type=%s, Error=%v", patientID, c.Params("type"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": true, "message": err.Error()})
	}
	return c.JSON(scan)
}

// UploadScan handles POST /patients/:patientId/scans/:type.
// @Summary Upload a mesh scan
// @Description Upload an STL file (or a ZIP containing one STL) as the new current scan of the given type
// @Tags scans
// @Accept multipart/form-data
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param type path string true "Scan type"
// @Param file formData file true "STL file or ZIP archive"
// @Success 201 {object} models.Scan "Scan successfully created"
// @Failure 400 {object} map[string]interface{} "Validation failure"
// @Failure 422 {object} map[string]interface{} "Corrupt mesh"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /patients/{patientId}/scans/{type} [post]
func (h *ScanHandler) UploadScan(c *fiber.Ctx) error {
	patientID, err := uuid.Parse(c.Params("patientId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": InvalidUuidError})
	}
	scanType := c.Params("type")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "failed to read file: " + err.Error()})
	}
	log.Printf("Processing scan upload: Patient=%s, Type=%s, File=%s (%d bytes)",
		patientID, scanType, fileHeader.Filename, fileHeader.Size)

	if strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".zip") {
		return h.uploadArchive(c, patientID, scanType, fileHeader.Filename)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "failed to read file: " + err.Error()})
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "failed to read file: " + err.Error()})
	}

	scan, err := h.Service.IngestScan(c.Context(), patientID, scanType, fileHeader.Filename, data)
	if err != nil {
		log.Printf("Scan upload failed: Patient=%s, Type=%s, Error=%v", patientID, scanType, err)
		return pipelineError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(scan)
}

// uploadArchive spools the archive to a temp file so the extractor can open
// it, then runs the normal ingest path on the contained STL.
func (h *ScanHandler) uploadArchive(c *fiber.Ctx, patientID uuid.UUID, scanType, filename string) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "failed to read file: " + err.Error()})
	}
	if err := validation.ValidateArchiveUpload(filename, fileHeader.Size); err != nil {
		return pipelineError(c, err)
	}
	tempFile, err := os.CreateTemp(os.TempDir(), "upload-*.zip")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": true, "message": "could not create temporary file"})
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	src, err := fileHeader.Open()
	if err != nil {
		tempFile.Close()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "failed to read file: " + err.Error()})
	}
	_, err = io.Copy(tempFile, src)
	tempFile.Close()
	src.Close()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": true, "message": "failed to write uploaded file"})
	}

	scan, err := h.Service.IngestArchive(c.Context(), patientID, scanType, filename, tempPath)
	if err != nil {
		log.Printf("Archive upload failed: Patient=%s, Type=%s, Error=%v", patientID, scanType, err)
		return pipelineError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(scan)
}

// DownloadScan handles GET /scans/:id/download.
// @Summary Download a scan's mesh file
// @Description Stream the stored STL bytes for a scan record
// @Tags scans
// @Produce application/octet-stream
// @Param id path string true "Scan ID"
// @Success 200 {file} binary "STL file"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Scan not found"
// @Router /scans/{id}/download [get]
func (h *ScanHandler) DownloadScan(c *fiber.Ctx) error {
	scanID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": InvalidUuidError})
	}
	scan, data, err := h.Service.DownloadScan(c.Context(), scanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": true, "message": ScanNotFoundError})
		}
		log.Printf("Scan download failed: ID=%s, Error=%v", scanID, err)
		return pipelineError(c, err)
	}
	c.Set(fiber.HeaderContentType, "model/stl")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=\""+scan.Type+".stl\"")
	return c.Status(fiber.StatusOK).Send(data)
}

// DeleteScan handles DELETE /scans/:id.
// @Summary Delete a scan
// @Description Delete a scan record; the stored blob is removed best-effort
// @Tags scans
// @Param id path string true "Scan ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Scan not found"
// @Router /scans/{id} [delete]
func (h *ScanHandler) DeleteScan(c *fiber.Ctx) error {
	scanID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": InvalidUuidError})
	}
	if err := h.Service.DeleteScan(c.Context(), scanID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": true, "message": ScanNotFoundError})
		}
		log.Printf("Error deleting scan: ID=%s, Error=%v", scanID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": true, "message": err.Error()})
	}
	log.Printf("Deleted scan: ID=%s", scanID)
	return c.SendStatus(fiber.StatusNoContent)
}

// RunCorrection handles POST /patients/:patientId/corrections.
// @Summary Run auto correction
// @Description Dispatch the patient's active mesh to the external correction service and stage the result
// @Tags corrections
// @Produce json
// @Param patientId path string true "Patient ID"
// @Success 200 {object} services.StagedCorrection "Staged correction"
// @Failure 404 {object} map[string]interface{} "No mesh to correct"
// @Failure 502 {object} map[string]interface{} "Correction service failure"
// @Failure 503 {object} map[string]interface{} "Correction endpoint not configured"
// @Router /patients/{patientId}/corrections [post]
func (h *ScanHandler) RunCorrection(c *fiber.Ctx) error {
	patientID, err := uuid.Parse(c.Params("patientId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": InvalidUuidError})
	}
	staged, err := h.Service.Correct(c.Context(), patientID)
	if err != nil {
		log.Printf("Correction failed: Patient=%s, Error=%v", patientID, err)
		return pipelineError(c, err)
	}
	return c.JSON(staged)
}

// PromoteCorrection handles POST /corrections/:token/promote.
// @Summary Promote a staged correction
// @Description Commit a staged correction as the new current scan; ?type overrides the default corrected-mesh
// @Tags corrections
// @Produce json
// @Param token path string true "Staging token"
// @Param type query string false "Target scan type"
// @Success 201 {object} models.Scan "New scan record"
// @Failure 404 {object} map[string]interface{} "Unknown staging token"
// @Router /corrections/{token}/promote [post]
func (h *ScanHandler) PromoteCorrection(c *fiber.Ctx) error {
	token, err := uuid.Parse(c.Params("token"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": InvalidUuidError})
	}
	if _, ok := h.Service.GetStaged(token); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": true, "message": "no staged correction for token"})
	}
	scan, err := h.Service.PromoteStaged(c.Context(), token, c.Query("type"))
	if err != nil {
		log.Printf("Promotion failed: Token=%s, Error=%v", token, err)
		return pipelineError(c, err)
	}
	log.Printf("Promoted correction: Token=%s, Scan=%s", token, scan.ID)
	return c.Status(fiber.StatusCreated).JSON(scan)
}

// DiscardCorrection handles DELETE /corrections/:token.
// @Summary Discard a staged correction
// @Tags corrections
// @Param token path string true "Staging token"
// @Success 204 "No Content"
// @Router /corrections/{token} [delete]
func (h *ScanHandler) DiscardCorrection(c *fiber.Ctx) error {
	token, err := uuid.Parse(c.Params("token"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": InvalidUuidError})
	}
	h.Service.DiscardStaged(token)
	return c.SendStatus(fiber.StatusNoContent)
}
