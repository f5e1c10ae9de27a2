package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"scan-service/internal/geometry"
	"scan-service/internal/models"
	"scan-service/internal/services"
	"scan-service/internal/utils"
	"scan-service/internal/viewer"
)

// ViewerHandler defines handlers for viewer sessions: slot loading, scene
// composition and landmark annotation.
type ViewerHandler struct {
	Service  *services.ScanService
	Sessions *viewer.SessionManager
	Composer *viewer.Composer
	Metrics  *utils.Metrics
}

// NewViewerHandler creates a new ViewerHandler.
func NewViewerHandler(service *services.ScanService, sessions *viewer.SessionManager, m *utils.Metrics) *ViewerHandler {
	return &ViewerHandler{
		Service:  service,
		Sessions: sessions,
		Composer: viewer.NewComposer(),
		Metrics:  m,
	}
}

func (h *ViewerHandler) meshSource(patientID uuid.UUID) viewer.MeshSource {
	return func(ctx context.Context, scanType string) (uuid.UUID, []byte, error) {
		scan, data, err := h.Service.FetchCurrentMeshBytes(ctx, patientID, scanType)
		if err != nil {
			if errors.Is(err, services.ErrScanNotFound) {
				return uuid.Nil, nil, viewer.ErrNoScan
			}
			return uuid.Nil, nil, err
		}
		return scan.ID, data, nil
	}
}

// activeMesh picks the mesh the annotator binds to: corrected when loaded,
// otherwise original.
func activeMesh(slots map[string]*viewer.Slot) *geometry.Mesh {
	for _, t := range []string{models.TypeCorrectedMesh, models.TypeOriginalMesh, models.TypeFinalMesh} {
		if slot, ok := slots[t]; ok && slot.State == viewer.SlotLoaded {
			return slot.Mesh
		}
	}
	return nil
}

// CreateSession handles POST /patients/:patientId/viewer-sessions.
// @Summary Open a viewer session
// @Description Loads every scan type concurrently into its own slot and composes the initial scene
// @Tags viewer
// @Produce json
// @Param patientId path string true "Patient ID"
// @Success 201 {object} map[string]interface{} "Session id and scene"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Router /patients/{patientId}/viewer-sessions [post]
func (h *ViewerHandler) CreateSession(c *fiber.Ctx) error {
	patientID, err := uuid.Parse(c.Params("patientId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": InvalidUuidError})
	}

	start := time.Now()
	slots := h.Composer.LoadSlots(c.Context(), models.CanonicalTypes, h.meshSource(patientID))
	if h.Metrics != nil {
		for _, slot := range slots {
			h.Metrics.SlotLoad(slot.Type, string(slot.State))
		}
		h.Metrics.ObserveSlotLoad(float64(time.Since(start).Microseconds()) / 1000.0)
	}

	camera := viewer.Camera{
		Position: geometry.Vec3{X: 50, Y: 50, Z: 100},
		Up:       geometry.Vec3{Y: 1},
		FOV:      60,
		Aspect:   16.0 / 9.0,
	}
	session := h.Sessions.Put(patientID, slots, viewer.NewAnnotator(activeMesh(slots), camera))
	log.Printf("Opened viewer session %s for patient %s (%d slots)", session.ID, patientID, len(slots))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": session.ID,
		"scene":      h.Composer.Compose(slots),
	})
}

// GetScene handles GET /viewer-sessions/:id/scene.
// @Summary Get the composed scene
// @Tags viewer
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} viewer.SceneDescription "Scene description"
// @Failure 404 {object} map[string]interface{} "Session not found"
// @Router /viewer-sessions/{id}/scene [get]
func (h *ViewerHandler) GetScene(c *fiber.Ctx) error {
	session := h.session(c)
	if session == nil {
		return nil
	}
	return c.JSON(h.Composer.Compose(session.Slots))
}

// CloseSession handles DELETE /viewer-sessions/:id.
// @Summary Close a viewer session
// @Tags viewer
// @Param id path string true "Session ID"
// @Success 204 "No Content"
// @Router /viewer-sessions/{id} [delete]
func (h *ViewerHandler) CloseSession(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": InvalidUuidError})
	}
	h.Sessions.Drop(sessionID)
	return c.SendStatus(fiber.StatusNoContent)
}

type pointerEventRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type cameraRequest struct {
	Camera viewer.Camera `json:"camera"`
}

// UpdateCamera handles PUT /viewer-sessions/:id/camera.
// @Summary Update the session camera after an orbit
// @Tags viewer
// @Accept json
// @Param id path string true "Session ID"
// @Param camera body cameraRequest true "New camera state"
// @Success 204 "No Content"
// @Router /viewer-sessions/{id}/camera [put]
func (h *ViewerHandler) UpdateCamera(c *fiber.Ctx) error {
	session := h.session(c)
	if session == nil {
		return nil
	}
	var req cameraRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "invalid request body"})
	}
	session.Annotator.SetCamera(req.Camera)
	return c.SendStatus(fiber.StatusNoContent)
}

// PointerDown handles POST /viewer-sessions/:id/pointer-down.
// @Summary Record a pointer-down gesture start
// @Tags landmarks
// @Accept json
// @Param id path string true "Session ID"
// @Param event body pointerEventRequest true "Pointer position in NDC"
// @Success 204 "No Content"
// @Router /viewer-sessions/{id}/pointer-down [post]
func (h *ViewerHandler) PointerDown(c *fiber.Ctx) error {
	session := h.session(c)
	if session == nil {
		return nil
	}
	var req pointerEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "invalid request body"})
	}
	session.Annotator.PointerDown(req.X, req.Y)
	return c.SendStatus(fiber.StatusNoContent)
}

// PointerUp handles POST /viewer-sessions/:id/pointer-up.
// @Summary Complete a pointer gesture
// @Description A click within the drag threshold that hits the mesh places one landmark; a drag or a miss places none
// @Tags landmarks
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param event body pointerEventRequest true "Pointer position in NDC"
// @Success 200 {object} map[string]interface{} "Placed landmark, or placed=false"
// @Router /viewer-sessions/{id}/pointer-up [post]
func (h *ViewerHandler) PointerUp(c *fiber.Ctx) error {
	session := h.session(c)
	if session == nil {
		return nil
	}
	var req pointerEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": "invalid request body"})
	}
	lm := session.Annotator.PointerUp(req.X, req.Y)
	if lm == nil {
		return c.JSON(fiber.Map{"placed": false})
	}
	if h.Metrics != nil {
		h.Metrics.LandmarkPlaced()
	}
	log.Printf("Placed landmark %s in session %s", lm.ID, session.ID)
	return c.JSON(fiber.Map{"placed": true, "landmark": lm})
}

// ListLandmarks handles GET /viewer-sessions/:id/landmarks.
// @Summary List a session's landmarks in placement order
// @Tags landmarks
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {array} models.Landmark "Landmarks"
// @Router /viewer-sessions/{id}/landmarks [get]
func (h *ViewerHandler) ListLandmarks(c *fiber.Ctx) error {
	session := h.session(c)
	if session == nil {
		return nil
	}
	return c.JSON(session.Annotator.Landmarks())
}

// RemoveLandmark handles DELETE /viewer-sessions/:id/landmarks/:landmarkId.
// @Summary Remove one landmark
// @Tags landmarks
// @Param id path string true "Session ID"
// @Param landmarkId path string true "Landmark ID"
// @Success 204 "No Content"
// @Failure 404 {object} map[string]interface{} "Landmark not found"
// @Router /viewer-sessions/{id}/landmarks/{landmarkId} [delete]
func (h *ViewerHandler) RemoveLandmark(c *fiber.Ctx) error {
	session := h.session(c)
	if session == nil {
		return nil
	}
	landmarkID, err := uuid.Parse(c.Params("landmarkId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": InvalidUuidError})
	}
	if !session.Annotator.Remove(landmarkID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": true, "message": "landmark not found"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ClearLandmarks handles DELETE /viewer-sessions/:id/landmarks.
// @Summary Remove every landmark in a session
// @Tags landmarks
// @Param id path string true "Session ID"
// @Success 204 "No Content"
// @Router /viewer-sessions/{id}/landmarks [delete]
func (h *ViewerHandler) ClearLandmarks(c *fiber.Ctx) error {
	session := h.session(c)
	if session == nil {
		return nil
	}
	session.Annotator.Clear()
	return c.SendStatus(fiber.StatusNoContent)
}

// ExportLandmarks handles GET /viewer-sessions/:id/landmarks/export.
// @Summary Export landmarks as a Grasshopper point document
// @Description Returns {points, count, format: "grasshopper_points"} with coordinates rounded to 6 decimals
// @Tags landmarks
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.LandmarkExport "Export document"
// @Router /viewer-sessions/{id}/landmarks/export [get]
func (h *ViewerHandler) ExportLandmarks(c *fiber.Ctx) error {
	session := h.session(c)
	if session == nil {
		return nil
	}
	doc, err := session.Annotator.ExportJSON()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": true, "message": err.Error()})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=\"landmarks.json\"")
	return c.Send(doc)
}

// session resolves the :id path param to a live session. On failure it writes
// the error response and returns nil.
func (h *ViewerHandler) session(c *fiber.Ctx) *viewer.Session {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": InvalidUuidError})
		return nil
	}
	session, err := h.Sessions.Get(sessionID)
	if err != nil {
		_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": true, "message": "viewer session not found"})
		return nil
	}
	return session
}
