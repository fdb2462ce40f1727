package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/api/ws"
	"github.com/your-org/timeclock/internal/attendance"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/storage"
	"github.com/your-org/timeclock/internal/vision"
	"github.com/your-org/timeclock/pkg/dto"
)

// DescriptorExtractor produces a face descriptor from raw image bytes.
type DescriptorExtractor interface {
	ExtractDescriptor(ctx context.Context, image []byte) ([]float32, float32, error)
}

type PunchHandler struct {
	recorder  *attendance.Recorder
	extractor DescriptorExtractor
	minio     *storage.MinIOStore
	db        *storage.PostgresStore
	hub       *ws.Hub
}

func NewPunchHandler(recorder *attendance.Recorder, extractor DescriptorExtractor, minio *storage.MinIOStore, db *storage.PostgresStore, hub *ws.Hub) *PunchHandler {
	return &PunchHandler{recorder: recorder, extractor: extractor, minio: minio, db: db, hub: hub}
}

// Punch processes a camera frame sent directly over HTTP. The image
// travels in the "image" file part; an optional employee_id form field
// switches to 1:1 verification against that employee only. Unmatched
// faces and cooldown hits come back 200 with accepted=false so the
// kiosk screen can show the reason and keep scanning.
func (h *PunchHandler) Punch(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	kioskID := c.PostForm("kiosk_id")

	descriptor, _, err := h.extractor.ExtractDescriptor(c.Request.Context(), imageData)
	if err != nil {
		if errors.Is(err, vision.ErrNoFace) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no face detected"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "extract descriptor: " + err.Error()})
		return
	}

	snapshotKey := "snapshots/" + uuid.New().String() + ".jpg"
	if err := h.minio.PutObject(c.Request.Context(), snapshotKey, imageData, "image/jpeg"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store snapshot failed"})
		return
	}

	var result models.PunchResult
	if empStr := c.PostForm("employee_id"); empStr != "" {
		empID, err := uuid.Parse(empStr)
		if err != nil {
			h.discardSnapshot(c.Request.Context(), snapshotKey)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee_id"})
			return
		}
		result, err = h.recorder.RecordDescriptorFor(c.Request.Context(), empID, descriptor, snapshotKey)
		if err != nil {
			h.discardSnapshot(c.Request.Context(), snapshotKey)
			h.recordError(c, err)
			return
		}
	} else {
		result, err = h.recorder.RecordDescriptor(c.Request.Context(), descriptor, snapshotKey)
		if err != nil {
			h.discardSnapshot(c.Request.Context(), snapshotKey)
			h.recordError(c, err)
			return
		}
	}

	// Only an appended event keeps its snapshot; a rejected punch
	// leaves nothing behind for the retention sweep to miss.
	if !result.Accepted {
		h.discardSnapshot(c.Request.Context(), snapshotKey)
	}

	result.KioskID = kioskID
	h.hub.BroadcastPunch(result)

	c.JSON(http.StatusOK, punchResponse(result))
}

// ManualPunch records an operator-entered punch without biometric
// verification. It still obeys alternation and the cooldown window.
func (h *PunchHandler) ManualPunch(c *gin.Context) {
	var req dto.ManualPunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.recorder.RecordManual(c.Request.Context(), req.EmployeeID)
	if err != nil {
		h.recordError(c, err)
		return
	}

	result.KioskID = req.KioskID
	h.hub.BroadcastPunch(result)

	c.JSON(http.StatusOK, punchResponse(result))
}

// Snapshot streams the frame stored with an attendance event.
func (h *PunchHandler) Snapshot(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	ev, err := h.db.GetEvent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ev == nil || ev.SnapshotKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), ev.SnapshotKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *PunchHandler) discardSnapshot(ctx context.Context, key string) {
	if err := h.minio.DeleteObject(ctx, key); err != nil && ctx.Err() == nil {
		slog.Warn("discard unused snapshot", "key", key, "error", err)
	}
}

func (h *PunchHandler) recordError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrEmployeeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrIncompleteEnrollment):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func punchResponse(result models.PunchResult) dto.PunchResponse {
	return dto.PunchResponse{
		EventID:      result.EventID,
		EmployeeID:   result.EmployeeID,
		EmployeeName: result.EmployeeName,
		Timestamp:    result.Timestamp.Format(time.RFC3339),
		Kind:         string(result.Kind),
		Verification: string(result.Verification),
		Confidence:   result.Confidence,
		Accepted:     result.Accepted,
		Message:      result.Message,
	}
}
