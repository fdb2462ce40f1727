package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/timeclock/internal/queue"
	"github.com/your-org/timeclock/internal/storage"
	"github.com/your-org/timeclock/internal/vision"
)

type SystemHandler struct {
	db        *storage.PostgresStore
	minio     *storage.MinIOStore
	bus       *queue.Bus
	readiness *vision.Readiness
}

func NewSystemHandler(db *storage.PostgresStore, minio *storage.MinIOStore, bus *queue.Bus, readiness *vision.Readiness) *SystemHandler {
	return &SystemHandler{db: db, minio: minio, bus: bus, readiness: readiness}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports dependency health. The service is not ready until the
// ONNX models finished loading, so kiosks keep their "warming up" screen
// instead of failing punches.
func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	if err := h.minio.Ping(ctx); err != nil {
		checks["minio"] = err.Error()
		healthy = false
	} else {
		checks["minio"] = "ok"
	}

	if err := h.bus.Ping(); err != nil {
		checks["nats"] = err.Error()
		healthy = false
	} else {
		checks["nats"] = "ok"
	}

	state, verr := h.readiness.State()
	if state == vision.StateReady {
		checks["vision"] = "ok"
	} else {
		checks["vision"] = state.String()
		if verr != nil {
			checks["vision"] = state.String() + ": " + verr.Error()
		}
		healthy = false
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}
