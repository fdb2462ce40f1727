package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/timeclock/internal/queue"
)

type KioskHandler struct {
	bus *queue.Bus
}

func NewKioskHandler(bus *queue.Bus) *KioskHandler {
	return &KioskHandler{bus: bus}
}

// Resume tells a paused kiosk to return to scanning, typically after the
// frontend finished showing the punch confirmation.
func (h *KioskHandler) Resume(c *gin.Context) {
	kioskID := c.Param("id")
	if kioskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kiosk id required"})
		return
	}

	if err := h.bus.NotifyKioskResume(kioskID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "resumed", "kiosk_id": kioskID})
}
