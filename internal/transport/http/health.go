package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	healthy := true

	if err := h.Store.Ping(c.Request.Context()); err != nil {
		status["database"] = "down"
		healthy = false
	} else {
		status["database"] = "up"
	}
	if h.Chat != nil {
		if err := h.Chat.Ping(c.Request.Context()); err != nil {
			status["redis"] = "down"
		} else {
			status["redis"] = "up"
		}
	}

	if !healthy {
		status["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "data": status})
		return
	}
	respondOK(c, http.StatusOK, status)
}
