package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sks2025/werbrtc-sub000/internal/domain"
	"github.com/sks2025/werbrtc-sub000/internal/store"
)

type saveLocationRequest struct {
	RoomID    string   `json:"roomId" binding:"required"`
	Role      string   `json:"role" binding:"required"`
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	Accuracy  float64  `json:"accuracy"`
}

func (h *Handler) SaveLocation(c *gin.Context) {
	var req saveLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "roomId, role, latitude and longitude are required")
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		respondErr(c, http.StatusBadRequest, "unknown role")
		return
	}
	if _, err := h.Store.GetRoom(c.Request.Context(), domain.RoomID(req.RoomID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondErr(c, http.StatusNotFound, "room not found")
			return
		}
		respondErr(c, http.StatusInternalServerError, "could not save location")
		return
	}

	loc, err := h.Store.SaveLocation(c.Request.Context(), &domain.Location{
		RoomID:    domain.RoomID(req.RoomID),
		Role:      role,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Accuracy:  req.Accuracy,
	})
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "could not save location")
		return
	}
	respondOK(c, http.StatusCreated, loc)
}

func (h *Handler) ListRoomLocations(c *gin.Context) {
	roomID := domain.RoomID(c.Param("roomId"))
	locs, err := h.Store.ListLocationsByRoom(c.Request.Context(), roomID)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "could not list locations")
		return
	}
	respondOK(c, http.StatusOK, locs)
}
