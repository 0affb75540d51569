package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/sks2025/werbrtc-sub000/internal/domain"
	"github.com/sks2025/werbrtc-sub000/internal/store"
)

type saveMediaRequest struct {
	RoomID    string `json:"roomId" binding:"required"`
	DoctorID  int64  `json:"doctorId"`
	PatientID *int64 `json:"patientId"`
	MimeType  string `json:"mimeType"`
	MediaData string `json:"mediaData" binding:"required"`
}

func (h *Handler) saveMedia(c *gin.Context, mediaType domain.MediaType) {
	var req saveMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "roomId and mediaData are required")
		return
	}

	if _, err := h.Store.GetRoom(c.Request.Context(), domain.RoomID(req.RoomID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondErr(c, http.StatusNotFound, "room not found")
			return
		}
		respondErr(c, http.StatusInternalServerError, "could not save media")
		return
	}

	doctorID := req.DoctorID
	if claims, ok := claimsFrom(c); ok {
		doctorID = claims.DoctorID
	}

	rec := &domain.MediaRecord{
		ID:        domain.MediaID(ulid.Make().String()),
		RoomID:    domain.RoomID(req.RoomID),
		MediaType: mediaType,
		Status:    domain.StatusCompleted,
		DoctorID:  doctorID,
		PatientID: req.PatientID,
		MimeType:  req.MimeType,
		Data:      req.MediaData,
		SizeBytes: int64(len(req.MediaData)),
	}
	if err := h.Store.CreateMedia(c.Request.Context(), rec); err != nil {
		log.Error().Err(err).Str("module", "transport.http").Str("room", req.RoomID).Msg("save media")
		respondErr(c, http.StatusInternalServerError, "could not save media")
		return
	}
	// Payload omitted from the response; the row is fetchable by id.
	rec.Data = ""
	respondOK(c, http.StatusCreated, rec)
}

func (h *Handler) CaptureImage(c *gin.Context) {
	h.saveMedia(c, domain.MediaImage)
}

func (h *Handler) SaveSignature(c *gin.Context) {
	h.saveMedia(c, domain.MediaSignature)
}

func (h *Handler) ListRoomMedia(c *gin.Context) {
	roomID := domain.RoomID(c.Param("roomId"))
	media, err := h.Store.ListMediaByRoom(c.Request.Context(), roomID)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "could not list media")
		return
	}
	respondOK(c, http.StatusOK, media)
}

func (h *Handler) GetMedia(c *gin.Context) {
	id := domain.MediaID(c.Param("id"))
	media, err := h.Store.GetMedia(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondErr(c, http.StatusNotFound, "media not found")
			return
		}
		respondErr(c, http.StatusInternalServerError, "could not load media")
		return
	}
	respondOK(c, http.StatusOK, media)
}
