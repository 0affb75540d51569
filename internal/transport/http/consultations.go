package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sks2025/werbrtc-sub000/internal/domain"
	"github.com/sks2025/werbrtc-sub000/internal/store"
)

type createConsultationRequest struct {
	RoomID    string `json:"roomId" binding:"required"`
	PatientID *int64 `json:"patientId"`
	Notes     string `json:"notes"`
}

func (h *Handler) CreateConsultation(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		respondErr(c, http.StatusUnauthorized, "invalid token")
		return
	}
	var req createConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "roomId is required")
		return
	}

	if _, err := h.Store.GetRoom(c.Request.Context(), domain.RoomID(req.RoomID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondErr(c, http.StatusNotFound, "room not found")
			return
		}
		respondErr(c, http.StatusInternalServerError, "could not create consultation")
		return
	}

	now := time.Now()
	cons, err := h.Store.CreateConsultation(c.Request.Context(), &domain.Consultation{
		RoomID:    domain.RoomID(req.RoomID),
		DoctorID:  claims.DoctorID,
		PatientID: req.PatientID,
		Notes:     req.Notes,
		Status:    domain.ConsultationInProgress,
		StartedAt: &now,
	})
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "could not create consultation")
		return
	}
	respondOK(c, http.StatusCreated, cons)
}

func (h *Handler) GetConsultation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondErr(c, http.StatusBadRequest, "invalid consultation id")
		return
	}
	cons, err := h.Store.GetConsultation(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondErr(c, http.StatusNotFound, "consultation not found")
			return
		}
		respondErr(c, http.StatusInternalServerError, "could not load consultation")
		return
	}
	respondOK(c, http.StatusOK, cons)
}

func (h *Handler) ListConsultationsByRoom(c *gin.Context) {
	roomID := domain.RoomID(c.Param("roomId"))
	out, err := h.Store.ListConsultationsByRoom(c.Request.Context(), roomID)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "could not list consultations")
		return
	}
	respondOK(c, http.StatusOK, out)
}

type updateConsultationRequest struct {
	Notes        *string `json:"notes"`
	Prescription *string `json:"prescription"`
	Status       *string `json:"status"`
}

func (h *Handler) UpdateConsultation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondErr(c, http.StatusBadRequest, "invalid consultation id")
		return
	}
	var req updateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "invalid update payload")
		return
	}

	var status *domain.ConsultationStatus
	if req.Status != nil {
		s := domain.ConsultationStatus(*req.Status)
		switch s {
		case domain.ConsultationScheduled, domain.ConsultationInProgress, domain.ConsultationCompleted, domain.ConsultationCancelled:
			status = &s
		default:
			respondErr(c, http.StatusBadRequest, "unknown consultation status")
			return
		}
	}

	cons, err := h.Store.UpdateConsultation(c.Request.Context(), id, req.Notes, req.Prescription, status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondErr(c, http.StatusNotFound, "consultation not found")
			return
		}
		respondErr(c, http.StatusInternalServerError, "could not update consultation")
		return
	}
	respondOK(c, http.StatusOK, cons)
}
