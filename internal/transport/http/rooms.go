package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sks2025/werbrtc-sub000/internal/domain"
	"github.com/sks2025/werbrtc-sub000/internal/store"
)

type createRoomRequest struct {
	Name string `json:"name"`
}

// CreateRoom is the single source of truth for room existence: the row is
// persisted first, then runtime state is registered so a socket join can
// find it immediately.
func (h *Handler) CreateRoom(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		respondErr(c, http.StatusUnauthorized, "invalid token")
		return
	}
	var req createRoomRequest
	_ = c.ShouldBindJSON(&req)

	room := &domain.Room{
		ID:       domain.RoomID(uuid.NewString()),
		Name:     req.Name,
		DoctorID: claims.DoctorID,
		Status:   domain.RoomActive,
	}
	if err := h.Store.CreateRoom(c.Request.Context(), room); err != nil {
		log.Error().Err(err).Str("module", "transport.http").Msg("create room")
		respondErr(c, http.StatusInternalServerError, "could not create room")
		return
	}
	h.Rooms.Register(room)
	respondOK(c, http.StatusCreated, room)
}

type joinRoomRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// JoinRoom is the patient's pre-join: it records who is about to enter the
// room so recordings can reference a patient row.
func (h *Handler) JoinRoom(c *gin.Context) {
	roomID := domain.RoomID(c.Param("roomId"))
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "patient name is required")
		return
	}

	room, err := h.Store.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondErr(c, http.StatusNotFound, "room not found")
			return
		}
		respondErr(c, http.StatusInternalServerError, "could not join room")
		return
	}
	if !room.IsActive() {
		respondErr(c, http.StatusConflict, "room is closed")
		return
	}

	patient, err := h.Store.CreatePatient(c.Request.Context(), req.Name, req.Email, req.Phone, roomID)
	if err != nil {
		log.Error().Err(err).Str("module", "transport.http").Str("room", string(roomID)).Msg("create patient")
		respondErr(c, http.StatusInternalServerError, "could not join room")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"room": room, "patient": patient})
}

func (h *Handler) GetRoom(c *gin.Context) {
	roomID := domain.RoomID(c.Param("roomId"))
	room, err := h.Store.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondErr(c, http.StatusNotFound, "room not found")
			return
		}
		respondErr(c, http.StatusInternalServerError, "could not load room")
		return
	}

	participants := 0
	if svc, ok := h.Rooms.Get(roomID); ok {
		participants = svc.ParticipantCount()
	}
	respondOK(c, http.StatusOK, gin.H{"room": room, "participantCount": participants})
}

func (h *Handler) ListRooms(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		respondErr(c, http.StatusUnauthorized, "invalid token")
		return
	}
	rooms, err := h.Store.ListRoomsByDoctor(c.Request.Context(), claims.DoctorID)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "could not list rooms")
		return
	}
	respondOK(c, http.StatusOK, rooms)
}

func (h *Handler) CloseRoom(c *gin.Context) {
	roomID := domain.RoomID(c.Param("roomId"))
	if err := h.Store.CloseRoom(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondErr(c, http.StatusNotFound, "room not found")
			return
		}
		respondErr(c, http.StatusInternalServerError, "could not close room")
		return
	}
	h.Rooms.Remove(roomID)
	respondOK(c, http.StatusOK, gin.H{"roomId": roomID, "status": domain.RoomClosed})
}

// ChatHistory backfills the ephemeral conversation for a reconnecting client.
func (h *Handler) ChatHistory(c *gin.Context) {
	roomID := domain.RoomID(c.Param("roomId"))
	msgs, err := h.Chat.ChatHistory(c.Request.Context(), roomID)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "could not load chat history")
		return
	}
	if msgs == nil {
		msgs = []store.ChatMessage{}
	}
	respondOK(c, http.StatusOK, msgs)
}
