package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type notifyEmailRequest struct {
	To      string `json:"to" binding:"required,email"`
	Subject string `json:"subject"`
	RoomID  string `json:"roomId"`
	Message string `json:"message" binding:"required"`
}

// NotifyEmail sends a consultation notification (e.g. the room link or a
// visit summary) to a patient's mailbox.
func (h *Handler) NotifyEmail(c *gin.Context) {
	var req notifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "to and message are required")
		return
	}
	if !h.Mailer.Configured() {
		respondErr(c, http.StatusServiceUnavailable, "email delivery is not configured")
		return
	}

	subject := req.Subject
	if subject == "" {
		subject = "Your video consultation"
	}
	body := req.Message
	if req.RoomID != "" {
		body = fmt.Sprintf("%s\n\nRoom: %s", req.Message, req.RoomID)
	}
	if err := h.Mailer.Send(req.To, subject, body); err != nil {
		log.Error().Err(err).Str("module", "transport.http").Msg("send notification mail")
		respondErr(c, http.StatusInternalServerError, "could not send email")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"to": req.To})
}
