package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sks2025/werbrtc-sub000/internal/auth"
	"github.com/sks2025/werbrtc-sub000/internal/store"
)

const (
	loginAttemptLimit  = 10
	loginAttemptWindow = 15 * time.Minute
)

type registerRequest struct {
	Name           string `json:"name" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Phone          string `json:"phone"`
	Password       string `json:"password" binding:"required,min=8"`
	Specialization string `json:"specialization"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "missing or invalid registration fields")
		return
	}

	if _, err := h.Store.GetDoctorByEmail(c.Request.Context(), req.Email); err == nil {
		respondErr(c, http.StatusConflict, "email already registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Str("module", "transport.http").Msg("register lookup")
		respondErr(c, http.StatusInternalServerError, "registration failed")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "registration failed")
		return
	}
	doctor, err := h.Store.CreateDoctor(c.Request.Context(), req.Name, req.Email, req.Phone, hash, req.Specialization)
	if err != nil {
		log.Error().Err(err).Str("module", "transport.http").Msg("create doctor")
		respondErr(c, http.StatusInternalServerError, "registration failed")
		return
	}

	token, err := h.Tokens.Issue(doctor.ID, doctor.Email, doctor.Name)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "registration failed")
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"doctor": doctor, "token": token})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "email and password are required")
		return
	}

	if ok, _ := h.Chat.AllowLogin(c.Request.Context(), req.Email, loginAttemptLimit, loginAttemptWindow); !ok {
		respondErr(c, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	doctor, err := h.Store.GetDoctorByEmail(c.Request.Context(), req.Email)
	if err != nil || !auth.CheckPassword(doctor.PasswordHash, req.Password) {
		respondErr(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.Tokens.Issue(doctor.ID, doctor.Email, doctor.Name)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "login failed")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"doctor": doctor, "token": token})
}

type tokenLoginRequest struct {
	Token string `json:"token" binding:"required"`
}

// LoginWithToken verifies a previously issued JWT. Tokens are stateless and
// signed; nothing token-shaped is ever read from the doctors table.
func (h *Handler) LoginWithToken(c *gin.Context) {
	var req tokenLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "token is required")
		return
	}
	claims, err := h.Tokens.Parse(req.Token)
	if err != nil {
		respondErr(c, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	doctor, err := h.Store.GetDoctorByID(c.Request.Context(), claims.DoctorID)
	if err != nil {
		respondErr(c, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"doctor": doctor})
}

func (h *Handler) Me(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		respondErr(c, http.StatusUnauthorized, "invalid token")
		return
	}
	doctor, err := h.Store.GetDoctorByID(c.Request.Context(), claims.DoctorID)
	if err != nil {
		respondErr(c, http.StatusNotFound, "doctor not found")
		return
	}
	respondOK(c, http.StatusOK, doctor)
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "email and password are required")
		return
	}
	admin, err := h.Store.GetAdminByEmail(c.Request.Context(), req.Email)
	if err != nil || !auth.CheckPassword(admin.PasswordHash, req.Password) {
		respondErr(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := h.Tokens.Issue(admin.ID, admin.Email, "admin")
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "login failed")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"admin": admin, "token": token})
}
