// Package http contains the REST handlers for the consultation API. Every
// response uses the {success, data|error} envelope the frontend expects.
package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sks2025/werbrtc-sub000/internal/app"
	"github.com/sks2025/werbrtc-sub000/internal/auth"
	"github.com/sks2025/werbrtc-sub000/internal/mailer"
	"github.com/sks2025/werbrtc-sub000/internal/store"
)

const claimsKey = "claims"

// Handler carries shared dependencies for all REST handlers.
type Handler struct {
	Store  store.DataStore
	Chat   *store.RedisStore
	Tokens *auth.TokenIssuer
	Rooms  *app.RoomManager
	Mailer *mailer.Mailer
}

func NewHandler(st store.DataStore, chat *store.RedisStore, tokens *auth.TokenIssuer, rooms *app.RoomManager, m *mailer.Mailer) *Handler {
	return &Handler{Store: st, Chat: chat, Tokens: tokens, Rooms: rooms, Mailer: m}
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondErr(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// AuthRequired verifies the bearer token and stashes the claims.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			respondErr(c, http.StatusUnauthorized, "authorization header is required")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			respondErr(c, http.StatusUnauthorized, "authorization header format must be Bearer {token}")
			c.Abort()
			return
		}
		claims, err := h.Tokens.Parse(parts[1])
		if err != nil {
			respondErr(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
