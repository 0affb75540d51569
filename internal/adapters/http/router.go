package http

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/sks2025/werbrtc-sub000/internal/adapters/signal"
	"github.com/sks2025/werbrtc-sub000/internal/config"
	"github.com/sks2025/werbrtc-sub000/internal/metrics"
	transport "github.com/sks2025/werbrtc-sub000/internal/transport/http"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable identifier; it becomes
// the socket session id when the signaling channel connects.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// MetricsMiddleware records request counts and latencies per route.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RequestLogger emits one structured line per completed request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("module", "adapters.http").
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("remote_addr", c.ClientIP()).
			Msg("request completed")
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, h *transport.Handler, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(MetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
	}))

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ConsultSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/login-with-token", h.LoginWithToken)
	authGroup.POST("/admin/login", h.AdminLogin)
	authGroup.GET("/me", h.AuthRequired(), h.Me)

	roomGroup := api.Group("/rooms")
	roomGroup.POST("/create", h.AuthRequired(), h.CreateRoom)
	roomGroup.GET("", h.AuthRequired(), h.ListRooms)
	roomGroup.POST("/join/:roomId", h.JoinRoom)
	roomGroup.GET("/:roomId", h.GetRoom)
	roomGroup.DELETE("/:roomId", h.AuthRequired(), h.CloseRoom)

	consGroup := api.Group("/consultations")
	consGroup.POST("", h.AuthRequired(), h.CreateConsultation)
	consGroup.GET("/:id", h.AuthRequired(), h.GetConsultation)
	consGroup.GET("/room/:roomId", h.AuthRequired(), h.ListConsultationsByRoom)
	consGroup.PATCH("/:id", h.AuthRequired(), h.UpdateConsultation)

	mediaGroup := api.Group("/media")
	mediaGroup.POST("/capture-image", h.AuthRequired(), h.CaptureImage)
	mediaGroup.POST("/save-signature", h.AuthRequired(), h.SaveSignature)
	mediaGroup.GET("/room/:roomId", h.AuthRequired(), h.ListRoomMedia)
	mediaGroup.GET("/:id", h.AuthRequired(), h.GetMedia)

	locGroup := api.Group("/location")
	locGroup.POST("/save", h.SaveLocation)
	locGroup.GET("/room/:roomId", h.AuthRequired(), h.ListRoomLocations)

	api.POST("/notify/email", h.AuthRequired(), h.NotifyEmail)
	api.GET("/chat/:roomId", h.ChatHistory)

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r
}
