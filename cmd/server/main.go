package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/sks2025/werbrtc-sub000/internal/adapters/http"
	wsignal "github.com/sks2025/werbrtc-sub000/internal/adapters/signal"
	"github.com/sks2025/werbrtc-sub000/internal/app"
	"github.com/sks2025/werbrtc-sub000/internal/app/orch"
	"github.com/sks2025/werbrtc-sub000/internal/auth"
	"github.com/sks2025/werbrtc-sub000/internal/config"
	"github.com/sks2025/werbrtc-sub000/internal/mailer"
	"github.com/sks2025/werbrtc-sub000/internal/store"
	transport "github.com/sks2025/werbrtc-sub000/internal/transport/http"
	"github.com/sks2025/werbrtc-sub000/internal/turnserver"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("database_url is required")
	}
	log.Info().Msg("running database migrations")
	if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pg.Close()
	log.Info().Msg("connected to PostgreSQL")

	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		log.Info().Msg("connected to Redis")
	}

	var iceServers []wsignal.ICEServer
	if cfg.TURN.Enabled {
		turnSrv, err := turnserver.Start(cfg.TURN)
		if err != nil {
			log.Fatal().Err(err).Msg("turn server failed")
		}
		defer turnSrv.Close()
		iceServers = append(iceServers, wsignal.ICEServer{
			URLs:       turnSrv.ICEURLs(),
			Username:   turnSrv.Username(),
			Credential: turnSrv.Password(),
		})
	}

	registry := app.NewSessionRegistry()
	rooms := app.NewRoomManager()
	streams := app.NewStreamAssembler(cfg.StreamTTL)
	go streams.Run(ctx, cfg.SweepInterval)

	orchestrator := &orch.Orchestrator{
		Registry:    registry,
		Rooms:       rooms,
		Streams:     streams,
		Negotiation: app.NewNegotiationTracker(),
		Policy:      app.SimplePolicy{},
		Store:       pg,
		Chat:        redisStore,
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		From:     cfg.SMTP.From,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	})
	handler := transport.NewHandler(pg, redisStore, tokens, rooms, mail)
	controller := wsignal.NewController(orchestrator, iceServers, cfg.ReadLimit, cfg.PingPeriod)

	r := router.SetupRouter(ctx, cfg, handler, controller)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("consultation server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
