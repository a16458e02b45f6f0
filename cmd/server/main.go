package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	httpapi "github.com/bookswap/realtime/internal/api/http"
	"github.com/bookswap/realtime/internal/api/ws"
	"github.com/bookswap/realtime/internal/application/auth"
	"github.com/bookswap/realtime/internal/application/chat"
	"github.com/bookswap/realtime/internal/application/invitation"
	"github.com/bookswap/realtime/internal/config"
	"github.com/bookswap/realtime/internal/domain/user"
	"github.com/bookswap/realtime/internal/infrastructure/hub"
	"github.com/bookswap/realtime/internal/infrastructure/keystore"
	"github.com/bookswap/realtime/internal/infrastructure/memory"
	"github.com/bookswap/realtime/internal/infrastructure/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("dotenv error: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := zerolog.New(os.Stdout).Level(cfg.Level()).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	// collaborators
	userRepo := postgres.NewUserRepository(pool)
	operationRepo := postgres.NewOperationRepository(pool)

	keyStore := keystore.New()
	if err := keyStore.Add(user.SchemeUser, cfg.UserSigningKeys, cfg.UserDefaultKeyID); err != nil {
		log.Fatalf("keystore error: %v", err)
	}
	if err := keyStore.Add(user.SchemeAdmin, cfg.AdminSigningKeys, cfg.AdminDefaultKeyID); err != nil {
		log.Fatalf("keystore error: %v", err)
	}

	// shared state
	registry := hub.NewRegistry()
	rooms := chat.NewRooms()
	broadcaster := hub.NewBroadcaster(registry, rooms, logger)
	store := memory.NewInvitationStore()

	// services
	authSvc := auth.NewService(keyStore, auth.NewJWTVerifier(cfg.TokenIssuer), userRepo, logger)
	invitationSvc := invitation.NewService(store, operationRepo, broadcaster, invitation.Options{
		OperationTimeout: cfg.OperationUpdateTimeout,
		NotifyOnExpire:   cfg.NotifyOnExpire,
	}, logger)
	relay := chat.NewRelay(rooms, broadcaster, logger)

	// API
	dispatcher := ws.NewDispatcher(invitationSvc, relay, broadcaster, logger)
	wsHandler := ws.NewHandler(authSvc, registry, invitationSvc, relay, dispatcher, ws.Options{
		SendBuffer:      cfg.WS.SendBuffer,
		WriteTimeout:    cfg.WS.WriteTimeout,
		PongTimeout:     cfg.WS.PongTimeout,
		MaxMessageBytes: cfg.WS.MaxMessageBytes,
	}, cfg.WS.AllowedOrigins, logger)
	apiServer := httpapi.NewServer(authSvc, invitationSvc, registry, broadcaster, wsHandler, cfg.WS.SendBuffer, logger)

	httpServer := apiServer.HTTPServer(cfg.ServerAddr, registry.Close)

	// background loops
	go invitationSvc.RunSweeper(ctx, cfg.SweepInterval, cfg.InvitationTTL)

	// start server
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info().Int("connections", registry.Count()).Msg("shutting down")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
