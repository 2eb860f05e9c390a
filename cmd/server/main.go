package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rtchat/internal/config"
	"rtchat/internal/httpserver"
	"rtchat/internal/logger"
	"rtchat/internal/security"
	mongostore "rtchat/internal/store/mongo"
	"rtchat/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg)

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongostore.Close(ctx, db); err != nil {
			log.Error().Err(err).Msg("failed to close mongodb connection")
		}
	}()

	ctx, cancel = context.WithTimeout(context.Background(), 15*time.Second)
	err = mongostore.EnsureIndexes(ctx, db)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to ensure indexes")
	}

	// Security components
	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	passwordHasher := security.NewPasswordHasher(0)

	// Live-connection hub
	hub := ws.NewHub(cfg.SendBufferSize, log)

	// Build HTTP router
	router := httpserver.NewRouter(cfg, db, hub, tokenSvc, passwordHasher, log)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	hub.Close()
}
