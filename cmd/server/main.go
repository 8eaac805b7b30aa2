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

	router "github.com/dkeye/Pulse/internal/adapters/http"
	wssignal "github.com/dkeye/Pulse/internal/adapters/signal"
	"github.com/dkeye/Pulse/internal/app"
	"github.com/dkeye/Pulse/internal/auth"
	"github.com/dkeye/Pulse/internal/config"
	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/notify"
	"github.com/dkeye/Pulse/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	var messages core.MessageStore
	if cfg.DBPath != "" {
		db, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open store")
		}
		defer db.Close()
		messages = db
		log.Info().Str("path", cfg.DBPath).Msg("sqlite store")
	} else {
		messages = store.NewMemory()
		log.Warn().Msg("in-memory store, messages will not survive restart")
	}

	var notifier core.Notifier = notify.Nop{}
	if cfg.NotifyURL != "" {
		notifier = notify.NewWebhook(cfg.NotifyURL)
	}

	rooms := app.NewRegistry()
	calls := app.NewCoordinator(rooms, notifier, cfg.RingTimeout)
	chat := app.NewChatService(messages, rooms, notifier)
	gateway := app.NewGateway(auth.NewTokenVerifier(cfg.Secret), messages, rooms, calls)
	ctrl := wssignal.NewController(gateway, calls, chat, cfg.ReadLimit, cfg.PingPeriod, cfg.AuthTimeout)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rooms.Sweep()
			}
		}
	}()

	r := router.SetupRouter(ctx, cfg, ctrl, rooms, calls)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Pulse gateway started")
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
