package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/emoji-game/internal/auth"
	"github.com/robalobadob/emoji-game/internal/config"
	"github.com/robalobadob/emoji-game/internal/db"
	"github.com/robalobadob/emoji-game/internal/emojis"
	"github.com/robalobadob/emoji-game/internal/httpserver"
	"github.com/robalobadob/emoji-game/internal/store"
)

const (
	sessionIdle  = 2 * time.Hour
	pruneEvery   = 10 * time.Minute
	drainTimeout = 10 * time.Second
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := emojis.Init(cfg.EmojisFile, cfg.EmojisPoolFile); err != nil {
		log.Fatal().Err(err).Msg("failed to load emoji catalogue")
	}

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer conn.Close()
	if err := db.Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	authSvc := auth.NewService(auth.NewUsers(conn), auth.Options{
		Secret:      cfg.JWTSecret,
		ExpiresDays: cfg.JWTExpiresDays,
		CookieName:  cfg.CookieName,
		Secure:      cfg.Production(),
	})
	sessions := store.NewMemoryStore()
	srv, err := httpserver.New(sessions, conn, authSvc, httpserver.Options{
		ClientOrigin: cfg.ClientOrigin,
		DailySalt:    cfg.DailySalt,
		Default:      emojis.Default(),
		Pool:         emojis.Pool(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go pruneSessions(ctx, sessions)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	d, p := emojis.Stats()
	log.Info().Str("port", cfg.Port).Int("board", d).Int("pool", p).Msg("starting emoji-game server")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

// pruneSessions drops sessions nobody has touched for a while.
func pruneSessions(ctx context.Context, m *store.Memory) {
	t := time.NewTicker(pruneEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Prune(sessionIdle); n > 0 {
				log.Debug().Int("pruned", n).Int("live", m.Len()).Msg("idle sessions pruned")
			}
		}
	}
}
