// internal/httpserver/server.go
//
// HTTP server wiring for the Emoji Game backend.
// Responsibilities:
//   - Router + middleware (request IDs, zerolog access log, panic recovery,
//     timeouts, JSON content type, CORS).
//   - Public endpoints: "/", "/health", "/debug/emojis".
//   - Game endpoints (optional auth): /game/*, including the WebSocket stream.
//   - Daily deck endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /rounds/mine.
//
// Notes:
//   - CORS is origin‑aware and credentials‑enabled (so cookies work).
//   - Sessions live in memory only; finished rounds are written to SQLite
//     on a best-effort basis.

package httpserver

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/emoji-game/internal/auth"
	"github.com/robalobadob/emoji-game/internal/daily"
	"github.com/robalobadob/emoji-game/internal/emojis"
	"github.com/robalobadob/emoji-game/internal/game"
	"github.com/robalobadob/emoji-game/internal/store"
)

// Options carries the non-dependency settings of the server.
type Options struct {
	ClientOrigin string
	DailySalt    string
	Default      []game.Item // classic board
	Pool         []game.Item // daily decks are drawn from here
}

// Server bundles router, session store, database-backed stores and auth.
type Server struct {
	r        *chi.Mux
	sessions store.Store
	rounds   *store.Rounds
	daily    *dailyServer
	auth     *auth.Service
	opts     Options
	deck     *game.Deck
}

// New constructs a Server, installs middleware, and registers routes.
func New(sessions store.Store, db *sql.DB, authSvc *auth.Service, opts Options) (*Server, error) {
	deck, err := game.NewDeck(opts.Default)
	if err != nil {
		return nil, err
	}
	s := &Server{
		r:        chi.NewRouter(),
		sessions: sessions,
		rounds:   store.NewRounds(db),
		auth:     authSvc,
		opts:     opts,
		deck:     deck,
	}
	s.daily = newDailyServer(s, daily.NewStore(db))

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(hlog.NewHandler(log.Logger))
	s.r.Use(hlog.AccessHandler(accessLog))
	s.r.Use(chimw.Recoverer)
	s.r.Use(jsonContentType)
	s.r.Use(corsFor(opts.ClientOrigin))

	// The WebSocket stream outlives any request timeout.
	s.r.With(authSvc.Optional, s.loadSession).Get("/game/{id}/ws", s.handleStream)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"service":"emoji-game","endpoints":["/health","POST /game/new","POST /game/{id}/click","/daily/*","/auth/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Get("/debug/emojis", func(w http.ResponseWriter, r *http.Request) {
			d, p := emojis.Stats()
			_ = json.NewEncoder(w).Encode(map[string]int{"default": d, "pool": p, "board": s.deck.Len()})
		})

		// Game endpoints: optional auth, guests can play
		r.Group(func(r chi.Router) {
			r.Use(authSvc.Optional)
			s.mountGame(r)
			s.daily.mount(r)
		})

		// Auth + profile/stats
		s.mountAuth(r)
	})

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s, nil
}

// Handler exposes the router (used by http.Server and tests).
func (s *Server) Handler() http.Handler { return s.r }

// ----------------------------- middleware ----------------------------------

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("req_id", chimw.GetReqID(r.Context())).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFor enables credentialed CORS for a single origin.
func corsFor(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes {"error": code} with status.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
