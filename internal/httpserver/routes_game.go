// internal/httpserver/routes_game.go
//
// Game endpoints. Every per-session route resolves {id} through loadSession,
// which also checks that the caller owns the session.
//
//   POST /game/new                 → start a classic session
//   GET  /game/{id}                → current snapshot (fresh shuffle while playing)
//   POST /game/{id}/click          → onItemClicked(itemId)
//   POST /game/{id}/reset          → onPlayAgain()
//   POST /game/{id}/rules/dismiss  → onDismissRules()
//   GET  /game/{id}/views          → nav bar, rules dialog and result card models

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/emoji-game/internal/auth"
	"github.com/robalobadob/emoji-game/internal/game"
	"github.com/robalobadob/emoji-game/internal/store"
)

type ctxSessionKey struct{}

func (s *Server) mountGame(r chi.Router) {
	r.Post("/game/new", s.handleNewGame)

	r.Group(func(r chi.Router) {
		r.Use(s.loadSession)
		r.Get("/game/{id}", s.handleGetGame)
		r.Post("/game/{id}/click", s.handleClick)
		r.Post("/game/{id}/reset", s.handleEvent(game.Reset()))
		r.Post("/game/{id}/rules/dismiss", s.handleEvent(game.DismissRules()))
		r.Get("/game/{id}/views", s.handleViews)
	})
}

// loadSession resolves {id} and rejects callers that do not own it.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				hlog.FromRequest(r).Error().Err(err).Msg("load session")
			}
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		if !s.owns(r, sess) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxSessionKey{}, sess)))
	})
}

// owns reports whether the caller started sess, either signed in or through
// the anonymous cookie (a guest who signs up mid-round keeps access).
func (s *Server) owns(r *http.Request, sess *game.Session) bool {
	if p := auth.FromContext(r.Context()); p != nil && p.ID == sess.OwnerID {
		return true
	}
	anon := s.auth.AnonID(r)
	return anon != "" && anon == sess.OwnerID
}

func sessionFrom(r *http.Request) *game.Session {
	sess, _ := r.Context().Value(ctxSessionKey{}).(*game.Session)
	return sess
}

// newGameRes is returned by /game/new and /daily/new.
type newGameRes struct {
	GameID   string         `json:"gameId"`
	Mode     game.Mode      `json:"mode"`
	Date     string         `json:"date,omitempty"`
	Played   bool           `json:"played,omitempty"`
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
}

// handleNewGame creates a classic in-memory session for the caller.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	owner, signedIn := s.auth.PlayerID(w, r)
	sess := game.NewSession(owner, s.deck, nil)
	sess.Guest = !signedIn
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	hlog.FromRequest(r).Info().Str("gameId", sess.ID).Bool("guest", sess.Guest).Msg("session started")
	snap := sess.Snapshot()
	writeJSON(w, http.StatusCreated, newGameRes{GameID: sess.ID, Mode: sess.Mode, Snapshot: &snap})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Snapshot())
}

// eventRes is the response to any inbound event.
type eventRes struct {
	Result   game.Result   `json:"result"`
	Snapshot game.Snapshot `json:"snapshot"`
}

type clickReq struct {
	ItemID string `json:"itemId"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req clickReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	s.handleEvent(game.Click(req.ItemID)).ServeHTTP(w, r)
}

// handleEvent applies a fixed event to the request's session.
func (s *Server) handleEvent(ev game.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		snap, res, err := s.apply(r.Context(), sess, ev)
		switch {
		case errors.Is(err, game.ErrUnknownItem):
			hlog.FromRequest(r).Warn().Err(err).Str("gameId", sess.ID).Msg("click ignored")
			writeError(w, http.StatusBadRequest, "unknown_item")
			return
		case errors.Is(err, game.ErrLocked):
			writeError(w, http.StatusConflict, "locked")
			return
		case err != nil:
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, eventRes{Result: res, Snapshot: snap})
	}
}

// apply runs ev on sess and records the round when it ends. Shared by the
// JSON routes and the WebSocket stream.
func (s *Server) apply(ctx context.Context, sess *game.Session, ev game.Event) (game.Snapshot, game.Result, error) {
	snap, res, err := sess.Handle(ev)
	if err != nil {
		return snap, res, err
	}
	if res == game.ResultWon || res == game.ResultLost {
		s.roundEnded(ctx, sess, snap)
	}
	return snap, res, nil
}

// roundEnded writes history (and the daily result) on a best-effort basis.
func (s *Server) roundEnded(ctx context.Context, sess *game.Session, snap game.Snapshot) {
	if snap.Outcome == nil {
		return
	}
	userID, anonID := recordOwner(ctx, sess)
	rec := store.RoundRecord{
		SessionID:   sess.ID,
		UserID:      userID,
		AnonymousID: anonID,
		Mode:        string(sess.Mode),
		Won:         snap.Outcome.Won,
		Score:       snap.Outcome.Score,
		Total:       snap.Total,
		FinishedAt:  time.Now().UTC(),
	}
	if err := s.rounds.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("record round")
	}
	if sess.Mode == game.ModeDaily {
		player := userID
		if player == "" {
			player = anonID
		}
		s.daily.finished(ctx, sess, snap, player)
	}
	log.Info().Str("gameId", sess.ID).Bool("won", snap.Outcome.Won).Int("score", snap.Outcome.Score).Msg("round finished")
}

// recordOwner picks who a finished round belongs to. A signed-in caller wins
// over the session's original owner, so a guest who signed up mid-round gets
// the round on their account.
func recordOwner(ctx context.Context, sess *game.Session) (userID, anonID string) {
	if p := auth.FromContext(ctx); p != nil {
		return p.ID, ""
	}
	if sess.Guest {
		return "", sess.OwnerID
	}
	return sess.OwnerID, ""
}

// viewsRes bundles the stateless presentation models.
type viewsRes struct {
	Status game.StatusBar   `json:"status"`
	Rules  game.RulesDialog `json:"rules"`
	Result *game.ResultCard `json:"result,omitempty"`
}

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	snap := sessionFrom(r).Snapshot()
	res := viewsRes{Status: game.Status(snap), Rules: game.Rules(snap)}
	if card, ok := game.Card(snap); ok {
		res.Result = &card
	}
	writeJSON(w, http.StatusOK, res)
}
