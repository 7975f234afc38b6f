// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Deck" mode.
//   - POST /daily/new         → start (or resume) today's session
//   - GET  /daily/leaderboard → top 20 results for today (or ?date=YYYY-MM-DD)
//
// Daily sessions are ordinary game sessions (played through /game/{id}/*) with
// two differences: the deck is picked from the pool by date + salt, and the
// round cannot be replayed once it ends. Each player gets one stored result
// per day.

package httpserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/emoji-game/internal/daily"
	"github.com/robalobadob/emoji-game/internal/game"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	store    *daily.Store
	now      func() time.Time
	mu       sync.Mutex        // guards sessions
	sessions map[string]string // player|date → session id
}

func newDailyServer(s *Server, st *daily.Store) *dailyServer {
	return &dailyServer{srv: s, store: st, now: time.Now, sessions: make(map[string]string)}
}

func (d *dailyServer) mount(r chi.Router) {
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", d.handleNew)
		r.Get("/leaderboard", d.handleLeaderboard)
	})
}

// deckFor returns today's date key and deck.
func (d *dailyServer) deckFor(now time.Time) (string, []game.Item) {
	size := len(d.srv.opts.Default)
	return daily.DateKey(now), daily.Deck(now, d.srv.opts.DailySalt, d.srv.opts.Pool, size)
}

// handleNew resumes the caller's session for today or starts a new one.
// Players with a stored result for today get Played=true and no session.
// A signed-in player is also matched by their anonymous cookie, so signing up
// mid-day does not open a second daily round.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	owner, signedIn := d.srv.auth.PlayerID(w, r)
	date, items := d.deckFor(d.now())
	ids := []string{owner}
	if anon := d.srv.auth.AnonID(r); anon != "" && anon != owner {
		ids = append(ids, anon)
	}

	for _, id := range ids {
		played, err := d.store.AlreadyPlayed(r.Context(), id, date)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("daily already played")
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if played {
			writeJSON(w, http.StatusOK, newGameRes{Mode: game.ModeDaily, Date: date, Played: true})
			return
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		key := id + "|" + date
		sid, ok := d.sessions[key]
		if !ok {
			continue
		}
		sess, err := d.srv.sessions.Get(r.Context(), sid)
		if err != nil {
			// Pruned or deleted; forget it.
			delete(d.sessions, key)
			continue
		}
		snap := sess.Snapshot()
		writeJSON(w, http.StatusOK, newGameRes{GameID: sess.ID, Mode: sess.Mode, Date: date, Snapshot: &snap})
		return
	}

	deck, err := game.NewDeck(items)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("daily deck")
		writeError(w, http.StatusInternalServerError, "deck_error")
		return
	}
	sess := game.NewSession(owner, deck, nil)
	sess.Guest = !signedIn
	sess.Mode = game.ModeDaily
	sess.OneShot = true
	if err := d.srv.sessions.Save(r.Context(), sess); err != nil {
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	d.sessions[owner+"|"+date] = sess.ID
	hlog.FromRequest(r).Info().Str("gameId", sess.ID).Str("date", date).Msg("daily session started")

	snap := sess.Snapshot()
	writeJSON(w, http.StatusCreated, newGameRes{GameID: sess.ID, Mode: sess.Mode, Date: date, Snapshot: &snap})
}

// finished stores player's daily result for a session whose round just ended.
// The session stays registered when the insert fails, so the player resumes
// the finished (locked) round instead of getting a new one.
func (d *dailyServer) finished(ctx context.Context, sess *game.Session, snap game.Snapshot, player string) {
	date := daily.DateKey(sess.CreatedAt)
	err := d.store.InsertResult(ctx, daily.Result{
		UserID:    player,
		Date:      date,
		Won:       snap.Outcome.Won,
		Score:     snap.Outcome.Score,
		ElapsedMs: int(d.now().Sub(sess.CreatedAt).Milliseconds()),
	})
	if err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("insert daily result")
		return
	}
	d.mu.Lock()
	delete(d.sessions, sess.OwnerID+"|"+date)
	d.mu.Unlock()
}

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "bad_date")
		return
	}
	rows, err := d.store.Leaderboard(r.Context(), date, 20)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("daily leaderboard")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
