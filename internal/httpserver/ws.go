package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/emoji-game/internal/game"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 25 * time.Second
	wsReadLimit  = 4 << 10
)

// streamMsg is every frame the server sends on /game/{id}/ws.
type streamMsg struct {
	Type     string         `json:"type"` // "snapshot" | "error"
	Result   game.Result    `json:"result,omitempty"`
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || origin == s.opts.ClientOrigin {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// handleStream pushes a snapshot after every state change of the session and
// accepts the same events as the JSON routes ({"type":"click","itemId":...},
// {"type":"reset"}, {"type":"dismissRules"}).
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	logger := hlog.FromRequest(r).With().Str("gameId", sess.ID).Logger()

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("ws upgrade")
		return
	}
	defer conn.Close()

	updates := sess.Subscribe()
	defer sess.Unsubscribe(updates)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	replies := make(chan streamMsg, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev game.Event
			if err := conn.ReadJSON(&ev); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug().Err(err).Msg("ws read")
				}
				return
			}
			snap, res, err := s.apply(r.Context(), sess, ev)
			var msg streamMsg
			switch {
			case err != nil:
				msg = streamMsg{Type: "error", Error: streamError(err)}
			case res == game.ResultIgnored:
				// Nothing was published; answer directly so the client re-renders.
				msg = streamMsg{Type: "snapshot", Result: res, Snapshot: &snap}
			default:
				continue
			}
			select {
			case replies <- msg:
			default:
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	first := sess.Snapshot()
	if err := writeFrame(conn, streamMsg{Type: "snapshot", Snapshot: &first}); err != nil {
		return
	}
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := writeFrame(conn, streamMsg{Type: "snapshot", Snapshot: &snap}); err != nil {
				return
			}
		case msg := <-replies:
			if err := writeFrame(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, msg streamMsg) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}

func streamError(err error) string {
	switch {
	case errors.Is(err, game.ErrUnknownItem):
		return "unknown_item"
	case errors.Is(err, game.ErrLocked):
		return "locked"
	default:
		return "bad_event"
	}
}
