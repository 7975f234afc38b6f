package game

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/emoji-game/internal/realtime"
)

// ErrLocked is returned when a replay is requested on a one-shot session.
var ErrLocked = errors.New("session locked")

// Mode distinguishes free play from the once-a-day deck.
type Mode string

const (
	ModeClassic Mode = "classic"
	ModeDaily   Mode = "daily"
)

// Session pairs a Controller with identity and a snapshot feed.
// Events are processed one at a time: validated, applied, reshuffled and
// published before the next one is looked at.
type Session struct {
	ID        string
	OwnerID   string // user id or anonymous cookie id
	Guest     bool   // OwnerID is an anonymous cookie id
	Mode      Mode
	CreatedAt time.Time

	// OneShot sessions refuse Reset once the round has ended.
	OneShot bool

	mu   sync.Mutex
	ctrl *Controller
	hub  *realtime.Broadcaster[Snapshot]
}

// NewSession creates a classic session over deck.
func NewSession(ownerID string, deck *Deck, shuffler *Shuffler) *Session {
	return &Session{
		ID:        randomID(),
		OwnerID:   ownerID,
		Mode:      ModeClassic,
		CreatedAt: time.Now().UTC(),
		ctrl:      NewController(deck, shuffler),
		hub:       realtime.NewBroadcaster[Snapshot](),
	}
}

// Handle applies ev and returns the snapshot to render next.
// On error the returned snapshot reflects the unchanged state.
func (s *Session) Handle(ev Event) (Snapshot, Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Kind == EventReset && s.OneShot && !s.ctrl.State().Active {
		return s.ctrl.Snapshot(), ResultIgnored, ErrLocked
	}
	_, res, err := s.ctrl.Handle(ev)
	snap := s.ctrl.Snapshot()
	if err != nil {
		return snap, res, err
	}
	if res != ResultIgnored {
		s.hub.Publish(snap)
	}
	return snap, res, nil
}

// Snapshot renders the current state (with a fresh shuffle when active).
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Snapshot()
}

// State returns a copy of the current round state.
func (s *Session) State() RoundState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ctrl.State()
	st.ClickedIDs = cloneIDs(st.ClickedIDs)
	return st
}

// Total is the number of items in the session's deck.
func (s *Session) Total() int { return s.ctrl.Deck().Len() }

// Subscribe returns a channel receiving a snapshot after every state change.
func (s *Session) Subscribe() chan Snapshot { return s.hub.Subscribe() }

// Unsubscribe stops delivery to ch and closes it.
func (s *Session) Unsubscribe(ch chan Snapshot) { s.hub.Unsubscribe(ch) }

// randomID returns a compact 16‑hex‑char identifier.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
