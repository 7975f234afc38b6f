// internal/game/types.go
//
// Core type definitions for the emoji memory game engine.
// Defines:
//   - Item: one selectable emoji (id + display token).
//   - RoundState: immutable round value replaced on every transition.
//   - Phase: coarse round state (playing/won/lost).
//   - Event: inbound player actions (click, play again, dismiss rules).
//   - Result: what a transition did with the event.

package game

import "errors"

// ErrUnknownItem is returned when a click references an id that is not part
// of the session's item set. The round state is left untouched.
var ErrUnknownItem = errors.New("unknown item")

// Item is a single selectable game piece.
type Item struct {
	ID    string `json:"id"`    // Stable identifier (e.g. "e01").
	Token string `json:"token"` // What the player sees (an emoji).
	Name  string `json:"name"`  // Accessible label, may be empty.
}

// Phase is the coarse state of a round.
type Phase string

const (
	PhasePlaying Phase = "playing"
	PhaseWon     Phase = "won"
	PhaseLost    Phase = "lost"
)

// RoundState is the complete state of one session's current round.
// Values are never mutated after construction; Apply returns a new one.
type RoundState struct {
	ClickedIDs []string `json:"clickedIds"` // Distinct ids in click order.
	Active     bool     `json:"active"`     // Accepting clicks.
	TopScore   int      `json:"topScore"`   // Best score at any round end this session.
	ShowRules  bool     `json:"showRules"`  // Rules dialog still pending.
}

// NewRoundState returns the state a fresh session starts with.
func NewRoundState() RoundState {
	return RoundState{ClickedIDs: []string{}, Active: true, ShowRules: true}
}

// Score is the number of distinct items clicked so far.
func (s RoundState) Score() int { return len(s.ClickedIDs) }

// HasClicked reports whether id is already part of this round.
func (s RoundState) HasClicked(id string) bool {
	for _, c := range s.ClickedIDs {
		if c == id {
			return true
		}
	}
	return false
}

// EventKind enumerates the inbound events a round accepts.
type EventKind string

const (
	EventClick        EventKind = "click"
	EventReset        EventKind = "reset"
	EventDismissRules EventKind = "dismissRules"
)

// Event is a single inbound action from the presentation layer.
type Event struct {
	Kind   EventKind `json:"type"`
	ItemID string    `json:"itemId,omitempty"` // Only for EventClick.
}

// Click, Reset and DismissRules build the three event kinds.
func Click(id string) Event { return Event{Kind: EventClick, ItemID: id} }
func Reset() Event          { return Event{Kind: EventReset} }
func DismissRules() Event   { return Event{Kind: EventDismissRules} }

// Result describes the effect of applying an event.
type Result string

const (
	ResultAccepted Result = "accepted" // Click recorded, round still active.
	ResultWon      Result = "won"      // Click completed the set.
	ResultLost     Result = "lost"     // Click repeated an id.
	ResultIgnored  Result = "ignored"  // Click arrived after the round ended.
	ResultRejected Result = "rejected" // Click referenced an unknown id.
	ResultReset    Result = "reset"
	ResultRules    Result = "rules_dismissed"
)

// Outcome is the terminal summary of a round.
type Outcome struct {
	Won   bool `json:"won"`
	Score int  `json:"score"`
}
