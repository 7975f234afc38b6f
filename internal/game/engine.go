// internal/game/engine.go
//
// Core engine for a single emoji memory round.
// Responsibilities:
//   - Validate clicks against the session's item set.
//   - Apply events as a pure transition (state, event) -> state.
//   - Track state transitions: playing → won/lost, and play-again resets.
//   - Keep the session top score monotonic across rounds.
//
// Notes:
//   - Controller is the only holder of the current RoundState; everything else
//     gets copies via State/Snapshot.
//   - The repeat check runs before the completion check.
package game

import "fmt"

// Deck is an immutable, ordered item set with id lookup.
type Deck struct {
	items []Item
	index map[string]int
}

// NewDeck builds a deck from items. Items with an empty id and duplicate ids
// are rejected. An empty item list is valid (a degenerate round that is won
// immediately).
func NewDeck(items []Item) (*Deck, error) {
	d := &Deck{
		items: make([]Item, len(items)),
		index: make(map[string]int, len(items)),
	}
	copy(d.items, items)
	for i, it := range d.items {
		if it.ID == "" {
			return nil, fmt.Errorf("item %d: empty id", i)
		}
		if _, dup := d.index[it.ID]; dup {
			return nil, fmt.Errorf("item %d: duplicate id %q", i, it.ID)
		}
		d.index[it.ID] = i
	}
	return d, nil
}

// Len is the number of items, which is also the winning score.
func (d *Deck) Len() int { return len(d.items) }

// Contains reports whether id belongs to the deck.
func (d *Deck) Contains(id string) bool {
	_, ok := d.index[id]
	return ok
}

// Items returns a copy of the items in their configured order.
func (d *Deck) Items() []Item {
	out := make([]Item, len(d.items))
	copy(out, d.items)
	return out
}

// Lookup returns the item for id.
func (d *Deck) Lookup(id string) (Item, bool) {
	i, ok := d.index[id]
	if !ok {
		return Item{}, false
	}
	return d.items[i], true
}

// Apply is the round transition function. It never mutates s.
//
// Click rules:
//   - Inactive round → ResultIgnored, state unchanged.
//   - Unknown id → ResultRejected + ErrUnknownItem, state unchanged.
//   - Repeat id → round lost; the id is not re-added.
//   - New id → appended; if that completes the deck the round is won.
//
// Reset clears progress and reactivates the round, keeping TopScore.
// DismissRules clears ShowRules for the rest of the session.
func Apply(s RoundState, ev Event, deck *Deck) (RoundState, Result, error) {
	switch ev.Kind {
	case EventClick:
		return applyClick(s, ev.ItemID, deck)
	case EventReset:
		next := s
		next.ClickedIDs = []string{}
		next.Active = true
		return next, ResultReset, nil
	case EventDismissRules:
		next := s
		next.ClickedIDs = cloneIDs(s.ClickedIDs)
		next.ShowRules = false
		return next, ResultRules, nil
	default:
		return s, ResultRejected, fmt.Errorf("unknown event %q", ev.Kind)
	}
}

func applyClick(s RoundState, id string, deck *Deck) (RoundState, Result, error) {
	if !s.Active {
		return s, ResultIgnored, nil
	}
	if !deck.Contains(id) {
		return s, ResultRejected, fmt.Errorf("%w: %q", ErrUnknownItem, id)
	}
	if s.HasClicked(id) {
		return finish(s, cloneIDs(s.ClickedIDs)), ResultLost, nil
	}

	clicked := make([]string, len(s.ClickedIDs), len(s.ClickedIDs)+1)
	copy(clicked, s.ClickedIDs)
	clicked = append(clicked, id)

	if len(clicked) == deck.Len() {
		return finish(s, clicked), ResultWon, nil
	}
	next := s
	next.ClickedIDs = clicked
	return next, ResultAccepted, nil
}

// finish ends the round with the given clicked list and folds its score into TopScore.
func finish(s RoundState, clicked []string) RoundState {
	next := s
	next.ClickedIDs = clicked
	next.Active = false
	if len(clicked) > next.TopScore {
		next.TopScore = len(clicked)
	}
	return next
}

// Settle resolves the empty-deck case: an active round over zero items is
// already complete, so it becomes a win with score 0.
func Settle(s RoundState, deck *Deck) RoundState {
	if s.Active && deck.Len() == 0 {
		return finish(s, cloneIDs(s.ClickedIDs))
	}
	return s
}

// PhaseOf reports the coarse phase for a state over a deck of total items.
func PhaseOf(s RoundState, total int) Phase {
	if s.Active {
		return PhasePlaying
	}
	if len(s.ClickedIDs) == total {
		return PhaseWon
	}
	return PhaseLost
}

func cloneIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Controller owns the current round state for one session.
// It is not safe for concurrent use; Session serializes access.
type Controller struct {
	deck     *Deck
	state    RoundState
	shuffler *Shuffler
}

// NewController starts a session over deck. A nil shuffler uses a randomly
// seeded one.
func NewController(deck *Deck, shuffler *Shuffler) *Controller {
	if shuffler == nil {
		shuffler = NewShuffler(nil)
	}
	return &Controller{deck: deck, state: NewRoundState(), shuffler: shuffler}
}

// Deck returns the session's item set.
func (c *Controller) Deck() *Deck { return c.deck }

// Handle applies ev and swaps in the resulting state.
func (c *Controller) Handle(ev Event) (RoundState, Result, error) {
	next, res, err := Apply(c.State(), ev, c.deck)
	if err != nil {
		return c.state, res, err
	}
	c.state = next
	return c.state, res, nil
}

// Click records a click on id.
func (c *Controller) Click(id string) (RoundState, Result, error) { return c.Handle(Click(id)) }

// Reset starts a new round (play again).
func (c *Controller) Reset() RoundState {
	s, _, _ := c.Handle(Reset())
	return s
}

// DismissRules hides the rules dialog.
func (c *Controller) DismissRules() RoundState {
	s, _, _ := c.Handle(DismissRules())
	return s
}

// State evaluates and returns the current state.
// The empty-deck win happens here, inside a read: it is not published and
// not recorded as a finished round.
func (c *Controller) State() RoundState {
	c.state = Settle(c.state, c.deck)
	return c.state
}

// Outcome presents the current round's result; ok is false while playing.
func (c *Controller) Outcome() (Outcome, bool) {
	return Present(c.State(), c.deck.Len())
}

// Snapshot builds the render snapshot, reshuffling the board when active.
func (c *Controller) Snapshot() Snapshot {
	return NewSnapshot(c.State(), c.deck, c.shuffler)
}
