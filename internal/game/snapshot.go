// internal/game/snapshot.go
//
// Read-only derivations of a round:
//   - Present: terminal outcome (won + score).
//   - Snapshot: everything a client needs to draw the board.
//   - StatusBar / RulesDialog / ResultCard: view models for the nav bar,
//     the "How to Play" dialog and the win/lose card.
//
// None of these hold state; they are rebuilt from a RoundState every time.

package game

import "fmt"

// Present derives the outcome of a finished round. ok is false while the
// round is still active. Calling it repeatedly yields the same value.
func Present(s RoundState, total int) (Outcome, bool) {
	if s.Active {
		return Outcome{}, false
	}
	return Outcome{Won: len(s.ClickedIDs) == total, Score: len(s.ClickedIDs)}, true
}

// Snapshot is the render payload published after every state change.
type Snapshot struct {
	Phase        Phase    `json:"phase"`
	DisplayOrder []Item   `json:"displayOrder"` // Freshly shuffled; empty once the round ends.
	ClickedCount int      `json:"clickedCount"`
	Total        int      `json:"total"`
	TopScore     int      `json:"topScore"`
	Active       bool     `json:"active"`
	ShowRules    bool     `json:"showRules"`
	Outcome      *Outcome `json:"outcome,omitempty"`
}

// NewSnapshot renders s over deck. Active rounds get a new board order on
// every call.
func NewSnapshot(s RoundState, deck *Deck, shuffler *Shuffler) Snapshot {
	snap := Snapshot{
		Phase:        PhaseOf(s, deck.Len()),
		DisplayOrder: []Item{},
		ClickedCount: s.Score(),
		Total:        deck.Len(),
		TopScore:     s.TopScore,
		Active:       s.Active,
		ShowRules:    s.ShowRules,
	}
	if s.Active {
		snap.DisplayOrder = shuffler.Shuffle(deck.items)
		return snap
	}
	if out, ok := Present(s, deck.Len()); ok {
		snap.Outcome = &out
	}
	return snap
}

// StatusBar is the nav bar model. Scores are only shown during play.
type StatusBar struct {
	ShowScores bool `json:"showScores"`
	Score      int  `json:"score"`
	TopScore   int  `json:"topScore"`
}

// Status derives the nav bar from a snapshot.
func Status(s Snapshot) StatusBar {
	return StatusBar{ShowScores: s.Active, Score: s.ClickedCount, TopScore: s.TopScore}
}

// RulesDialog is the one-time "How to Play" popup.
type RulesDialog struct {
	Open   bool     `json:"open"`
	Title  string   `json:"title"`
	Lines  []string `json:"lines"`
	Button string   `json:"button"`
}

// Rules derives the rules dialog from a snapshot.
func Rules(s Snapshot) RulesDialog {
	return RulesDialog{
		Open:  s.ShowRules,
		Title: "🎮 How to Play",
		Lines: []string{
			fmt.Sprintf("Click all %d emojis once to win.", s.Total),
			"The board shuffles after every click.",
			"If you tap the same emoji twice, the game ends.",
		},
		Button: "Start Game",
	}
}

// ResultCard is the win/lose card shown when a round ends.
type ResultCard struct {
	Won    bool   `json:"won"`
	Title  string `json:"title"`
	Label  string `json:"label"`
	Score  string `json:"score"`
	Button string `json:"button"`
}

// Card derives the win/lose card; ok is false while the round is active.
func Card(s Snapshot) (ResultCard, bool) {
	if s.Outcome == nil {
		return ResultCard{}, false
	}
	card := ResultCard{
		Won:    s.Outcome.Won,
		Title:  "You Lose",
		Label:  "Score",
		Score:  fmt.Sprintf("%d/%d", s.Outcome.Score, s.Total),
		Button: "Play Again",
	}
	if s.Outcome.Won {
		card.Title = "You Won"
		card.Label = "Best Score"
	}
	return card, true
}
