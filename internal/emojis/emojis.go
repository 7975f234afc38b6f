// internal/emojis/emojis.go
//
// Emoji catalogue management for the game engine.
//
// Responsibilities:
//   - Load the default board and the daily pool from files or fall back to the
//     embedded lists in the assets package.
//   - Turn "emoji<TAB>name" lines into game.Items with stable slug ids.
//   - Supply Default, Pool and Stats to the HTTP layer.
//
// Initialization behavior (Init):
//   1. If a default-board path is configured, load it; otherwise use assets/emojis.txt.
//   2. If a pool path is configured, load it; otherwise use assets/pool.txt.
//   3. The default board is always part of the pool.
//
// Constraints:
//   • Every line needs an emoji; the name is optional.
//   • Ids must be unique within a list.
//   • Initialization is run once (sync.Once).

package emojis

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/robalobadob/emoji-game/assets"
	"github.com/robalobadob/emoji-game/internal/game"
)

// Catalogue is a loaded pair of lists.
type Catalogue struct {
	defaults []game.Item
	pool     []game.Item
}

var (
	initOnce   sync.Once
	current    *Catalogue
	initialErr error
)

// Init loads the global catalogue exactly once. Empty paths select the
// embedded lists.
func Init(defaultPath, poolPath string) error {
	initOnce.Do(func() {
		current, initialErr = Load(defaultPath, poolPath)
	})
	return initialErr
}

// Load reads a catalogue without touching the global one.
func Load(defaultPath, poolPath string) (*Catalogue, error) {
	defLines, err := linesFrom(defaultPath, assets.DefaultLines)
	if err != nil {
		return nil, fmt.Errorf("emojis: default list: %w", err)
	}
	poolLines, err := linesFrom(poolPath, assets.PoolLines)
	if err != nil {
		return nil, fmt.Errorf("emojis: pool: %w", err)
	}

	defaults, err := Parse(defLines)
	if err != nil {
		return nil, fmt.Errorf("emojis: default list: %w", err)
	}
	extra, err := Parse(poolLines)
	if err != nil {
		return nil, fmt.Errorf("emojis: pool: %w", err)
	}
	if len(defaults) == 0 {
		return nil, errors.New("emojis: default list is empty")
	}

	// Pool = defaults ∪ extra, first occurrence wins.
	seen := make(map[string]struct{}, len(defaults)+len(extra))
	pool := make([]game.Item, 0, len(defaults)+len(extra))
	for _, it := range append(append([]game.Item{}, defaults...), extra...) {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		pool = append(pool, it)
	}
	return &Catalogue{defaults: defaults, pool: pool}, nil
}

// Default returns a copy of the classic board.
func (c *Catalogue) Default() []game.Item { return append([]game.Item(nil), c.defaults...) }

// Pool returns a copy of every emoji a daily deck may use.
func (c *Catalogue) Pool() []game.Item { return append([]game.Item(nil), c.pool...) }

// Default returns the global catalogue's classic board. Init must have succeeded.
func Default() []game.Item { return current.Default() }

// Pool returns the global catalogue's pool. Init must have succeeded.
func Pool() []game.Item { return current.Pool() }

// Stats returns (default board size, pool size).
func Stats() (int, int) {
	if current == nil {
		return 0, 0
	}
	return len(current.defaults), len(current.pool)
}

// Parse converts "emoji<TAB>name" lines into items. Ids are name slugs,
// falling back to "e<index>" for unnamed entries.
func Parse(lines []string) ([]game.Item, error) {
	out := make([]game.Item, 0, len(lines))
	ids := make(map[string]int, len(lines))
	for i, line := range lines {
		token, name, _ := strings.Cut(line, "\t")
		token = strings.TrimSpace(token)
		name = strings.TrimSpace(name)
		if token == "" {
			return nil, fmt.Errorf("line %d: missing emoji", i+1)
		}
		id := slug(name)
		if id == "" {
			id = fmt.Sprintf("e%02d", i+1)
		}
		if prev, dup := ids[id]; dup {
			return nil, fmt.Errorf("line %d: id %q already used on line %d", i+1, id, prev)
		}
		ids[id] = i + 1
		out = append(out, game.Item{ID: id, Token: token, Name: name})
	}
	return out, nil
}

// slug lowercases s and joins alphanumeric runs with '-'.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

func linesFrom(path string, fallback func() ([]string, error)) ([]string, error) {
	if path == "" {
		return fallback()
	}
	return readEmojiFile(path)
}

// readEmojiFile reads a catalogue file, skipping blanks and '#' comments.
func readEmojiFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}
