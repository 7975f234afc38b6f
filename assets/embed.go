// Package assets embeds the default emoji catalogue.
package assets

import (
	"bufio"
	"embed"
	"strings"
)

//go:embed emojis.txt pool.txt
var FS embed.FS

func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
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

// DefaultLines returns the classic board, one "emoji<TAB>name" per line.
func DefaultLines() ([]string, error) {
	return readLines("emojis.txt")
}

// PoolLines returns the larger pool daily decks are drawn from.
func PoolLines() ([]string, error) {
	return readLines("pool.txt")
}
