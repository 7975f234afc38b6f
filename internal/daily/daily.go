// Package daily picks the once-a-day deck and stores daily results.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"time"

	"github.com/robalobadob/emoji-game/internal/game"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed derives two PCG seeds from HMAC-SHA256(salt, YYYY-MM-DD).
func Seed(date time.Time, salt string) (uint64, uint64) {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16])
}

// Deck returns the size items everyone plays on date. The same date and salt
// always produce the same deck; size is clamped to the pool length.
func Deck(date time.Time, salt string, pool []game.Item, size int) []game.Item {
	if size > len(pool) {
		size = len(pool)
	}
	if size <= 0 {
		return []game.Item{}
	}
	s1, s2 := Seed(date, salt)
	picked := game.NewShuffler(rand.NewPCG(s1, s2)).Shuffle(pool)
	return picked[:size:size]
}
