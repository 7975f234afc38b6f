package game

import (
	"math/rand/v2"
	"sync"
)

// Shuffler produces uniform random orderings of a deck.
type Shuffler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewShuffler wraps src; a nil src is seeded from the runtime's random source.
func NewShuffler(src rand.Source) *Shuffler {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Shuffler{rng: rand.New(src)}
}

// Shuffle returns a new slice holding a permutation of items.
// Rand.Shuffle is a Fisher–Yates shuffle, so every ordering is equally likely.
func (s *Shuffler) Shuffle(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	s.mu.Lock()
	s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	s.mu.Unlock()
	return out
}
