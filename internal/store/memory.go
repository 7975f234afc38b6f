// internal/store/memory.go
//
// In-memory implementation of the session Store interface.
// Sessions only live as long as the process; nothing here is written to disk.
//
// Characteristics:
//   - Stores *game.Session objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Idle sessions can be swept with Prune.
//   - Get returns ErrNotFound for missing ids.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/emoji-game/internal/game"
)

// ErrNotFound is returned when no session has the requested id.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for game sessions.
type Store interface {
	// Save persists or updates a session.
	Save(ctx context.Context, s *game.Session) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*game.Session, error)

	// Delete drops a session; missing ids are not an error.
	Delete(ctx context.Context, id string) error
}

type entry struct {
	sess *game.Session
	seen time.Time
}

// Memory is an in-memory map-based Store implementation.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() *Memory {
	return &Memory{sessions: make(map[string]*entry), now: time.Now}
}

// Save adds or updates the session in the map.
func (m *Memory) Save(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &entry{sess: s, seen: m.now()}
	return nil
}

// Get looks up a session by ID and marks it as recently used.
func (m *Memory) Get(ctx context.Context, id string) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.seen = m.now()
	return e.sess, nil
}

// Delete removes a session.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len reports how many sessions are held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Prune drops sessions unused for longer than idle and returns how many went.
func (m *Memory) Prune(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-idle)
	n := 0
	for id, e := range m.sessions {
		if e.seen.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
