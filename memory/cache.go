// Package memory holds the process-local conversation memory cache. It is a
// derived projection of stored messages, never the source of truth: an entry
// may be evicted at any time and rebuilt from the store.
package memory

import (
	"sync"

	"ragchat/domain"
)

// Turn is one user query and its assistant response.
type Turn struct {
	Query  string
	Answer string
}

// Entry is the bounded recent-turn window for one session. Concurrent turns
// on the same session must serialize on the entry's lock: lock before the
// turn's first read of the window and unlock after the final append, so two
// turns can never both read the same stale window.
type Entry struct {
	sync.Mutex

	maxTurns int
	turns    []Turn
}

// Window returns a copy of the current turn window, oldest first.
func (e *Entry) Window() []Turn {
	out := make([]Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

// Append records a completed turn and trims the window to the configured
// maximum.
func (e *Entry) Append(query, answer string) {
	e.turns = append(e.turns, Turn{Query: query, Answer: answer})
	if len(e.turns) > e.maxTurns {
		e.turns = e.turns[len(e.turns)-e.maxTurns:]
	}
}

// Len returns the number of turns currently held.
func (e *Entry) Len() int {
	return len(e.turns)
}

// Cache maps session ids to memory entries. Entries live until explicitly
// cleared or the process exits; a restart is equivalent to a full clear.
type Cache struct {
	mu       sync.Mutex
	maxTurns int
	entries  map[string]*Entry
}

// NewCache creates a cache whose entries hold at most maxTurns turns.
func NewCache(maxTurns int) *Cache {
	return &Cache{
		maxTurns: maxTurns,
		entries:  make(map[string]*Entry),
	}
}

// GetOrCreate returns the entry for a session, creating it if absent. A
// newly created entry is preloaded from seed in chronological order and
// trimmed to the window size; seed is ignored for existing entries.
func (c *Cache) GetOrCreate(sessionID string, seed []domain.HistoryEntry) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[sessionID]; ok {
		return entry
	}

	entry := &Entry{maxTurns: c.maxTurns}
	var pending string
	var havePending bool
	for _, msg := range seed {
		switch msg.Role {
		case domain.RoleUser:
			pending = msg.Content
			havePending = true
		case domain.RoleAssistant:
			if havePending {
				entry.Append(pending, msg.Content)
				havePending = false
			}
		}
	}
	c.entries[sessionID] = entry
	return entry
}

// Clear evicts a session's entry. The next GetOrCreate starts cold.
func (c *Cache) Clear(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}

// ActiveSessions returns the ids of all sessions with a live entry.
func (c *Cache) ActiveSessions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}
