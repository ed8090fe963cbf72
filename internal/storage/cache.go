package storage

import (
	"sync"

	"github.com/maruel/pinn/internal/models"
)

// Cache is the session-scoped view of the notes index. It is updated
// synchronously on every write so that two near-simultaneous existence
// checks observe a consistent view even while the durable write is still in
// flight.
type Cache struct {
	mu sync.RWMutex

	notes  []models.Note
	loaded bool
}

// NewCache initializes an empty, unloaded cache.
func NewCache() *Cache {
	return &Cache{}
}

// GetNotes returns a copy of the cached notes and whether the cache holds a
// loaded view.
func (c *Cache) GetNotes() ([]models.Note, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return nil, false
	}
	notes := make([]models.Note, len(c.notes))
	copy(notes, c.notes)
	return notes, true
}

// SetNotes replaces the cached view.
func (c *Cache) SetNotes(notes []models.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = make([]models.Note, len(notes))
	copy(c.notes, notes)
	c.loaded = true
}

// Has reports whether a note id exists in the cached view; the second result
// is false when the cache is not loaded.
func (c *Cache) Has(id string) (exists, known bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return false, false
	}
	for i := range c.notes {
		if c.notes[i].ID == id {
			return true, true
		}
	}
	return false, true
}

// Invalidate clears the cached view, forcing the next read to hit storage.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = nil
	c.loaded = false
}
