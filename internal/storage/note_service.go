package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/maruel/pinn/internal/models"
)

// FolderDeleteMode selects what happens to a deleted folder's notes.
type FolderDeleteMode string

const (
	// DeleteNotes removes every note in the folder.
	DeleteNotes FolderDeleteMode = "delete-notes"
	// MoveToUnfiled keeps the notes and clears their folder.
	MoveToUnfiled FolderDeleteMode = "move-to-unfiled"
)

// NoteService handles note and folder business logic over whichever backend
// is active. Mutations serialize through a single lock and update the session
// cache before the durable write, so overlapping check-then-create sequences
// cannot produce duplicate notes.
type NoteService struct {
	store Backend
	cache *Cache

	mu sync.Mutex
}

// NewNoteService creates a new note service.
func NewNoteService(store Backend) *NoteService {
	return &NoteService{store: store, cache: NewCache()}
}

// notes returns the current collection, served from the session cache when
// loaded.
func (s *NoteService) notes(ctx context.Context) []models.Note {
	if cached, ok := s.cache.GetNotes(); ok {
		return cached
	}
	notes := s.store.ReadNotes(ctx)
	s.cache.SetNotes(notes)
	return notes
}

// writeNotes updates the cache first, then persists. The cache update is the
// synchronous part that later existence checks rely on.
func (s *NoteService) writeNotes(ctx context.Context, notes []models.Note) error {
	s.cache.SetNotes(notes)
	return s.store.WriteNotes(ctx, notes)
}

// Invalidate drops the session cache, e.g. after the directory changed on
// disk or sync applied remote data.
func (s *NoteService) Invalidate() {
	s.cache.Invalidate()
}

// List returns all notes in stored order (most recently created first).
func (s *NoteService) List(ctx context.Context) []models.Note {
	return s.notes(ctx)
}

// Get returns a note by id.
func (s *NoteService) Get(ctx context.Context, id string) (*models.Note, bool) {
	for _, n := range s.notes(ctx) {
		if n.ID == id {
			return n.Clone(), true
		}
	}
	return nil, false
}

// SaveNote inserts or updates a note. A new note is prepended; an existing
// one is updated in place, keeping its list position and CreatedAt.
// UpdatedAt is stamped on every save.
func (s *NoteService) SaveNote(ctx context.Context, note models.Note) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	now := models.Now()
	note.UpdatedAt = now
	note.Folder = models.NormalizeFolder(note.Folder)

	notes := s.notes(ctx)
	for i := range notes {
		if notes[i].ID == note.ID {
			// The stored creation time is authoritative; whatever the
			// caller passed in is ignored.
			note.CreatedAt = notes[i].CreatedAt
			notes[i] = note
			return note, s.writeNotes(ctx, notes)
		}
	}

	if note.CreatedAt == "" {
		note.CreatedAt = now
	}
	notes = append([]models.Note{note}, notes...)
	return note, s.writeNotes(ctx, notes)
}

// DeleteNote removes a note by id. Deleting an unknown id is a no-op.
func (s *NoteService) DeleteNote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes := s.notes(ctx)
	kept := notes[:0:0]
	for _, n := range notes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(notes) {
		return nil
	}
	return s.writeNotes(ctx, kept)
}

// SetNoteFolder assigns a note to a folder. The name is trimmed; an empty
// result unfiles the note. A previously unseen folder name is added to the
// registry.
func (s *NoteService) SetNoteFolder(ctx context.Context, id, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder = models.NormalizeFolder(folder)
	notes := s.notes(ctx)
	found := false
	for i := range notes {
		if notes[i].ID == id {
			notes[i].Folder = folder
			notes[i].UpdatedAt = models.Now()
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("note %q not found", id)
	}
	if err := s.writeNotes(ctx, notes); err != nil {
		return err
	}

	if folder == "" {
		return nil
	}
	registry := s.store.ReadFolders(ctx)
	for _, f := range registry {
		if f == folder {
			return nil
		}
	}
	return s.store.WriteFolders(ctx, append(registry, folder))
}

// RenameFolder moves every note filed under oldName to newName and updates
// the registry. Returns the number of notes touched. A no-op when the names
// are equal or either is empty after trimming.
func (s *NoteService) RenameFolder(ctx context.Context, oldName, newName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldName = models.NormalizeFolder(oldName)
	newName = models.NormalizeFolder(newName)
	if oldName == "" || newName == "" || oldName == newName {
		return 0, nil
	}

	notes := s.notes(ctx)
	count := 0
	for i := range notes {
		if models.NormalizeFolder(notes[i].Folder) == oldName {
			notes[i].Folder = newName
			notes[i].UpdatedAt = models.Now()
			count++
		}
	}
	if count > 0 {
		if err := s.writeNotes(ctx, notes); err != nil {
			return 0, err
		}
	}

	registry := s.store.ReadFolders(ctx)
	updated := make([]string, 0, len(registry)+1)
	for _, f := range registry {
		if f != oldName {
			updated = append(updated, f)
		}
	}
	updated = append(updated, newName)
	if err := s.store.WriteFolders(ctx, updated); err != nil {
		return count, err
	}
	return count, nil
}

// DeleteFolder removes a folder. Mode DeleteNotes drops its notes; mode
// MoveToUnfiled clears their folder field. Returns the number of notes
// affected. The name leaves the registry in either mode.
func (s *NoteService) DeleteFolder(ctx context.Context, name string, mode FolderDeleteMode) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = models.NormalizeFolder(name)
	if name == "" {
		return 0, fmt.Errorf("folder name cannot be empty")
	}

	notes := s.notes(ctx)
	count := 0
	switch mode {
	case DeleteNotes:
		kept := notes[:0:0]
		for _, n := range notes {
			if models.NormalizeFolder(n.Folder) == name {
				count++
				continue
			}
			kept = append(kept, n)
		}
		notes = kept
	case MoveToUnfiled:
		for i := range notes {
			if models.NormalizeFolder(notes[i].Folder) == name {
				notes[i].Folder = ""
				notes[i].UpdatedAt = models.Now()
				count++
			}
		}
	default:
		return 0, fmt.Errorf("unknown folder delete mode %q", mode)
	}

	if count > 0 {
		if err := s.writeNotes(ctx, notes); err != nil {
			return 0, err
		}
	}

	registry := s.store.ReadFolders(ctx)
	updated := registry[:0:0]
	for _, f := range registry {
		if f != name {
			updated = append(updated, f)
		}
	}
	if err := s.store.WriteFolders(ctx, updated); err != nil {
		return count, err
	}
	return count, nil
}

// AllFolders returns the union of folder names referenced by notes and the
// explicit registry, sorted lexicographically.
func (s *NoteService) AllFolders(ctx context.Context) []string {
	seen := map[string]struct{}{}
	for _, n := range s.notes(ctx) {
		if f := models.NormalizeFolder(n.Folder); f != "" {
			seen[f] = struct{}{}
		}
	}
	for _, f := range s.store.ReadFolders(ctx) {
		if f = models.NormalizeFolder(f); f != "" {
			seen[f] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
