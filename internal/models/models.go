// Package models defines the core data structures used throughout the application.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Note is a single note. Folder is empty for unfiled notes. UpdatedAt
// advances on every mutation; CreatedAt is set once.
type Note struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Folder    string `json:"folder,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Clone returns a copy of the note.
func (n *Note) Clone() *Note {
	c := *n
	return &c
}

// Flow is a user-defined graph-like grouping of notes. The storage core
// treats it as an opaque payload; only the id matters for merging.
type Flow struct {
	ID  string          `json:"-"`
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the raw payload and extracts the id field.
func (f *Flow) UnmarshalJSON(data []byte) error {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	f.ID = probe.ID
	f.Raw = append(f.Raw[:0], data...)
	return nil
}

// MarshalJSON emits the original payload untouched.
func (f Flow) MarshalJSON() ([]byte, error) {
	if len(f.Raw) == 0 {
		return []byte("null"), nil
	}
	return f.Raw, nil
}

// CloudConfig is the user-supplied remote store configuration. It is synced
// alongside the content so every device sees the same settings.
type CloudConfig struct {
	APIKey    string `json:"apiKey"`
	ProjectID string `json:"projectId"`
	Enabled   bool   `json:"enabled"`
}

// RemoteEnvelope wraps a collection when written to the remote store.
// LastUpdated is filled in server-side.
type RemoteEnvelope struct {
	Content     string `json:"content"`
	FileName    string `json:"fileName"`
	LastUpdated any    `json:"lastUpdated,omitempty"`
}

// SyncMetadata records the outcome of the last upload. Best effort only; a
// failed metadata write never fails the sync.
type SyncMetadata struct {
	LastSync   any    `json:"lastSync,omitempty"`
	FilesCount int    `json:"filesCount"`
	SyncID     string `json:"syncId,omitempty"`
}

// Collection file names inside the managed directory. The same names key the
// remote store paths.
const (
	FileNotes          = "notes.json"
	FileFolders        = "folders.json"
	FileFlows          = "flows.json"
	FileFlowCategories = "flowCategories.json"
	FileTheme          = "theme.json"
	FileCloudConfig    = "cloudConfig.json"
)

// CollectionFiles lists every synced file in upload order.
var CollectionFiles = []string{
	FileNotes,
	FileFolders,
	FileFlows,
	FileFlowCategories,
	FileTheme,
	FileCloudConfig,
}

// NormalizeFolder trims a folder name; an empty result means unfiled.
func NormalizeFolder(name string) string {
	return strings.TrimSpace(name)
}

// Now returns the current time formatted the way note timestamps are stored.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
