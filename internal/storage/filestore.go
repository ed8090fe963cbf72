package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maruel/pinn/internal/models"
)

// Backend reads and writes the note collections. There are two
// implementations behind FileStore: the managed directory and the key-value
// store; which one serves a call depends on whether directory access is
// currently available. Read methods never fail: missing or malformed data
// yields an empty collection.
type Backend interface {
	ReadNotes(ctx context.Context) []models.Note
	WriteNotes(ctx context.Context, notes []models.Note) error
	ReadFolders(ctx context.Context) []string
	WriteFolders(ctx context.Context, folders []string) error
	ReadFlows(ctx context.Context) []models.Flow
	WriteFlows(ctx context.Context, flows []models.Flow) error
	ReadFlowCategories(ctx context.Context) []string
	WriteFlowCategories(ctx context.Context, categories []string) error
	ReadCloudConfig(ctx context.Context) (models.CloudConfig, bool)
	WriteCloudConfig(ctx context.Context, cfg models.CloudConfig) error

	// Raw access by collection file name, used by sync apply and migration.
	ReadFileRaw(ctx context.Context, name string) (string, bool)
	WriteFileRaw(ctx context.Context, name, content string) error
	DeleteFile(ctx context.Context, name string) error
}

// rawStore is the byte-level surface shared by the two backing media.
type rawStore interface {
	read(name string) ([]byte, bool, error)
	write(name string, data []byte) error
	remove(name string) error
	where() string
}

// dirStore stores each collection as a JSON file in the managed directory.
type dirStore struct {
	root string
}

func (d *dirStore) read(name string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(d.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (d *dirStore) write(name string, data []byte) error {
	return writeFileAtomic(filepath.Join(d.root, name), data, 0o644)
}

func (d *dirStore) remove(name string) error {
	if err := os.Remove(filepath.Join(d.root, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (d *dirStore) where() string { return d.root }

// kvRawStore stores each collection as a string entry in the KVStore.
type kvRawStore struct {
	kv *KVStore
}

func (k *kvRawStore) read(name string) ([]byte, bool, error) {
	key, ok := KeyForFile(name)
	if !ok {
		return nil, false, fmt.Errorf("unknown collection file %q", name)
	}
	v, ok := k.kv.Get(key)
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (k *kvRawStore) write(name string, data []byte) error {
	key, ok := KeyForFile(name)
	if !ok {
		return fmt.Errorf("unknown collection file %q", name)
	}
	return k.kv.Set(key, string(data))
}

func (k *kvRawStore) remove(name string) error {
	key, ok := KeyForFile(name)
	if !ok {
		return fmt.Errorf("unknown collection file %q", name)
	}
	return k.kv.Delete(key)
}

func (k *kvRawStore) where() string { return "key-value store" }

// FileStore is the storage adapter for the note collections. Every call
// resolves the active medium: the managed directory when access is available,
// the key-value store otherwise.
type FileStore struct {
	dirs *DirManager
	kv   *KVStore
}

// NewFileStore creates the adapter. dirs may be nil for a key-value-only
// setup (no directory feature at all).
func NewFileStore(dirs *DirManager, kv *KVStore) *FileStore {
	return &FileStore{dirs: dirs, kv: kv}
}

// active picks the medium for this call. Directory access failures degrade
// to the key-value store; a revoked directory is worth a warning, a
// never-configured one is the normal fallback mode.
func (s *FileStore) active(ctx context.Context) rawStore {
	if s.dirs != nil {
		h, err := s.dirs.EnsureAccess(ctx)
		if err == nil {
			return &dirStore{root: h.Path}
		}
		if s.dirs.State() != StateUnconfigured {
			slog.Warn("Notes directory not accessible, using key-value fallback", "err", err)
		}
	}
	return &kvRawStore{kv: s.kv}
}

// UsingDirectory reports whether calls would currently hit the managed
// directory rather than the fallback.
func (s *FileStore) UsingDirectory(ctx context.Context) bool {
	_, ok := s.active(ctx).(*dirStore)
	return ok
}

// readArray unmarshals a JSON array collection. Missing data, malformed JSON
// and a non-array top level all come back as an empty collection.
func readArray[T any](store rawStore, name string) []T {
	data, ok, err := store.read(name)
	if err != nil {
		slog.Warn("Failed to read collection", "file", name, "from", store.where(), "err", err)
		return []T{}
	}
	if !ok || len(data) == 0 {
		return []T{}
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		slog.Warn("Collection is malformed, treating as empty", "file", name, "err", err)
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

// writeArray serializes a collection with two-space indentation.
func writeArray[T any](store rawStore, name string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := store.write(name, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// normalizeSet trims entries, drops empties and removes duplicates. Order is
// not part of the contract.
func normalizeSet(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = models.NormalizeFolder(it)
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

// ReadNotes returns all notes from the active medium.
func (s *FileStore) ReadNotes(ctx context.Context) []models.Note {
	return readArray[models.Note](s.active(ctx), models.FileNotes)
}

// WriteNotes persists the full notes collection.
func (s *FileStore) WriteNotes(ctx context.Context, notes []models.Note) error {
	return writeArray(s.active(ctx), models.FileNotes, notes)
}

// ReadFolders returns the explicit folder registry.
func (s *FileStore) ReadFolders(ctx context.Context) []string {
	return readArray[string](s.active(ctx), models.FileFolders)
}

// WriteFolders persists the folder registry with set semantics.
func (s *FileStore) WriteFolders(ctx context.Context, folders []string) error {
	return writeArray(s.active(ctx), models.FileFolders, normalizeSet(folders))
}

// ReadFlows returns all flows.
func (s *FileStore) ReadFlows(ctx context.Context) []models.Flow {
	return readArray[models.Flow](s.active(ctx), models.FileFlows)
}

// WriteFlows persists the full flows collection.
func (s *FileStore) WriteFlows(ctx context.Context, flows []models.Flow) error {
	return writeArray(s.active(ctx), models.FileFlows, flows)
}

// ReadFlowCategories returns the flow category registry.
func (s *FileStore) ReadFlowCategories(ctx context.Context) []string {
	return readArray[string](s.active(ctx), models.FileFlowCategories)
}

// WriteFlowCategories persists the flow categories with set semantics.
func (s *FileStore) WriteFlowCategories(ctx context.Context, categories []string) error {
	return writeArray(s.active(ctx), models.FileFlowCategories, normalizeSet(categories))
}

// ReadCloudConfig returns the cloud configuration and whether one is stored.
func (s *FileStore) ReadCloudConfig(ctx context.Context) (models.CloudConfig, bool) {
	store := s.active(ctx)
	data, ok, err := store.read(models.FileCloudConfig)
	if err != nil || !ok || len(data) == 0 {
		if err != nil {
			slog.Warn("Failed to read cloud config", "err", err)
		}
		return models.CloudConfig{}, false
	}
	var cfg models.CloudConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Warn("Cloud config is malformed, ignoring", "err", err)
		return models.CloudConfig{}, false
	}
	return cfg, true
}

// WriteCloudConfig persists the cloud configuration on the active medium.
func (s *FileStore) WriteCloudConfig(ctx context.Context, cfg models.CloudConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cloud config: %w", err)
	}
	if err := s.active(ctx).write(models.FileCloudConfig, data); err != nil {
		return fmt.Errorf("failed to write cloud config: %w", err)
	}
	return nil
}

// ReadFileRaw returns a collection's raw content by file name.
func (s *FileStore) ReadFileRaw(ctx context.Context, name string) (string, bool) {
	data, ok, err := s.active(ctx).read(name)
	if err != nil {
		slog.Warn("Failed to read collection", "file", name, "err", err)
		return "", false
	}
	return string(data), ok
}

// WriteFileRaw stores raw content under a collection file name.
func (s *FileStore) WriteFileRaw(ctx context.Context, name, content string) error {
	if _, ok := KeyForFile(name); !ok {
		return fmt.Errorf("unknown collection file %q", name)
	}
	if err := s.active(ctx).write(name, []byte(content)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// DeleteFile removes a collection from the active medium. Removing an absent
// collection is not an error.
func (s *FileStore) DeleteFile(ctx context.Context, name string) error {
	if _, ok := KeyForFile(name); !ok {
		return fmt.Errorf("unknown collection file %q", name)
	}
	return s.active(ctx).remove(name)
}

// MigrationResult counts what a key-value-to-directory migration moved.
type MigrationResult struct {
	Notes int
	Flows int
}

// MigrateFromKV copies every collection from the key-value store into the
// managed directory. Requires directory access. Failures propagate; files
// already written stay written.
func (s *FileStore) MigrateFromKV(ctx context.Context) (MigrationResult, error) {
	res := MigrationResult{}
	if s.dirs == nil {
		return res, fmt.Errorf("no directory manager configured")
	}
	h, err := s.dirs.EnsureAccess(ctx)
	if err != nil {
		return res, err
	}
	dst := &dirStore{root: h.Path}
	src := &kvRawStore{kv: s.kv}

	for _, name := range models.CollectionFiles {
		data, ok, err := src.read(name)
		if err != nil {
			return res, fmt.Errorf("failed to read %s from key-value store: %w", name, err)
		}
		if !ok || len(data) == 0 {
			continue
		}
		if err := dst.write(name, data); err != nil {
			return res, fmt.Errorf("failed to migrate %s: %w", name, err)
		}
		switch name {
		case models.FileNotes:
			var notes []models.Note
			if json.Unmarshal(data, &notes) == nil {
				res.Notes = len(notes)
			}
		case models.FileFlows:
			var flows []models.Flow
			if json.Unmarshal(data, &flows) == nil {
				res.Flows = len(flows)
			}
		}
	}
	slog.Info("Migrated key-value data to directory", "dir", h.Path, "notes", res.Notes, "flows", res.Flows)
	return res, nil
}
