package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Keys for the entries held in the key-value store. The six collection keys
// mirror the files of the managed directory one-to-one.
const (
	KeyNotes          = "pinn_notes"
	KeyFolders        = "pinn_folders"
	KeyFlows          = "pinn_flows"
	KeyFlowCategories = "pinn_flow_categories"
	KeyTheme          = "pinn_theme"
	KeyCloudConfig    = "pinn_cloud_config"

	// KeyDeviceID holds the per-profile identifier used as the default remote
	// record path. Generated once, never synced.
	KeyDeviceID = "pinn_device_id"
	// KeyFolderConfigured marks that the user picked a notes folder at some
	// point. This flag is the source of truth; it is only cleared by an
	// explicit forget, never on transient errors.
	KeyFolderConfigured = "pinn_folder_configured"
	// KeyFolderPath holds the display path of the configured folder.
	KeyFolderPath = "pinn_folder_path"
)

// fileKeys maps managed-directory file names to key-value store keys.
var fileKeys = map[string]string{
	"notes.json":          KeyNotes,
	"folders.json":        KeyFolders,
	"flows.json":          KeyFlows,
	"flowCategories.json": KeyFlowCategories,
	"theme.json":          KeyTheme,
	"cloudConfig.json":    KeyCloudConfig,
}

// KeyForFile returns the key-value store key for a collection file name.
func KeyForFile(name string) (string, bool) {
	k, ok := fileKeys[name]
	return k, ok
}

// KVStore is the fallback backend: a single JSON document in the profile
// directory holding string values under fixed keys. The whole document is
// loaded at open and kept in memory; every mutation is persisted before it
// returns.
type KVStore struct {
	path string
	mu   sync.RWMutex

	entries map[string]string
}

// NewKVStore creates a KVStore backed by kv.json in profileDir and loads it.
func NewKVStore(profileDir string) (*KVStore, error) {
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	s := &KVStore{path: filepath.Join(profileDir, "kv.json")}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *KVStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.entries = map[string]string{}
			return nil
		}
		return fmt.Errorf("failed to read store file %s: %w", s.path, err)
	}

	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to unmarshal store file %s: %w", s.path, err)
	}
	s.entries = entries
	return nil
}

// persist writes the whole document. Callers must hold the write lock.
func (s *KVStore) persist() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store file %s: %w", s.path, err)
	}
	return nil
}

// Get returns the value for key, and whether it was present.
func (s *KVStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// Set stores value under key and persists the change.
func (s *KVStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return s.persist()
}

// Delete removes key and persists the change. Deleting an absent key is a no-op.
func (s *KVStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	return s.persist()
}

// DeviceID returns the stable per-profile identifier, generating and
// persisting one on first use.
func (s *KVStore) DeviceID() (string, error) {
	if id, ok := s.Get(KeyDeviceID); ok && id != "" {
		return id, nil
	}
	id := uuid.NewString()
	if err := s.Set(KeyDeviceID, id); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}
	return id, nil
}
