package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	pinnerrors "github.com/maruel/pinn/internal/errors"
)

// DirState is the lifecycle state of the managed notes directory.
type DirState int

const (
	// StateUnconfigured means no directory was ever chosen.
	StateUnconfigured DirState = iota
	// StateActive means a verified handle is held in memory.
	StateActive
	// StateLostInMemory means a directory was configured but the in-memory
	// handle is gone (process restart).
	StateLostInMemory
	// StateNeedsGesture means silent restoration found the directory but
	// could not verify access; a user-initiated retry is required.
	StateNeedsGesture
	// StateNeedsReselection means access is gone for good; the user must
	// re-pick the folder.
	StateNeedsReselection
)

// String returns a human-readable state name.
func (s DirState) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateActive:
		return "active"
	case StateLostInMemory:
		return "lost"
	case StateNeedsGesture:
		return "needs-retry"
	case StateNeedsReselection:
		return "needs-reselection"
	}
	return "unknown"
}

// Handle is a reference to the user-granted writable notes directory.
type Handle struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Picker asks the user to choose a directory. Implementations return an
// empty path when the user cancels; cancellation is not an error.
type Picker interface {
	PickDirectory(ctx context.Context, defaultName string) (string, error)
}

// Single-flight restoration: a second caller polls instead of starting a
// duplicate restore.
const (
	restoreWaitAttempts = 20
	restoreWaitDelay    = 50 * time.Millisecond
)

// DirManager owns the lifecycle of the managed directory handle: acquisition,
// persistence across restarts, access verification and recovery. Exactly one
// instance owns the in-memory handle.
type DirManager struct {
	kv         *KVStore
	picker     Picker
	handlePath string

	mu        sync.Mutex
	cur       *Handle
	state     DirState
	restoring bool
}

// NewDirManager creates a manager persisting its handle cache in profileDir.
func NewDirManager(kv *KVStore, profileDir string, picker Picker) *DirManager {
	m := &DirManager{
		kv:         kv,
		picker:     picker,
		handlePath: filepath.Join(profileDir, "handle.json"),
		state:      StateUnconfigured,
	}
	if _, ok := kv.Get(KeyFolderConfigured); ok {
		m.state = StateLostInMemory
	}
	return m
}

// State returns the current lifecycle state.
func (m *DirManager) State() DirState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the in-memory handle without any verification or recovery.
func (m *DirManager) Current() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// RequestAccess obtains a writable directory handle. When allowReuse is set
// and a folder was previously configured, silent restoration is attempted
// before prompting. Returns (nil, nil) when the user cancels the prompt.
func (m *DirManager) RequestAccess(ctx context.Context, defaultName string, allowReuse bool) (*Handle, error) {
	if allowReuse {
		if _, ok := m.kv.Get(KeyFolderConfigured); ok {
			if h, err := m.EnsureAccess(ctx); err == nil {
				return h, nil
			}
			// Fall through to prompting; the silent path failed.
		}
	}

	path, err := m.picker.PickDirectory(ctx, defaultName)
	if err != nil {
		return nil, fmt.Errorf("directory picker failed: %w", err)
	}
	if path == "" {
		return nil, nil
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, pinnerrors.Newf(pinnerrors.ErrStorage, "Cannot create the folder %q.", path).Wrap(err)
	}
	if err := writeProbe(path); err != nil {
		return nil, pinnerrors.Newf(pinnerrors.ErrStorage, "The folder %q is not writable.", path).Wrap(err)
	}

	h := &Handle{Path: path, Name: filepath.Base(path)}
	m.adopt(h)
	return h, nil
}

// adopt installs h as the active handle and records it everywhere. Failures
// writing the handle cache are logged and swallowed; the cache is a
// convenience, the KV flag is the source of truth.
func (m *DirManager) adopt(h *Handle) {
	m.mu.Lock()
	m.cur = h
	m.state = StateActive
	m.mu.Unlock()

	if err := m.saveHandle(h); err != nil {
		slog.Warn("Failed to persist directory handle", "path", h.Path, "err", err)
	}
	if err := m.kv.Set(KeyFolderConfigured, "1"); err != nil {
		slog.Warn("Failed to record folder-configured flag", "err", err)
	}
	if err := m.kv.Set(KeyFolderPath, h.Path); err != nil {
		slog.Warn("Failed to record folder display path", "err", err)
	}
}

// EnsureAccess returns the active handle, attempting silent restoration when
// the in-memory handle is gone. When a folder was configured but cannot be
// silently recovered it returns an ACCESS_REVOKED error; callers surface it
// and offer RestoreWithGesture.
func (m *DirManager) EnsureAccess(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	if m.cur != nil {
		h := m.cur
		m.mu.Unlock()
		return h, nil
	}
	if m.restoring {
		m.mu.Unlock()
		return m.awaitRestore(ctx)
	}
	m.restoring = true
	m.mu.Unlock()

	h, err := m.silentRestore()

	m.mu.Lock()
	m.restoring = false
	m.mu.Unlock()
	return h, err
}

// awaitRestore polls for a concurrent restoration to finish.
func (m *DirManager) awaitRestore(ctx context.Context) (*Handle, error) {
	for range restoreWaitAttempts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(restoreWaitDelay):
		}
		m.mu.Lock()
		cur, busy := m.cur, m.restoring
		m.mu.Unlock()
		if cur != nil {
			return cur, nil
		}
		if !busy {
			break
		}
	}
	return nil, m.notRecoveredError()
}

// silentRestore re-acquires the handle without user interaction.
func (m *DirManager) silentRestore() (*Handle, error) {
	if _, ok := m.kv.Get(KeyFolderConfigured); !ok {
		return nil, pinnerrors.NotConfigured()
	}

	h, err := m.loadHandle()
	if err != nil || h == nil {
		if err != nil {
			slog.Warn("Failed to load persisted directory handle", "err", err)
		}
		m.setState(StateNeedsReselection)
		return nil, m.notRecoveredError()
	}

	if err := statDir(h.Path); err != nil {
		m.setState(StateNeedsReselection)
		return nil, m.notRecoveredError()
	}
	if err := writeProbe(h.Path); err != nil {
		// Restored but unverified; a user-initiated retry may still succeed.
		m.setState(StateNeedsGesture)
		return nil, m.notRecoveredError()
	}

	m.mu.Lock()
	m.cur = h
	m.state = StateActive
	m.mu.Unlock()
	slog.Debug("Restored directory handle", "path", h.Path)
	return h, nil
}

// RestoreWithGesture recovers folder access with the user present. Attempt
// order: persisted handle, access probe, trial listing, folder re-pick.
// Returns false with no error when the user cancels.
func (m *DirManager) RestoreWithGesture(ctx context.Context) (bool, error) {
	configured := false
	if _, ok := m.kv.Get(KeyFolderConfigured); ok {
		configured = true
	}

	h, err := m.loadHandle()
	if err != nil {
		slog.Warn("Failed to load persisted directory handle", "err", err)
	}
	if h == nil {
		if !configured {
			return false, pinnerrors.NotConfigured()
		}
		return m.reselect(ctx)
	}

	if statDir(h.Path) == nil {
		if writeProbe(h.Path) == nil {
			m.adopt(h)
			return true, nil
		}
		// Ambiguous permission state: a successful trial listing is treated
		// as granted.
		if canList(h.Path) {
			slog.Warn("Write probe failed but listing works; treating access as granted", "path", h.Path)
			m.adopt(h)
			return true, nil
		}
	}

	return m.reselect(ctx)
}

// reselect prompts the user to pick the folder again (possibly the same one).
func (m *DirManager) reselect(ctx context.Context) (bool, error) {
	m.setState(StateNeedsReselection)
	defaultName := "notes"
	if p, ok := m.kv.Get(KeyFolderPath); ok && p != "" {
		defaultName = filepath.Base(p)
	}
	path, err := m.picker.PickDirectory(ctx, defaultName)
	if err != nil {
		return false, fmt.Errorf("directory picker failed: %w", err)
	}
	if path == "" {
		return false, nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return false, pinnerrors.Newf(pinnerrors.ErrStorage, "Cannot create the folder %q.", path).Wrap(err)
	}
	if err := writeProbe(path); err != nil {
		return false, pinnerrors.AccessRevoked(path).Wrap(err)
	}
	m.adopt(&Handle{Path: path, Name: filepath.Base(path)})
	return true, nil
}

// HasValidAccess reports whether the in-memory handle currently has verified
// write access. No recovery is attempted.
func (m *DirManager) HasValidAccess(ctx context.Context) bool {
	m.mu.Lock()
	cur := m.cur
	m.mu.Unlock()
	if cur == nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		return false
	}
	return writeProbe(cur.Path) == nil
}

// Clear forgets the configured folder. Notes already in the directory are
// left untouched.
func (m *DirManager) Clear() {
	m.mu.Lock()
	m.cur = nil
	m.state = StateUnconfigured
	m.mu.Unlock()

	if err := os.Remove(m.handlePath); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove persisted directory handle", "err", err)
	}
	if err := m.kv.Delete(KeyFolderConfigured); err != nil {
		slog.Warn("Failed to clear folder-configured flag", "err", err)
	}
	if err := m.kv.Delete(KeyFolderPath); err != nil {
		slog.Warn("Failed to clear folder display path", "err", err)
	}
}

func (m *DirManager) setState(s DirState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// notRecoveredError distinguishes "never configured" from "access revoked".
func (m *DirManager) notRecoveredError() error {
	if _, ok := m.kv.Get(KeyFolderConfigured); !ok {
		return pinnerrors.NotConfigured()
	}
	path, _ := m.kv.Get(KeyFolderPath)
	return pinnerrors.AccessRevoked(path)
}

// saveHandle writes the handle cache file.
func (m *DirManager) saveHandle(h *Handle) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(m.handlePath, data, 0o644)
}

// loadHandle reads the handle cache file; (nil, nil) when absent.
func (m *DirManager) loadHandle() (*Handle, error) {
	data, err := os.ReadFile(m.handlePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	h := &Handle{}
	if err := json.Unmarshal(data, h); err != nil {
		return nil, err
	}
	if h.Path == "" {
		return nil, nil
	}
	return h, nil
}

// statDir verifies path exists and is a directory.
func statDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// writeProbe verifies write access by creating and removing a scratch file.
func writeProbe(path string) error {
	f, err := os.CreateTemp(path, ".pinn-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// canList is the trial listing used when the permission state is ambiguous.
func canList(path string) bool {
	_, err := os.ReadDir(path)
	return err == nil
}
