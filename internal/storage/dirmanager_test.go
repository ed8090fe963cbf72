package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	pinnerrors "github.com/maruel/pinn/internal/errors"
)

// fakePicker answers prompts from a queue. An exhausted queue cancels.
type fakePicker struct {
	paths []string
	calls int
}

func (p *fakePicker) PickDirectory(ctx context.Context, defaultName string) (string, error) {
	p.calls++
	if len(p.paths) == 0 {
		return "", nil
	}
	path := p.paths[0]
	p.paths = p.paths[1:]
	return path, nil
}

func newTestKV(t *testing.T) (*KVStore, string) {
	t.Helper()
	profile := t.TempDir()
	kv, err := NewKVStore(profile)
	if err != nil {
		t.Fatalf("failed to create KVStore: %v", err)
	}
	return kv, profile
}

func TestDirManagerRequestAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("PickAndAdopt", func(t *testing.T) {
		kv, profile := newTestKV(t)
		target := filepath.Join(t.TempDir(), "notes")
		picker := &fakePicker{paths: []string{target}}
		m := NewDirManager(kv, profile, picker)

		if m.State() != StateUnconfigured {
			t.Fatalf("expected unconfigured, got %v", m.State())
		}
		h, err := m.RequestAccess(ctx, "notes", false)
		if err != nil {
			t.Fatalf("failed to request access: %v", err)
		}
		if h == nil || h.Path != target {
			t.Fatalf("expected handle for %q, got %+v", target, h)
		}
		if m.State() != StateActive {
			t.Errorf("expected active, got %v", m.State())
		}
		if !m.HasValidAccess(ctx) {
			t.Error("expected valid access after adoption")
		}
		if v, ok := kv.Get(KeyFolderConfigured); !ok || v != "1" {
			t.Errorf("configured flag not recorded: %q (ok=%v)", v, ok)
		}
		if p, ok := kv.Get(KeyFolderPath); !ok || p != target {
			t.Errorf("display path not recorded: %q (ok=%v)", p, ok)
		}
		if _, err := os.Stat(filepath.Join(profile, "handle.json")); err != nil {
			t.Errorf("handle cache not written: %v", err)
		}
	})

	t.Run("CancelIsNotAnError", func(t *testing.T) {
		kv, profile := newTestKV(t)
		m := NewDirManager(kv, profile, &fakePicker{})

		h, err := m.RequestAccess(ctx, "notes", false)
		if err != nil {
			t.Fatalf("cancellation should not error: %v", err)
		}
		if h != nil {
			t.Errorf("expected nil handle on cancel, got %+v", h)
		}
		if m.State() != StateUnconfigured {
			t.Errorf("state should be unchanged, got %v", m.State())
		}
	})

	t.Run("ReuseSkipsPrompt", func(t *testing.T) {
		kv, profile := newTestKV(t)
		target := filepath.Join(t.TempDir(), "notes")
		picker := &fakePicker{paths: []string{target}}
		m := NewDirManager(kv, profile, picker)
		if _, err := m.RequestAccess(ctx, "notes", false); err != nil {
			t.Fatal(err)
		}

		// New manager, same profile: the configured folder should be reused
		// without prompting.
		picker2 := &fakePicker{}
		m2 := NewDirManager(kv, profile, picker2)
		if m2.State() != StateLostInMemory {
			t.Fatalf("expected lost-in-memory after restart, got %v", m2.State())
		}
		h, err := m2.RequestAccess(ctx, "notes", true)
		if err != nil {
			t.Fatalf("failed to reuse: %v", err)
		}
		if h == nil || h.Path != target {
			t.Fatalf("expected reused handle for %q, got %+v", target, h)
		}
		if picker2.calls != 0 {
			t.Errorf("picker should not have been consulted, got %d calls", picker2.calls)
		}
	})

	t.Run("NoReuseSwitchesDirectory", func(t *testing.T) {
		kv, profile := newTestKV(t)
		first := filepath.Join(t.TempDir(), "notes")
		second := filepath.Join(t.TempDir(), "archive")
		picker := &fakePicker{paths: []string{first, second}}
		m := NewDirManager(kv, profile, picker)
		if _, err := m.RequestAccess(ctx, "notes", false); err != nil {
			t.Fatal(err)
		}

		// With reuse off the picker is consulted again even though the
		// current directory is still valid.
		h, err := m.RequestAccess(ctx, "notes", false)
		if err != nil {
			t.Fatalf("failed to switch: %v", err)
		}
		if h == nil || h.Path != second {
			t.Fatalf("expected handle for %q, got %+v", second, h)
		}
		if picker.calls != 2 {
			t.Errorf("expected two prompts, got %d", picker.calls)
		}
		if p, ok := kv.Get(KeyFolderPath); !ok || p != second {
			t.Errorf("display path not updated: %q (ok=%v)", p, ok)
		}
	})
}

func TestDirManagerEnsureAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("NotConfigured", func(t *testing.T) {
		kv, profile := newTestKV(t)
		m := NewDirManager(kv, profile, &fakePicker{})
		_, err := m.EnsureAccess(ctx)
		if !pinnerrors.Is(err, pinnerrors.ErrNotConfigured) {
			t.Errorf("expected NOT_CONFIGURED, got %v", err)
		}
	})

	t.Run("SilentRestore", func(t *testing.T) {
		kv, profile := newTestKV(t)
		target := filepath.Join(t.TempDir(), "notes")
		m := NewDirManager(kv, profile, &fakePicker{paths: []string{target}})
		if _, err := m.RequestAccess(ctx, "notes", false); err != nil {
			t.Fatal(err)
		}

		m2 := NewDirManager(kv, profile, &fakePicker{})
		h, err := m2.EnsureAccess(ctx)
		if err != nil {
			t.Fatalf("silent restore failed: %v", err)
		}
		if h.Path != target {
			t.Errorf("expected %q, got %q", target, h.Path)
		}
		if m2.State() != StateActive {
			t.Errorf("expected active after restore, got %v", m2.State())
		}
	})

	t.Run("DirectoryGone", func(t *testing.T) {
		kv, profile := newTestKV(t)
		target := filepath.Join(t.TempDir(), "notes")
		m := NewDirManager(kv, profile, &fakePicker{paths: []string{target}})
		if _, err := m.RequestAccess(ctx, "notes", false); err != nil {
			t.Fatal(err)
		}
		if err := os.RemoveAll(target); err != nil {
			t.Fatal(err)
		}

		m2 := NewDirManager(kv, profile, &fakePicker{})
		_, err := m2.EnsureAccess(ctx)
		if !pinnerrors.Is(err, pinnerrors.ErrAccessRevoked) {
			t.Fatalf("expected ACCESS_REVOKED, got %v", err)
		}
		if m2.State() != StateNeedsReselection {
			t.Errorf("expected needs-reselection, got %v", m2.State())
		}
	})
}

func TestDirManagerRestoreWithGesture(t *testing.T) {
	ctx := context.Background()

	t.Run("RestoresExisting", func(t *testing.T) {
		kv, profile := newTestKV(t)
		target := filepath.Join(t.TempDir(), "notes")
		m := NewDirManager(kv, profile, &fakePicker{paths: []string{target}})
		if _, err := m.RequestAccess(ctx, "notes", false); err != nil {
			t.Fatal(err)
		}

		m2 := NewDirManager(kv, profile, &fakePicker{})
		ok, err := m2.RestoreWithGesture(ctx)
		if err != nil {
			t.Fatalf("restore failed: %v", err)
		}
		if !ok {
			t.Fatal("expected restore to succeed")
		}
		if m2.Current().Path != target {
			t.Errorf("expected %q, got %q", target, m2.Current().Path)
		}
	})

	t.Run("ReselectsWhenGone", func(t *testing.T) {
		kv, profile := newTestKV(t)
		target := filepath.Join(t.TempDir(), "notes")
		m := NewDirManager(kv, profile, &fakePicker{paths: []string{target}})
		if _, err := m.RequestAccess(ctx, "notes", false); err != nil {
			t.Fatal(err)
		}
		if err := os.RemoveAll(target); err != nil {
			t.Fatal(err)
		}

		replacement := filepath.Join(t.TempDir(), "notes2")
		picker := &fakePicker{paths: []string{replacement}}
		m2 := NewDirManager(kv, profile, picker)
		ok, err := m2.RestoreWithGesture(ctx)
		if err != nil {
			t.Fatalf("restore failed: %v", err)
		}
		if !ok {
			t.Fatal("expected restore via reselection to succeed")
		}
		if picker.calls != 1 {
			t.Errorf("expected one prompt, got %d", picker.calls)
		}
		if m2.Current().Path != replacement {
			t.Errorf("expected %q, got %q", replacement, m2.Current().Path)
		}
	})

	t.Run("CancelledReselection", func(t *testing.T) {
		kv, profile := newTestKV(t)
		target := filepath.Join(t.TempDir(), "notes")
		m := NewDirManager(kv, profile, &fakePicker{paths: []string{target}})
		if _, err := m.RequestAccess(ctx, "notes", false); err != nil {
			t.Fatal(err)
		}
		if err := os.RemoveAll(target); err != nil {
			t.Fatal(err)
		}

		m2 := NewDirManager(kv, profile, &fakePicker{})
		ok, err := m2.RestoreWithGesture(ctx)
		if err != nil {
			t.Fatalf("cancellation should not error: %v", err)
		}
		if ok {
			t.Error("expected restore to report false on cancel")
		}
	})

	t.Run("NotConfigured", func(t *testing.T) {
		kv, profile := newTestKV(t)
		m := NewDirManager(kv, profile, &fakePicker{})
		_, err := m.RestoreWithGesture(ctx)
		if !pinnerrors.Is(err, pinnerrors.ErrNotConfigured) {
			t.Errorf("expected NOT_CONFIGURED, got %v", err)
		}
	})
}

func TestDirManagerClear(t *testing.T) {
	ctx := context.Background()
	kv, profile := newTestKV(t)
	target := filepath.Join(t.TempDir(), "notes")
	m := NewDirManager(kv, profile, &fakePicker{paths: []string{target}})
	if _, err := m.RequestAccess(ctx, "notes", false); err != nil {
		t.Fatal(err)
	}

	m.Clear()
	if m.State() != StateUnconfigured {
		t.Errorf("expected unconfigured after clear, got %v", m.State())
	}
	if _, ok := kv.Get(KeyFolderConfigured); ok {
		t.Error("configured flag should be cleared")
	}
	if _, err := os.Stat(filepath.Join(profile, "handle.json")); !os.IsNotExist(err) {
		t.Error("handle cache should be removed")
	}
	// Notes in the directory are left alone.
	if _, err := os.Stat(target); err != nil {
		t.Errorf("directory contents should survive a forget: %v", err)
	}
}
