package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/maruel/pinn/internal/models"
)

// newDirBackedStore returns a FileStore whose directory is already active.
func newDirBackedStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	kv, profile := newTestKV(t)
	target := filepath.Join(t.TempDir(), "notes")
	m := NewDirManager(kv, profile, &fakePicker{paths: []string{target}})
	if _, err := m.RequestAccess(context.Background(), "notes", false); err != nil {
		t.Fatalf("failed to set up directory: %v", err)
	}
	return NewFileStore(m, kv), target
}

func sampleNotes() []models.Note {
	return []models.Note{
		{ID: "1", Title: "First", Content: "alpha", Folder: "Work", CreatedAt: "2026-01-01T00:00:00Z", UpdatedAt: "2026-01-02T00:00:00Z"},
		{ID: "2", Title: "Second", Content: "beta", CreatedAt: "2026-01-03T00:00:00Z", UpdatedAt: "2026-01-03T00:00:00Z"},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	t.Run("Directory", func(t *testing.T) {
		fs, dir := newDirBackedStore(t)
		notes := sampleNotes()
		if err := fs.WriteNotes(ctx, notes); err != nil {
			t.Fatalf("failed to write notes: %v", err)
		}
		if !fs.UsingDirectory(ctx) {
			t.Fatal("expected directory backend")
		}
		got := fs.ReadNotes(ctx)
		if !reflect.DeepEqual(got, notes) {
			t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", got, notes)
		}

		// Pretty-printed with two-space indent on disk.
		data, err := os.ReadFile(filepath.Join(dir, models.FileNotes))
		if err != nil {
			t.Fatalf("notes.json missing: %v", err)
		}
		if !strings.Contains(string(data), "\n  {") {
			t.Errorf("expected two-space indented JSON, got:\n%s", data)
		}
	})

	t.Run("KeyValueFallback", func(t *testing.T) {
		kv, _ := newTestKV(t)
		fs := NewFileStore(nil, kv)
		if fs.UsingDirectory(ctx) {
			t.Fatal("expected key-value backend")
		}
		notes := sampleNotes()
		if err := fs.WriteNotes(ctx, notes); err != nil {
			t.Fatalf("failed to write notes: %v", err)
		}
		got := fs.ReadNotes(ctx)
		if !reflect.DeepEqual(got, notes) {
			t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", got, notes)
		}
	})
}

func TestFileStoreToleratesBadData(t *testing.T) {
	ctx := context.Background()
	fs, dir := newDirBackedStore(t)

	tests := []struct {
		name string
		data string
	}{
		{"NotAnArray", `"not an array"`},
		{"InvalidJSON", `{broken`},
		{"Empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(filepath.Join(dir, models.FileNotes), []byte(tt.data), 0o644); err != nil {
				t.Fatal(err)
			}
			got := fs.ReadNotes(ctx)
			if got == nil || len(got) != 0 {
				t.Errorf("expected empty collection, got %+v", got)
			}
		})
	}

	t.Run("MissingFile", func(t *testing.T) {
		if err := os.Remove(filepath.Join(dir, models.FileNotes)); err != nil {
			t.Fatal(err)
		}
		if got := fs.ReadNotes(ctx); len(got) != 0 {
			t.Errorf("expected empty collection, got %+v", got)
		}
	})

	t.Run("MalformedCloudConfig", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, models.FileCloudConfig), []byte("[1,2]"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, ok := fs.ReadCloudConfig(ctx); ok {
			t.Error("malformed cloud config should read as absent")
		}
	})
}

func TestFileStoreFolderNormalization(t *testing.T) {
	ctx := context.Background()
	fs, _ := newDirBackedStore(t)

	input := []string{" Work ", "Work", "", "Ideas", "Ideas", "  "}
	if err := fs.WriteFolders(ctx, input); err != nil {
		t.Fatalf("failed to write folders: %v", err)
	}
	got := fs.ReadFolders(ctx)
	sort.Strings(got)
	want := []string{"Ideas", "Work"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFileStoreFlowsKeepOpaquePayload(t *testing.T) {
	ctx := context.Background()
	fs, _ := newDirBackedStore(t)

	raw := `[{"id":"f1","nodes":[{"x":1}],"extra":"kept"}]`
	if err := fs.WriteFileRaw(ctx, models.FileFlows, raw); err != nil {
		t.Fatalf("failed to write flows: %v", err)
	}
	flows := fs.ReadFlows(ctx)
	if len(flows) != 1 {
		t.Fatalf("expected 1 flow, got %d", len(flows))
	}
	if flows[0].ID != "f1" {
		t.Errorf("expected id f1, got %q", flows[0].ID)
	}
	if !strings.Contains(string(flows[0].Raw), `"extra":"kept"`) {
		t.Errorf("payload fields were lost: %s", flows[0].Raw)
	}
}

func TestFileStoreDeleteFile(t *testing.T) {
	ctx := context.Background()
	fs, _ := newDirBackedStore(t)

	if err := fs.WriteFileRaw(ctx, models.FileTheme, `"dark"`); err != nil {
		t.Fatal(err)
	}
	if err := fs.DeleteFile(ctx, models.FileTheme); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	// Tolerant delete: already gone is fine.
	if err := fs.DeleteFile(ctx, models.FileTheme); err != nil {
		t.Errorf("deleting absent file should not fail: %v", err)
	}
	if err := fs.DeleteFile(ctx, "other.json"); err == nil {
		t.Error("unknown collection name should fail")
	}
}

func TestMigrateFromKV(t *testing.T) {
	ctx := context.Background()
	kv, profile := newTestKV(t)

	// Seed the fallback store the way a directory-less install looks.
	if err := kv.Set(KeyNotes, `[{"id":"1","title":"A"},{"id":"2","title":"B"}]`); err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(KeyFlows, `[{"id":"f1"}]`); err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(KeyTheme, `"dark"`); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(t.TempDir(), "notes")
	m := NewDirManager(kv, profile, &fakePicker{paths: []string{target}})
	if _, err := m.RequestAccess(ctx, "notes", false); err != nil {
		t.Fatal(err)
	}
	fs := NewFileStore(m, kv)

	res, err := fs.MigrateFromKV(ctx)
	if err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	if res.Notes != 2 || res.Flows != 1 {
		t.Errorf("expected 2 notes and 1 flow, got %+v", res)
	}
	for _, name := range []string{models.FileNotes, models.FileFlows, models.FileTheme} {
		if _, err := os.Stat(filepath.Join(target, name)); err != nil {
			t.Errorf("%s not migrated: %v", name, err)
		}
	}
	// Collections never stored are not created.
	if _, err := os.Stat(filepath.Join(target, models.FileFolders)); !os.IsNotExist(err) {
		t.Error("folders.json should not exist after migrating an empty collection")
	}
}
