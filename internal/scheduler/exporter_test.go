package scheduler

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/asterhall/alarmbridge/internal/settings"
)

func exportTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// VACUUM INTO needs a file-backed source database.
	path := filepath.Join(t.TempDir(), "live.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT NOT NULL) STRICT"); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func listExports(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading export dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), exportPrefix) {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestExporterWritesSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := newStubStore(map[string]string{
		settings.KeyExportEnabled: "1",
		settings.KeyExportPath:    dir,
	})

	var hooked string
	exporter := NewSettingsExporter(exportTestDB(t), store, nil)
	exporter.OnExport = func(_ context.Context, path string) error {
		hooked = path
		return nil
	}

	if err := exporter.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	exports := listExports(t, dir)
	if len(exports) != 1 {
		t.Fatalf("found %d exports, want 1", len(exports))
	}
	if hooked != filepath.Join(dir, exports[0]) {
		t.Errorf("hook saw %q, want %q", hooked, exports[0])
	}
	if _, found, _ := store.GetTime(ctx, settings.KeyExportLastRun); !found {
		t.Error("export time was not recorded")
	}

	// The snapshot must open as a standalone database.
	snap, err := sql.Open("sqlite3", filepath.Join(dir, exports[0]))
	if err != nil {
		t.Fatalf("opening snapshot: %v", err)
	}
	defer snap.Close()
	var count int
	if err := snap.QueryRow("SELECT COUNT(*) FROM settings").Scan(&count); err != nil {
		t.Errorf("querying snapshot: %v", err)
	}
}

func TestExporterPrunesOldSnapshots(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := newStubStore(map[string]string{
		settings.KeyExportEnabled: "1",
		settings.KeyExportPath:    dir,
		settings.KeyExportRetain:  "2",
	})

	// Seed older exports; timestamped names sort chronologically.
	for _, stale := range []string{
		exportPrefix + "20240101-000000" + exportSuffix,
		exportPrefix + "20240102-000000" + exportSuffix,
		exportPrefix + "20240103-000000" + exportSuffix,
	} {
		if err := os.WriteFile(filepath.Join(dir, stale), []byte("old"), 0o640); err != nil {
			t.Fatalf("seeding export: %v", err)
		}
	}
	// An unrelated file must survive pruning.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o640); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	exporter := NewSettingsExporter(exportTestDB(t), store, nil)
	if err := exporter.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	exports := listExports(t, dir)
	if len(exports) != 2 {
		t.Fatalf("retained %d exports, want 2: %v", len(exports), exports)
	}
	for _, name := range exports {
		if strings.Contains(name, "20240101") || strings.Contains(name, "20240102") {
			t.Errorf("old export %q survived pruning", name)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("pruning removed an unrelated file")
	}
}

func TestExporterScheduleDisabledByDefault(t *testing.T) {
	exporter := NewSettingsExporter(exportTestDB(t), newStubStore(nil), nil)
	if _, enabled := exporter.Schedule(context.Background()); enabled {
		t.Error("export job enabled without operator opt-in")
	}
}
