package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/asterhall/alarmbridge/internal/settings"
)

const (
	// exportPrefix and exportSuffix frame export filenames, e.g.
	// alarmbridge-export-20260831-143000.db.
	exportPrefix = "alarmbridge-export-"
	exportSuffix = ".db"

	exportTimeFormat = "20060102-150405"

	defaultExportIntervalSeconds = 86400
	defaultExportRetain          = 7
)

// SettingsExporter periodically snapshots the database into an export
// directory and prunes old snapshots. An optional OnExport hook runs
// after each snapshot; the mail relay uses it to email the file.
type SettingsExporter struct {
	db     *sql.DB
	store  settings.Store
	logger Logger

	// OnExport, when set, is called with the path of each new export.
	// A hook failure is logged, not fatal; the snapshot stays on disk.
	OnExport func(ctx context.Context, path string) error
}

// NewSettingsExporter creates the export job. logger may be nil.
func NewSettingsExporter(db *sql.DB, store settings.Store, logger Logger) *SettingsExporter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &SettingsExporter{db: db, store: store, logger: logger}
}

// Name implements Job.
func (e *SettingsExporter) Name() string { return "settings-export" }

// Schedule implements Job.
func (e *SettingsExporter) Schedule(ctx context.Context) (time.Duration, bool) {
	enabled, err := e.store.GetBool(ctx, settings.KeyExportEnabled, false)
	if err != nil || !enabled {
		return 0, false
	}

	seconds, err := e.store.GetInt(ctx, settings.KeyExportInterval, defaultExportIntervalSeconds)
	if err != nil || seconds <= 0 {
		seconds = defaultExportIntervalSeconds
	}
	interval := time.Duration(seconds) * time.Second

	last, found, err := e.store.GetTime(ctx, settings.KeyExportLastRun)
	if err != nil || !found {
		return interval, true
	}
	if remaining := interval - time.Since(last); remaining > 0 {
		return remaining, true
	}
	return time.Second, true
}

// Run implements Job: snapshot, hook, prune, record.
func (e *SettingsExporter) Run(ctx context.Context) error {
	dir, err := e.store.GetString(ctx, settings.KeyExportPath, "./exports")
	if err != nil {
		return fmt.Errorf("reading export path: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	path := filepath.Join(dir, exportPrefix+time.Now().UTC().Format(exportTimeFormat)+exportSuffix)
	if err := e.snapshot(ctx, path); err != nil {
		return err
	}
	e.logger.Info("settings exported", "path", path)

	if e.OnExport != nil {
		if err := e.OnExport(ctx, path); err != nil {
			e.logger.Warn("export hook failed", "path", path, "error", err)
		}
	}

	retain, err := e.store.GetInt(ctx, settings.KeyExportRetain, defaultExportRetain)
	if err != nil || retain < 1 {
		retain = defaultExportRetain
	}
	if err := e.prune(dir, retain); err != nil {
		e.logger.Warn("pruning old exports failed", "dir", dir, "error", err)
	}

	if err := e.store.SetTime(ctx, settings.KeyExportLastRun, time.Now().UTC()); err != nil {
		return fmt.Errorf("recording export time: %w", err)
	}
	return nil
}

// snapshot writes a consistent copy of the live database. VACUUM INTO
// produces a standalone file even with WAL mode active.
func (e *SettingsExporter) snapshot(ctx context.Context, path string) error {
	quoted := strings.ReplaceAll(path, "'", "''")
	if _, err := e.db.ExecContext(ctx, "VACUUM INTO '"+quoted+"'"); err != nil {
		return fmt.Errorf("snapshotting database: %w", err)
	}
	return nil
}

// prune removes the oldest exports beyond the retain count. Filenames
// embed the export time, so lexical order is chronological order.
func (e *SettingsExporter) prune(dir string, retain int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var exports []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, exportPrefix) || !strings.HasSuffix(name, exportSuffix) {
			continue
		}
		exports = append(exports, name)
	}
	sort.Strings(exports)

	for len(exports) > retain {
		victim := exports[0]
		exports = exports[1:]
		if err := os.Remove(filepath.Join(dir, victim)); err != nil {
			return err
		}
		e.logger.Debug("pruned old export", "file", victim)
	}
	return nil
}
