package notify

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/asterhall/alarmbridge/internal/panel"
)

// setupTestDB creates an in-memory SQLite database with the notifier
// schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	schema := `
		CREATE TABLE notifiers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			description TEXT NOT NULL,
			kind TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
		CREATE TABLE notifier_settings (
			notifier_id INTEGER NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (notifier_id, key)
		) STRICT;
		CREATE TABLE notification_messages (
			kind TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
		CREATE TABLE event_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TEXT NOT NULL
		) STRICT;`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func pushoverFixture() *NotifierConfig {
	return &NotifierConfig{
		Description: "Phone",
		Kind:        ChannelPushover,
		Enabled:     true,
		Subscriptions: map[panel.EventKind]bool{
			panel.EventAlarm:     true,
			panel.EventZoneFault: true,
		},
		ZoneFilter:   map[int]bool{5: true, 7: true},
		StartTime:    TimeOfDay{8, 0, 0},
		EndTime:      TimeOfDay{22, 0, 0},
		DelayMinutes: 3,
		Suppress:     true,
		Settings: map[string]string{
			"token":    "app-token",
			"user_key": "user-key",
		},
	}
}

func TestRepositoryCreateGetRoundtrip(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	cfg := pushoverFixture()
	if err := repo.Create(ctx, cfg); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cfg.ID == 0 {
		t.Fatal("Create did not assign an id")
	}

	got, err := repo.Get(ctx, cfg.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != "Phone" || got.Kind != ChannelPushover || !got.Enabled {
		t.Errorf("header fields = %q/%q/%v", got.Description, got.Kind, got.Enabled)
	}
	if !got.Subscriptions[panel.EventAlarm] || !got.Subscriptions[panel.EventZoneFault] {
		t.Errorf("Subscriptions = %v", got.Subscriptions)
	}
	if !got.ZoneFilter[5] || !got.ZoneFilter[7] || len(got.ZoneFilter) != 2 {
		t.Errorf("ZoneFilter = %v", got.ZoneFilter)
	}
	if got.StartTime != (TimeOfDay{8, 0, 0}) || got.EndTime != (TimeOfDay{22, 0, 0}) {
		t.Errorf("window = %v to %v", got.StartTime, got.EndTime)
	}
	if got.DelayMinutes != 3 || !got.Suppress {
		t.Errorf("delay/suppress = %d/%v", got.DelayMinutes, got.Suppress)
	}
	if got.Settings["token"] != "app-token" || got.Settings["user_key"] != "user-key" {
		t.Errorf("Settings = %v", got.Settings)
	}
	if _, reserved := got.Settings[settingSubscriptions]; reserved {
		t.Error("reserved key leaked into channel settings")
	}
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	if _, err := repo.Get(context.Background(), 99); !errors.Is(err, ErrNotifierNotFound) {
		t.Errorf("Get error = %v, want ErrNotifierNotFound", err)
	}
}

func TestRepositoryUpdateReplacesSettings(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	cfg := pushoverFixture()
	if err := repo.Create(ctx, cfg); err != nil {
		t.Fatalf("Create: %v", err)
	}

	cfg.Description = "Tablet"
	cfg.Enabled = false
	cfg.Settings = map[string]string{"token": "new-token"}
	cfg.ZoneFilter = map[int]bool{9: true}
	if err := repo.Update(ctx, cfg); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.Get(ctx, cfg.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != "Tablet" || got.Enabled {
		t.Errorf("header fields = %q/%v", got.Description, got.Enabled)
	}
	if got.Settings["token"] != "new-token" {
		t.Errorf("Settings = %v", got.Settings)
	}
	if _, stale := got.Settings["user_key"]; stale {
		t.Error("stale setting survived the update")
	}
	if !got.ZoneFilter[9] || len(got.ZoneFilter) != 1 {
		t.Errorf("ZoneFilter = %v", got.ZoneFilter)
	}
}

func TestRepositoryUpdateMissing(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	cfg := pushoverFixture()
	cfg.ID = 42
	if err := repo.Update(context.Background(), cfg); !errors.Is(err, ErrNotifierNotFound) {
		t.Errorf("Update error = %v, want ErrNotifierNotFound", err)
	}
}

func TestRepositoryDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	cfg := pushoverFixture()
	if err := repo.Create(ctx, cfg); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, cfg.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, cfg.ID); !errors.Is(err, ErrNotifierNotFound) {
		t.Error("notifier still present after delete")
	}
	if err := repo.Delete(ctx, cfg.ID); !errors.Is(err, ErrNotifierNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotifierNotFound", err)
	}
}

func TestRepositoryListSkipsMalformedRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	good := pushoverFixture()
	if err := repo.Create(ctx, good); err != nil {
		t.Fatalf("Create: %v", err)
	}
	bad := pushoverFixture()
	bad.Description = "Broken"
	if err := repo.Create(ctx, bad); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := db.Exec(
		"UPDATE notifier_settings SET value = 'not json' WHERE notifier_id = ? AND key = ?",
		bad.ID, settingSubscriptions); err != nil {
		t.Fatalf("corrupting row: %v", err)
	}

	configs, err := repo.List(ctx)
	if !errors.Is(err, ErrInvalidSetting) {
		t.Errorf("List error = %v, want ErrInvalidSetting", err)
	}
	if len(configs) != 1 || configs[0].ID != good.ID {
		t.Fatalf("List returned %d configs, want only the valid one", len(configs))
	}
}

func TestRepositoryTemplatesUpsert(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.SetTemplate(ctx, panel.EventFire, "first"); err != nil {
		t.Fatalf("SetTemplate: %v", err)
	}
	if err := repo.SetTemplate(ctx, panel.EventFire, "second"); err != nil {
		t.Fatalf("SetTemplate upsert: %v", err)
	}

	templates, err := repo.Templates(ctx)
	if err != nil {
		t.Fatalf("Templates: %v", err)
	}
	if templates[panel.EventFire] != "second" {
		t.Errorf("template = %q, want %q", templates[panel.EventFire], "second")
	}
}

func TestRepositoryLogEvent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	if err := repo.LogEvent(context.Background(), panel.EventAlarm, "alarming"); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM event_log").Scan(&count); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if count != 1 {
		t.Errorf("event_log rows = %d, want 1", count)
	}
}
