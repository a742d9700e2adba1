package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/asterhall/alarmbridge/internal/panel"
)

// Repository defines persistence for notifier configuration, message
// templates, and the durable event log. The abstraction allows mock
// implementations in tests.
type Repository interface {
	// Notifier configuration
	List(ctx context.Context) ([]NotifierConfig, error)
	Get(ctx context.Context, id int) (*NotifierConfig, error)
	Create(ctx context.Context, cfg *NotifierConfig) error
	Update(ctx context.Context, cfg *NotifierConfig) error
	Delete(ctx context.Context, id int) error

	// Message templates
	Templates(ctx context.Context) (map[panel.EventKind]string, error)
	SetTemplate(ctx context.Context, kind panel.EventKind, text string) error

	// Durable event log
	LogEvent(ctx context.Context, kind panel.EventKind, message string) error
}

// Reserved notifier_settings keys parsed into typed NotifierConfig
// fields at load time. Everything else stays in Settings for the
// channel adapter.
const (
	settingSubscriptions = "subscriptions"
	settingZoneFilter    = "zone_filter"
	settingStartTime     = "starttime"
	settingEndTime       = "endtime"
	settingDelay         = "delay"
	settingSuppress      = "suppress"
)

// Delivery window defaults: all day.
var (
	defaultStartTime = TimeOfDay{0, 0, 0}
	defaultEndTime   = TimeOfDay{23, 59, 59}
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List retrieves every configured notifier.
//
// Rows that fail to parse do not block the others: the parsed rows are
// returned alongside an error joining the per-row failures, so a
// single malformed notifier never prevents the rest from loading.
func (r *SQLiteRepository) List(ctx context.Context) ([]NotifierConfig, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, description, kind, enabled, created_at, updated_at FROM notifiers ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying notifiers: %w", err)
	}
	defer rows.Close()

	var configs []NotifierConfig
	var loadErrs []error
	for rows.Next() {
		cfg, err := scanNotifier(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notifier: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifiers: %w", err)
	}

	out := configs[:0]
	for i := range configs {
		if err := r.loadSettings(ctx, &configs[i]); err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("notifier %d: %w", configs[i].ID, err))
			continue
		}
		out = append(out, configs[i])
	}
	return out, errors.Join(loadErrs...)
}

// Get retrieves one notifier by id.
func (r *SQLiteRepository) Get(ctx context.Context, id int) (*NotifierConfig, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, description, kind, enabled, created_at, updated_at FROM notifiers WHERE id = ?", id)
	cfg, err := scanNotifier(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotifierNotFound
		}
		return nil, fmt.Errorf("querying notifier: %w", err)
	}
	if err := r.loadSettings(ctx, cfg); err != nil {
		return nil, fmt.Errorf("notifier %d: %w", id, err)
	}
	return cfg, nil
}

// Create inserts a notifier and its settings.
func (r *SQLiteRepository) Create(ctx context.Context, cfg *NotifierConfig) error {
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT INTO notifiers (description, kind, enabled, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		cfg.Description, string(cfg.Kind), cfg.Enabled,
		cfg.CreatedAt.Format(time.RFC3339), cfg.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting notifier: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading notifier id: %w", err)
	}
	cfg.ID = int(id)

	if err := writeSettings(ctx, tx, cfg); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing notifier: %w", err)
	}
	return nil
}

// Update rewrites a notifier and replaces its settings.
func (r *SQLiteRepository) Update(ctx context.Context, cfg *NotifierConfig) error {
	cfg.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"UPDATE notifiers SET description = ?, kind = ?, enabled = ?, updated_at = ? WHERE id = ?",
		cfg.Description, string(cfg.Kind), cfg.Enabled, cfg.UpdatedAt.Format(time.RFC3339), cfg.ID)
	if err != nil {
		return fmt.Errorf("updating notifier: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotifierNotFound
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM notifier_settings WHERE notifier_id = ?", cfg.ID); err != nil {
		return fmt.Errorf("clearing notifier settings: %w", err)
	}
	if err := writeSettings(ctx, tx, cfg); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing notifier: %w", err)
	}
	return nil
}

// Delete removes a notifier and its settings.
func (r *SQLiteRepository) Delete(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM notifier_settings WHERE notifier_id = ?", id); err != nil {
		return fmt.Errorf("deleting notifier settings: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM notifiers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting notifier: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotifierNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

// Templates retrieves all message templates keyed by event kind.
func (r *SQLiteRepository) Templates(ctx context.Context) (map[panel.EventKind]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT kind, text FROM notification_messages")
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	templates := make(map[panel.EventKind]string)
	for rows.Next() {
		var kind, text string
		if err := rows.Scan(&kind, &text); err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		templates[panel.EventKind(kind)] = text
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating templates: %w", err)
	}
	return templates, nil
}

// SetTemplate upserts one message template.
func (r *SQLiteRepository) SetTemplate(ctx context.Context, kind panel.EventKind, text string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_messages (kind, text, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET text = excluded.text, updated_at = excluded.updated_at`,
		string(kind), text, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting template %q: %w", kind, err)
	}
	return nil
}

// LogEvent appends one row to the durable event log.
func (r *SQLiteRepository) LogEvent(ctx context.Context, kind panel.EventKind, message string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO event_log (kind, message, created_at) VALUES (?, ?, ?)",
		string(kind), message, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting event log entry: %w", err)
	}
	return nil
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanNotifier(s scanner) (*NotifierConfig, error) {
	cfg := &NotifierConfig{
		Subscriptions: make(map[panel.EventKind]bool),
		ZoneFilter:    make(map[int]bool),
		Settings:      make(map[string]string),
		StartTime:     defaultStartTime,
		EndTime:       defaultEndTime,
	}
	var kind, createdAt, updatedAt string
	if err := s.Scan(&cfg.ID, &cfg.Description, &kind, &cfg.Enabled,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	cfg.Kind = ChannelKind(kind)
	cfg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	cfg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return cfg, nil
}

// loadSettings reads notifier_settings rows into cfg, lifting the
// reserved keys into their typed fields. A malformed reserved value is
// a load error; the notifier is rejected rather than dispatched with a
// partial configuration.
func (r *SQLiteRepository) loadSettings(ctx context.Context, cfg *NotifierConfig) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT key, value FROM notifier_settings WHERE notifier_id = ?", cfg.ID)
	if err != nil {
		return fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	raw := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scanning setting: %w", err)
		}
		raw[key] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating settings: %w", err)
	}

	for key, value := range raw {
		switch key {
		case settingSubscriptions:
			var kinds []string
			if err := json.Unmarshal([]byte(value), &kinds); err != nil {
				return fmt.Errorf("%w: subscriptions: %v", ErrInvalidSetting, err)
			}
			for _, k := range kinds {
				cfg.Subscriptions[panel.EventKind(k)] = true
			}
		case settingZoneFilter:
			var zoneIDs []int
			if err := json.Unmarshal([]byte(value), &zoneIDs); err != nil {
				return fmt.Errorf("%w: zone_filter: %v", ErrInvalidSetting, err)
			}
			for _, z := range zoneIDs {
				cfg.ZoneFilter[z] = true
			}
		case settingStartTime:
			t, err := ParseTimeOfDay(value)
			if err != nil {
				return fmt.Errorf("starttime: %w", err)
			}
			cfg.StartTime = t
		case settingEndTime:
			t, err := ParseTimeOfDay(value)
			if err != nil {
				return fmt.Errorf("endtime: %w", err)
			}
			cfg.EndTime = t
		case settingDelay:
			d, err := strconv.Atoi(value)
			if err != nil || d < 0 {
				return fmt.Errorf("%w: delay %q", ErrInvalidSetting, value)
			}
			cfg.DelayMinutes = d
		case settingSuppress:
			cfg.Suppress = value == "1" || value == "true"
		default:
			cfg.Settings[key] = value
		}
	}
	return nil
}

// writeSettings persists typed fields and channel settings for cfg.
func writeSettings(ctx context.Context, tx *sql.Tx, cfg *NotifierConfig) error {
	values := make(map[string]string, len(cfg.Settings)+6)
	for k, v := range cfg.Settings {
		values[k] = v
	}

	kinds := make([]string, 0, len(cfg.Subscriptions))
	for k := range cfg.Subscriptions {
		kinds = append(kinds, string(k))
	}
	subs, err := json.Marshal(kinds)
	if err != nil {
		return fmt.Errorf("encoding subscriptions: %w", err)
	}
	values[settingSubscriptions] = string(subs)

	zoneIDs := make([]int, 0, len(cfg.ZoneFilter))
	for z := range cfg.ZoneFilter {
		zoneIDs = append(zoneIDs, z)
	}
	zones, err := json.Marshal(zoneIDs)
	if err != nil {
		return fmt.Errorf("encoding zone filter: %w", err)
	}
	values[settingZoneFilter] = string(zones)

	values[settingStartTime] = cfg.StartTime.String()
	values[settingEndTime] = cfg.EndTime.String()
	values[settingDelay] = strconv.Itoa(cfg.DelayMinutes)
	values[settingSuppress] = boolSetting(cfg.Suppress)

	for key, value := range values {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO notifier_settings (notifier_id, key, value) VALUES (?, ?, ?)",
			cfg.ID, key, value); err != nil {
			return fmt.Errorf("inserting setting %q: %w", key, err)
		}
	}
	return nil
}

func boolSetting(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
