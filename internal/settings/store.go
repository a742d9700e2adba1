package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Well-known setting keys.
//
// Panel connection settings are read by panel.Manager on every Open, so
// changing them takes effect on the next reconnect. Schedule settings and
// persisted timestamps are read by the scheduler loops each cycle.
const (
	// KeyDeviceType selects the panel transport: "network" or "serial".
	KeyDeviceType = "device_type"

	// KeyDeviceAddress is the host (network) or device file path (serial).
	KeyDeviceAddress = "device_address"

	// KeyDevicePort is the TCP port for network connections.
	KeyDevicePort = "device_port"

	// KeyDeviceBaudrate is the serial baud rate.
	KeyDeviceBaudrate = "device_baudrate"

	// KeyUseTLS enables TLS for network panel connections.
	KeyUseTLS = "use_ssl"

	// KeyTLSCACert is the PEM file holding the CA certificate that
	// signed the panel interface's server certificate.
	KeyTLSCACert = "ca_cert_path"

	// KeyTLSClientCert is the PEM file holding the client certificate
	// presented to the panel interface.
	KeyTLSClientCert = "client_cert_path"

	// KeyTLSClientKey is the PEM file holding the client private key.
	KeyTLSClientKey = "client_key_path"

	// KeyUpdateCheckEnabled toggles the periodic update check loop.
	KeyUpdateCheckEnabled = "version_checker_enable"

	// KeyUpdateCheckInterval is the update check interval in seconds.
	KeyUpdateCheckInterval = "version_checker_timeout"

	// KeyUpdateLastChecked is the RFC3339 timestamp of the last update check.
	KeyUpdateLastChecked = "version_checker_last_check_time"

	// KeyAvailableVersion is the newest version seen by the update check.
	KeyAvailableVersion = "version_checker_available_version"

	// KeyExportEnabled toggles the periodic settings export loop.
	KeyExportEnabled = "export_enable"

	// KeyExportInterval is the export interval in seconds.
	KeyExportInterval = "export_frequency"

	// KeyExportPath is the directory exports are written to.
	KeyExportPath = "export_path"

	// KeyExportRetain is how many export archives to keep.
	KeyExportRetain = "export_retain"

	// KeyExportLastRun is the RFC3339 timestamp of the last export.
	KeyExportLastRun = "export_last_run_time"

	// KeyCaptureEnabled toggles the periodic camera capture loop.
	KeyCaptureEnabled = "capture_enable"

	// KeyCaptureInterval is the capture interval in seconds.
	KeyCaptureInterval = "capture_frequency"

	// KeyCaptureURL is the camera's still-image URL.
	KeyCaptureURL = "capture_url"

	// KeyCaptureUsername and KeyCapturePassword are the camera's basic
	// auth credentials, both optional.
	KeyCaptureUsername = "capture_username"
	KeyCapturePassword = "capture_password"

	// KeyCapturePath is the directory captured frames are written to.
	KeyCapturePath = "capture_path"
)

// Store defines the interface for runtime settings access.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Store interface {
	// Get returns the raw value for key. found is false if the key
	// does not exist.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// GetString returns the value for key, or def if the key is absent.
	GetString(ctx context.Context, key, def string) (string, error)

	// GetInt returns the value for key as an int, or def if absent.
	GetInt(ctx context.Context, key string, def int) (int, error)

	// GetBool returns the value for key as a bool, or def if absent.
	// Accepted values: "1", "0", "true", "false" (case insensitive).
	GetBool(ctx context.Context, key string, def bool) (bool, error)

	// GetTime returns the value for key as an RFC3339 timestamp.
	// found is false if the key is absent.
	GetTime(ctx context.Context, key string) (t time.Time, found bool, err error)

	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key, value string) error

	// SetInt stores an integer value under key.
	SetInt(ctx context.Context, key string, value int) error

	// SetBool stores a boolean value under key.
	SetBool(ctx context.Context, key string, value bool) error

	// SetTime stores a timestamp under key in RFC3339 format.
	SetTime(ctx context.Context, key string, value time.Time) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// SQLiteStore implements Store using the settings table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed settings store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get returns the raw value for key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrInvalidKey
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying setting %q: %w", key, err)
	}
	return value, true, nil
}

// GetString returns the value for key, or def if the key is absent.
func (s *SQLiteStore) GetString(ctx context.Context, key, def string) (string, error) {
	value, found, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !found {
		return def, nil
	}
	return value, nil
}

// GetInt returns the value for key as an int, or def if absent.
func (s *SQLiteStore) GetInt(ctx context.Context, key string, def int) (int, error) {
	value, found, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !found {
		return def, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: setting %q is not an integer: %q", ErrInvalidValue, key, value)
	}
	return n, nil
}

// GetBool returns the value for key as a bool, or def if absent.
func (s *SQLiteStore) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	value, found, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return def, nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: setting %q is not a boolean: %q", ErrInvalidValue, key, value)
	}
	return b, nil
}

// GetTime returns the value for key as an RFC3339 timestamp.
func (s *SQLiteStore) GetTime(ctx context.Context, key string) (time.Time, bool, error) {
	value, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return time.Time{}, found, err
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: setting %q is not a timestamp: %q", ErrInvalidValue, key, value)
	}
	return t, true, nil
}

// Set stores value under key, replacing any existing value.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing setting %q: %w", key, err)
	}
	return nil
}

// SetInt stores an integer value under key.
func (s *SQLiteStore) SetInt(ctx context.Context, key string, value int) error {
	return s.Set(ctx, key, strconv.Itoa(value))
}

// SetBool stores a boolean value under key.
func (s *SQLiteStore) SetBool(ctx context.Context, key string, value bool) error {
	return s.Set(ctx, key, strconv.FormatBool(value))
}

// SetTime stores a timestamp under key in RFC3339 format.
func (s *SQLiteStore) SetTime(ctx context.Context, key string, value time.Time) error {
	return s.Set(ctx, key, value.UTC().Format(time.RFC3339))
}

// Delete removes key. Deleting an absent key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting setting %q: %w", key, err)
	}
	return nil
}
