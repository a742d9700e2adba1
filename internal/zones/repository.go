package zones

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UnnamedZone is the placeholder name for zones without a directory entry.
const UnnamedZone = "<unnamed>"

// Zone is a single entry in the zone directory.
type Zone struct {
	// Number is the panel zone number (1-based).
	Number int

	// Name is the human-readable zone name.
	Name string

	// Description is optional free text.
	Description string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines the interface for zone directory persistence.
type Repository interface {
	Get(ctx context.Context, number int) (*Zone, error)
	List(ctx context.Context) ([]Zone, error)
	Create(ctx context.Context, zone *Zone) error
	Update(ctx context.Context, zone *Zone) error
	Delete(ctx context.Context, number int) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed zone repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get retrieves a zone by number.
func (r *SQLiteRepository) Get(ctx context.Context, number int) (*Zone, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT number, name, description, created_at, updated_at FROM zones WHERE number = ?",
		number,
	)

	zone, err := scanZone(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrZoneNotFound
		}
		return nil, fmt.Errorf("querying zone: %w", err)
	}
	return zone, nil
}

// List retrieves all zones ordered by number.
func (r *SQLiteRepository) List(ctx context.Context) ([]Zone, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT number, name, description, created_at, updated_at FROM zones ORDER BY number",
	)
	if err != nil {
		return nil, fmt.Errorf("querying zones: %w", err)
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		zone, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning zone: %w", err)
		}
		zones = append(zones, *zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating zones: %w", err)
	}
	return zones, nil
}

// Create inserts a new zone.
func (r *SQLiteRepository) Create(ctx context.Context, zone *Zone) error {
	if zone.Number < 1 {
		return ErrInvalidZone
	}

	now := time.Now().UTC()
	if zone.CreatedAt.IsZero() {
		zone.CreatedAt = now
	}
	zone.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO zones (number, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		zone.Number,
		zone.Name,
		zone.Description,
		zone.CreatedAt.Format(time.RFC3339),
		zone.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrZoneExists
		}
		return fmt.Errorf("inserting zone: %w", err)
	}
	return nil
}

// Update modifies an existing zone.
func (r *SQLiteRepository) Update(ctx context.Context, zone *Zone) error {
	zone.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		"UPDATE zones SET name = ?, description = ?, updated_at = ? WHERE number = ?",
		zone.Name,
		zone.Description,
		zone.UpdatedAt.Format(time.RFC3339),
		zone.Number,
	)
	if err != nil {
		return fmt.Errorf("updating zone: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// Delete removes a zone by number.
func (r *SQLiteRepository) Delete(ctx context.Context, number int) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM zones WHERE number = ?", number)
	if err != nil {
		return fmt.Errorf("deleting zone: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanZone.
type scanner interface {
	Scan(dest ...any) error
}

func scanZone(s scanner) (*Zone, error) {
	var zone Zone
	var createdAt, updatedAt string

	if err := s.Scan(&zone.Number, &zone.Name, &zone.Description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	zone.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	zone.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &zone, nil
}

// isUniqueConstraintError checks for SQLite unique constraint violations.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
