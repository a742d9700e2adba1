package zones

import "errors"

// Domain errors for the zones package.
var (
	// ErrZoneNotFound is returned when a zone number has no directory entry.
	ErrZoneNotFound = errors.New("zones: not found")

	// ErrZoneExists is returned when creating a zone that already exists.
	ErrZoneExists = errors.New("zones: already exists")

	// ErrInvalidZone is returned when a zone number is out of range.
	ErrInvalidZone = errors.New("zones: invalid zone number")
)
