package settings

import "errors"

// Domain errors for the settings package.
var (
	// ErrInvalidKey is returned when a setting key is empty.
	ErrInvalidKey = errors.New("settings: key cannot be empty")

	// ErrInvalidValue is returned when a stored value cannot be converted
	// to the requested type.
	ErrInvalidValue = errors.New("settings: invalid value")
)
