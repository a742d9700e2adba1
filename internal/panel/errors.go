package panel

import "errors"

// Domain errors for the panel package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, panel.ErrNotConnected) {
//	    // handle disconnected state
//	}
var (
	// ErrNotConnected is returned when attempting operations on a closed connection.
	ErrNotConnected = errors.New("panel: not connected")

	// ErrConnectionFailed is returned when opening the device fails.
	ErrConnectionFailed = errors.New("panel: connection failed")

	// ErrInvalidTransport is returned for an unrecognised device type setting.
	ErrInvalidTransport = errors.New("panel: invalid transport")

	// ErrInvalidMessage is returned when a panel message cannot be parsed.
	ErrInvalidMessage = errors.New("panel: invalid message")

	// ErrClosed is returned when using a manager after Stop.
	ErrClosed = errors.New("panel: closed")
)
