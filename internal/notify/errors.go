package notify

import "errors"

// Sentinel errors for the notify package.
// Wrap with fmt.Errorf("...: %w", err) to add context; check with errors.Is.
var (
	// ErrNotifierNotFound indicates the requested notifier does not exist
	// in the repository or the registry.
	ErrNotifierNotFound = errors.New("notifier not found")

	// ErrUnknownChannel indicates a notifier row names a channel kind
	// with no adapter implementation.
	ErrUnknownChannel = errors.New("unknown channel kind")

	// ErrMissingSetting indicates a required channel setting is absent
	// or empty.
	ErrMissingSetting = errors.New("missing channel setting")

	// ErrInvalidSetting indicates a channel setting is present but
	// malformed.
	ErrInvalidSetting = errors.New("invalid channel setting")

	// ErrDeliveryFailed indicates the remote end rejected or failed a
	// transmission.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrDrainTimeout indicates the worker pool did not finish its
	// backlog within the allotted shutdown window.
	ErrDrainTimeout = errors.New("worker pool drain timed out")

	// ErrPoolClosed indicates a task was submitted after Stop.
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrSubscriberNotFound indicates an unknown push subscription id.
	ErrSubscriberNotFound = errors.New("subscriber not found")
)
