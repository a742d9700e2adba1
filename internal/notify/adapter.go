package notify

import (
	"context"

	"github.com/asterhall/alarmbridge/internal/panel"
)

// ChannelAdapter transmits one rendered message over a specific medium.
//
// Implementations perform blocking I/O; the Engine only invokes Send
// from worker pool tasks (or synchronously for test sends). A failed
// Send returns an error wrapping ErrDeliveryFailed and must leave the
// adapter usable for the next delivery.
type ChannelAdapter interface {
	Send(ctx context.Context, delivery Delivery) error
}

// Delivery is the value handed to an adapter for one transmission.
// It carries only what adapters need, never the running service.
type Delivery struct {
	// Kind is empty for operator test sends.
	Kind panel.EventKind

	// Zone is the panel zone for zone-related kinds, 0 otherwise.
	Zone int

	// Message is the rendered template text.
	Message string

	// Raw is the raw panel frame the event was decoded from, when one
	// exists.
	Raw string

	// Panel is a point-in-time snapshot of panel state, for adapters
	// that publish state alongside the event (UPnP push). Nil when no
	// snapshot is available.
	Panel *PanelSnapshot
}

// EventID returns the wire identifier for the delivery's event kind,
// or "test" for test sends.
func (d Delivery) EventID() string {
	if d.Kind == "" {
		return "test"
	}
	return string(d.Kind)
}

// EventDescription returns the human-readable event description.
func (d Delivery) EventDescription() string {
	if d.Kind == "" {
		return "Test"
	}
	return panel.Description(d.Kind)
}

// PanelSnapshot is the panel state the Engine accumulates from the
// event stream, copied into deliveries that want it.
type PanelSnapshot struct {
	Ready        bool
	Armed        bool
	ArmedStay    bool
	Alarming     bool
	FireDetected bool
	ACPower      bool
	LowBattery   bool
	Chime        bool
	FaultedZones []int
	LastMessage  string
}
