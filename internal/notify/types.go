package notify

import (
	"fmt"
	"time"

	"github.com/asterhall/alarmbridge/internal/panel"
)

// Logger defines the logging interface used throughout the notify package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ChannelKind identifies a delivery medium.
type ChannelKind string

// Supported channel kinds.
const (
	ChannelEmail    ChannelKind = "email"
	ChannelPushover ChannelKind = "pushover"
	ChannelTwilio   ChannelKind = "twilio"
	ChannelWebhook  ChannelKind = "webhook"
	ChannelMatrix   ChannelKind = "matrix"
	ChannelUPnPPush ChannelKind = "upnppush"
	ChannelLog      ChannelKind = "log"
)

// LogNotifierID is the identity of the always-present log notifier.
// It is never stored in the notifiers table.
const LogNotifierID = -1

// TimeOfDay is a wall-clock time without a date, used for the delivery
// window of a notifier.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &t.Hour, &t.Minute, &t.Second); err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: time of day %q", ErrInvalidSetting, s)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: time of day %q out of range", ErrInvalidSetting, s)
	}
	return t, nil
}

// String formats the time as "HH:MM:SS".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// secondOfDay returns the offset from midnight in seconds.
func (t TimeOfDay) secondOfDay() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// InWindow reports whether now falls within the half-open window
// [start, end). A window whose end precedes its start wraps past
// midnight. An empty window (start == end) admits everything.
func InWindow(start, end TimeOfDay, now time.Time) bool {
	n := now.Hour()*3600 + now.Minute()*60 + now.Second()
	s, e := start.secondOfDay(), end.secondOfDay()
	switch {
	case s == e:
		return true
	case s < e:
		return n >= s && n < e
	default:
		return n >= s || n < e
	}
}

// NotifierConfig is the strongly-typed configuration of one notifier,
// populated from the notifiers and notifier_settings tables at load
// time. Malformed rows are rejected at load, not at dispatch.
type NotifierConfig struct {
	ID          int
	Description string
	Kind        ChannelKind
	Enabled     bool

	// Subscriptions is the set of event kinds this notifier receives.
	Subscriptions map[panel.EventKind]bool

	// ZoneFilter restricts zone-related events to listed zones. An
	// empty filter matches no zone event; it never means "all".
	ZoneFilter map[int]bool

	// Delivery window, evaluated in local time at send.
	StartTime TimeOfDay
	EndTime   TimeOfDay

	// DelayMinutes defers zone fault/restore/bypass deliveries.
	DelayMinutes int

	// Suppress cancels a parked zone fault (and the matching restore
	// or bypass) when the contradicting event arrives before the
	// fault's send time.
	Suppress bool

	// Settings holds the channel-specific keys (server, token, url...).
	Settings map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subscribes reports whether this notifier wants the given event.
// Zone-related kinds additionally require the zone to be in the filter.
func (c *NotifierConfig) Subscribes(kind panel.EventKind, zone int) bool {
	if !c.Subscriptions[kind] {
		return false
	}
	if panel.IsZoneKind(kind) {
		return c.ZoneFilter[zone]
	}
	return true
}

// Setting returns a channel setting, or def when absent or empty.
func (c *NotifierConfig) Setting(key, def string) string {
	if v, ok := c.Settings[key]; ok && v != "" {
		return v
	}
	return def
}

// RequiredSetting returns a channel setting or ErrMissingSetting.
func (c *NotifierConfig) RequiredSetting(key string) (string, error) {
	v, ok := c.Settings[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingSetting, key)
	}
	return v, nil
}

// PendingDelivery is one parked entry on the DelayQueue.
type PendingDelivery struct {
	NotifierID int
	Kind       panel.EventKind
	Zone       int
	Message    string
	Raw        string
	SendAfter  time.Time
}
