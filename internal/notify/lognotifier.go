package notify

import (
	"context"
	"fmt"

	"github.com/asterhall/alarmbridge/internal/panel"
)

// EventMirror receives a copy of every logged event. The InfluxDB
// client satisfies it; writes are fire-and-forget.
type EventMirror interface {
	WriteEvent(kind string, zone int, zoneName string, message string)
}

// LogAdapter is the always-on logging channel: every event is written
// to the structured log and the durable event_log table, and mirrored
// to the time-series store when one is configured. It backs the
// registry's built-in notifier and subscribes to everything.
type LogAdapter struct {
	repo   Repository
	zones  ZoneNamer
	mirror EventMirror
	logger Logger
}

// NewLogAdapter creates the logging channel. mirror may be nil.
func NewLogAdapter(repo Repository, zoneNames ZoneNamer, mirror EventMirror, logger Logger) *LogAdapter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogAdapter{repo: repo, zones: zoneNames, mirror: mirror, logger: logger}
}

// Send records one event. Zone chatter logs at debug, everything else
// at info, matching how operators read the event stream.
func (a *LogAdapter) Send(ctx context.Context, delivery Delivery) error {
	if panel.IsZoneKind(delivery.Kind) {
		a.logger.Debug("event", "kind", delivery.EventID(), "zone", delivery.Zone,
			"message", delivery.Message)
	} else {
		a.logger.Info("event", "kind", delivery.EventID(), "message", delivery.Message)
	}

	if err := a.repo.LogEvent(ctx, delivery.Kind, delivery.Message); err != nil {
		return fmt.Errorf("persisting event log entry: %w", err)
	}

	if a.mirror != nil {
		zoneName := ""
		if delivery.Zone != 0 && a.zones != nil {
			zoneName = a.zones.Name(delivery.Zone)
		}
		a.mirror.WriteEvent(delivery.EventID(), delivery.Zone, zoneName, delivery.Message)
	}
	return nil
}
