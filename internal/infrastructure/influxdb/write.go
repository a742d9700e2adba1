package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEvent writes a dispatched panel event to the history bucket.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Zone is recorded as a field (high cardinality), kind as a tag.
//
// Parameters:
//   - kind: Event kind (e.g., "alarm", "zone_fault", "arm")
//   - zone: Zone number, or 0 for events without a zone
//   - zoneName: Resolved zone name, empty for events without a zone
//   - message: The rendered human-readable event message
//
// Example:
//
//	client.WriteEvent("zone_fault", 5, "Front Door", "Front Door has been faulted")
func (c *Client) WriteEvent(kind string, zone int, zoneName string, message string) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"message": message,
		"count":   1,
	}
	if zone > 0 {
		fields["zone"] = zone
	}
	if zoneName != "" {
		fields["zone_name"] = zoneName
	}

	point := write.NewPoint(
		"panel_events",
		map[string]string{
			"kind": kind,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePanelStatus records a panel connection state transition.
//
// Used to chart panel uptime and reconnect churn over time.
//
// Parameters:
//   - state: Connection state name (e.g., "open", "closed", "reconnecting")
func (c *Client) WritePanelStatus(state string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"panel_status",
		map[string]string{
			"state": state,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
