// Package influxdb provides the optional event-history mirror for
// AlarmBridge.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes, and health monitoring.
//
// # Purpose
//
// When enabled, every dispatched panel event is also written as a
// time-series point. This gives dashboards long-term event history
// (alarm counts per week, zone fault frequency, panel uptime) without
// querying the SQLite event log.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteEvent("zone_fault", 5, "Front Door", "Front Door has been faulted")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a
// callback. Connection and health check errors are returned directly.
// The mirror is strictly best-effort: an InfluxDB outage never affects
// notification dispatch.
package influxdb
