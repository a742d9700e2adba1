// Package settings provides the runtime key/value settings store.
//
// Settings are small named values that can change while the service is
// running: panel connection parameters (device type, address, TLS), the
// update-check and export schedules, and the timestamps those maintenance
// loops persist between cycles. They live in the SQLite settings table so
// edits take effect without a restart; the panel supervisor and scheduler
// loops re-read them every cycle.
//
// Values are stored as text and converted on read. Missing keys are not
// errors at the Get* level; callers supply a default.
package settings
