// Package config loads and validates the AlarmBridge service configuration.
//
// Configuration is layered:
//  1. Hardcoded defaults
//  2. YAML file values (override defaults)
//  3. ALARMBRIDGE_* environment variables (override file values)
//
// Only infrastructure settings live here (database path, MQTT broker,
// logging, dispatch tuning). Runtime-editable state (panel connection
// parameters, notifier definitions, message templates, zone names) is
// stored in SQLite and managed through the settings and notify packages,
// so it can change without a restart.
package config
