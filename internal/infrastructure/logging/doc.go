// Package logging provides structured logging for AlarmBridge.
//
// It wraps log/slog with configuration-driven handler selection (JSON or
// text), level filtering, and default service fields. Components receive a
// *Logger and may derive scoped loggers with With:
//
//	panelLog := log.With("component", "panel")
//	panelLog.Info("device opened") // includes component=panel
//
// All methods are safe for concurrent use.
package logging
