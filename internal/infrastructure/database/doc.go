// Package database provides the SQLite persistence layer for alarmbridge.
//
// The database holds everything that must survive a restart: panel and
// service settings, notifier definitions, per-notifier settings, message
// templates, the zone directory, and the event log. SQLite is a good fit
// because alarmbridge is a single-process service with modest write rates
// and benefits from a zero-administration embedded store.
//
// Schema changes are applied through embedded SQL migrations. The main
// package wires the embedded filesystem in via the migrations package,
// and Migrate applies any pending files at startup before repositories
// are constructed.
package database
