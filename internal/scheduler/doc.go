// Package scheduler runs the background maintenance loops: the
// periodic update check and the periodic settings export.
//
// # Architecture
//
// Each maintenance task implements Job. The Scheduler runs one
// goroutine per job. At the top of every cycle the job re-reads its
// configuration from the settings store, so an operator can enable,
// disable, or retime a loop without a restart. A panicking cycle is
// recovered and logged; the loop keeps running.
//
// # Shutdown
//
// Stop closes the done channel and joins the loops with a bounded
// wait. A job blocked in a slow cycle is abandoned after the timeout
// rather than holding up process shutdown.
package scheduler
