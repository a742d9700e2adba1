// Package notify implements the notification dispatch core: matching
// decoded panel events against configured notifiers, rendering message
// templates, and delivering through per-channel adapters.
//
// # Architecture
//
// The package is organized in layers, leaves first:
//
//   - ChannelAdapter: one implementation per delivery medium (email,
//     SMS, push, webhook, chat, UPnP fan-out, durable log). Each knows
//     how to format and transmit a single rendered message.
//   - Registry: the runtime set of configured notifiers, loaded from
//     the repository, refreshable per-notifier without a restart. The
//     log notifier (id -1) is always present.
//   - Engine: the dispatcher. Given one event it evaluates every
//     notifier's subscription rules, renders the message, and either
//     hands a delivery task to the worker pool or parks it on the
//     delay queue. It also republishes every event to the MQTT
//     broadcast bus.
//   - DelayQueue: pending deliveries whose configured delay has not
//     elapsed, drained on a fixed cycle with a suppression pass before
//     the expiry pass.
//   - WorkerPool: bounded executors for the blocking transmission
//     work, with an unbounded submit backlog so the dispatch path
//     never blocks or drops.
//
// # Error Isolation
//
// A failing notifier never affects the others: delivery errors are
// collected into the Engine's returned error list and logged, never
// propagated into the panel event stream.
package notify
