// Package panel owns the connection to the alarm panel interface device
// and turns its wire traffic into events.
//
// The package is split into four pieces:
//
//   - Client: the transport. Connects over TCP (optionally TLS) or a
//     local serial device file, reads newline-framed messages, and hands
//     them to a bounded callback worker pool.
//   - Decoder: stateful message-to-event translation. Tracks panel status
//     across keypad messages and emits an Event only when something
//     changes (arm, disarm, alarm, zone fault, and so on).
//   - Manager: the connection lifecycle state machine
//     (Closed -> Opening -> Open). Resolves transport parameters from the
//     settings store on every Open, closes any existing connection first,
//     and forwards decoded events to the dispatcher and the broadcast sink.
//   - Supervisor: the reconnect loop. Polls the manager and reopens the
//     connection when it has dropped, doubling its sleep after a failed
//     attempt so an absent device is not busy-polled.
//
// Only the Manager mutates connection state; everything else reads it
// through the Manager's API.
package panel
