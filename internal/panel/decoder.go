package panel

import (
	"strconv"
	"time"
)

// Decoder turns parsed wire messages into Events by tracking panel state
// across keypad frames. A status bit produces an event only when it
// changes, so the panel's periodic status repeats do not flood the
// dispatch engine.
//
// The Decoder is not safe for concurrent use; the Client delivers
// messages sequentially and the Manager owns one Decoder per connection.
type Decoder struct {
	primed bool
	last   KeypadMessage

	// faulted tracks zones currently reported faulted, so a fault is
	// emitted once and restores are emitted when the panel goes ready.
	faulted map[int]bool
}

// NewDecoder creates a Decoder with no panel state.
func NewDecoder() *Decoder {
	return &Decoder{faulted: make(map[int]bool)}
}

// Decode translates one message into zero or more events.
//
// The first keypad frame primes the state tracker without emitting
// status-change events; zone faults present in the first frame are
// still reported.
func (d *Decoder) Decode(msg *Message) []Event {
	now := time.Now()

	switch msg.Type {
	case MessageKeypad:
		return d.decodeKeypad(msg, now)
	case MessageLRR:
		events := []Event{lrrEvent(msg, now)}
		// The long range radio reports keypad panic as a distinct
		// alarm class; surface it as its own event.
		if msg.LRR.Event == lrrEventPanic {
			events = append(events, Event{
				Kind:       EventPanic,
				Raw:        msg.Raw,
				Attrs:      map[string]string{AttrPartition: msg.LRR.Partition},
				OccurredAt: now,
			})
		}
		return events
	case MessageEXP:
		return []Event{expEvent(msg, now)}
	case MessageRFX:
		return []Event{rfxEvent(msg, now)}
	case MessageAUI:
		return []Event{{
			Kind:       EventAUI,
			Raw:        msg.Raw,
			Attrs:      map[string]string{AttrValue: msg.Value},
			OccurredAt: now,
		}}
	case MessageConfig:
		return []Event{{
			Kind:       EventConfig,
			Raw:        msg.Raw,
			Attrs:      map[string]string{AttrValue: msg.Value},
			OccurredAt: now,
		}}
	case MessageBoot:
		return []Event{{
			Kind:       EventBoot,
			Raw:        msg.Raw,
			OccurredAt: now,
		}}
	default:
		return nil
	}
}

// decodeKeypad diffs a keypad status frame against the previous one.
func (d *Decoder) decodeKeypad(msg *Message, now time.Time) []Event {
	k := *msg.Keypad
	var events []Event

	emit := func(kind EventKind, zone int, attrs map[string]string) {
		events = append(events, Event{
			Kind:       kind,
			Zone:       zone,
			Raw:        msg.Raw,
			Attrs:      attrs,
			OccurredAt: now,
		})
	}

	if d.primed {
		armed := k.ArmedAway || k.ArmedStay
		wasArmed := d.last.ArmedAway || d.last.ArmedStay
		if armed && !wasArmed {
			emit(EventArm, 0, map[string]string{AttrStay: boolAttr(k.ArmedStay)})
		}
		if !armed && wasArmed {
			emit(EventDisarm, 0, nil)
		}

		if k.Alarm && !d.last.Alarm {
			emit(EventAlarm, faultZone(k), nil)
		}
		if !k.Alarm && d.last.Alarm {
			emit(EventAlarmRestore, 0, nil)
		}

		if k.Fire && !d.last.Fire {
			emit(EventFire, 0, nil)
		}

		if k.ACPower != d.last.ACPower {
			emit(EventPowerChanged, 0, map[string]string{AttrPower: boolAttr(k.ACPower)})
		}
		if k.Chime != d.last.Chime {
			emit(EventChimeChanged, 0, map[string]string{AttrChime: boolAttr(k.Chime)})
		}
		if k.Ready != d.last.Ready {
			emit(EventReadyChanged, 0, map[string]string{AttrReady: boolAttr(k.Ready)})
		}
		if k.LowBattery && !d.last.LowBattery {
			emit(EventLowBattery, 0, nil)
		}
		if k.Bypass && !d.last.Bypass {
			emit(EventBypass, faultZone(k), nil)
		}
	}

	// Zone fault tracking runs even on the priming frame.
	if zone := k.FaultedZone(); zone > 0 && !d.faulted[zone] {
		d.faulted[zone] = true
		emit(EventZoneFault, zone, nil)
	}

	// A ready panel has no faulted zones; emit restores for any we
	// were tracking.
	if k.Ready && len(d.faulted) > 0 {
		for zone := range d.faulted {
			emit(EventZoneRestore, zone, nil)
		}
		d.faulted = make(map[int]bool)
	}

	d.primed = true
	d.last = k
	return events
}

// lrrEventPanic is the long range radio event name for a keypad panic.
const lrrEventPanic = "ALARM_PANIC"

// faultZone returns the keypad numeric section as a zone number, or 0.
func faultZone(k KeypadMessage) int {
	zone, err := strconv.Atoi(k.Numeric)
	if err != nil || zone < 1 {
		return 0
	}
	return zone
}

func lrrEvent(msg *Message, now time.Time) Event {
	return Event{
		Kind: EventLRR,
		Raw:  msg.Raw,
		Attrs: map[string]string{
			AttrLRRData:   msg.LRR.Data,
			AttrPartition: msg.LRR.Partition,
			AttrLRREvent:  msg.LRR.Event,
		},
		OccurredAt: now,
	}
}

func expEvent(msg *Message, now time.Time) Event {
	expType := "zone"
	if msg.EXP.Relay {
		expType = "relay"
	}
	return Event{
		Kind: EventEXP,
		Raw:  msg.Raw,
		Attrs: map[string]string{
			AttrExpType:    expType,
			AttrExpAddress: strconv.Itoa(msg.EXP.Address),
			AttrExpChannel: strconv.Itoa(msg.EXP.Channel),
			AttrExpValue:   strconv.Itoa(msg.EXP.Value),
		},
		OccurredAt: now,
	}
}

func rfxEvent(msg *Message, now time.Time) Event {
	return Event{
		Kind: EventRFX,
		Raw:  msg.Raw,
		Attrs: map[string]string{
			AttrRFSerial:  msg.RFX.Serial,
			AttrRFBattery: boolAttr(msg.RFX.Battery),
			AttrRFSupv:    boolAttr(msg.RFX.Supervision),
			AttrRFLoop0:   boolAttr(msg.RFX.Loop[0]),
			AttrRFLoop1:   boolAttr(msg.RFX.Loop[1]),
			AttrRFLoop2:   boolAttr(msg.RFX.Loop[2]),
			AttrRFLoop3:   boolAttr(msg.RFX.Loop[3]),
		},
		OccurredAt: now,
	}
}

func boolAttr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
