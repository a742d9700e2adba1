package panel

import "time"

// EventKind identifies a panel occurrence. The set is closed; adapters and
// the dispatch engine switch on these values.
type EventKind string

// Panel event kinds.
const (
	EventArm          EventKind = "arm"
	EventDisarm       EventKind = "disarm"
	EventPowerChanged EventKind = "power_changed"
	EventAlarm        EventKind = "alarm"
	EventAlarmRestore EventKind = "alarm_restored"
	EventFire         EventKind = "fire"
	EventBypass       EventKind = "bypass"
	EventBoot         EventKind = "boot"
	EventConfig       EventKind = "config_received"
	EventZoneFault    EventKind = "zone_fault"
	EventZoneRestore  EventKind = "zone_restore"
	EventLowBattery   EventKind = "low_battery"
	EventPanic        EventKind = "panic"
	EventReadyChanged EventKind = "ready_changed"
	EventChimeChanged EventKind = "chime_changed"
	EventLRR          EventKind = "lrr"
	EventRFX          EventKind = "rfx"
	EventEXP          EventKind = "exp"
	EventAUI          EventKind = "aui"
)

// Attribute keys used in Event.Attrs. Values are strings; the template
// renderer substitutes them into message placeholders.
const (
	// AttrStay is "1" when the panel armed in stay mode, "0" for away.
	AttrStay = "stay"

	// AttrPower is "1" when AC power is present, "0" on battery.
	AttrPower = "power"

	// AttrChime is "1" when the keypad chime is enabled.
	AttrChime = "chime"

	// AttrReady is "1" when the panel is ready to arm.
	AttrReady = "ready"

	// LRR message attributes.
	AttrPartition = "partition"
	AttrLRREvent  = "lrr_event"
	AttrLRRData   = "lrr_data"

	// Expander message attributes.
	AttrExpType    = "type"
	AttrExpAddress = "address"
	AttrExpChannel = "channel"
	AttrExpValue   = "value"

	// RF message attributes.
	AttrRFSerial  = "sn"
	AttrRFBattery = "bat"
	AttrRFSupv    = "supv"
	AttrRFLoop0   = "loop0"
	AttrRFLoop1   = "loop1"
	AttrRFLoop2   = "loop2"
	AttrRFLoop3   = "loop3"

	// AttrValue carries the raw payload for AUI and config messages.
	AttrValue = "value"
)

// Event is a single decoded panel occurrence. Immutable once created.
type Event struct {
	// Kind is the event kind.
	Kind EventKind

	// Zone is the panel zone number for zone-related kinds, 0 otherwise.
	Zone int

	// Raw is the wire message that produced the event.
	Raw string

	// Attrs holds kind-specific attributes (see Attr* constants).
	Attrs map[string]string

	// OccurredAt is when the event was decoded.
	OccurredAt time.Time
}

// Attr returns the named attribute, or "" if absent.
func (e Event) Attr(key string) string {
	return e.Attrs[key]
}

// IsZoneKind reports whether the kind carries a zone number and is
// eligible for zone filtering, delayed delivery, and suppression.
func IsZoneKind(kind EventKind) bool {
	switch kind {
	case EventZoneFault, EventZoneRestore, EventBypass:
		return true
	default:
		return false
	}
}

// KindDescriptions maps each event kind to a short human-readable label,
// used by webhook payloads and the event log.
var KindDescriptions = map[EventKind]string{
	EventArm:          "Alarm system armed",
	EventDisarm:       "Alarm system disarmed",
	EventPowerChanged: "Power status changed",
	EventAlarm:        "Alarm triggered",
	EventAlarmRestore: "Alarm restored",
	EventFire:         "Fire alarm",
	EventBypass:       "Zone bypassed",
	EventBoot:         "Device rebooted",
	EventConfig:       "Device configuration received",
	EventZoneFault:    "Zone faulted",
	EventZoneRestore:  "Zone restored",
	EventLowBattery:   "Low battery",
	EventPanic:        "Panic",
	EventReadyChanged: "Ready status changed",
	EventChimeChanged: "Chime status changed",
	EventLRR:          "Long range radio message",
	EventRFX:          "RF expander message",
	EventEXP:          "Zone expander message",
	EventAUI:          "AUI message",
}

// Description returns the human-readable label for a kind.
func Description(kind EventKind) string {
	if d, ok := KindDescriptions[kind]; ok {
		return d
	}
	return string(kind)
}
