package panel

import (
	"testing"
)

// keypadFrame builds a keypad wire line from a bitfield and display text.
func keypadFrame(bits, numeric, text string) string {
	return "[" + bits + "]," + numeric + `,[f70600ff1008001c28020000000000],"` + text + `"`
}

// decode parses and decodes one line, failing the test on parse errors.
func decode(t *testing.T, d *Decoder, line string) []Event {
	t.Helper()
	msg, err := ParseMessage(line)
	if err != nil {
		t.Fatalf("ParseMessage(%q): %v", line, err)
	}
	return d.Decode(msg)
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func hasKind(events []Event, kind EventKind) bool {
	for _, e := range events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

const (
	bitsReady     = "1000000100000000----"
	bitsArmedStay = "0010000100000000----"
	bitsArmedAway = "0100000100000000----"
	bitsAlarm     = "0000000100100000----"
	bitsFault     = "0000000100000000----"
)

func TestDecoderPrimingFrameEmitsNoStatusEvents(t *testing.T) {
	d := NewDecoder()

	events := decode(t, d, keypadFrame(bitsArmedStay, "008", "ARMED STAY"))
	if len(events) != 0 {
		t.Errorf("priming frame emitted %v, want none", kinds(events))
	}
}

func TestDecoderArmDisarm(t *testing.T) {
	d := NewDecoder()
	decode(t, d, keypadFrame(bitsReady, "008", "READY TO ARM"))

	events := decode(t, d, keypadFrame(bitsArmedStay, "008", "ARMED STAY"))
	if !hasKind(events, EventArm) {
		t.Fatalf("events = %v, want arm", kinds(events))
	}
	for _, e := range events {
		if e.Kind == EventArm && e.Attr(AttrStay) != "1" {
			t.Errorf("arm stay attr = %q, want 1", e.Attr(AttrStay))
		}
	}

	events = decode(t, d, keypadFrame(bitsReady, "008", "READY TO ARM"))
	if !hasKind(events, EventDisarm) {
		t.Errorf("events = %v, want disarm", kinds(events))
	}
}

func TestDecoderArmAwayAttr(t *testing.T) {
	d := NewDecoder()
	decode(t, d, keypadFrame(bitsReady, "008", "READY TO ARM"))

	events := decode(t, d, keypadFrame(bitsArmedAway, "008", "ARMED AWAY"))
	for _, e := range events {
		if e.Kind == EventArm && e.Attr(AttrStay) != "0" {
			t.Errorf("arm stay attr = %q, want 0", e.Attr(AttrStay))
		}
	}
}

func TestDecoderAlarmAndRestore(t *testing.T) {
	d := NewDecoder()
	decode(t, d, keypadFrame(bitsReady, "008", "READY TO ARM"))

	events := decode(t, d, keypadFrame(bitsAlarm, "005", "ALARM"))
	if !hasKind(events, EventAlarm) {
		t.Fatalf("events = %v, want alarm", kinds(events))
	}

	events = decode(t, d, keypadFrame(bitsReady, "008", "READY TO ARM"))
	if !hasKind(events, EventAlarmRestore) {
		t.Errorf("events = %v, want alarm_restored", kinds(events))
	}
}

func TestDecoderZoneFaultOnceThenRestore(t *testing.T) {
	d := NewDecoder()
	decode(t, d, keypadFrame(bitsReady, "008", "READY TO ARM"))

	// First fault report emits the event.
	events := decode(t, d, keypadFrame(bitsFault, "005", "FAULT 05 GARAGE MOTION"))
	if !hasKind(events, EventZoneFault) {
		t.Fatalf("events = %v, want zone_fault", kinds(events))
	}
	for _, e := range events {
		if e.Kind == EventZoneFault && e.Zone != 5 {
			t.Errorf("fault zone = %d, want 5", e.Zone)
		}
	}

	// Panel repeats the fault; no duplicate event.
	events = decode(t, d, keypadFrame(bitsFault, "005", "FAULT 05 GARAGE MOTION"))
	if hasKind(events, EventZoneFault) {
		t.Errorf("repeated fault emitted zone_fault again: %v", kinds(events))
	}

	// Ready frame restores the tracked zone.
	events = decode(t, d, keypadFrame(bitsReady, "008", "READY TO ARM"))
	if !hasKind(events, EventZoneRestore) {
		t.Fatalf("events = %v, want zone_restore", kinds(events))
	}
	for _, e := range events {
		if e.Kind == EventZoneRestore && e.Zone != 5 {
			t.Errorf("restore zone = %d, want 5", e.Zone)
		}
	}
}

func TestDecoderLRREvent(t *testing.T) {
	d := NewDecoder()

	events := decode(t, d, "!LRR:012,1,ARM_STAY")
	if len(events) != 1 || events[0].Kind != EventLRR {
		t.Fatalf("events = %v, want single lrr", kinds(events))
	}
	e := events[0]
	if e.Attr(AttrPartition) != "1" || e.Attr(AttrLRREvent) != "ARM_STAY" || e.Attr(AttrLRRData) != "012" {
		t.Errorf("lrr attrs = %v", e.Attrs)
	}
}

func TestDecoderLRRPanicEvent(t *testing.T) {
	d := NewDecoder()

	events := decode(t, d, "!LRR:001,1,ALARM_PANIC")
	if !hasKind(events, EventLRR) || !hasKind(events, EventPanic) {
		t.Fatalf("events = %v, want lrr and panic", kinds(events))
	}
	for _, e := range events {
		if e.Kind == EventPanic && e.Attr(AttrPartition) != "1" {
			t.Errorf("panic partition = %q, want %q", e.Attr(AttrPartition), "1")
		}
	}

	// Ordinary LRR traffic stays a single event.
	events = decode(t, d, "!LRR:012,1,ARM_STAY")
	if len(events) != 1 {
		t.Errorf("events = %v, want single lrr", kinds(events))
	}
}

func TestDecoderBootBanner(t *testing.T) {
	d := NewDecoder()

	events := decode(t, d, "!Ready to go!")
	if len(events) != 1 || events[0].Kind != EventBoot {
		t.Fatalf("events = %v, want single boot", kinds(events))
	}
	if events[0].Raw != "!Ready to go!" {
		t.Errorf("raw = %q", events[0].Raw)
	}
}

func TestDecoderExpanderAndRFEvents(t *testing.T) {
	d := NewDecoder()

	events := decode(t, d, "!EXP:07,01,01")
	if len(events) != 1 || events[0].Kind != EventEXP {
		t.Fatalf("events = %v, want single exp", kinds(events))
	}
	if events[0].Attr(AttrExpAddress) != "7" || events[0].Attr(AttrExpType) != "zone" {
		t.Errorf("exp attrs = %v", events[0].Attrs)
	}

	events = decode(t, d, "!RFX:0180036,80")
	if len(events) != 1 || events[0].Kind != EventRFX {
		t.Fatalf("events = %v, want single rfx", kinds(events))
	}
	if events[0].Attr(AttrRFSerial) != "0180036" || events[0].Attr(AttrRFLoop0) != "1" {
		t.Errorf("rfx attrs = %v", events[0].Attrs)
	}
}

func TestDecoderOtherMessagesEmitNothing(t *testing.T) {
	d := NewDecoder()

	events := decode(t, d, "!Sending.done")
	if len(events) != 0 {
		t.Errorf("events = %v, want none", kinds(events))
	}
}
