package panel

import (
	"fmt"
	"strconv"
	"strings"
)

// MessageType identifies a raw wire frame category, used for the live
// broadcast topic (alarmbridge/message/{type}).
type MessageType string

// Raw message types.
const (
	MessageKeypad MessageType = "panel"
	MessageLRR    MessageType = "lrr"
	MessageEXP    MessageType = "exp"
	MessageRFX    MessageType = "rfx"
	MessageAUI    MessageType = "aui"
	MessageConfig MessageType = "config"
	MessageBoot   MessageType = "boot"
	MessageOther  MessageType = "other"
)

// Keypad message layout: [bitfield],numeric,[raw],"alphanumeric"
// Bitfield positions (0-based within the brackets).
const (
	bitReady      = 0
	bitArmedAway  = 1
	bitArmedStay  = 2
	bitBypass     = 6
	bitACPower    = 7
	bitChime      = 8
	bitAlarmFired = 9
	bitAlarm      = 10
	bitLowBattery = 11
	bitFire       = 13

	keypadBitfieldLen = 16
	keypadSections    = 4
)

// Message is a parsed wire frame. Exactly one of the typed fields is
// populated depending on Type.
type Message struct {
	Type MessageType
	Raw  string

	Keypad *KeypadMessage
	LRR    *LRRMessage
	EXP    *EXPMessage
	RFX    *RFXMessage

	// Value holds the payload for AUI and config frames.
	Value string
}

// KeypadMessage is the panel's periodic status frame.
type KeypadMessage struct {
	Ready      bool
	ArmedAway  bool
	ArmedStay  bool
	Bypass     bool
	ACPower    bool
	Chime      bool
	Alarm      bool
	LowBattery bool
	Fire       bool

	// Numeric is the 3-digit code section, usually a zone number when
	// the text reports a fault.
	Numeric string

	// Text is the alphanumeric display section.
	Text string
}

// FaultedZone returns the zone number if this frame reports a zone fault,
// or 0 if it does not.
func (k *KeypadMessage) FaultedZone() int {
	if !strings.Contains(k.Text, "FAULT") && !strings.Contains(k.Text, "CHECK") {
		return 0
	}
	zone, err := strconv.Atoi(k.Numeric)
	if err != nil || zone < 1 {
		return 0
	}
	return zone
}

// LRRMessage is a long range radio frame: !LRR:data,partition,event
type LRRMessage struct {
	Data      string
	Partition string
	Event     string
}

// EXPMessage is a zone/relay expander frame: !EXP:address,channel,value
type EXPMessage struct {
	// Relay is true for !REL frames, false for !EXP.
	Relay   bool
	Address int
	Channel int
	Value   int
}

// RFXMessage is an RF expander frame: !RFX:serial,status
type RFXMessage struct {
	Serial string

	// Status bits decoded from the hex status byte.
	Battery     bool
	Supervision bool
	Loop        [4]bool
}

// ParseMessage parses a single newline-framed wire message.
//
// Recognised frames:
//   - [bitfield],numeric,[raw],"text"  keypad status
//   - !LRR:data,partition,event        long range radio
//   - !EXP:aa,cc,vv / !REL:aa,cc,vv    zone/relay expander
//   - !RFX:serial,status               RF expander
//   - !AUI:payload                     AUI
//   - !CONFIG>key=value&...            device configuration
//   - !Ready...                        device boot banner
//
// Anything else is returned as MessageOther with the raw line preserved,
// so unknown traffic still reaches the broadcast sink.
func ParseMessage(line string) (*Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, fmt.Errorf("%w: empty line", ErrInvalidMessage)
	}

	switch {
	case strings.HasPrefix(line, "["):
		return parseKeypadMessage(line)
	case strings.HasPrefix(line, "!LRR:"):
		return parseLRRMessage(line)
	case strings.HasPrefix(line, "!EXP:"):
		return parseEXPMessage(line, false)
	case strings.HasPrefix(line, "!REL:"):
		return parseEXPMessage(line, true)
	case strings.HasPrefix(line, "!RFX:"):
		return parseRFXMessage(line)
	case strings.HasPrefix(line, "!AUI:"):
		return &Message{
			Type:  MessageAUI,
			Raw:   line,
			Value: strings.TrimPrefix(line, "!AUI:"),
		}, nil
	case strings.HasPrefix(line, "!CONFIG>"):
		return &Message{
			Type:  MessageConfig,
			Raw:   line,
			Value: strings.TrimPrefix(line, "!CONFIG>"),
		}, nil
	case strings.HasPrefix(line, "!Ready"):
		// "!Ready to go!" banner the device prints when it (re)boots.
		return &Message{Type: MessageBoot, Raw: line}, nil
	default:
		return &Message{Type: MessageOther, Raw: line}, nil
	}
}

// parseKeypadMessage parses [bitfield],numeric,[raw],"text" frames.
func parseKeypadMessage(line string) (*Message, error) {
	end := strings.IndexByte(line, ']')
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated bitfield: %q", ErrInvalidMessage, line)
	}
	bits := line[1:end]
	if len(bits) < keypadBitfieldLen {
		return nil, fmt.Errorf("%w: bitfield too short: %q", ErrInvalidMessage, bits)
	}

	rest := strings.SplitN(line[end+1:], ",", keypadSections)
	if len(rest) < keypadSections {
		return nil, fmt.Errorf("%w: keypad frame has %d sections, want %d", ErrInvalidMessage, len(rest), keypadSections)
	}

	keypad := &KeypadMessage{
		Ready:      bits[bitReady] == '1',
		ArmedAway:  bits[bitArmedAway] == '1',
		ArmedStay:  bits[bitArmedStay] == '1',
		Bypass:     bits[bitBypass] == '1',
		ACPower:    bits[bitACPower] == '1',
		Chime:      bits[bitChime] == '1',
		LowBattery: bits[bitLowBattery] == '1',
		Fire:       bits[bitFire] == '1',
		Alarm:      bits[bitAlarm] == '1' || bits[bitAlarmFired] == '1',
		Numeric:    strings.TrimSpace(rest[1]),
		Text:       strings.Trim(strings.TrimSpace(rest[3]), `"`),
	}

	return &Message{Type: MessageKeypad, Raw: line, Keypad: keypad}, nil
}

// parseLRRMessage parses !LRR:data,partition,event frames.
func parseLRRMessage(line string) (*Message, error) {
	parts := strings.SplitN(strings.TrimPrefix(line, "!LRR:"), ",", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: LRR frame has %d fields, want 3: %q", ErrInvalidMessage, len(parts), line)
	}

	return &Message{
		Type: MessageLRR,
		Raw:  line,
		LRR: &LRRMessage{
			Data:      parts[0],
			Partition: parts[1],
			Event:     parts[2],
		},
	}, nil
}

// parseEXPMessage parses !EXP: and !REL: frames.
func parseEXPMessage(line string, relay bool) (*Message, error) {
	prefix := "!EXP:"
	if relay {
		prefix = "!REL:"
	}

	parts := strings.SplitN(strings.TrimPrefix(line, prefix), ",", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expander frame has %d fields, want 3: %q", ErrInvalidMessage, len(parts), line)
	}

	address, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: expander address %q: %v", ErrInvalidMessage, parts[0], err)
	}
	channel, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: expander channel %q: %v", ErrInvalidMessage, parts[1], err)
	}
	value, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: expander value %q: %v", ErrInvalidMessage, parts[2], err)
	}

	return &Message{
		Type: MessageEXP,
		Raw:  line,
		EXP: &EXPMessage{
			Relay:   relay,
			Address: address,
			Channel: channel,
			Value:   value,
		},
	}, nil
}

// RFX status bit masks.
const (
	rfBatteryMask = 0x02
	rfSupvMask    = 0x04
	rfLoop0Mask   = 0x80
	rfLoop1Mask   = 0x20
	rfLoop2Mask   = 0x10
	rfLoop3Mask   = 0x40
)

// parseRFXMessage parses !RFX:serial,status frames.
func parseRFXMessage(line string) (*Message, error) {
	parts := strings.SplitN(strings.TrimPrefix(line, "!RFX:"), ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: RF frame has %d fields, want 2: %q", ErrInvalidMessage, len(parts), line)
	}

	status, err := strconv.ParseUint(parts[1], 16, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: RF status %q: %v", ErrInvalidMessage, parts[1], err)
	}

	return &Message{
		Type: MessageRFX,
		Raw:  line,
		RFX: &RFXMessage{
			Serial:      parts[0],
			Battery:     status&rfBatteryMask != 0,
			Supervision: status&rfSupvMask != 0,
			Loop: [4]bool{
				status&rfLoop0Mask != 0,
				status&rfLoop1Mask != 0,
				status&rfLoop2Mask != 0,
				status&rfLoop3Mask != 0,
			},
		},
	}, nil
}
