package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/asterhall/alarmbridge/internal/panel"
	"github.com/asterhall/alarmbridge/internal/zones"
)

// templateVersion is bumped whenever a default template changes, so
// SeedDefaultTemplates refreshes the stored copies.
const templateVersion = "1"

// templateVersionKey is the notification_messages row holding the
// seeded version marker. It never collides with an event kind.
const templateVersionKey panel.EventKind = "_version"

// defaultTemplates are the message texts seeded for each event kind.
// Operators edit the stored copies; these are only the starting point.
var defaultTemplates = map[panel.EventKind]string{
	panel.EventArm:          "The alarm system has been armed. Mode: {arm_type}.",
	panel.EventDisarm:       "The alarm system has been disarmed.",
	panel.EventPowerChanged: "Power status has changed to {status}.",
	panel.EventAlarm:        "The alarm system is alarming! Zone {zone} ({zone_name}).",
	panel.EventAlarmRestore: "The alarm has been restored. Zone {zone} ({zone_name}).",
	panel.EventFire:         "Fire detected!",
	panel.EventPanic:        "Panic!",
	panel.EventBypass:       "Zone {zone} ({zone_name}) has been bypassed.",
	panel.EventBoot:         "The device has finished booting.",
	panel.EventConfig:       "Device configuration has been received.",
	panel.EventZoneFault:    "Zone {zone} ({zone_name}) has been faulted.",
	panel.EventZoneRestore:  "Zone {zone} ({zone_name}) has been restored.",
	panel.EventLowBattery:   "A low battery condition has been detected.",
	panel.EventReadyChanged: "Ready status has changed to {status}.",
	panel.EventChimeChanged: "Chime status has changed to {status}.",
	panel.EventLRR:          "Long range radio: {status}",
	panel.EventEXP:          "Expander message. Type: {type}, address: {address}, channel: {channel}, value: {value}.",
	panel.EventRFX:          "RF message. Serial: {sn}, battery: {bat}, supervision: {supv}, loops: {loop0}{loop1}{loop2}{loop3}.",
	panel.EventAUI:          "AUI message: {value}.",
}

// SeedDefaultTemplates writes the default message templates when the
// stored template version differs from this build's. Operator edits
// survive until a version bump replaces them.
func SeedDefaultTemplates(ctx context.Context, repo Repository) error {
	stored, err := repo.Templates(ctx)
	if err != nil {
		return fmt.Errorf("reading stored templates: %w", err)
	}
	if stored[templateVersionKey] == templateVersion {
		return nil
	}

	for kind, text := range defaultTemplates {
		if err := repo.SetTemplate(ctx, kind, text); err != nil {
			return err
		}
	}
	if err := repo.SetTemplate(ctx, templateVersionKey, templateVersion); err != nil {
		return err
	}
	return nil
}

// ZoneNamer resolves a zone number to its configured name.
// *zones.Resolver satisfies it.
type ZoneNamer interface {
	Name(number int) string
}

var _ ZoneNamer = (*zones.Resolver)(nil)

// Renderer turns events into notification text by substituting event
// attributes into the stored message template for the event kind.
//
// Thread Safety: all methods are safe for concurrent use; Refresh
// swaps the template set atomically.
type Renderer struct {
	mu        sync.RWMutex
	templates map[panel.EventKind]string
	zones     ZoneNamer
}

// NewRenderer creates a Renderer with the built-in default templates.
// Call Refresh to load the operator-edited copies from the repository.
func NewRenderer(zoneNames ZoneNamer) *Renderer {
	templates := make(map[panel.EventKind]string, len(defaultTemplates))
	for kind, text := range defaultTemplates {
		templates[kind] = text
	}
	return &Renderer{templates: templates, zones: zoneNames}
}

// Refresh reloads templates from the repository.
func (r *Renderer) Refresh(ctx context.Context, repo Repository) error {
	stored, err := repo.Templates(ctx)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	delete(stored, templateVersionKey)

	r.mu.Lock()
	r.templates = stored
	r.mu.Unlock()
	return nil
}

// Render produces the notification text for an event. An event kind
// without a stored template renders to the empty string; outbound
// channels have nothing to send then, though the log channel still
// records the event.
func (r *Renderer) Render(event panel.Event) string {
	r.mu.RLock()
	template := r.templates[event.Kind]
	r.mu.RUnlock()
	if template == "" {
		return ""
	}

	return r.replacer(event).Replace(template)
}

// replacer builds the placeholder substitutions for one event.
func (r *Renderer) replacer(event panel.Event) *strings.Replacer {
	pairs := []string{
		"{zone}", strconv.Itoa(event.Zone),
		"{zone_name}", r.zoneName(event),
	}

	switch event.Kind {
	case panel.EventArm:
		armType := "AWAY"
		if event.Attr(panel.AttrStay) == "1" {
			armType = "STAY"
		}
		pairs = append(pairs, "{arm_type}", armType)

	case panel.EventPowerChanged:
		status := "battery"
		if event.Attr(panel.AttrPower) == "1" {
			status = "AC"
		}
		pairs = append(pairs, "{status}", status)

	case panel.EventReadyChanged:
		pairs = append(pairs, "{status}", onOff(event.Attr(panel.AttrReady)))

	case panel.EventChimeChanged:
		pairs = append(pairs, "{status}", onOff(event.Attr(panel.AttrChime)))

	case panel.EventLRR:
		pairs = append(pairs, "{status}", lrrStatus(event))

	case panel.EventEXP:
		pairs = append(pairs,
			"{type}", strings.ToUpper(event.Attr(panel.AttrExpType)),
			"{address}", event.Attr(panel.AttrExpAddress),
			"{channel}", event.Attr(panel.AttrExpChannel),
			"{value}", event.Attr(panel.AttrExpValue),
		)

	case panel.EventRFX:
		pairs = append(pairs,
			"{sn}", event.Attr(panel.AttrRFSerial),
			"{bat}", event.Attr(panel.AttrRFBattery),
			"{supv}", event.Attr(panel.AttrRFSupv),
			"{loop0}", event.Attr(panel.AttrRFLoop0),
			"{loop1}", event.Attr(panel.AttrRFLoop1),
			"{loop2}", event.Attr(panel.AttrRFLoop2),
			"{loop3}", event.Attr(panel.AttrRFLoop3),
		)

	case panel.EventAUI, panel.EventConfig:
		pairs = append(pairs, "{value}", event.Attr(panel.AttrValue))
	}

	return strings.NewReplacer(pairs...)
}

func (r *Renderer) zoneName(event panel.Event) string {
	if r.zones == nil || event.Zone == 0 {
		return zones.UnnamedZone
	}
	return r.zones.Name(event.Zone)
}

// lrrStatus decodes a long-range-radio event into readable text:
// "Partition <partition> <event> <data>".
func lrrStatus(event panel.Event) string {
	lrrEvent := event.Attr(panel.AttrLRREvent)
	if lrrEvent == "" {
		lrrEvent = "Unknown"
	}
	return fmt.Sprintf("Partition %s %s %s",
		event.Attr(panel.AttrPartition),
		lrrEvent,
		event.Attr(panel.AttrLRRData),
	)
}

func onOff(attr string) string {
	if attr == "1" {
		return "on"
	}
	return "off"
}
