package notify

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asterhall/alarmbridge/internal/panel"
)

// timeoutMultipliers maps UPnP TIMEOUT header units to seconds.
// Subscriptions arrive as "Second-28800".
var timeoutMultipliers = map[string]int{
	"Second": 1,
	"Minute": 60,
	"Hour":   3600,
}

// defaultLeaseSeconds applies when a SUBSCRIBE request carries no
// parsable timeout.
const defaultLeaseSeconds = 1800

// Subscriber is one registered UPnP event listener.
type Subscriber struct {
	SID      string
	Host     string
	Callback string
	Expires  time.Time
}

// SubscriberStore tracks UPnP push subscriptions keyed by lease id.
//
// Thread Safety: all methods are safe for concurrent use.
type SubscriberStore struct {
	mu   sync.Mutex
	subs map[string]Subscriber
}

// NewSubscriberStore creates an empty store.
func NewSubscriberStore() *SubscriberStore {
	return &SubscriberStore{subs: make(map[string]Subscriber)}
}

// Add registers a subscription and returns its lease id. A request
// matching an existing (host, callback) pair renews that lease and
// returns the same id. timeout is the UPnP TIMEOUT header value,
// for example "Second-28800".
func (s *SubscriberStore) Add(host, callback, timeout string) string {
	lease := defaultLeaseSeconds
	if unit, value, ok := strings.Cut(timeout, "-"); ok {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			lease = timeoutMultipliers[unit] * n
			if lease == 0 {
				lease = n
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sid := ""
	for id, sub := range s.subs {
		if sub.Host == host && sub.Callback == callback {
			sid = id
			break
		}
	}
	if sid == "" {
		sid = uuid.NewString()
	}

	s.subs[sid] = Subscriber{
		SID:      sid,
		Host:     host,
		Callback: callback,
		Expires:  time.Now().Add(time.Duration(lease) * time.Second),
	}
	return sid
}

// Remove drops a subscription by lease id.
func (s *SubscriberStore) Remove(sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sid]; !ok {
		return ErrSubscriberNotFound
	}
	delete(s.subs, sid)
	return nil
}

// Active returns the live subscriptions, pruning expired leases.
func (s *SubscriberStore) Active() []Subscriber {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Subscriber, 0, len(s.subs))
	for sid, sub := range s.subs {
		if now.After(sub.Expires) {
			delete(s.subs, sid)
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SID < out[j].SID })
	return out
}

// Count returns the number of registered subscriptions, expired or not.
func (s *SubscriberStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// UPnPPushAdapter fans each event out to every registered subscriber
// as a UPnP NOTIFY request carrying an XML property set with the event
// and a panel-state snapshot.
type UPnPPushAdapter struct {
	subs   *SubscriberStore
	logger Logger
	client *http.Client
}

// newUPnPPushAdapter builds the adapter over a shared subscriber store.
func newUPnPPushAdapter(subs *SubscriberStore, logger Logger) *UPnPPushAdapter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &UPnPPushAdapter{
		subs:   subs,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send notifies every active subscriber. Per-subscriber failures are
// collected; one unreachable listener never blocks the rest.
func (a *UPnPPushAdapter) Send(ctx context.Context, delivery Delivery) error {
	subscribers := a.subs.Active()
	if len(subscribers) == 0 {
		return nil
	}

	body := buildPropertySet(delivery)

	var errs []error
	for _, sub := range subscribers {
		if err := a.notify(ctx, sub, body); err != nil {
			errs = append(errs, fmt.Errorf("subscriber %s: %w", sub.SID, err))
			continue
		}
		a.logger.Debug("upnp notify delivered", "sid", sub.SID, "callback", sub.Callback)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: upnp push: %w", ErrDeliveryFailed, errors.Join(errs...))
	}
	return nil
}

// notify sends one NOTIFY request.
func (a *UPnPPushAdapter) notify(ctx context.Context, sub Subscriber, body string) error {
	callback := strings.Trim(sub.Callback, "<>")
	target, err := url.Parse(callback)
	if err != nil {
		return fmt.Errorf("parsing callback %q: %w", sub.Callback, err)
	}

	req, err := http.NewRequestWithContext(ctx, "NOTIFY", target.String(),
		strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("building notify request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")
	req.Header.Set("SID", "uuid:"+sub.SID)
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("NTS", "upnp:propchange")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify returned %s", resp.Status)
	}
	return nil
}

// buildPropertySet renders the UPnP property set XML for one delivery.
func buildPropertySet(delivery Delivery) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>`)
	b.WriteString(`<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">`)
	writeProperty(&b, "eventid", delivery.EventID(), false)
	writeProperty(&b, "eventdesc", delivery.EventDescription(), false)
	writeProperty(&b, "eventmessage", delivery.Message, true)
	writeProperty(&b, "rawmessage", delivery.Raw, true)
	if delivery.Panel != nil {
		b.WriteString("<e:property>")
		writePanelState(&b, delivery.Panel)
		b.WriteString("</e:property>")
	}
	b.WriteString(`</e:propertyset>`)
	return b.String()
}

func writeProperty(b *strings.Builder, name, value string, cdata bool) {
	if value == "" {
		return
	}
	b.WriteString("<e:property><" + name + ">")
	if cdata {
		b.WriteString("<![CDATA[" + value + "]]>")
	} else {
		xml.EscapeText(b, []byte(value))
	}
	b.WriteString("</" + name + "></e:property>")
}

func writePanelState(b *strings.Builder, snap *PanelSnapshot) {
	b.WriteString("<panelstate>")
	writeStateField(b, "panel_ready", snap.Ready)
	writeStateField(b, "panel_armed", snap.Armed)
	writeStateField(b, "panel_armed_stay", snap.ArmedStay)
	writeStateField(b, "panel_alarming", snap.Alarming)
	writeStateField(b, "panel_fire_detected", snap.FireDetected)
	writeStateField(b, "panel_powered", snap.ACPower)
	writeStateField(b, "panel_battery_trouble", snap.LowBattery)
	writeStateField(b, "panel_chime", snap.Chime)

	b.WriteString("<panel_zones_faulted>")
	for _, zone := range snap.FaultedZones {
		b.WriteString("<z>" + strconv.Itoa(zone) + "</z>")
	}
	b.WriteString("</panel_zones_faulted>")

	if snap.LastMessage != "" {
		b.WriteString("<last_message_received><![CDATA[" + snap.LastMessage + "]]></last_message_received>")
	}
	b.WriteString("</panelstate>")
}

func writeStateField(b *strings.Builder, name string, value bool) {
	b.WriteString("<" + name + ">" + strconv.FormatBool(value) + "</" + name + ">")
}

// upnpSubscribedKinds is the fixed event set pushed to subscribers,
// independent of the notifier's stored subscription list.
var upnpSubscribedKinds = map[panel.EventKind]bool{
	panel.EventLRR: true, panel.EventRFX: true, panel.EventEXP: true,
	panel.EventAUI: true, panel.EventReadyChanged: true,
	panel.EventChimeChanged: true, panel.EventArm: true,
	panel.EventDisarm: true, panel.EventAlarm: true, panel.EventPanic: true,
	panel.EventFire: true, panel.EventBypass: true,
	panel.EventZoneFault: true, panel.EventZoneRestore: true,
	panel.EventBoot: true, panel.EventPowerChanged: true,
	panel.EventLowBattery: true,
}
