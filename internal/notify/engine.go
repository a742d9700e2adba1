package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/asterhall/alarmbridge/internal/infrastructure/mqtt"
	"github.com/asterhall/alarmbridge/internal/panel"
)

// EventPublisher republishes dispatched events to the live broadcast
// bus. The MQTT client satisfies it; publishing is best-effort.
type EventPublisher interface {
	PublishEvent(topic string, payload []byte) error
}

// broadcastEvent is the JSON payload published per event.
type broadcastEvent struct {
	Kind       string            `json:"kind"`
	Zone       int               `json:"zone,omitempty"`
	Message    string            `json:"message,omitempty"`
	Raw        string            `json:"raw,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Engine is the dispatch core: it matches each decoded panel event
// against every registered notifier, renders the message, and sends
// immediately via the worker pool or parks the delivery on the delay
// queue. Every event is also republished to the broadcast bus.
//
// The Engine satisfies panel.Dispatcher.
type Engine struct {
	registry  *Registry
	renderer  *Renderer
	pool      *WorkerPool
	queue     *DelayQueue
	publisher EventPublisher
	logger    Logger
	topics    mqtt.Topics

	stateMu  sync.Mutex
	snapshot PanelSnapshot
	faulted  map[int]bool
}

var _ panel.Dispatcher = (*Engine)(nil)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPublisher attaches the live broadcast publisher.
func WithPublisher(p EventPublisher) EngineOption {
	return func(e *Engine) { e.publisher = p }
}

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(logger Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine over the given collaborators.
func NewEngine(registry *Registry, renderer *Renderer, pool *WorkerPool, queue *DelayQueue, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		renderer: renderer,
		pool:     pool,
		queue:    queue,
		logger:   noopLogger{},
		faulted:  make(map[int]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Send dispatches one event to every subscribed notifier and returns
// the per-notifier errors. One failing notifier never blocks the
// others, and nothing escapes as a panic.
//
// Immediate deliveries run on the worker pool; Send collects their
// results before returning, so the caller sees every delivery error
// for this event. Zone fault/restore/bypass events for notifiers with
// a configured delay are parked on the delay queue instead.
func (e *Engine) Send(event panel.Event) []error {
	e.updateSnapshot(event)

	message := e.renderer.Render(event)
	e.broadcast(event, message)

	var errs []error
	type inflight struct {
		notifierID int
		future     *Future
	}
	var futures []inflight

	for _, n := range e.registry.List() {
		if !n.Subscribes(event.Kind, event.Zone) {
			continue
		}

		// An event kind with no stored template renders empty. Outbound
		// channels have nothing to say then, but the log notifier still
		// records the occurrence.
		if message == "" && n.Config.Kind != ChannelLog {
			continue
		}

		if n.Config.DelayMinutes > 0 && panel.IsZoneKind(event.Kind) {
			e.queue.Enqueue(PendingDelivery{
				NotifierID: n.Config.ID,
				Kind:       event.Kind,
				Zone:       event.Zone,
				Message:    message,
				Raw:        event.Raw,
				SendAfter:  time.Now().Add(time.Duration(n.Config.DelayMinutes) * time.Minute),
			}, n.Config.Suppress)
			continue
		}

		futures = append(futures, inflight{
			notifierID: n.Config.ID,
			future:     e.submit(n, e.delivery(event.Kind, event.Zone, message, event.Raw)),
		})
	}

	for _, f := range futures {
		if err := f.future.Wait(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("notifier %d: %w", f.notifierID, err))
		}
	}
	return errs
}

// DeliverPending sends one expired delay-queue entry. A notifier that
// was removed while the entry was parked drops silently.
func (e *Engine) DeliverPending(pd PendingDelivery) error {
	n, err := e.registry.Get(pd.NotifierID)
	if err != nil {
		return nil
	}
	future := e.submit(n, e.delivery(pd.Kind, pd.Zone, pd.Message, pd.Raw))
	return future.Wait(context.Background())
}

// Snapshot returns the panel state accumulated from the event stream.
func (e *Engine) Snapshot() PanelSnapshot {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.snapshotLocked()
}

// submit hands one delivery to the worker pool.
func (e *Engine) submit(n *Notifier, delivery Delivery) *Future {
	return e.pool.Submit(DeliveryTask{
		NotifierID:  n.Config.ID,
		Description: string(n.Config.Kind),
		Run: func(ctx context.Context) error {
			return n.Deliver(ctx, delivery)
		},
	})
}

// delivery assembles the adapter payload with a state snapshot.
func (e *Engine) delivery(kind panel.EventKind, zone int, message, raw string) Delivery {
	snap := e.Snapshot()
	return Delivery{
		Kind:    kind,
		Zone:    zone,
		Message: message,
		Raw:     raw,
		Panel:   &snap,
	}
}

// broadcast republishes the event to the live broadcast bus.
// Best-effort: failures are logged, never returned.
func (e *Engine) broadcast(event panel.Event, message string) {
	if e.publisher == nil {
		return
	}

	payload, err := json.Marshal(broadcastEvent{
		Kind:       string(event.Kind),
		Zone:       event.Zone,
		Message:    message,
		Raw:        event.Raw,
		Attributes: event.Attrs,
		OccurredAt: event.OccurredAt,
	})
	if err != nil {
		e.logger.Error("encoding broadcast event", "kind", string(event.Kind), "error", err)
		return
	}

	if err := e.publisher.PublishEvent(e.topics.Event(string(event.Kind)), payload); err != nil {
		e.logger.Warn("broadcast publish failed", "kind", string(event.Kind), "error", err)
	}
}

// updateSnapshot folds one event into the accumulated panel state.
func (e *Engine) updateSnapshot(event panel.Event) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	switch event.Kind {
	case panel.EventArm:
		e.snapshot.Armed = true
		e.snapshot.ArmedStay = event.Attr(panel.AttrStay) == "1"
	case panel.EventDisarm:
		e.snapshot.Armed = false
		e.snapshot.ArmedStay = false
		e.snapshot.Alarming = false
	case panel.EventAlarm:
		e.snapshot.Alarming = true
	case panel.EventAlarmRestore:
		e.snapshot.Alarming = false
	case panel.EventFire:
		e.snapshot.FireDetected = true
	case panel.EventPowerChanged:
		e.snapshot.ACPower = event.Attr(panel.AttrPower) == "1"
	case panel.EventLowBattery:
		e.snapshot.LowBattery = true
	case panel.EventChimeChanged:
		e.snapshot.Chime = event.Attr(panel.AttrChime) == "1"
	case panel.EventReadyChanged:
		e.snapshot.Ready = event.Attr(panel.AttrReady) == "1"
		if e.snapshot.Ready {
			e.faulted = make(map[int]bool)
			e.snapshot.FireDetected = false
			e.snapshot.LowBattery = false
		}
	case panel.EventZoneFault:
		e.faulted[event.Zone] = true
	case panel.EventZoneRestore:
		delete(e.faulted, event.Zone)
	}

	if event.Raw != "" {
		e.snapshot.LastMessage = event.Raw
	}
}

// snapshotLocked copies the snapshot. Caller holds stateMu.
func (e *Engine) snapshotLocked() PanelSnapshot {
	snap := e.snapshot
	snap.FaultedZones = make([]int, 0, len(e.faulted))
	for zone := range e.faulted {
		snap.FaultedZones = append(snap.FaultedZones, zone)
	}
	sort.Ints(snap.FaultedZones)
	return snap
}
