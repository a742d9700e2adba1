package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/asterhall/alarmbridge/internal/panel"
)

// Notifier is one runtime notification destination: a parsed
// configuration bound to its channel adapter. Instances are immutable;
// a refresh replaces the whole entry so concurrent dispatch never
// observes a half-updated notifier.
type Notifier struct {
	Config  NotifierConfig
	adapter ChannelAdapter
}

// Subscribes reports whether this notifier wants the given event.
// The log channel takes everything; the UPnP push channel uses its
// fixed event set.
func (n *Notifier) Subscribes(kind panel.EventKind, zone int) bool {
	switch n.Config.Kind {
	case ChannelLog:
		return true
	case ChannelUPnPPush:
		return upnpSubscribedKinds[kind]
	default:
		return n.Config.Subscribes(kind, zone)
	}
}

// Deliver sends one message through the notifier's adapter, applying
// the delivery window. Outside the window the message is dropped
// silently; that is not an error.
func (n *Notifier) Deliver(ctx context.Context, delivery Delivery) error {
	if !InWindow(n.Config.StartTime, n.Config.EndTime, time.Now()) {
		return nil
	}
	return n.adapter.Send(ctx, delivery)
}

// Registry is the runtime collection of active notifiers, loaded from
// the repository and refreshable per-notifier without a restart. The
// log notifier (id -1) is always present and cannot be removed.
//
// Thread Safety: all public methods are safe for concurrent use.
type Registry struct {
	repo   Repository
	subs   *SubscriberStore
	zones  ZoneNamer
	mirror EventMirror
	logger Logger

	mu        sync.RWMutex
	notifiers map[int]*Notifier
}

// NewRegistry creates a Registry containing only the log notifier.
// Call Refresh to load the configured notifiers. mirror may be nil.
func NewRegistry(repo Repository, subs *SubscriberStore, zoneNames ZoneNamer, mirror EventMirror) *Registry {
	r := &Registry{
		repo:      repo,
		subs:      subs,
		zones:     zoneNames,
		mirror:    mirror,
		logger:    noopLogger{},
		notifiers: make(map[int]*Notifier),
	}
	r.notifiers[LogNotifierID] = r.logNotifier()
	return r
}

// SetLogger sets the logger for the registry and rebuilds the log
// notifier so it logs through the same sink.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
	r.notifiers[LogNotifierID] = r.logNotifier()
}

// Refresh reloads every notifier from the repository and atomically
// replaces the runtime set. A notifier that fails to load is skipped
// and reported; the others still load.
func (r *Registry) Refresh(ctx context.Context) error {
	configs, loadErr := r.repo.List(ctx)

	var buildErrs []error
	next := make(map[int]*Notifier, len(configs)+1)
	for i := range configs {
		cfg := configs[i]
		if !cfg.Enabled {
			continue
		}
		n, err := r.build(&cfg)
		if err != nil {
			buildErrs = append(buildErrs, fmt.Errorf("notifier %d (%s): %w", cfg.ID, cfg.Description, err))
			continue
		}
		next[cfg.ID] = n
	}
	next[LogNotifierID] = r.logNotifier()

	r.mu.Lock()
	r.notifiers = next
	r.mu.Unlock()

	r.logger.Info("notifier registry refreshed", "count", len(next))
	return errors.Join(loadErr, errors.Join(buildErrs...))
}

// RefreshNotifier reloads one notifier by id. A disabled or deleted
// notifier is removed from the runtime set.
func (r *Registry) RefreshNotifier(ctx context.Context, id int) error {
	if id == LogNotifierID {
		return nil
	}

	cfg, err := r.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotifierNotFound) {
			r.remove(id)
			return nil
		}
		return err
	}
	if !cfg.Enabled {
		r.remove(id)
		return nil
	}

	n, err := r.build(cfg)
	if err != nil {
		return fmt.Errorf("notifier %d (%s): %w", cfg.ID, cfg.Description, err)
	}

	r.mu.Lock()
	r.notifiers[id] = n
	r.mu.Unlock()
	return nil
}

// Get returns one notifier by id.
func (r *Registry) Get(id int) (*Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notifiers[id]
	if !ok {
		return nil, ErrNotifierNotFound
	}
	return n, nil
}

// List returns a snapshot of the active notifiers ordered by id.
func (r *Registry) List() []*Notifier {
	r.mu.RLock()
	out := make([]*Notifier, 0, len(r.notifiers))
	for _, n := range r.notifiers {
		out = append(out, n)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Config.ID < out[j].Config.ID })
	return out
}

// Test performs a synchronous test send through one notifier's
// adapter. The registry and queues are untouched; the delivery window
// does not apply.
func (r *Registry) Test(ctx context.Context, id int) error {
	n, err := r.Get(id)
	if err != nil {
		return err
	}
	return n.adapter.Send(ctx, Delivery{Message: "Test notification"})
}

// Subscribers exposes the UPnP push subscriber store.
func (r *Registry) Subscribers() *SubscriberStore {
	return r.subs
}

func (r *Registry) remove(id int) {
	r.mu.Lock()
	delete(r.notifiers, id)
	r.mu.Unlock()
}

// build constructs the channel adapter for one configuration.
// Configuration errors surface here, at load time, not at dispatch.
func (r *Registry) build(cfg *NotifierConfig) (*Notifier, error) {
	var adapter ChannelAdapter
	var err error

	switch cfg.Kind {
	case ChannelEmail:
		adapter, err = newEmailAdapter(cfg)
	case ChannelPushover:
		adapter, err = newPushoverAdapter(cfg)
	case ChannelTwilio:
		adapter, err = newTwilioAdapter(cfg)
	case ChannelWebhook:
		adapter, err = newWebhookAdapter(cfg)
	case ChannelMatrix:
		adapter, err = newMatrixAdapter(cfg)
	case ChannelUPnPPush:
		adapter = newUPnPPushAdapter(r.subs, r.logger)
	case ChannelLog:
		adapter = NewLogAdapter(r.repo, r.zones, r.mirror, r.logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	return &Notifier{Config: *cfg, adapter: adapter}, nil
}

// logNotifier builds the always-present log notifier. Its empty
// delivery window admits every send time.
func (r *Registry) logNotifier() *Notifier {
	return &Notifier{
		Config: NotifierConfig{
			ID:          LogNotifierID,
			Description: "Logger",
			Kind:        ChannelLog,
			Enabled:     true,
		},
		adapter: NewLogAdapter(r.repo, r.zones, r.mirror, r.logger),
	}
}
