package notify

import (
	"sync"
	"time"

	"github.com/asterhall/alarmbridge/internal/panel"
)

// defaultDrainInterval is how often the delay queue runs its drain
// cycle.
const defaultDrainInterval = 5 * time.Second

// pendingEntry is one parked delivery plus the suppression flag
// captured from its notifier at enqueue time.
type pendingEntry struct {
	PendingDelivery

	// suppress is the fault notifier's suppression setting. A parked
	// fault with suppress set is cancelled when a contradicting
	// restore or bypass for the same (notifier, zone) arrives first.
	suppress bool
}

// PendingDeliverer hands an expired pending delivery onward. The
// Engine satisfies it.
type PendingDeliverer interface {
	DeliverPending(pd PendingDelivery) error
}

// DelayQueue parks deliveries whose configured delay has not elapsed
// and drains them on a fixed cycle.
//
// Each cycle runs two passes over one consistent snapshot: first the
// suppression pass removes parked faults (and their contradicting
// restore or bypass) for zones that restored before the fault's send
// time, then the expiry pass hands due entries to the deliverer. An
// entry is never both suppressed and sent in the same cycle.
type DelayQueue struct {
	interval time.Duration
	logger   Logger

	mu      sync.Mutex
	entries []pendingEntry

	done    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewDelayQueue creates a stopped queue. A non-positive interval uses
// the default.
func NewDelayQueue(interval time.Duration, logger Logger) *DelayQueue {
	if interval <= 0 {
		interval = defaultDrainInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &DelayQueue{
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Enqueue parks one delivery. Duplicate entries (same notifier, kind,
// zone and send time) collapse into one.
func (q *DelayQueue) Enqueue(pd PendingDelivery, suppress bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.NotifierID == pd.NotifierID && e.Kind == pd.Kind &&
			e.Zone == pd.Zone && e.SendAfter.Equal(pd.SendAfter) {
			return
		}
	}
	q.entries = append(q.entries, pendingEntry{PendingDelivery: pd, suppress: suppress})
}

// Len returns the number of parked entries.
func (q *DelayQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Start launches the drain loop delivering through d.
func (q *DelayQueue) Start(d PendingDeliverer) {
	q.wg.Add(1)
	go q.run(d)
	q.logger.Info("delay queue started", "drain_interval", q.interval.String())
}

// Stop ends the drain loop and waits for it.
func (q *DelayQueue) Stop() {
	q.stopped.Do(func() { close(q.done) })
	q.wg.Wait()
	q.logger.Info("delay queue stopped")
}

func (q *DelayQueue) run(d PendingDeliverer) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-ticker.C:
			q.Drain(d, time.Now())
		}
	}
}

// Drain runs one suppression-then-expiry cycle against now. Exposed
// for the run loop and for tests; delivery errors are logged.
func (q *DelayQueue) Drain(d PendingDeliverer, now time.Time) {
	q.mu.Lock()

	// Suppression pass: find (notifier, zone) pairs holding a
	// suppressing fault alongside a contradicting restore or bypass.
	suppressed := make(map[[2]int]bool)
	for _, e := range q.entries {
		if e.Kind != panel.EventZoneRestore && e.Kind != panel.EventBypass {
			continue
		}
		for _, fault := range q.entries {
			if fault.Kind == panel.EventZoneFault && fault.suppress &&
				fault.NotifierID == e.NotifierID && fault.Zone == e.Zone {
				suppressed[[2]int{e.NotifierID, e.Zone}] = true
			}
		}
	}

	// Expiry pass over the same snapshot.
	var due []pendingEntry
	remaining := q.entries[:0]
	for _, e := range q.entries {
		if suppressed[[2]int{e.NotifierID, e.Zone}] {
			q.logger.Debug("suppressed pending delivery",
				"notifier_id", e.NotifierID, "kind", string(e.Kind), "zone", e.Zone)
			continue
		}
		if !e.SendAfter.After(now) {
			due = append(due, e)
			continue
		}
		remaining = append(remaining, e)
	}
	q.entries = remaining
	q.mu.Unlock()

	for _, e := range due {
		if err := q.deliver(d, e.PendingDelivery); err != nil {
			q.logger.Error("delayed delivery failed",
				"notifier_id", e.NotifierID, "kind", string(e.Kind),
				"zone", e.Zone, "error", err)
		}
	}
}

func (q *DelayQueue) deliver(d PendingDeliverer, pd PendingDelivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("panic delivering pending entry", "panic", r)
		}
	}()
	return d.DeliverPending(pd)
}
