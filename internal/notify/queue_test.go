package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/asterhall/alarmbridge/internal/panel"
)

// recordingDeliverer collects delivered pending entries.
type recordingDeliverer struct {
	mu        sync.Mutex
	delivered []PendingDelivery
}

func (d *recordingDeliverer) DeliverPending(pd PendingDelivery) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered = append(d.delivered, pd)
	return nil
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delivered)
}

func pendingFault(notifierID, zone int, sendAfter time.Time) PendingDelivery {
	return PendingDelivery{
		NotifierID: notifierID,
		Kind:       panel.EventZoneFault,
		Zone:       zone,
		Message:    "fault",
		SendAfter:  sendAfter,
	}
}

func TestDelayQueueDeliversExpiredEntries(t *testing.T) {
	queue := NewDelayQueue(time.Second, nil)
	deliverer := &recordingDeliverer{}
	now := time.Now()

	queue.Enqueue(pendingFault(1, 5, now.Add(-time.Second)), false)
	queue.Enqueue(pendingFault(1, 6, now.Add(time.Hour)), false)

	queue.Drain(deliverer, now)

	if got := deliverer.count(); got != 1 {
		t.Fatalf("delivered %d entries, want 1", got)
	}
	if deliverer.delivered[0].Zone != 5 {
		t.Errorf("delivered zone %d, want 5", deliverer.delivered[0].Zone)
	}
	if queue.Len() != 1 {
		t.Errorf("queue holds %d entries, want 1 (zone 6 still pending)", queue.Len())
	}
}

// A zone fault with a two minute delay and suppression enabled is
// cancelled by a restore for the same zone arriving before the send
// time: no delivery for that zone ever reaches the pool.
func TestDelayQueueSuppressesFaultAfterRestore(t *testing.T) {
	queue := NewDelayQueue(time.Second, nil)
	deliverer := &recordingDeliverer{}
	start := time.Now()

	// zone-fault(zone=5), delay 2 minutes, suppress on.
	queue.Enqueue(pendingFault(1, 5, start.Add(2*time.Minute)), true)

	// 30 seconds later the matching restore arrives.
	queue.Enqueue(PendingDelivery{
		NotifierID: 1,
		Kind:       panel.EventZoneRestore,
		Zone:       5,
		Message:    "restore",
		SendAfter:  start.Add(30*time.Second + 2*time.Minute),
	}, true)

	// Drain cycles past both send times.
	for _, offset := range []time.Duration{time.Minute, 3 * time.Minute, 5 * time.Minute} {
		queue.Drain(deliverer, start.Add(offset))
	}

	if got := deliverer.count(); got != 0 {
		t.Errorf("delivered %d entries, want 0 (fault and restore both suppressed)", got)
	}
	if queue.Len() != 0 {
		t.Errorf("queue holds %d entries, want 0", queue.Len())
	}
}

func TestDelayQueueWithoutSuppressDeliversBoth(t *testing.T) {
	queue := NewDelayQueue(time.Second, nil)
	deliverer := &recordingDeliverer{}
	start := time.Now()

	queue.Enqueue(pendingFault(1, 5, start.Add(time.Minute)), false)
	queue.Enqueue(PendingDelivery{
		NotifierID: 1,
		Kind:       panel.EventZoneRestore,
		Zone:       5,
		SendAfter:  start.Add(2 * time.Minute),
	}, false)

	queue.Drain(deliverer, start.Add(3*time.Minute))

	if got := deliverer.count(); got != 2 {
		t.Errorf("delivered %d entries, want 2", got)
	}
}

// Suppression is scoped to the (notifier, zone) pair: another
// notifier's fault for the same zone still delivers.
func TestDelayQueueSuppressionScopedToNotifier(t *testing.T) {
	queue := NewDelayQueue(time.Second, nil)
	deliverer := &recordingDeliverer{}
	start := time.Now()

	queue.Enqueue(pendingFault(1, 5, start.Add(time.Minute)), true)
	queue.Enqueue(pendingFault(2, 5, start.Add(time.Minute)), true)
	queue.Enqueue(PendingDelivery{
		NotifierID: 1,
		Kind:       panel.EventZoneRestore,
		Zone:       5,
		SendAfter:  start.Add(time.Minute),
	}, true)

	queue.Drain(deliverer, start.Add(2*time.Minute))

	if got := deliverer.count(); got != 1 {
		t.Fatalf("delivered %d entries, want 1", got)
	}
	if deliverer.delivered[0].NotifierID != 2 {
		t.Errorf("delivered notifier %d, want 2", deliverer.delivered[0].NotifierID)
	}
}

func TestDelayQueueCollapsesDuplicates(t *testing.T) {
	queue := NewDelayQueue(time.Second, nil)
	sendAfter := time.Now().Add(time.Minute)

	queue.Enqueue(pendingFault(1, 5, sendAfter), false)
	queue.Enqueue(pendingFault(1, 5, sendAfter), false)

	if queue.Len() != 1 {
		t.Errorf("queue holds %d entries, want 1", queue.Len())
	}
}

func TestDelayQueueStartStop(t *testing.T) {
	queue := NewDelayQueue(10*time.Millisecond, nil)
	deliverer := &recordingDeliverer{}

	queue.Enqueue(pendingFault(1, 5, time.Now().Add(-time.Second)), false)
	queue.Start(deliverer)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && deliverer.count() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	queue.Stop()

	if deliverer.count() != 1 {
		t.Errorf("delivered %d entries, want 1", deliverer.count())
	}
}
