package notify

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// defaultWorkerCount bounds concurrent outbound transmissions.
const defaultWorkerCount = 5

// DeliveryTask is one unit of transmission work for the pool.
type DeliveryTask struct {
	// NotifierID identifies the notifier for logging.
	NotifierID int

	// Description labels the task in logs ("email", "webhook"...).
	Description string

	// Run performs the blocking transmission.
	Run func(ctx context.Context) error
}

// Future resolves when a submitted task completes.
type Future struct {
	done chan struct{}
	err  error
}

// Done is closed when the task has completed.
func (f *Future) Done() <-chan struct{} { return f.done }

// Err returns the task's result. Only valid after Done is closed.
func (f *Future) Err() error { return f.err }

// Wait blocks until the task completes or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PoolStats is a snapshot of worker pool counters.
type PoolStats struct {
	Submitted uint64
	Completed uint64
	Failed    uint64
	InFlight  int
	Backlog   int
}

type queuedTask struct {
	task   DeliveryTask
	future *Future
}

// WorkerPool executes delivery tasks on a bounded set of workers.
//
// Submit never blocks and never drops: tasks queue on an unbounded
// FIFO backlog until a worker is free. The number of tasks executing
// concurrently never exceeds the worker count. Failed tasks are
// logged; the error is also available through the task's Future.
type WorkerPool struct {
	mu        sync.Mutex
	cond      *sync.Cond
	backlog   []queuedTask
	closed    bool
	inFlight  int
	submitted uint64
	completed uint64
	failed    uint64

	workers int
	wg      sync.WaitGroup
	logger  Logger
}

// NewWorkerPool creates and starts a pool. A non-positive worker count
// uses the default.
func NewWorkerPool(workers int, logger Logger) *WorkerPool {
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	if logger == nil {
		logger = noopLogger{}
	}
	p := &WorkerPool{
		workers: workers,
		logger:  logger,
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues a task for execution and returns its Future.
// Never blocks. Submitting to a stopped pool resolves the Future
// immediately with ErrPoolClosed.
func (p *WorkerPool) Submit(task DeliveryTask) *Future {
	future := &Future{done: make(chan struct{})}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		future.err = ErrPoolClosed
		close(future.done)
		return future
	}
	p.backlog = append(p.backlog, queuedTask{task: task, future: future})
	p.submitted++
	p.mu.Unlock()

	p.cond.Broadcast()
	return future
}

// drainWakeInterval is how often Drain rechecks the deadline while
// waiting. Workers broadcast on completion; the periodic wake-up only
// bounds the wait when a task is wedged.
const drainWakeInterval = 50 * time.Millisecond

// Drain waits until the backlog is empty and no task is in flight.
// Returns ErrDrainTimeout if that does not happen within timeout.
func (p *WorkerPool) Drain(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(drainWakeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.cond.Broadcast()
			}
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.backlog) > 0 || p.inFlight > 0 {
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %d queued, %d in flight",
				ErrDrainTimeout, len(p.backlog), p.inFlight)
		}
		p.cond.Wait()
	}
	return nil
}

// Stop shuts the pool down. Queued tasks that have not started resolve
// with ErrPoolClosed; in-flight tasks finish. Call Drain first to let
// the backlog complete.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	abandoned := p.backlog
	p.backlog = nil
	p.mu.Unlock()

	for _, q := range abandoned {
		q.future.err = ErrPoolClosed
		close(q.future.done)
	}

	p.cond.Broadcast()
	p.wg.Wait()
}

// Stats returns a snapshot of the pool's counters.
func (p *WorkerPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Submitted: p.submitted,
		Completed: p.completed,
		Failed:    p.failed,
		InFlight:  p.inFlight,
		Backlog:   len(p.backlog),
	}
}

// worker pops tasks from the backlog until the pool stops.
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.backlog) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.backlog) == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		q := p.backlog[0]
		p.backlog = p.backlog[1:]
		p.inFlight++
		p.mu.Unlock()

		err := p.runTask(q.task)

		p.mu.Lock()
		p.inFlight--
		p.completed++
		if err != nil {
			p.failed++
		}
		p.mu.Unlock()
		p.cond.Broadcast()

		q.future.err = err
		close(q.future.done)

		if err != nil {
			p.logger.Error("notification delivery failed",
				"notifier_id", q.task.NotifierID,
				"channel", q.task.Description,
				"error", err,
			)
		}
	}
}

// runTask executes one task with panic recovery, so a misbehaving
// adapter cannot take down a worker.
func (p *WorkerPool) runTask(task DeliveryTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in %s adapter: %v",
				ErrDeliveryFailed, task.Description, r)
		}
	}()
	return task.Run(context.Background())
}
