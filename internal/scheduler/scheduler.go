package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopTimeout is returned when the loops do not finish within the
// shutdown grace period.
var ErrStopTimeout = errors.New("scheduler: stop timed out")

// idleRecheck is how long a disabled job sleeps before re-reading its
// configuration.
const idleRecheck = time.Minute

// Logger is the minimal logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Job is one recurring maintenance task.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Schedule reads the job's current configuration and returns the
	// delay until the next run. ok is false while the job is disabled;
	// the scheduler then sleeps idleRecheck and asks again.
	Schedule(ctx context.Context) (delay time.Duration, ok bool)

	// Run executes one cycle.
	Run(ctx context.Context) error
}

// Scheduler drives a set of jobs, one goroutine each.
type Scheduler struct {
	jobs   []Job
	logger Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a Scheduler. logger may be nil.
func New(logger Logger) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start launches the job loops.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, job)
	}
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop signals the loops and waits up to timeout for them to finish.
// Safe to call multiple times.
func (s *Scheduler) Stop(timeout time.Duration) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)

		finished := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(finished)
		}()

		select {
		case <-finished:
			s.logger.Info("scheduler stopped")
		case <-time.After(timeout):
			err = ErrStopTimeout
		}
	})
	return err
}

// runLoop drives one job until shutdown.
func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	defer s.wg.Done()

	for {
		delay, enabled := job.Schedule(ctx)
		if !enabled {
			delay = idleRecheck
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.done:
			timer.Stop()
			return
		case <-timer.C:
		}

		if !enabled {
			continue
		}
		s.runCycle(ctx, job)
	}
}

// runCycle executes one job cycle behind a recover boundary, so a
// panicking cycle never kills the loop.
func (s *Scheduler) runCycle(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", job.Name(), "panic", r)
		}
	}()

	if err := job.Run(ctx); err != nil {
		s.logger.Warn("job cycle failed", "job", job.Name(), "error", err)
		return
	}
	s.logger.Debug("job cycle finished", "job", job.Name())
}
