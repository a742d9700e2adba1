package panel

import (
	"context"
	"sync"
	"time"
)

// Supervisor defaults.
const (
	// defaultPollInterval is how often the supervisor checks whether the
	// connection needs reopening.
	defaultPollInterval = 5 * time.Second

	// maxPollInterval caps the backoff after repeated open failures.
	maxPollInterval = 2 * time.Minute

	// stopJoinTimeout bounds how long Stop waits for the loop to exit.
	stopJoinTimeout = 5 * time.Second
)

// Supervisor keeps the panel connection alive.
//
// It polls the Manager for a reconnect request and calls Open when one is
// pending. After a failed attempt the sleep doubles (up to a cap) so an
// absent or misconfigured device is not hammered; a successful open
// resets the sleep to the base interval.
type Supervisor struct {
	manager  *Manager
	interval time.Duration
	logger   Logger

	done *closeOnce
	wg   sync.WaitGroup
}

// NewSupervisor creates a Supervisor polling at the given interval.
// A zero interval uses the default.
func NewSupervisor(manager *Manager, interval time.Duration, logger Logger) *Supervisor {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Supervisor{
		manager:  manager,
		interval: interval,
		logger:   logger,
		done:     newCloseOnce(),
	}
}

// Start launches the reconnect loop.
func (s *Supervisor) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	s.logger.Info("panel supervisor started", "interval", s.interval.String())
}

// run is the reconnect loop.
func (s *Supervisor) run(ctx context.Context) {
	defer s.wg.Done()

	sleep := s.interval

	for {
		select {
		case <-s.done.Done():
			return
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}

		if !s.manager.ReconnectRequested() {
			sleep = s.interval
			continue
		}

		if err := s.manager.Open(ctx); err != nil {
			s.logger.Error("panel open failed", "error", err, "next_attempt_in", (sleep * 2).String())
			sleep *= 2
			if sleep > maxPollInterval {
				sleep = maxPollInterval
			}
			continue
		}

		sleep = s.interval
	}
}

// Stop signals the loop to exit and waits for it with a bounded timeout.
// A join timeout is logged, not fatal.
func (s *Supervisor) Stop() {
	s.done.Close()

	joined := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
		s.logger.Info("panel supervisor stopped")
	case <-time.After(stopJoinTimeout):
		s.logger.Warn("panel supervisor did not stop within timeout")
	}
}
