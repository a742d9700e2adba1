package scheduler

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/asterhall/alarmbridge/internal/settings"
)

// defaultManifestURL is the release manifest polled by the update
// check. The manifest is plain text; the first line is the newest
// released version.
const defaultManifestURL = "https://releases.asterhall.net/alarmbridge/latest"

// defaultCheckIntervalSeconds applies when the operator has not set an
// update check interval.
const defaultCheckIntervalSeconds = 3600

// UpdateChecker polls the release manifest and records the newest
// available version in the settings store.
//
// Thread Safety: Available may be called while the job runs.
type UpdateChecker struct {
	store       settings.Store
	current     string
	manifestURL string
	client      *http.Client
	logger      Logger

	mu        sync.RWMutex
	available string
}

// UpdateCheckerOption configures an UpdateChecker.
type UpdateCheckerOption func(*UpdateChecker)

// WithManifestURL overrides the release manifest URL.
func WithManifestURL(url string) UpdateCheckerOption {
	return func(u *UpdateChecker) { u.manifestURL = url }
}

// WithUpdateLogger sets the checker's logger.
func WithUpdateLogger(logger Logger) UpdateCheckerOption {
	return func(u *UpdateChecker) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// NewUpdateChecker creates the update check job. current is the
// running build's version string.
func NewUpdateChecker(store settings.Store, current string, opts ...UpdateCheckerOption) *UpdateChecker {
	u := &UpdateChecker{
		store:       store,
		current:     current,
		manifestURL: defaultManifestURL,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      noopLogger{},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Name implements Job.
func (u *UpdateChecker) Name() string { return "update-check" }

// Schedule implements Job. The delay is the configured interval minus
// the time since the last recorded check, so a restart does not reset
// the cadence.
func (u *UpdateChecker) Schedule(ctx context.Context) (time.Duration, bool) {
	enabled, err := u.store.GetBool(ctx, settings.KeyUpdateCheckEnabled, true)
	if err != nil || !enabled {
		return 0, false
	}

	seconds, err := u.store.GetInt(ctx, settings.KeyUpdateCheckInterval, defaultCheckIntervalSeconds)
	if err != nil || seconds <= 0 {
		seconds = defaultCheckIntervalSeconds
	}
	interval := time.Duration(seconds) * time.Second

	last, found, err := u.store.GetTime(ctx, settings.KeyUpdateLastChecked)
	if err != nil || !found {
		return interval, true
	}
	if remaining := interval - time.Since(last); remaining > 0 {
		return remaining, true
	}
	return time.Second, true
}

// Run implements Job: fetch the manifest, compare versions, persist
// the result.
func (u *UpdateChecker) Run(ctx context.Context) error {
	latest, err := u.fetchLatest(ctx)
	if err != nil {
		return err
	}

	u.mu.Lock()
	u.available = latest
	u.mu.Unlock()

	if latest != "" && latest != u.current {
		u.logger.Info("update available", "current", u.current, "latest", latest)
		if err := u.store.Set(ctx, settings.KeyAvailableVersion, latest); err != nil {
			return fmt.Errorf("recording available version: %w", err)
		}
	} else if err := u.store.Delete(ctx, settings.KeyAvailableVersion); err != nil {
		return fmt.Errorf("clearing available version: %w", err)
	}

	if err := u.store.SetTime(ctx, settings.KeyUpdateLastChecked, time.Now().UTC()); err != nil {
		return fmt.Errorf("recording check time: %w", err)
	}
	return nil
}

// Available returns the newest version seen, or empty when the
// running build is current.
func (u *UpdateChecker) Available() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.available == u.current {
		return ""
	}
	return u.available
}

// fetchLatest reads the first line of the release manifest.
func (u *UpdateChecker) fetchLatest(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.manifestURL, nil)
	if err != nil {
		return "", fmt.Errorf("building manifest request: %w", err)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("manifest returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	if !scanner.Scan() {
		return "", fmt.Errorf("manifest is empty")
	}
	return strings.TrimSpace(scanner.Text()), nil
}
