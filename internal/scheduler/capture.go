package scheduler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/asterhall/alarmbridge/internal/settings"
)

const (
	// captureFilename is the frame written each cycle. Overwritten in
	// place so the capture directory holds only the latest still.
	captureFilename = "camera.jpg"

	defaultCaptureIntervalSeconds = 60

	// maxCaptureBytes caps how much image data one fetch may read.
	maxCaptureBytes = 8 << 20

	captureRequestTimeout = 15 * time.Second
)

// FrameCapture periodically fetches a still image from a camera's HTTP
// endpoint and writes it to the capture directory, so the latest frame
// is on disk alongside the event log when an alarm fires.
type FrameCapture struct {
	store  settings.Store
	client *http.Client
	logger Logger
}

// NewFrameCapture creates the capture job. logger may be nil.
func NewFrameCapture(store settings.Store, logger Logger) *FrameCapture {
	if logger == nil {
		logger = noopLogger{}
	}
	return &FrameCapture{
		store:  store,
		client: &http.Client{Timeout: captureRequestTimeout},
		logger: logger,
	}
}

// Name implements Job.
func (c *FrameCapture) Name() string { return "frame-capture" }

// Schedule implements Job. Captures run on a fixed cadence with no
// last-run persistence; a missed frame is replaced by the next one.
func (c *FrameCapture) Schedule(ctx context.Context) (time.Duration, bool) {
	enabled, err := c.store.GetBool(ctx, settings.KeyCaptureEnabled, false)
	if err != nil || !enabled {
		return 0, false
	}

	seconds, err := c.store.GetInt(ctx, settings.KeyCaptureInterval, defaultCaptureIntervalSeconds)
	if err != nil || seconds <= 0 {
		seconds = defaultCaptureIntervalSeconds
	}
	return time.Duration(seconds) * time.Second, true
}

// Run implements Job: fetch one frame and write it to disk.
func (c *FrameCapture) Run(ctx context.Context) error {
	url, err := c.store.GetString(ctx, settings.KeyCaptureURL, "")
	if err != nil {
		return fmt.Errorf("reading capture url: %w", err)
	}
	if url == "" {
		return fmt.Errorf("capture enabled but no %s configured", settings.KeyCaptureURL)
	}

	frame, err := c.fetch(ctx, url)
	if err != nil {
		return err
	}

	dir, err := c.store.GetString(ctx, settings.KeyCapturePath, "./captures")
	if err != nil {
		return fmt.Errorf("reading capture path: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating capture directory: %w", err)
	}

	path := filepath.Join(dir, captureFilename)
	if err := os.WriteFile(path, frame, 0o640); err != nil {
		return fmt.Errorf("writing captured frame: %w", err)
	}

	c.logger.Debug("frame captured", "path", path, "bytes", len(frame))
	return nil
}

// fetch retrieves one still image, with basic auth when credentials
// are configured.
func (c *FrameCapture) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building capture request: %w", err)
	}

	username, err := c.store.GetString(ctx, settings.KeyCaptureUsername, "")
	if err != nil {
		return nil, fmt.Errorf("reading capture username: %w", err)
	}
	if username != "" {
		password, err := c.store.GetString(ctx, settings.KeyCapturePassword, "")
		if err != nil {
			return nil, fmt.Errorf("reading capture password: %w", err)
		}
		req.SetBasicAuth(username, password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching frame: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read side only

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching frame: camera returned %s", resp.Status)
	}

	frame, err := io.ReadAll(io.LimitReader(resp.Body, maxCaptureBytes))
	if err != nil {
		return nil, fmt.Errorf("reading frame body: %w", err)
	}
	return frame, nil
}
