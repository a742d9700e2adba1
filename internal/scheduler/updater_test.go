package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/asterhall/alarmbridge/internal/settings"
)

func manifestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestUpdateCheckerRecordsNewVersion(t *testing.T) {
	server := manifestServer(t, "1.4.0\nolder lines ignored\n")
	store := newStubStore(nil)

	checker := NewUpdateChecker(store, "1.2.0", WithManifestURL(server.URL))
	if err := checker.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := checker.Available(); got != "1.4.0" {
		t.Errorf("Available() = %q, want %q", got, "1.4.0")
	}
	if v, _ := store.GetString(context.Background(), settings.KeyAvailableVersion, ""); v != "1.4.0" {
		t.Errorf("stored version = %q", v)
	}
	if _, found, _ := store.GetTime(context.Background(), settings.KeyUpdateLastChecked); !found {
		t.Error("last check time was not recorded")
	}
}

func TestUpdateCheckerClearsWhenCurrent(t *testing.T) {
	server := manifestServer(t, "1.2.0\n")
	store := newStubStore(map[string]string{
		settings.KeyAvailableVersion: "1.1.0",
	})

	checker := NewUpdateChecker(store, "1.2.0", WithManifestURL(server.URL))
	if err := checker.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := checker.Available(); got != "" {
		t.Errorf("Available() = %q, want empty", got)
	}
	if _, found, _ := store.Get(context.Background(), settings.KeyAvailableVersion); found {
		t.Error("stale available version was not cleared")
	}
}

func TestUpdateCheckerManifestErrors(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	checker := NewUpdateChecker(newStubStore(nil), "1.2.0", WithManifestURL(down.URL))
	if err := checker.Run(context.Background()); err == nil {
		t.Error("Run succeeded against a failing manifest")
	}
}

func TestUpdateCheckerSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		store := newStubStore(map[string]string{
			settings.KeyUpdateCheckEnabled: "0",
		})
		checker := NewUpdateChecker(store, "1.0.0")
		if _, enabled := checker.Schedule(ctx); enabled {
			t.Error("Schedule reported a disabled job as enabled")
		}
	})

	t.Run("first run waits a full interval", func(t *testing.T) {
		store := newStubStore(map[string]string{
			settings.KeyUpdateCheckInterval: "600",
		})
		checker := NewUpdateChecker(store, "1.0.0")
		delay, enabled := checker.Schedule(ctx)
		if !enabled || delay != 10*time.Minute {
			t.Errorf("Schedule = %v/%v, want 10m/true", delay, enabled)
		}
	})

	t.Run("recent check shortens the delay", func(t *testing.T) {
		store := newStubStore(map[string]string{
			settings.KeyUpdateCheckInterval: "600",
		})
		store.SetTime(ctx, settings.KeyUpdateLastChecked, time.Now().Add(-9*time.Minute))

		checker := NewUpdateChecker(store, "1.0.0")
		delay, enabled := checker.Schedule(ctx)
		if !enabled || delay <= 0 || delay > time.Minute {
			t.Errorf("Schedule = %v/%v, want about 1m/true", delay, enabled)
		}
	})

	t.Run("overdue check runs promptly", func(t *testing.T) {
		store := newStubStore(map[string]string{
			settings.KeyUpdateCheckInterval: "600",
		})
		store.SetTime(ctx, settings.KeyUpdateLastChecked, time.Now().Add(-time.Hour))

		checker := NewUpdateChecker(store, "1.0.0")
		delay, enabled := checker.Schedule(ctx)
		if !enabled || delay > time.Second {
			t.Errorf("Schedule = %v/%v, want <=1s/true", delay, enabled)
		}
	})
}
