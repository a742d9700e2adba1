package notify

import (
	"testing"
	"time"

	"github.com/asterhall/alarmbridge/internal/panel"
)

func mustTimeOfDay(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", s, err)
	}
	return tod
}

func clock(t *testing.T, s string) time.Time {
	t.Helper()
	now, err := time.Parse("2006-01-02 15:04:05", "2026-03-10 "+s)
	if err != nil {
		t.Fatalf("parsing clock %q: %v", s, err)
	}
	return now
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input   string
		want    TimeOfDay
		wantErr bool
	}{
		{"00:00:00", TimeOfDay{0, 0, 0}, false},
		{"09:30:15", TimeOfDay{9, 30, 15}, false},
		{"23:59:59", TimeOfDay{23, 59, 59}, false},
		{"24:00:00", TimeOfDay{}, true},
		{"12:60:00", TimeOfDay{}, true},
		{"nonsense", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimeOfDay(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestInWindow(t *testing.T) {
	start := mustTimeOfDay(t, "09:00:00")
	end := mustTimeOfDay(t, "17:00:00")

	tests := []struct {
		now  string
		want bool
	}{
		{"08:59:59", false},
		{"09:00:00", true},
		{"12:00:00", true},
		{"16:59:59", true},
		{"17:00:00", false},
		{"17:00:01", false},
	}

	for _, tt := range tests {
		if got := InWindow(start, end, clock(t, tt.now)); got != tt.want {
			t.Errorf("InWindow(09:00-17:00, %s) = %v, want %v", tt.now, got, tt.want)
		}
	}
}

func TestInWindowWrapsMidnight(t *testing.T) {
	start := mustTimeOfDay(t, "22:00:00")
	end := mustTimeOfDay(t, "06:00:00")

	tests := []struct {
		now  string
		want bool
	}{
		{"21:59:59", false},
		{"22:00:00", true},
		{"23:30:00", true},
		{"01:00:00", true},
		{"05:59:59", true},
		{"06:00:00", false},
		{"12:00:00", false},
	}

	for _, tt := range tests {
		if got := InWindow(start, end, clock(t, tt.now)); got != tt.want {
			t.Errorf("InWindow(22:00-06:00, %s) = %v, want %v", tt.now, got, tt.want)
		}
	}
}

func TestInWindowEmptyAdmitsAll(t *testing.T) {
	zero := TimeOfDay{}
	if !InWindow(zero, zero, clock(t, "15:00:00")) {
		t.Error("empty window should admit everything")
	}
}

func TestNotifierConfigSubscribes(t *testing.T) {
	cfg := &NotifierConfig{
		Subscriptions: map[panel.EventKind]bool{
			panel.EventAlarm:     true,
			panel.EventZoneFault: true,
		},
		ZoneFilter: map[int]bool{5: true},
	}

	tests := []struct {
		name string
		kind panel.EventKind
		zone int
		want bool
	}{
		{"subscribed non-zone kind", panel.EventAlarm, 0, true},
		{"unsubscribed kind", panel.EventDisarm, 0, false},
		{"zone kind with matching zone", panel.EventZoneFault, 5, true},
		{"zone kind with other zone", panel.EventZoneFault, 7, false},
		{"zone kind subscribed but unfiltered zone", panel.EventZoneFault, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.Subscribes(tt.kind, tt.zone); got != tt.want {
				t.Errorf("Subscribes(%s, %d) = %v, want %v", tt.kind, tt.zone, got, tt.want)
			}
		})
	}
}

func TestEmptyZoneFilterNeverMeansAll(t *testing.T) {
	cfg := &NotifierConfig{
		Subscriptions: map[panel.EventKind]bool{panel.EventZoneFault: true},
		ZoneFilter:    map[int]bool{},
	}

	for _, zone := range []int{0, 1, 5, 99} {
		if cfg.Subscribes(panel.EventZoneFault, zone) {
			t.Errorf("empty zone filter matched zone %d", zone)
		}
	}
}
