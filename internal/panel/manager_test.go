package panel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mapStore is an in-memory settings.Store for tests.
type mapStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMapStore(values map[string]string) *mapStore {
	if values == nil {
		values = make(map[string]string)
	}
	return &mapStore{values: values}
}

func (s *mapStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *mapStore) GetString(ctx context.Context, key, def string) (string, error) {
	v, ok, _ := s.Get(ctx, key)
	if !ok {
		return def, nil
	}
	return v, nil
}

func (s *mapStore) GetInt(ctx context.Context, key string, def int) (int, error) {
	v, ok, _ := s.Get(ctx, key)
	if !ok {
		return def, nil
	}
	n := 0
	for _, c := range v {
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func (s *mapStore) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	v, ok, _ := s.Get(ctx, key)
	if !ok {
		return def, nil
	}
	return v == "1" || v == "true", nil
}

func (s *mapStore) GetTime(_ context.Context, _ string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (s *mapStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *mapStore) SetInt(ctx context.Context, key string, value int) error {
	return s.Set(ctx, key, "")
}

func (s *mapStore) SetBool(ctx context.Context, key string, value bool) error {
	return s.Set(ctx, key, "")
}

func (s *mapStore) SetTime(ctx context.Context, key string, _ time.Time) error {
	return s.Set(ctx, key, "")
}

func (s *mapStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// fakeDevice implements Device so manager tests can feed messages in.
type fakeDevice struct {
	mu        sync.Mutex
	onMessage func(*Message)
	onClose   func(error)
	closed    bool
}

func (d *fakeDevice) SetOnMessage(cb func(*Message)) {
	d.mu.Lock()
	d.onMessage = cb
	d.mu.Unlock()
}

func (d *fakeDevice) SetOnClose(cb func(error)) {
	d.mu.Lock()
	d.onClose = cb
	d.mu.Unlock()
}

func (d *fakeDevice) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed
}

func (d *fakeDevice) Stats() ClientStats { return ClientStats{} }

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// deliver pushes a wire line through the device's message callback.
func (d *fakeDevice) deliver(t *testing.T, line string) {
	t.Helper()
	msg, err := ParseMessage(line)
	if err != nil {
		t.Fatalf("ParseMessage(%q): %v", line, err)
	}
	d.mu.Lock()
	cb := d.onMessage
	d.mu.Unlock()
	if cb == nil {
		t.Fatal("device has no message callback bound")
	}
	cb(msg)
}

// countingDispatcher counts Send calls.
type countingDispatcher struct {
	mu     sync.Mutex
	events []Event
}

func (c *countingDispatcher) Send(event Event) []error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	return nil
}

func (c *countingDispatcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestManagerOpenSuccess(t *testing.T) {
	device := &fakeDevice{}
	dispatcher := &countingDispatcher{}
	manager := NewManager(newMapStore(nil), dispatcher, withConnect(
		func(_ context.Context, _ ClientConfig) (Device, error) {
			return device, nil
		},
	))

	if !manager.ReconnectRequested() {
		t.Error("new manager should request initial connect")
	}

	if err := manager.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	state := manager.State()
	if state.Status != StatusOpen {
		t.Errorf("Status = %v, want open", state.Status)
	}
	if state.ReconnectRequested {
		t.Error("ReconnectRequested should be cleared after Open")
	}
	if state.LastError != nil {
		t.Errorf("LastError = %v, want nil", state.LastError)
	}
}

func TestManagerResolvesSerialBaudrate(t *testing.T) {
	store := newMapStore(map[string]string{
		"device_type":     string(TransportSerial),
		"device_address":  "/dev/ttyUSB0",
		"device_baudrate": "38400",
	})

	var got ClientConfig
	manager := NewManager(store, &countingDispatcher{}, withConnect(
		func(_ context.Context, cfg ClientConfig) (Device, error) {
			got = cfg
			return &fakeDevice{}, nil
		},
	))

	if err := manager.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got.Transport != TransportSerial || got.Address != "/dev/ttyUSB0" {
		t.Errorf("transport = %v %q", got.Transport, got.Address)
	}
	if got.Baudrate != 38400 {
		t.Errorf("Baudrate = %d, want 38400", got.Baudrate)
	}
}

func TestManagerOpenFailureRecorded(t *testing.T) {
	connectErr := errors.New("no such device")
	manager := NewManager(newMapStore(nil), &countingDispatcher{}, withConnect(
		func(_ context.Context, _ ClientConfig) (Device, error) {
			return nil, connectErr
		},
	))

	if err := manager.Open(context.Background()); !errors.Is(err, connectErr) {
		t.Fatalf("Open error = %v, want %v", err, connectErr)
	}

	state := manager.State()
	if state.Status != StatusClosed {
		t.Errorf("Status = %v, want closed", state.Status)
	}
	if !errors.Is(state.LastError, connectErr) {
		t.Errorf("LastError = %v, want %v", state.LastError, connectErr)
	}
	if !state.ReconnectRequested {
		t.Error("failed open should leave reconnect requested")
	}
}

func TestManagerOpenWhileOpenClosesFirst(t *testing.T) {
	var devices []*fakeDevice
	dispatcher := &countingDispatcher{}
	manager := NewManager(newMapStore(nil), dispatcher, withConnect(
		func(_ context.Context, _ ClientConfig) (Device, error) {
			d := &fakeDevice{}
			devices = append(devices, d)
			return d, nil
		},
	))

	if err := manager.Open(context.Background()); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := manager.Open(context.Background()); err != nil {
		t.Fatalf("second Open: %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("connected %d devices, want 2", len(devices))
	}
	if devices[0].IsConnected() {
		t.Error("first device should be closed before the second opens")
	}
	if !devices[1].IsConnected() {
		t.Error("second device should be open")
	}

	// One synthetic message must dispatch exactly once: no duplicate
	// bindings survive the reopen.
	devices[1].deliver(t, "!LRR:012,1,ARM_STAY")
	if got := dispatcher.count(); got != 1 {
		t.Errorf("dispatched %d events, want 1", got)
	}
}

func TestManagerDeviceCloseRequestsReconnect(t *testing.T) {
	device := &fakeDevice{}
	manager := NewManager(newMapStore(nil), &countingDispatcher{}, withConnect(
		func(_ context.Context, _ ClientConfig) (Device, error) {
			return device, nil
		},
	))

	if err := manager.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	device.mu.Lock()
	onClose := device.onClose
	device.mu.Unlock()
	if onClose == nil {
		t.Fatal("device has no close callback bound")
	}
	onClose(errors.New("connection reset"))

	state := manager.State()
	if state.Status != StatusClosed {
		t.Errorf("Status = %v, want closed", state.Status)
	}
	if !state.ReconnectRequested {
		t.Error("device close should request reconnect")
	}
}

func TestManagerInvalidTransportSetting(t *testing.T) {
	store := newMapStore(map[string]string{
		"device_type": "carrier-pigeon",
	})
	manager := NewManager(store, &countingDispatcher{}, withConnect(
		func(_ context.Context, _ ClientConfig) (Device, error) {
			t.Fatal("connect should not be called for invalid transport")
			return nil, nil
		},
	))

	if err := manager.Open(context.Background()); !errors.Is(err, ErrInvalidTransport) {
		t.Errorf("Open error = %v, want ErrInvalidTransport", err)
	}
}

func TestManagerBroadcastsRawMessages(t *testing.T) {
	device := &fakeDevice{}
	broadcasts := make(chan string, 1)
	manager := NewManager(newMapStore(nil), &countingDispatcher{},
		WithBroadcaster(broadcastFunc(func(messageType, raw string) {
			broadcasts <- messageType + ":" + raw
		})),
		withConnect(func(_ context.Context, _ ClientConfig) (Device, error) {
			return device, nil
		}),
	)

	if err := manager.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	device.deliver(t, "!Sending.done")

	select {
	case got := <-broadcasts:
		want := "other:!Sending.done"
		if got != want {
			t.Errorf("broadcast = %q, want %q", got, want)
		}
	default:
		t.Error("raw message was not broadcast")
	}
}

// broadcastFunc adapts a function to the Broadcaster interface.
type broadcastFunc func(messageType, raw string)

func (f broadcastFunc) BroadcastMessage(messageType, raw string) { f(messageType, raw) }
