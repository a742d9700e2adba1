package panel

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/asterhall/alarmbridge/internal/settings"
)

// ConnectionStatus is the manager's lifecycle state.
type ConnectionStatus int

// Connection lifecycle states. Transitions are
// Closed -> Opening -> Open -> Closed; Open never moves directly back
// to Opening, an Open() call always closes first.
const (
	StatusClosed ConnectionStatus = iota
	StatusOpening
	StatusOpen
)

// String returns the lowercase state name.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusOpening:
		return "opening"
	case StatusOpen:
		return "open"
	default:
		return "closed"
	}
}

// ConnectionState is a point-in-time snapshot of the manager's state.
type ConnectionState struct {
	Status             ConnectionStatus
	LastOpenedAt       time.Time
	LastError          error
	ReconnectRequested bool
}

// Dispatcher receives every decoded panel event.
type Dispatcher interface {
	// Send fans the event out to all subscribed notifiers and returns
	// the per-notifier errors. Must not block on network I/O.
	Send(event Event) []error
}

// Broadcaster republishes raw panel frames to the live broadcast bus.
// Implementations are best-effort; errors are logged, never propagated.
type Broadcaster interface {
	BroadcastMessage(messageType string, raw string)
}

// CertificateProvider supplies TLS material for encrypted panel
// transports. The manager treats the returned config as opaque.
type CertificateProvider interface {
	ClientTLS(ctx context.Context) (*tls.Config, error)
}

// Default transport settings used when the settings store has no value.
const (
	defaultDeviceType     = string(TransportNetwork)
	defaultDeviceAddress  = "localhost"
	defaultDevicePort     = 10000
	defaultDeviceBaudrate = 115200
)

// connectFunc opens a device; replaced in tests.
type connectFunc func(ctx context.Context, cfg ClientConfig) (Device, error)

// Manager owns the panel connection lifecycle.
//
// Open resolves transport parameters from the settings store, closes any
// existing connection, connects a fresh device, and binds its callbacks.
// Decoded events flow to the Dispatcher; raw frames to the Broadcaster.
//
// Thread Safety:
//   - Open and Close are serialized by an operation mutex.
//   - State reads use a separate lock and never block an in-progress Open.
//   - Connection state is owned exclusively by the Manager.
type Manager struct {
	store       settings.Store
	dispatcher  Dispatcher
	broadcaster Broadcaster
	certs       CertificateProvider
	logger      Logger
	connect     connectFunc

	// opMu serializes Open/Close. Never held while dispatching events.
	opMu sync.Mutex

	// stateMu guards the fields below.
	stateMu            sync.Mutex
	device             Device
	decoder            *Decoder
	bound              bool
	status             ConnectionStatus
	lastOpenedAt       time.Time
	lastError          error
	reconnectRequested bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithBroadcaster sets the live broadcast sink for raw frames.
func WithBroadcaster(b Broadcaster) ManagerOption {
	return func(m *Manager) { m.broadcaster = b }
}

// WithCertificateProvider sets the TLS material source for encrypted
// transports.
func WithCertificateProvider(p CertificateProvider) ManagerOption {
	return func(m *Manager) { m.certs = p }
}

// WithManagerLogger sets the manager's logger.
func WithManagerLogger(l Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// withConnect replaces the device connector, for tests.
func withConnect(fn connectFunc) ManagerOption {
	return func(m *Manager) { m.connect = fn }
}

// NewManager creates a Manager. The connection starts Closed with a
// reconnect requested, so the Supervisor performs the initial open.
func NewManager(store settings.Store, dispatcher Dispatcher, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:              store,
		dispatcher:         dispatcher,
		logger:             noopLogger{},
		status:             StatusClosed,
		reconnectRequested: true,
		connect: func(ctx context.Context, cfg ClientConfig) (Device, error) {
			return Connect(ctx, cfg)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open (re)establishes the panel connection.
//
// Any existing connection is closed first, so the observable transition
// sequence is always Closed -> Opening -> Open. Transport parameters are
// resolved from the settings store on every call, so settings edits take
// effect on the next open.
//
// Failures (device absent, TLS failure, permission error) leave the
// connection Closed with the error recorded, and are returned for the
// caller to log. They are never fatal; the Supervisor retries.
func (m *Manager) Open(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.closeDevice()
	m.setStatus(StatusOpening)

	cfg, err := m.resolveConfig(ctx)
	if err != nil {
		m.recordOpenFailure(err)
		return err
	}

	device, err := m.connect(ctx, cfg)
	if err != nil {
		m.recordOpenFailure(err)
		return err
	}

	m.bindDevice(device)

	m.stateMu.Lock()
	m.device = device
	m.status = StatusOpen
	m.lastOpenedAt = time.Now()
	m.lastError = nil
	m.reconnectRequested = false
	m.stateMu.Unlock()

	m.logger.Info("panel connection opened",
		"transport", string(cfg.Transport),
		"address", cfg.Address,
	)
	return nil
}

// Close shuts the connection down idempotently.
func (m *Manager) Close() {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.closeDevice()
}

// closeDevice closes and forgets the current device, if any.
// Caller holds opMu.
func (m *Manager) closeDevice() {
	m.stateMu.Lock()
	device := m.device
	m.device = nil
	m.decoder = nil
	m.bound = false
	m.status = StatusClosed
	m.stateMu.Unlock()

	if device != nil {
		if err := device.Close(); err != nil {
			m.logger.Warn("closing panel device", "error", err)
		}
		m.logger.Info("panel connection closed")
	}
}

// resolveConfig reads transport parameters from the settings store.
func (m *Manager) resolveConfig(ctx context.Context) (ClientConfig, error) {
	deviceType, err := m.store.GetString(ctx, settings.KeyDeviceType, defaultDeviceType)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("resolving device type: %w", err)
	}
	address, err := m.store.GetString(ctx, settings.KeyDeviceAddress, defaultDeviceAddress)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("resolving device address: %w", err)
	}
	port, err := m.store.GetInt(ctx, settings.KeyDevicePort, defaultDevicePort)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("resolving device port: %w", err)
	}
	useTLS, err := m.store.GetBool(ctx, settings.KeyUseTLS, false)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("resolving TLS setting: %w", err)
	}

	cfg := ClientConfig{
		Transport: Transport(deviceType),
		Address:   address,
		Port:      port,
	}

	if cfg.Transport != TransportNetwork && cfg.Transport != TransportSerial {
		return ClientConfig{}, fmt.Errorf("%w: %q", ErrInvalidTransport, deviceType)
	}

	if cfg.Transport == TransportSerial {
		baud, err := m.store.GetInt(ctx, settings.KeyDeviceBaudrate, defaultDeviceBaudrate)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("resolving baud rate: %w", err)
		}
		cfg.Baudrate = baud
	}

	if useTLS && cfg.Transport == TransportNetwork {
		if m.certs == nil {
			return ClientConfig{}, fmt.Errorf("%w: TLS requested but no certificate provider configured", ErrConnectionFailed)
		}
		tlsCfg, err := m.certs.ClientTLS(ctx)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("%w: loading TLS material: %w", ErrConnectionFailed, err)
		}
		cfg.TLS = tlsCfg
	}

	return cfg, nil
}

// bindDevice attaches message and close handlers to a fresh device.
// Binding is idempotent per connection: a second call is a no-op, so
// events are never dispatched twice.
func (m *Manager) bindDevice(device Device) {
	m.stateMu.Lock()
	if m.bound {
		m.stateMu.Unlock()
		return
	}
	m.bound = true
	m.decoder = NewDecoder()
	m.stateMu.Unlock()

	device.SetOnMessage(m.handleMessage)
	device.SetOnClose(m.handleDeviceClose)
}

// handleMessage processes one parsed frame from the device.
// Runs on the client's callback workers; must not block on network I/O
// beyond the best-effort broadcast publish.
func (m *Manager) handleMessage(msg *Message) {
	if m.broadcaster != nil {
		m.broadcaster.BroadcastMessage(string(msg.Type), msg.Raw)
	}

	m.stateMu.Lock()
	decoder := m.decoder
	m.stateMu.Unlock()
	if decoder == nil {
		return
	}

	for _, event := range decoder.Decode(msg) {
		for _, err := range m.dispatcher.Send(event) {
			m.logger.Error("notifier error",
				"kind", string(event.Kind),
				"zone", event.Zone,
				"error", err,
			)
		}
	}
}

// handleDeviceClose marks the connection lost and requests a reconnect.
func (m *Manager) handleDeviceClose(err error) {
	m.stateMu.Lock()
	m.status = StatusClosed
	m.reconnectRequested = true
	if err != nil {
		m.lastError = err
	}
	m.stateMu.Unlock()

	m.logger.Warn("panel connection lost", "error", err)
}

// recordOpenFailure records a failed open attempt.
func (m *Manager) recordOpenFailure(err error) {
	m.stateMu.Lock()
	m.status = StatusClosed
	m.lastError = err
	m.reconnectRequested = true
	m.stateMu.Unlock()
}

// setStatus transitions the lifecycle state.
func (m *Manager) setStatus(status ConnectionStatus) {
	m.stateMu.Lock()
	m.status = status
	m.stateMu.Unlock()
}

// State returns a snapshot of the connection state.
func (m *Manager) State() ConnectionState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return ConnectionState{
		Status:             m.status,
		LastOpenedAt:       m.lastOpenedAt,
		LastError:          m.lastError,
		ReconnectRequested: m.reconnectRequested,
	}
}

// IsOpen reports whether a device connection is currently open.
func (m *Manager) IsOpen() bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.status == StatusOpen
}

// ReconnectRequested reports whether the connection needs reopening.
func (m *Manager) ReconnectRequested() bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.reconnectRequested
}

// RequestReconnect asks the Supervisor to reopen on its next cycle,
// used after device settings change.
func (m *Manager) RequestReconnect() {
	m.stateMu.Lock()
	m.reconnectRequested = true
	m.stateMu.Unlock()
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
