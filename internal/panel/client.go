package panel

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and buffer sizes for the device transport.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// readBufferSize is the maximum accepted line length.
	readBufferSize = 1024

	// defaultBaudrate is the serial speed used when none is configured.
	defaultBaudrate = 115200

	// callbackQueueSize is the buffer size for the message callback queue.
	callbackQueueSize = 100
)

// Transport selects how the device is reached.
type Transport string

// Supported transports.
const (
	// TransportNetwork connects to a ser2sock-style TCP endpoint.
	TransportNetwork Transport = "network"

	// TransportSerial opens a local serial device file.
	TransportSerial Transport = "serial"
)

// ClientConfig holds device transport configuration, resolved from the
// settings store by the Manager.
type ClientConfig struct {
	// Transport selects network or serial.
	Transport Transport

	// Address is the host (network) or device file path (serial).
	Address string

	// Port is the TCP port for network connections.
	Port int

	// Baudrate is the serial line speed. Default: 115200, the rate the
	// AlarmDecoder boards ship with.
	Baudrate int

	// TLS, when non-nil, wraps network connections. Built by the
	// Manager from CertificateProvider material.
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection.
	// Default: 10 seconds.
	ConnectTimeout time.Duration
}

// ClientStats holds operational statistics.
type ClientStats struct {
	MessagesRx      uint64
	MessagesDropped uint64 // Messages dropped due to full callback queue
	ParseErrors     uint64
	LastActivity    time.Time
	Connected       bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Device is the surface the Manager needs from a connected client.
// It exists so manager tests can substitute a fake device.
type Device interface {
	SetOnMessage(callback func(*Message))
	SetOnClose(callback func(err error))
	IsConnected() bool
	Stats() ClientStats
	Close() error
}

// Ensure Client implements Device.
var _ Device = (*Client)(nil)

// Client reads newline-framed messages from the panel interface device.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Message callbacks run on a single goroutine, one at a time, in
//     arrival order. Stateful consumers (the Decoder) rely on this.
//
// The Client does not reconnect on its own. When the stream breaks it
// fires the on-close callback and stays closed; the Supervisor observes
// this through the Manager and reopens.
type Client struct {
	cfg  ClientConfig
	conn io.ReadWriteCloser

	// Connection state
	connMu    sync.RWMutex
	connected bool

	// Message handler callback
	onMessage  func(*Message)
	onClose    func(err error)
	callbackMu sync.RWMutex

	// Callback queue, consumed by a single worker so callbacks see
	// messages in arrival order. Outbound sends parallelise later, in
	// the delivery worker pool.
	callbackQueue chan *Message

	// closeErr records why the stream ended, passed to the on-close callback.
	closedNotified atomic.Bool

	// Shutdown coordination (closeOnce prevents double-close panics)
	done *closeOnce
	wg   sync.WaitGroup

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for performance)
	messagesRx      atomic.Uint64
	messagesDropped atomic.Uint64
	parseErrors     atomic.Uint64
	lastActivity    atomic.Int64 // Unix timestamp
}

// Connect opens the device transport and starts the read loop.
//
// Network transport dials host:port, optionally wrapped in TLS when
// cfg.TLS is set. Serial transport opens the device file and puts the
// line into raw 8N1 mode at cfg.Baudrate.
//
// Parameters:
//   - ctx: Context for cancellation (used for initial connection)
//   - cfg: Transport configuration
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If the transport cannot be opened
func Connect(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Baudrate == 0 {
		cfg.Baudrate = defaultBaudrate
	}

	conn, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := &Client{
		cfg:           cfg,
		conn:          conn,
		done:          newCloseOnce(),
		callbackQueue: make(chan *Message, callbackQueueSize),
	}
	client.lastActivity.Store(time.Now().Unix())

	client.connMu.Lock()
	client.connected = true
	client.connMu.Unlock()

	client.wg.Add(1)
	go client.callbackWorker()

	client.wg.Add(1)
	go client.receiveLoop()

	return client, nil
}

// dial opens the configured transport.
func dial(ctx context.Context, cfg ClientConfig) (io.ReadWriteCloser, error) {
	switch cfg.Transport {
	case TransportNetwork:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()

		var dialer net.Dialer
		address := net.JoinHostPort(cfg.Address, fmt.Sprintf("%d", cfg.Port))
		conn, err := dialer.DialContext(connectCtx, "tcp", address)
		if err != nil {
			return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, address, err)
		}

		if cfg.TLS == nil {
			return conn, nil
		}

		tlsConn := tls.Client(conn, cfg.TLS)
		if err := tlsConn.HandshakeContext(connectCtx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: tls handshake: %w", ErrConnectionFailed, err)
		}
		return tlsConn, nil

	case TransportSerial:
		f, err := os.OpenFile(cfg.Address, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", ErrConnectionFailed, cfg.Address, err)
		}
		if err := configureSerial(f, cfg.Baudrate); err != nil {
			f.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, err
		}
		return f, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTransport, cfg.Transport)
	}
}

// receiveLoop reads newline-framed messages until the stream ends.
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, readBufferSize), readBufferSize)

	for scanner.Scan() {
		select {
		case <-c.done.Done():
			return
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		msg, err := ParseMessage(line)
		if err != nil {
			c.parseErrors.Add(1)
			c.logDebug("unparseable message", "line", line, "error", err)
			continue
		}

		c.messagesRx.Add(1)
		c.lastActivity.Store(time.Now().Unix())
		c.queueMessage(msg)
	}

	// Stream ended: EOF, transport error, or Close.
	err := scanner.Err()
	c.handleStreamEnd(err)
}

// queueMessage hands a message to the bounded callback worker pool.
// Non-blocking with drop on overflow; the panel re-reports status
// continuously so a dropped frame is recovered on the next one.
func (c *Client) queueMessage(msg *Message) {
	c.callbackMu.RLock()
	hasCallback := c.onMessage != nil
	c.callbackMu.RUnlock()

	if !hasCallback {
		return
	}

	select {
	case c.callbackQueue <- msg:
	default:
		c.messagesDropped.Add(1)
		c.logError("callback queue full, dropping message", nil)
	}
}

// callbackWorker processes messages from the callback queue.
func (c *Client) callbackWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done.Done():
			c.drainCallbackQueue()
			return
		case msg := <-c.callbackQueue:
			c.callbackMu.RLock()
			callback := c.onMessage
			c.callbackMu.RUnlock()

			if callback != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							c.logError("message callback panic", fmt.Errorf("%v", r))
						}
					}()
					callback(msg)
				}()
			}
		}
	}
}

// handleStreamEnd marks the client disconnected and fires the on-close
// callback exactly once.
func (c *Client) handleStreamEnd(err error) {
	c.connMu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.connMu.Unlock()

	if !c.closedNotified.CompareAndSwap(false, true) {
		return
	}

	if wasConnected && !c.isClosed() {
		if err == nil {
			err = io.EOF
		}
		c.logInfo("device stream ended", "error", err)
	}

	c.callbackMu.RLock()
	callback := c.onClose
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// drainCallbackQueue discards any remaining queued messages on shutdown.
func (c *Client) drainCallbackQueue() {
	for {
		select {
		case <-c.callbackQueue:
		default:
			return
		}
	}
}

// isClosed returns true if the client has been closed.
func (c *Client) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

// Close gracefully closes the connection.
//
// It signals the read loop to stop and closes the underlying transport.
// Safe to call multiple times (uses sync.Once).
func (c *Client) Close() error {
	c.done.Close()

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
	}

	c.wg.Wait()
	return nil
}

// SetOnMessage sets the callback invoked for each parsed message.
// Callbacks run sequentially on the callback goroutine and must not
// block for long.
func (c *Client) SetOnMessage(callback func(*Message)) {
	c.callbackMu.Lock()
	c.onMessage = callback
	c.callbackMu.Unlock()
}

// SetOnClose sets the callback invoked once when the stream ends,
// whether by transport failure or by Close.
func (c *Client) SetOnClose(callback func(err error)) {
	c.callbackMu.Lock()
	c.onClose = callback
	c.callbackMu.Unlock()
}

// SetLogger sets an optional logger.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Stats returns a snapshot of operational statistics.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		MessagesRx:      c.messagesRx.Load(),
		MessagesDropped: c.messagesDropped.Load(),
		ParseErrors:     c.parseErrors.Load(),
		LastActivity:    time.Unix(c.lastActivity.Load(), 0),
		Connected:       c.IsConnected(),
	}
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) logDebug(msg string, keysAndValues ...any) {
	if l := c.getLogger(); l != nil {
		l.Debug(msg, keysAndValues...)
	}
}

func (c *Client) logInfo(msg string, keysAndValues ...any) {
	if l := c.getLogger(); l != nil {
		l.Info(msg, keysAndValues...)
	}
}

func (c *Client) logError(msg string, err error) {
	if l := c.getLogger(); l != nil {
		if err != nil {
			l.Error(msg, "error", err)
		} else {
			l.Error(msg)
		}
	}
}
