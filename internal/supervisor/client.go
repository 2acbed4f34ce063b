package supervisor

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// maxFramePayload caps inbound frame size at 1 MiB.
const maxFramePayload = 1 << 20

// Client is a single WebSocket transport to the gateway.
type Client interface {
	// Connect establishes the transport, tunneling through the
	// configured proxy when one is set.
	Connect(ctx context.Context) error

	// Close gracefully closes the transport (close frame, then close).
	Close() error

	// Terminate abandons the transport without a close frame. Used for
	// connect timeouts and heartbeat-detected staleness.
	Terminate() error

	// Send writes raw bytes to the transport.
	Send(data []byte) error

	// Messages returns a channel of inbound frames.
	Messages() <-chan Message

	// Errors returns a channel of transport errors.
	Errors() <-chan error

	// LastLive returns the last moment the transport was confirmed alive.
	LastLive() time.Time

	// MarkLive records a liveness signal at t.
	MarkLive(t time.Time)

	// IsConnected returns current connection state.
	IsConnected() bool
}

// client implements the Client interface.
type client struct {
	cfg    Config
	logger *slog.Logger

	conn *websocket.Conn

	// Output channels
	messages chan Message
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu        sync.RWMutex
	connected bool
	closed    bool
	lastLive  time.Time
}

// NewClient creates a new transport client.
func NewClient(cfg Config, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	return &client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan Message, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect establishes the WebSocket transport.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	// Browser-mimicking upgrade headers. Host, Connection, Upgrade and
	// Sec-WebSocket-Version are supplied by the websocket handshake.
	header := http.Header{}
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")
	header.Set("User-Agent", c.cfg.UserAgent)
	header.Set("Origin", c.cfg.Origin)
	header.Set("Accept-Language", "en-US,en;q=0.9")

	dialer := websocket.Dialer{
		HandshakeTimeout:  c.cfg.ConnectTimeout,
		EnableCompression: false,
		// The proxy connection inherits this timeout, keep-alive keeps
		// the tunnel from idling out.
		NetDialContext: (&net.Dialer{
			Timeout:   c.cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	if c.cfg.Proxy != nil {
		proxyURL := c.cfg.Proxy.URL()
		dialer.Proxy = func(*http.Request) (*url.URL, error) {
			return proxyURL, nil
		}
		// Proxies on this network commonly resign the tunnel; skip
		// upstream certificate validation on the proxy hop.
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		c.logger.Debug("dialing through proxy", "proxy", c.cfg.Proxy.String())
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, c.cfg.URL, header)
	if err != nil {
		netErr, isNetErr := err.(net.Error)
		if dialCtx.Err() == context.DeadlineExceeded || (isNetErr && netErr.Timeout()) {
			return fmt.Errorf("%w: no open event within %s", ErrTimeout, c.cfg.ConnectTimeout)
		}
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	conn.SetReadLimit(maxFramePayload)

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastLive = time.Now()
	c.mu.Unlock()

	// Protocol-level pongs count as liveness signals.
	conn.SetPongHandler(func(string) error {
		c.MarkLive(time.Now())
		return nil
	})

	go c.readLoop()

	c.logger.Debug("websocket connected", "url", c.cfg.URL)

	return nil
}

// Close gracefully closes the transport.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	close(c.done)

	if c.conn != nil {
		if wasConnected {
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
		}
		return c.conn.Close()
	}

	return nil
}

// Terminate abandons the transport without protocol-level shutdown.
func (c *client) Terminate() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	close(c.done)

	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}

// Send writes raw bytes to the transport.
func (c *client) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return fmt.Errorf("%w: send exceeded %s", ErrTimeout, c.cfg.WriteTimeout)
		}
		return err
	}
	return nil
}

// Messages returns the inbound frame channel.
func (c *client) Messages() <-chan Message {
	return c.messages
}

// Errors returns the transport error channel.
func (c *client) Errors() <-chan error {
	return c.errors
}

// LastLive returns the liveness timestamp.
func (c *client) LastLive() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastLive
}

// MarkLive records a liveness signal.
func (c *client) MarkLive(t time.Time) {
	c.mu.Lock()
	c.lastLive = t
	c.mu.Unlock()
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// readLoop reads frames from the transport into the messages channel.
func (c *client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Ignore errors after Close or Terminate.
			select {
			case <-c.done:
				return
			default:
				select {
				case c.errors <- err:
				default:
				}
				return
			}
		}

		msg := Message{
			Data:       data,
			ReceivedAt: receivedAt,
		}

		select {
		case c.messages <- msg:
		case <-c.done:
			return
		default:
			c.logger.Warn("message buffer full, dropping message")
		}
	}
}
