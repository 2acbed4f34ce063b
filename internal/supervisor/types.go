package supervisor

import (
	"errors"
	"time"

	"github.com/rgordeev/uplink/internal/proxy"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrConnectFailed   = errors.New("transport open failed")
	ErrTimeout         = errors.New("operation timeout")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrStaleConnection = errors.New("connection stale (no liveness signal)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Wire protocol constants.
const (
	ActionAuth = "AUTH"
	ActionPing = "PING"
	ActionPong = "PONG"

	// PongAckID is the fixed sentinel id the server expects on every
	// pong acknowledgment.
	PongAckID = "F3X"

	DeviceTypeDesktop = "desktop"
)

// AuthChallenge is the first inbound frame after the transport opens.
// Additional fields are ignored.
type AuthChallenge struct {
	ID string `json:"id"`
}

// AuthResult carries the client metadata inside an auth response.
type AuthResult struct {
	BrowserID  string `json:"browser_id"`
	UserID     string `json:"user_id"`
	UserAgent  string `json:"user_agent"`
	Timestamp  int64  `json:"timestamp"` // unix seconds
	DeviceType string `json:"device_type"`
	Version    string `json:"version"`
}

// AuthResponse answers an AuthChallenge, keyed by its correlation id.
type AuthResponse struct {
	ID           string     `json:"id"`
	OriginAction string     `json:"origin_action"`
	Result       AuthResult `json:"result"`
}

// Ping is the application-level liveness ping sent on each heartbeat tick.
type Ping struct {
	ID     string   `json:"id"`
	Action string   `json:"action"`
	Data   struct{} `json:"data"`
}

// PongAck is the protocol-level pong acknowledgment that accompanies
// every Ping, keyed by the fixed sentinel id.
type PongAck struct {
	ID           string `json:"id"`
	OriginAction string `json:"origin_action"`
}

// Message wraps raw frame data with a receive timestamp.
type Message struct {
	Data       []byte    // Raw message bytes from the transport
	ReceivedAt time.Time // Local timestamp when the read returned
}

// Config configures a ConnectionSupervisor and its transport.
type Config struct {
	URL       string            // Gateway WebSocket URL
	Origin    string            // Origin header sent on the upgrade request
	UserAgent string            // Browser-identifying User-Agent
	UserID    string            // Owning user identifier
	Version   string            // Protocol version reported during auth
	Proxy     *proxy.Descriptor // Optional forward proxy (nil = direct)

	ConnectTimeout    time.Duration // Window for transport open and auth challenge
	WriteTimeout      time.Duration // Deadline for a single send
	HeartbeatInterval time.Duration // Period between heartbeat ticks
	StaleAfter        time.Duration // Max silence before the connection is considered dead
	RetryDelay        time.Duration // Fixed delay between reconnect attempts
	BufferSize        int           // Inbound message channel buffer
}

// DefaultConfig returns sensible defaults for everything but the user id.
func DefaultConfig() Config {
	return Config{
		URL:               "wss://gateway.ulnk.network:4650/",
		Origin:            "https://app.ulnk.network",
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Version:           "4.26.2",
		ConnectTimeout:    30 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		StaleAfter:        45 * time.Second,
		RetryDelay:        10 * time.Second,
		BufferSize:        100,
	}
}

// withDefaults fills zero-valued fields so a partially populated
// Config behaves predictably in tests.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.URL == "" {
		c.URL = def.URL
	}
	if c.Origin == "" {
		c.Origin = def.Origin
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.Version == "" {
		c.Version = def.Version
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = def.StaleAfter
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.BufferSize == 0 {
		c.BufferSize = def.BufferSize
	}
	return c
}

// State identifies where the supervisor is in the connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
