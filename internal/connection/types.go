package connection

import (
	"errors"
	"time"

	"github.com/rickgao/krakenbook/internal/dispatch"
	"github.com/rickgao/krakenbook/internal/kraken"
)

// Errors
var (
	ErrNotConnected        = errors.New("not connected")
	ErrStaleConnection     = errors.New("connection stale (no ping)")
	ErrAlreadyClosed       = errors.New("already closed")
	ErrAlreadySubscribed   = errors.New("identity already subscribed")
	ErrUnknownSubscription = errors.New("unknown subscription")
	ErrReconnectExhausted  = errors.New("max reconnect retries reached")
	ErrResyncRequested     = errors.New("book resync requested")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// State is the lifecycle state of one subscription.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Stopped
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Transition describes one state change of a subscription.
type Transition struct {
	Identity dispatch.Identity
	ConnID   string // Connection attempt the change belongs to
	From     State
	To       State
	Retries  int
	Err      error // Cause of a move to Reconnecting, if any
	At       time.Time
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://ws.kraken.com)
	HandshakeTimeout time.Duration // Dial handshake limit
	PingInterval     time.Duration // How often we ping the server
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:              kraken.PublicURL,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       10000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL        string // Public WebSocket endpoint
	PrivateURL string // Authenticated endpoint, used with Private()

	InitialDelay time.Duration // First reconnect delay
	MaxDelay     time.Duration // Reconnect delay cap
	Multiplier   float64       // Delay growth factor
	Jitter       float64       // Randomization factor in [0, 1); 0 keeps delays monotonic
	MaxRetries   int           // Consecutive failures before giving up; < 0 retries forever

	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PingTimeout      time.Duration
	WriteTimeout     time.Duration
	BufferSize       int

	// ResyncOnCorruption recycles the connection when the dispatcher
	// discards a replica, so the server sends a fresh snapshot.
	ResyncOnCorruption bool

	// OnTransition, if set, is called from the session goroutine after
	// every state change.
	OnTransition func(Transition)
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	client := DefaultClientConfig()
	return ManagerConfig{
		URL:              kraken.PublicURL,
		PrivateURL:       kraken.PrivateURL,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         20 * time.Second,
		Multiplier:       2.718281828,
		MaxRetries:       30,
		HandshakeTimeout: client.HandshakeTimeout,
		PingInterval:     client.PingInterval,
		PingTimeout:      client.PingTimeout,
		WriteTimeout:     client.WriteTimeout,
		BufferSize:       client.BufferSize,
	}
}

// clientConfig derives the per-connection settings for url.
func (c ManagerConfig) clientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:              url,
		HandshakeTimeout: c.HandshakeTimeout,
		PingInterval:     c.PingInterval,
		PingTimeout:      c.PingTimeout,
		WriteTimeout:     c.WriteTimeout,
		BufferSize:       c.BufferSize,
	}
}
