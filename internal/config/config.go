package config

import "time"

// Config is the root configuration for a bookwatch instance.
type Config struct {
	Instance      InstanceConfig       `yaml:"instance"`
	API           APIConfig            `yaml:"api"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
	Connections   ConnectionsConfig    `yaml:"connections"`
	Book          BookConfig           `yaml:"book"`
	Journal       JournalConfig        `yaml:"journal"`
	Metrics       MetricsConfig        `yaml:"metrics"`
	Logging       LoggingConfig        `yaml:"logging"`
}

// InstanceConfig identifies this process.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds Kraken endpoints.
type APIConfig struct {
	WSURL        string `yaml:"ws_url"`
	PrivateWSURL string `yaml:"private_ws_url"`
	RestURL      string `yaml:"rest_url"`

	// Preflight checks system status and that every configured pair is
	// listed before subscribing.
	Preflight bool `yaml:"preflight"`
}

// SubscriptionConfig is one subscribe request. Each pair becomes its own
// identity, all served by one connection.
type SubscriptionConfig struct {
	Name    string   `yaml:"name"`
	Depth   int      `yaml:"depth"`
	Pairs   []string `yaml:"pairs"`
	Private bool     `yaml:"private"`
}

// ConnectionsConfig holds reconnect and transport settings.
type ConnectionsConfig struct {
	ReconnectInitialDelay time.Duration `yaml:"reconnect_initial_delay"`
	ReconnectMaxDelay     time.Duration `yaml:"reconnect_max_delay"`
	ReconnectMultiplier   float64       `yaml:"reconnect_multiplier"`
	ReconnectJitter       float64       `yaml:"reconnect_jitter"`
	MaxRetries            int           `yaml:"max_retries"` // -1 retries forever
	HandshakeTimeout      time.Duration `yaml:"handshake_timeout"`
	PingInterval          time.Duration `yaml:"ping_interval"`
	PingTimeout           time.Duration `yaml:"ping_timeout"`
	WriteTimeout          time.Duration `yaml:"write_timeout"`
	BufferSize            int           `yaml:"buffer_size"`
}

// Corruption policies for BookConfig.OnCorruption.
const (
	CorruptionHalt   = "halt"   // Drop the replica and wait for the next snapshot
	CorruptionResync = "resync" // Recycle the connection to force a snapshot
	CorruptionAbort  = "abort"  // Exit the process
)

// BookConfig holds replica settings.
type BookConfig struct {
	OnCorruption string `yaml:"on_corruption"`
	Depth        int    `yaml:"depth"` // Levels per side shown by /debug/books
}

// JournalConfig holds the incident journal settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	Database      DBConfig      `yaml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds the HTTP server exposing metrics and health.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}
