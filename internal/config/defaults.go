package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL                 = "wss://ws.kraken.com"
	DefaultPrivateWSURL          = "wss://ws-auth.kraken.com"
	DefaultRestURL               = "https://api.kraken.com"
	DefaultReconnectInitialDelay = 100 * time.Millisecond
	DefaultReconnectMaxDelay     = 20 * time.Second
	DefaultReconnectMultiplier   = 2.718281828
	DefaultMaxRetries            = 30
	DefaultHandshakeTimeout      = 10 * time.Second
	DefaultPingInterval          = 30 * time.Second
	DefaultPingTimeout           = 60 * time.Second
	DefaultWriteTimeout          = 5 * time.Second
	DefaultBufferSize            = 10000
	DefaultOnCorruption          = CorruptionResync
	DefaultBookDepth             = 10
	DefaultDBPort                = 5432
	DefaultDBSSLMode             = "prefer"
	DefaultMaxConns              = 4
	DefaultMinConns              = 1
	DefaultJournalBatchSize      = 100
	DefaultJournalFlushInterval  = 1 * time.Second
	DefaultJournalBufferSize     = 1000
	DefaultMetricsPort           = 9090
	DefaultMetricsPath           = "/metrics"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "json"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.PrivateWSURL == "" {
		c.API.PrivateWSURL = DefaultPrivateWSURL
	}
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}

	// Connections defaults
	if c.Connections.ReconnectInitialDelay == 0 {
		c.Connections.ReconnectInitialDelay = DefaultReconnectInitialDelay
	}
	if c.Connections.ReconnectMaxDelay == 0 {
		c.Connections.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connections.ReconnectMultiplier == 0 {
		c.Connections.ReconnectMultiplier = DefaultReconnectMultiplier
	}
	if c.Connections.MaxRetries == 0 {
		c.Connections.MaxRetries = DefaultMaxRetries
	}
	if c.Connections.HandshakeTimeout == 0 {
		c.Connections.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connections.PingInterval == 0 {
		c.Connections.PingInterval = DefaultPingInterval
	}
	if c.Connections.PingTimeout == 0 {
		c.Connections.PingTimeout = DefaultPingTimeout
	}
	if c.Connections.WriteTimeout == 0 {
		c.Connections.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connections.BufferSize == 0 {
		c.Connections.BufferSize = DefaultBufferSize
	}

	// Book defaults
	if c.Book.OnCorruption == "" {
		c.Book.OnCorruption = DefaultOnCorruption
	}
	if c.Book.Depth == 0 {
		c.Book.Depth = DefaultBookDepth
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultJournalBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultJournalFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultJournalBufferSize
	}
	applyDBDefaults(&c.Journal.Database)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
