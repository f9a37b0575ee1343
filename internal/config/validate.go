package config

import (
	"errors"
	"fmt"
)

// Depths accepted by the book channel.
var validDepths = map[int]bool{0: true, 10: true, 25: true, 100: true, 500: true, 1000: true}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if len(c.Subscriptions) == 0 {
		return errors.New("at least one subscription is required")
	}
	seen := make(map[string]bool)
	for i, sub := range c.Subscriptions {
		if err := sub.validate(fmt.Sprintf("subscriptions[%d]", i)); err != nil {
			return err
		}
		for _, pair := range sub.Pairs {
			key := sub.Name + "_" + pair
			if seen[key] {
				return fmt.Errorf("subscriptions[%d]: %s subscribed twice", i, key)
			}
			seen[key] = true
		}
	}

	if err := c.Connections.validate(); err != nil {
		return err
	}

	switch c.Book.OnCorruption {
	case CorruptionHalt, CorruptionResync, CorruptionAbort:
	default:
		return fmt.Errorf("book.on_corruption must be one of halt, resync, abort, got %q", c.Book.OnCorruption)
	}
	if c.Book.Depth < 1 {
		return errors.New("book.depth must be >= 1")
	}

	if c.Journal.Enabled {
		if err := c.Journal.Database.validate("journal.database"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.BufferSize < 1 {
			return errors.New("journal.buffer_size must be >= 1")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	return nil
}

func (s *SubscriptionConfig) validate(prefix string) error {
	if s.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if s.Name == "book" {
		if len(s.Pairs) == 0 {
			return fmt.Errorf("%s.pairs is required for book", prefix)
		}
		if !validDepths[s.Depth] {
			return fmt.Errorf("%s.depth %d is not one of 0, 10, 25, 100, 500, 1000", prefix, s.Depth)
		}
	}
	for j, pair := range s.Pairs {
		if pair == "" {
			return fmt.Errorf("%s.pairs[%d] is empty", prefix, j)
		}
	}
	return nil
}

func (c *ConnectionsConfig) validate() error {
	if c.ReconnectInitialDelay <= 0 {
		return errors.New("connections.reconnect_initial_delay must be > 0")
	}
	if c.ReconnectMaxDelay < c.ReconnectInitialDelay {
		return fmt.Errorf("connections.reconnect_max_delay (%s) cannot be below reconnect_initial_delay (%s)",
			c.ReconnectMaxDelay, c.ReconnectInitialDelay)
	}
	if c.ReconnectMultiplier < 1 {
		return fmt.Errorf("connections.reconnect_multiplier must be >= 1, got %g", c.ReconnectMultiplier)
	}
	if c.ReconnectJitter < 0 || c.ReconnectJitter >= 1 {
		return fmt.Errorf("connections.reconnect_jitter must be in [0, 1), got %g", c.ReconnectJitter)
	}
	if c.MaxRetries < -1 {
		return errors.New("connections.max_retries must be >= -1")
	}
	if c.PingTimeout < c.PingInterval {
		return fmt.Errorf("connections.ping_timeout (%s) cannot be below ping_interval (%s)",
			c.PingTimeout, c.PingInterval)
	}
	if c.BufferSize < 1 {
		return errors.New("connections.buffer_size must be >= 1")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
