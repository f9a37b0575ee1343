package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/krakenbook/internal/dispatch"
	"github.com/rickgao/krakenbook/internal/kraken"
	"github.com/rickgao/krakenbook/internal/metrics"
)

// Manager owns one Session per subscription identity.
type Manager interface {
	// Subscribe registers h for every pair in req and starts a session
	// that keeps the subscription alive until ctx is done, Unsubscribe or
	// Stop. The session is keyed by the identity of the first pair.
	Subscribe(ctx context.Context, req kraken.SubscribeRequest, h dispatch.Handler, opts ...SubscribeOption) (*Session, error)

	// Unsubscribe stops the session for id. It does not wait for the
	// transport; no handler callback for the session starts afterwards.
	Unsubscribe(id dispatch.Identity) error

	// Restart clears the failure count of the session for id and, if it is
	// waiting to reconnect, reconnects now.
	Restart(id dispatch.Identity) error

	// Session returns the live session for id.
	Session(id dispatch.Identity) (*Session, bool)

	// Sessions returns all live sessions.
	Sessions() []*Session

	// Stop stops every session and waits for them up to ctx's deadline.
	Stop(ctx context.Context) error

	// Stats returns current connection statistics.
	Stats() ManagerStats
}

// Router is the dispatcher surface the manager drives.
// *dispatch.Dispatcher satisfies it.
type Router interface {
	Register(id dispatch.Identity, h dispatch.Handler) error
	Unregister(id dispatch.Identity)
	Dispatch(conn dispatch.Identity, data []byte) dispatch.Verdict
	Notify(id dispatch.Identity, ev kraken.Event)
	NotifyError(id dispatch.Identity, err error)
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	Subscriptions int
	Connected     int
	Reconnecting  int
	Exhausted     int
}

// Option configures a Manager.
type Option func(*manager)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(m *manager) { m.dialer = d }
}

// WithBackoff replaces the backoff factory. It is called once per session.
func WithBackoff(f func() Backoff) Option {
	return func(m *manager) { m.newBackoff = f }
}

// WithMetrics records connection state and reconnects.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *manager) { m.metrics = mt }
}

// SubscribeOption configures one subscription.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	url     string
	private bool
}

// Private connects the subscription to the authenticated endpoint.
func Private() SubscribeOption {
	return func(o *subscribeOptions) { o.private = true }
}

// manager implements the Manager interface.
type manager struct {
	cfg        ManagerConfig
	router     Router
	dialer     Dialer
	newBackoff func() Backoff
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[dispatch.Identity]*Session
	stopped  bool

	wg sync.WaitGroup
}

// NewManager creates a new Connection Manager. Zero durations in cfg take
// their defaults.
func NewManager(cfg ManagerConfig, router Router, logger *slog.Logger, opts ...Option) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultManagerConfig()
	if cfg.URL == "" {
		cfg.URL = defaults.URL
	}
	if cfg.PrivateURL == "" {
		cfg.PrivateURL = defaults.PrivateURL
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaults.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaults.MaxDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = defaults.Multiplier
	}

	m := &manager{
		cfg:      cfg,
		router:   router,
		dialer:   WebsocketDialer,
		logger:   logger,
		sessions: make(map[dispatch.Identity]*Session),
	}
	m.newBackoff = func() Backoff { return NewBackoff(m.cfg) }
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe starts a session for req.
func (m *manager) Subscribe(ctx context.Context, req kraken.SubscribeRequest, h dispatch.Handler, opts ...SubscribeOption) (*Session, error) {
	o := subscribeOptions{url: m.cfg.URL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.private {
		o.url = m.cfg.PrivateURL
	}

	if req.Event == "" {
		req.Event = "subscribe"
	}
	payload, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode subscribe: %w", err)
	}
	unsub, err := req.Unsubscribe().Encode()
	if err != nil {
		return nil, fmt.Errorf("encode unsubscribe: %w", err)
	}

	id := dispatch.IdentityOf(req)
	ids := dispatch.IdentitiesOf(req)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, ErrAlreadyClosed
	}
	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("%s: %w", id, ErrAlreadySubscribed)
	}
	for i, pid := range ids {
		if err := m.router.Register(pid, h); err != nil {
			for _, registered := range ids[:i] {
				m.router.Unregister(registered)
			}
			return nil, fmt.Errorf("register %s: %w", pid, err)
		}
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:      id,
		ids:     ids,
		url:     o.url,
		payload: payload,
		unsub:   unsub,
		cfg:     m.cfg,
		dialer:  m.dialer,
		router:  m.router,
		metrics: m.metrics,
		logger:  m.logger.With("identity", id.String()),
		ctx:     sctx,
		cancel:  cancel,
		restart: make(chan struct{}, 1),
		done:    make(chan struct{}),
		policy: retryPolicy{
			backoff:    m.newBackoff(),
			maxDelay:   m.cfg.MaxDelay,
			maxRetries: m.cfg.MaxRetries,
		},
	}
	m.sessions[id] = s

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		s.run(func() { m.release(s) })
	}()

	m.logger.Info("subscription started",
		"identity", id.String(),
		"pairs", len(ids),
		"url", o.url,
	)
	return s, nil
}

// Unsubscribe stops the session for id.
func (m *manager) Unsubscribe(id dispatch.Identity) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownSubscription)
	}
	m.teardown(s)
	m.logger.Info("subscription stopped", "identity", id.String())
	return nil
}

// Restart clears the failure count for id.
func (m *manager) Restart(id dispatch.Identity) error {
	s, ok := m.Session(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownSubscription)
	}
	s.Restart()
	return nil
}

// Session returns the live session for id.
func (m *manager) Session(id dispatch.Identity) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns all live sessions.
func (m *manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Stop gracefully shuts down.
func (m *manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	m.mu.Lock()
	m.stopped = true
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		m.teardown(s)
	}

	// Wait for goroutines with timeout
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, sessions still closing")
		return ctx.Err()
	}

	m.logger.Info("connection manager stopped")
	return nil
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	sessions := m.Sessions()

	stats := ManagerStats{Subscriptions: len(sessions)}
	for _, s := range sessions {
		switch s.State() {
		case Connected:
			stats.Connected++
		case Reconnecting:
			stats.Reconnecting++
		}
		if s.Exhausted() {
			stats.Exhausted++
		}
	}
	return stats
}

// release cleans up after a session whose goroutine exited on its own,
// e.g. because the Subscribe context was cancelled.
func (m *manager) release(s *Session) {
	m.mu.Lock()
	current, ok := m.sessions[s.id]
	owned := ok && current == s
	if owned {
		delete(m.sessions, s.id)
	}
	m.mu.Unlock()

	if owned {
		m.teardown(s)
	}
}

// teardown stops s and drops its dispatcher state.
func (m *manager) teardown(s *Session) {
	s.stop()
	for _, id := range s.ids {
		m.router.Unregister(id)
	}
}
