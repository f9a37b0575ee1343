package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/krakenbook/internal/dispatch"
	"github.com/rickgao/krakenbook/internal/kraken"
	"github.com/rickgao/krakenbook/internal/metrics"
)

// Session is one subscription and the physical connection serving it.
// A single goroutine owns the connection: it dials, sends the subscribe
// payload, and dispatches every frame in arrival order.
type Session struct {
	id      dispatch.Identity
	ids     []dispatch.Identity
	url     string
	payload []byte
	unsub   []byte

	cfg     ManagerConfig
	dialer  Dialer
	router  Router
	metrics *metrics.Metrics
	logger  *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	restart chan struct{}
	done    chan struct{}

	mu        sync.Mutex
	state     State
	policy    retryPolicy
	exhausted bool
	connID    string
}

// Identity returns the identity the session is keyed by (first pair).
func (s *Session) Identity() dispatch.Identity { return s.id }

// Identities returns one identity per subscribed pair.
func (s *Session) Identities() []dispatch.Identity {
	return append([]dispatch.Identity(nil), s.ids...)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Retries returns the number of consecutive failed attempts.
func (s *Session) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.retries
}

// Exhausted reports whether the session gave up reconnecting.
func (s *Session) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// ConnID returns the ID of the current or last connection attempt.
func (s *Session) ConnID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connID
}

// Done is closed once the session goroutine has exited and the transport
// is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Restart clears the failure count. A session waiting to reconnect,
// including one that gave up, attempts a connection immediately.
func (s *Session) Restart() {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	s.policy.reset()
	s.exhausted = false
	waiting := s.state == Reconnecting
	s.mu.Unlock()

	if waiting {
		select {
		case s.restart <- struct{}{}:
		default:
		}
	}
}

// run drives the state machine until the session is stopped.
func (s *Session) run(onExit func()) {
	defer close(s.done)
	defer onExit()

	for {
		if s.ctx.Err() != nil || !s.setState(Connecting, nil) {
			return
		}

		err := s.connectAndServe()
		if s.ctx.Err() != nil {
			return
		}

		delay, exhausted := s.fail(err)
		if exhausted {
			s.escalate(err)
			if !s.waitRestart() {
				return
			}
			continue
		}

		s.metrics.ObserveReconnect(s.id.String())
		s.logger.Warn("connection lost, reconnecting",
			"error", err,
			"retries", s.Retries(),
			"delay", delay,
		)
		if !s.sleep(delay) {
			return
		}
	}
}

// connectAndServe dials, subscribes, and dispatches frames until the
// connection fails or the session is stopped.
func (s *Session) connectAndServe() error {
	connID := uuid.NewString()
	s.mu.Lock()
	s.connID = connID
	s.mu.Unlock()
	logger := s.logger.With("conn_id", connID)

	client, err := s.dialer.Dial(s.ctx, s.cfg.clientConfig(s.url), logger)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer client.Close()

	s.connected()
	if err := client.Send(s.payload); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	logger.Info("subscribed", "url", s.url)

	for {
		select {
		case <-s.ctx.Done():
			if err := client.Send(s.unsub); err != nil {
				logger.Debug("unsubscribe not sent", "error", err)
			}
			return s.ctx.Err()

		case err := <-client.Errors():
			// Frames read before the failure are still valid.
			if s.drain(client) {
				return ErrResyncRequested
			}
			return err

		case msg, ok := <-client.Messages():
			if !ok {
				return ErrNotConnected
			}
			if s.dispatch(msg) {
				return ErrResyncRequested
			}
		}
	}
}

// dispatch hands one frame to the router. Returns true if the connection
// should be recycled to obtain a fresh snapshot.
func (s *Session) dispatch(msg TimestampedMessage) bool {
	verdict := s.router.Dispatch(s.id, msg.Data)
	return verdict == dispatch.VerdictResync && s.cfg.ResyncOnCorruption
}

// drain dispatches frames already buffered by a failed client.
func (s *Session) drain(client Client) (resync bool) {
	for {
		select {
		case msg, ok := <-client.Messages():
			if !ok {
				return false
			}
			if s.dispatch(msg) {
				return true
			}
		default:
			return false
		}
	}
}

// connected records a successful handshake.
func (s *Session) connected() {
	s.mu.Lock()
	s.policy.reset()
	s.exhausted = false
	s.mu.Unlock()

	// A restart requested while reconnecting is satisfied by this connection.
	select {
	case <-s.restart:
	default:
	}
	s.setState(Connected, nil)
}

// fail records a transport failure. It returns the delay before the next
// attempt, or exhausted once retries exceed the configured maximum.
func (s *Session) fail(cause error) (delay time.Duration, exhausted bool) {
	s.mu.Lock()
	delay, exhausted = s.policy.failed()
	s.exhausted = exhausted
	s.mu.Unlock()

	s.setState(Reconnecting, cause)
	return delay, exhausted
}

// escalate tells every handler of the session that it gave up.
func (s *Session) escalate(cause error) {
	s.logger.Error("reconnect retries exhausted",
		"retries", s.Retries(),
		"max_retries", s.cfg.MaxRetries,
		"error", cause,
	)

	err := fmt.Errorf("%s: %w", s.id, ErrReconnectExhausted)
	for _, id := range s.ids {
		s.router.Notify(id, kraken.ReconnectExhaustedEvent())
		s.router.NotifyError(id, err)
	}
}

// waitRestart parks an exhausted session until Restart or stop.
func (s *Session) waitRestart() bool {
	select {
	case <-s.ctx.Done():
		return false
	case <-s.restart:
		return true
	}
}

// sleep waits out the backoff delay. Returns false if stopped.
func (s *Session) sleep(delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-s.restart:
		return true
	}
}

// stop moves the session to Stopped and cancels its goroutine. It does not
// wait for the transport to close.
func (s *Session) stop() {
	s.setState(Stopped, nil)
	s.cancel()
}

// setState records a transition. Stopped is terminal: returns false once
// the session is stopped.
func (s *Session) setState(to State, cause error) bool {
	s.mu.Lock()
	from := s.state
	if from == Stopped {
		s.mu.Unlock()
		return false
	}
	s.state = to
	s.metrics.SetState(s.id.String(), to.String())
	t := Transition{
		Identity: s.id,
		ConnID:   s.connID,
		From:     from,
		To:       to,
		Retries:  s.policy.retries,
		Err:      cause,
		At:       time.Now(),
	}
	s.mu.Unlock()

	if from != to {
		s.logger.Debug("state change",
			"from", from.String(),
			"to", to.String(),
			"retries", t.Retries,
		)
		if s.cfg.OnTransition != nil {
			s.cfg.OnTransition(t)
		}
	}
	return true
}
