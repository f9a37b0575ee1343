package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/krakenbook/internal/book"
	"github.com/rickgao/krakenbook/internal/kraken"
	"github.com/rickgao/krakenbook/internal/metrics"
)

// Errors
var (
	ErrAlreadyRegistered = errors.New("identity already registered")
	ErrOutOfOrderDelta   = errors.New("delta before snapshot")
)

// Verdict tells the connection owner what the dispatched frame implies for
// the stream.
type Verdict int

const (
	// VerdictOK means the stream is healthy.
	VerdictOK Verdict = iota
	// VerdictResync means the replica was discarded and a fresh snapshot is needed.
	VerdictResync
)

// Stats contains runtime statistics.
type Stats struct {
	MessagesReceived  int64
	Snapshots         int64
	Deltas            int64
	Events            int64
	ParseErrors       int64
	Unroutable        int64
	ConsistencyErrors int64
}

// entry holds the per-identity state. mu serializes all replica mutation
// and handler callbacks for the identity.
type entry struct {
	mu      sync.Mutex
	handler Handler
	replica *book.Replica
	stopped atomic.Bool
}

// Dispatcher routes frames to registered handlers by identity.
type Dispatcher struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	entries map[Identity]*entry

	received          atomic.Int64
	snapshots         atomic.Int64
	deltas            atomic.Int64
	events            atomic.Int64
	parseErrors       atomic.Int64
	unroutable        atomic.Int64
	consistencyErrors atomic.Int64
}

// New creates a Dispatcher. m may be nil.
func New(logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:  logger,
		metrics: m,
		entries: make(map[Identity]*entry),
	}
}

// Register installs h as the handler for id.
func (d *Dispatcher) Register(id Identity, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.entries[id]; exists {
		return fmt.Errorf("%s: %w", id, ErrAlreadyRegistered)
	}
	d.entries[id] = &entry{handler: h}
	return nil
}

// Unregister drops the handler and replica for id. No callback for id
// starts after Unregister returns. It does not wait for a callback that is
// already running, so it is safe to call from inside one.
func (d *Dispatcher) Unregister(id Identity) {
	d.mu.Lock()
	e, ok := d.entries[id]
	delete(d.entries, id)
	d.mu.Unlock()

	if ok {
		e.stopped.Store(true)
	}
	d.metrics.Forget(id.String())
}

// Registered reports whether id has a handler.
func (d *Dispatcher) Registered(id Identity) bool {
	return d.lookup(id) != nil
}

// Snapshot returns a copy of the current replica for id.
func (d *Dispatcher) Snapshot(id Identity) (*book.Replica, bool) {
	e := d.lookup(id)
	if e == nil {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replica == nil {
		return nil, false
	}
	return e.replica.Clone(), true
}

// Reset discards the replica for id. The next delta reports
// ErrOutOfOrderDelta until a snapshot arrives.
func (d *Dispatcher) Reset(id Identity) {
	e := d.lookup(id)
	if e == nil {
		return
	}
	e.mu.Lock()
	e.replica = nil
	e.mu.Unlock()
}

// Notify delivers a locally generated event to the handler for id.
func (d *Dispatcher) Notify(id Identity, ev kraken.Event) {
	e := d.lookup(id)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.stopped.Load() {
		e.handler.OnEvent(id, ev)
	}
}

// NotifyError delivers a locally generated error to the handler for id.
func (d *Dispatcher) NotifyError(id Identity, err error) {
	e := d.lookup(id)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.stopped.Load() {
		e.handler.OnError(id, err)
	}
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		MessagesReceived:  d.received.Load(),
		Snapshots:         d.snapshots.Load(),
		Deltas:            d.deltas.Load(),
		Events:            d.events.Load(),
		ParseErrors:       d.parseErrors.Load(),
		Unroutable:        d.unroutable.Load(),
		ConsistencyErrors: d.consistencyErrors.Load(),
	}
}

func (d *Dispatcher) lookup(id Identity) *entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entries[id]
}

// Dispatch decodes one frame received on the connection serving conn and
// routes it. Frames that name their own channel and pair are routed by
// that identity; the rest (heartbeats, system status) go to conn.
//
// Malformed frames are logged, counted and dropped.
func (d *Dispatcher) Dispatch(conn Identity, data []byte) Verdict {
	d.received.Add(1)

	msg, err := kraken.Parse(data)
	if err != nil {
		d.parseErrors.Add(1)
		d.metrics.ObserveParseError()
		d.logger.Warn("dropping malformed frame",
			"identity", conn.String(),
			"error", err,
		)
		return VerdictOK
	}

	id := conn
	if msg.Channel != "" && msg.Pair != "" {
		id = Identity{Channel: kraken.ChannelBase(msg.Channel), Symbol: msg.Pair}
	}

	e := d.lookup(id)
	if e == nil {
		d.unroutable.Add(1)
		d.metrics.ObserveUnroutable()
		d.logger.Debug("no handler for frame",
			"identity", id.String(),
			"kind", msg.Kind.String(),
		)
		return VerdictOK
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped.Load() {
		return VerdictOK
	}

	d.metrics.ObserveMessage(id.String(), msg.Kind.String())

	switch msg.Kind {
	case kraken.KindSnapshot:
		d.snapshots.Add(1)
		return d.applySnapshot(id, e, msg)
	case kraken.KindDelta:
		d.deltas.Add(1)
		return d.applyDelta(id, e, msg)
	default:
		d.events.Add(1)
		e.handler.OnEvent(id, msg.Event)
		return VerdictOK
	}
}

// applySnapshot replaces the replica. Must be called with e.mu held.
func (d *Dispatcher) applySnapshot(id Identity, e *entry, msg kraken.Message) Verdict {
	r := book.NewFromSnapshot(msg.Asks, msg.Bids)
	if err := r.CheckCrossed(); err != nil {
		return d.corrupt(id, e, err)
	}
	e.replica = r
	d.observeBook(id, r)
	e.handler.OnSnapshot(id, r)
	return VerdictOK
}

// applyDelta mutates the replica in place. Must be called with e.mu held.
func (d *Dispatcher) applyDelta(id Identity, e *entry, msg kraken.Message) Verdict {
	if e.replica == nil {
		d.consistencyErrors.Add(1)
		d.metrics.ObserveConsistencyError(id.String(), "out_of_order")
		e.handler.OnError(id, fmt.Errorf("%s: %w", id, ErrOutOfOrderDelta))
		return VerdictOK
	}

	if err := e.replica.Apply(msg.Delta()); err != nil {
		return d.corrupt(id, e, err)
	}
	e.replica.Truncate(kraken.ChannelDepth(msg.Channel))
	d.observeBook(id, e.replica)
	e.handler.OnUpdate(id, e.replica)
	return VerdictOK
}

// corrupt halts the replica after a consistency violation. Must be called
// with e.mu held.
func (d *Dispatcher) corrupt(id Identity, e *entry, err error) Verdict {
	reason := "unknown"
	switch {
	case errors.Is(err, book.ErrCrossedBook):
		reason = "crossed"
	case errors.Is(err, book.ErrRemoveNonexistentLevel):
		reason = "remove_nonexistent"
	}

	d.consistencyErrors.Add(1)
	d.metrics.ObserveConsistencyError(id.String(), reason)
	d.logger.Error("book consistency violation, replica halted",
		"identity", id.String(),
		"reason", reason,
		"error", err,
	)

	e.replica = nil
	e.handler.OnError(id, fmt.Errorf("%s: %w", id, err))
	return VerdictResync
}

func (d *Dispatcher) observeBook(id Identity, r *book.Replica) {
	if d.metrics == nil {
		return
	}
	ts, _ := r.LastUpdate()
	d.metrics.SetBook(id.String(), ts, r.Bids().Len(), r.Asks().Len())
}
