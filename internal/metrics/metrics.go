package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "krakenbook"

// States in the order they are exported on the connection_state gauge.
var States = []string{"disconnected", "connecting", "connected", "reconnecting", "stopped"}

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Messages          *prometheus.CounterVec
	ParseErrors       prometheus.Counter
	Unroutable        prometheus.Counter
	ConsistencyErrors *prometheus.CounterVec
	Reconnects        *prometheus.CounterVec
	ConnectionState   *prometheus.GaugeVec
	BookLastUpdate    *prometheus.GaugeVec
	BookLevels        *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Frames dispatched, by subscription and kind.",
		}, []string{"identity", "kind"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Frames dropped because they could not be decoded.",
		}),
		Unroutable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unroutable_total",
			Help:      "Frames for identities with no registered handler.",
		}),
		ConsistencyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consistency_errors_total",
			Help:      "Book consistency violations, by subscription and reason.",
		}, []string{"identity", "reason"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Reconnect attempts scheduled, by subscription.",
		}, []string{"identity"}),
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state of a subscription, 0 otherwise.",
		}, []string{"identity", "state"}),
		BookLastUpdate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_last_update_seconds",
			Help:      "Newest exchange timestamp applied to the replica.",
		}, []string{"identity"}),
		BookLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_levels",
			Help:      "Price levels held by the replica, by side.",
		}, []string{"identity", "side"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Messages,
			m.ParseErrors,
			m.Unroutable,
			m.ConsistencyErrors,
			m.Reconnects,
			m.ConnectionState,
			m.BookLastUpdate,
			m.BookLevels,
		)
	}
	return m
}

// ObserveMessage counts one dispatched frame.
func (m *Metrics) ObserveMessage(identity, kind string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(identity, kind).Inc()
}

// ObserveParseError counts one undecodable frame.
func (m *Metrics) ObserveParseError() {
	if m == nil {
		return
	}
	m.ParseErrors.Inc()
}

// ObserveUnroutable counts one frame nobody was registered for.
func (m *Metrics) ObserveUnroutable() {
	if m == nil {
		return
	}
	m.Unroutable.Inc()
}

// ObserveConsistencyError counts one violation.
func (m *Metrics) ObserveConsistencyError(identity, reason string) {
	if m == nil {
		return
	}
	m.ConsistencyErrors.WithLabelValues(identity, reason).Inc()
}

// ObserveReconnect counts one scheduled reconnect.
func (m *Metrics) ObserveReconnect(identity string) {
	if m == nil {
		return
	}
	m.Reconnects.WithLabelValues(identity).Inc()
}

// SetState marks state as current for identity.
func (m *Metrics) SetState(identity, state string) {
	if m == nil {
		return
	}
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(identity, s).Set(v)
	}
}

// SetBook records replica freshness and size.
func (m *Metrics) SetBook(identity string, lastUpdate float64, bids, asks int) {
	if m == nil {
		return
	}
	m.BookLastUpdate.WithLabelValues(identity).Set(lastUpdate)
	m.BookLevels.WithLabelValues(identity, "bid").Set(float64(bids))
	m.BookLevels.WithLabelValues(identity, "ask").Set(float64(asks))
}

// Forget drops all series for identity.
func (m *Metrics) Forget(identity string) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"identity": identity}
	m.Messages.DeletePartialMatch(labels)
	m.ConsistencyErrors.DeletePartialMatch(labels)
	m.Reconnects.DeletePartialMatch(labels)
	m.ConnectionState.DeletePartialMatch(labels)
	m.BookLastUpdate.DeletePartialMatch(labels)
	m.BookLevels.DeletePartialMatch(labels)
}
