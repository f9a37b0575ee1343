package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveMessage("book_XBT/USD", "delta")
	m.ObserveMessage("book_XBT/USD", "delta")
	m.ObserveMessage("book_XBT/USD", "snapshot")
	m.ObserveParseError()
	m.ObserveConsistencyError("book_XBT/USD", "crossed")
	m.ObserveReconnect("book_XBT/USD")

	if got := testutil.ToFloat64(m.Messages.WithLabelValues("book_XBT/USD", "delta")); got != 2 {
		t.Errorf("delta messages = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ParseErrors); got != 1 {
		t.Errorf("parse errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ConsistencyErrors.WithLabelValues("book_XBT/USD", "crossed")); got != 1 {
		t.Errorf("consistency errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Reconnects.WithLabelValues("book_XBT/USD")); got != 1 {
		t.Errorf("reconnects = %v, want 1", got)
	}
}

func TestMetrics_SetStateIsExclusive(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetState("book_XBT/USD", "connecting")
	m.SetState("book_XBT/USD", "connected")

	for _, s := range States {
		want := 0.0
		if s == "connected" {
			want = 1
		}
		if got := testutil.ToFloat64(m.ConnectionState.WithLabelValues("book_XBT/USD", s)); got != want {
			t.Errorf("state %s = %v, want %v", s, got, want)
		}
	}
}

func TestMetrics_Forget(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetBook("book_XBT/USD", 1534614335.3, 10, 10)
	m.SetBook("book_ETH/USD", 1534614335.3, 10, 10)

	m.Forget("book_XBT/USD")

	if got := testutil.CollectAndCount(m.BookLevels); got != 2 {
		t.Errorf("book_levels series = %d, want 2", got)
	}
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveMessage("x", "delta")
	m.ObserveParseError()
	m.ObserveUnroutable()
	m.ObserveConsistencyError("x", "crossed")
	m.ObserveReconnect("x")
	m.SetState("x", "connected")
	m.SetBook("x", 1, 1, 1)
	m.Forget("x")
}
