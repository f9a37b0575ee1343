package book

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func set(price, volume string, ts float64) Entry {
	return Entry{Price: d(price), Volume: d(volume), Timestamp: ts}
}

func del(price string, ts float64) Entry {
	return Entry{Price: d(price), Volume: decimal.Zero, Timestamp: ts, Remove: true}
}

func TestLevelMap_Ordering(t *testing.T) {
	prices := []string{"100.5", "99.1", "101", "100.25", "98"}

	asks := NewLevelMap(Ask)
	bids := NewLevelMap(Bid)
	for _, p := range prices {
		asks.Set(d(p), d("1"))
		bids.Set(d(p), d("1"))
	}

	best, ok := asks.Best()
	require.True(t, ok)
	assert.True(t, best.Price.Equal(d("98")), "best ask = %s", best.Price)

	best, ok = bids.Best()
	require.True(t, ok)
	assert.True(t, best.Price.Equal(d("101")), "best bid = %s", best.Price)

	askLevels := asks.Levels(0)
	require.Len(t, askLevels, len(prices))
	for i := 1; i < len(askLevels); i++ {
		assert.True(t, askLevels[i-1].Price.LessThan(askLevels[i].Price))
	}

	bidLevels := bids.Levels(3)
	require.Len(t, bidLevels, 3)
	assert.True(t, bidLevels[0].Price.Equal(d("101")))
	assert.True(t, bidLevels[1].Price.Equal(d("100.5")))
	assert.True(t, bidLevels[2].Price.Equal(d("100.25")))
}

func TestLevelMap_SetOverwrites(t *testing.T) {
	m := NewLevelMap(Ask)
	m.Set(d("10"), d("1"))
	m.Set(d("10.000"), d("2.5"))

	assert.Equal(t, 1, m.Len())
	lvl, ok := m.Get(d("10"))
	require.True(t, ok)
	assert.True(t, lvl.Volume.Equal(d("2.5")))
}

func TestLevelMap_RemoveMissing(t *testing.T) {
	m := NewLevelMap(Bid)
	m.Set(d("10"), d("1"))

	err := m.Remove(d("11"))
	assert.ErrorIs(t, err, ErrLevelNotFound)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Remove(d("10")))
	_, ok := m.Best()
	assert.False(t, ok)
}

func TestLevelMap_CloneIsIndependent(t *testing.T) {
	m := NewLevelMap(Ask)
	m.Set(d("1"), d("1"))

	c := m.Clone()
	c.Set(d("0.5"), d("3"))
	require.NoError(t, c.Remove(d("1")))

	assert.Equal(t, 1, m.Len())
	best, _ := m.Best()
	assert.True(t, best.Price.Equal(d("1")))
}

func TestReplica_SnapshotExample(t *testing.T) {
	r := NewFromSnapshot(
		[]Entry{set("100.5", "2.0", 1)},
		[]Entry{set("100.0", "3.0", 1)},
	)

	ask, ok := r.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Price.Equal(d("100.5")))

	bid, ok := r.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Price.Equal(d("100.0")))

	assert.False(t, r.IsCrossed())

	spread, ok := r.Spread()
	require.True(t, ok)
	assert.True(t, spread.Equal(d("0.5")))

	mid, ok := r.Mid()
	require.True(t, ok)
	assert.True(t, mid.Equal(d("100.25")))
}

func TestReplica_SnapshotBestIsExtremal(t *testing.T) {
	asks := []Entry{set("105", "1", 3), set("101", "1", 7), set("103", "1", 2)}
	bids := []Entry{set("97", "1", 1), set("100", "1", 4), set("99", "1", 5)}

	r := NewFromSnapshot(asks, bids)

	ask, _ := r.BestAsk()
	bid, _ := r.BestBid()
	assert.True(t, ask.Price.Equal(d("101")))
	assert.True(t, bid.Price.Equal(d("100")))

	ts, ok := r.LastUpdate()
	require.True(t, ok)
	assert.Equal(t, 7.0, ts)
}

func TestReplica_LoadSnapshotReplaces(t *testing.T) {
	r := NewFromSnapshot([]Entry{set("10", "1", 5)}, []Entry{set("9", "1", 5)})
	r.LoadSnapshot([]Entry{set("20", "1", 2)}, nil)

	assert.Equal(t, 1, r.Asks().Len())
	assert.Equal(t, 0, r.Bids().Len())
	ts, _ := r.LastUpdate()
	assert.Equal(t, 2.0, ts)
}

func TestReplica_RemoveEmptiesSide(t *testing.T) {
	r := NewFromSnapshot(
		[]Entry{set("100.5", "2.0", 1)},
		[]Entry{set("100.0", "3.0", 1)},
	)

	err := r.Apply(Delta{Asks: []Entry{del("100.5", 2)}})
	require.NoError(t, err)

	_, ok := r.BestAsk()
	assert.False(t, ok, "ask side should be empty")
	assert.False(t, r.IsCrossed())

	ts, _ := r.LastUpdate()
	assert.Equal(t, 2.0, ts)
}

func TestReplica_RemoveNonexistentLeavesBookUnchanged(t *testing.T) {
	r := NewFromSnapshot(
		[]Entry{set("100.5", "2.0", 1), set("101", "1", 1)},
		[]Entry{set("100.0", "3.0", 1)},
	)

	err := r.Apply(Delta{
		Asks: []Entry{set("100.7", "4", 5), del("100.6", 5)},
		Bids: []Entry{set("99", "1", 5)},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoveNonexistentLevel))

	var re *RemoveError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, Ask, re.Side)
	assert.True(t, re.Price.Equal(d("100.6")))

	assert.Equal(t, 2, r.Asks().Len())
	assert.Equal(t, 1, r.Bids().Len())
	_, found := r.Asks().Get(d("100.7"))
	assert.False(t, found)
	ts, _ := r.LastUpdate()
	assert.Equal(t, 1.0, ts)
}

func TestReplica_BidFailureRollsBackAsks(t *testing.T) {
	r := NewFromSnapshot([]Entry{set("10", "1", 1)}, []Entry{set("9", "1", 1)})

	err := r.Apply(Delta{
		Asks: []Entry{set("11", "1", 2)},
		Bids: []Entry{del("8", 2)},
	})
	require.ErrorIs(t, err, ErrRemoveNonexistentLevel)
	assert.Equal(t, 1, r.Asks().Len())
}

func TestReplica_ApplyDeltaSingleSide(t *testing.T) {
	r := NewFromSnapshot([]Entry{set("10", "1", 1)}, []Entry{set("9", "1", 1)})

	require.NoError(t, r.ApplyDelta(Bid, []Entry{set("9.5", "2", 3), del("9", 2)}))
	bid, _ := r.BestBid()
	assert.True(t, bid.Price.Equal(d("9.5")))
	assert.Equal(t, 1, r.Bids().Len())

	err := r.ApplyDelta(Bid, []Entry{del("9", 4)})
	assert.ErrorIs(t, err, ErrRemoveNonexistentLevel)
	ts, _ := r.LastUpdate()
	assert.Equal(t, 3.0, ts)
}

func TestReplica_LastUpdateMonotonic(t *testing.T) {
	r := NewFromSnapshot([]Entry{set("10", "1", 5)}, []Entry{set("9", "1", 5)})

	deltas := []Delta{
		{Asks: []Entry{set("10", "2", 6)}},
		{Bids: []Entry{set("9", "2", 4)}}, // older timestamp must not regress
		{Asks: []Entry{set("11", "1", 6.5)}, Bids: []Entry{set("8", "1", 3)}},
		{Asks: []Entry{del("11", 0)}},
		{Bids: []Entry{set("8.5", "1", 9)}},
	}

	prev, _ := r.LastUpdate()
	for i, delta := range deltas {
		require.NoError(t, r.Apply(delta), "delta %d", i)
		ts, _ := r.LastUpdate()
		assert.GreaterOrEqual(t, ts, prev, "delta %d regressed lastUpdate", i)
		prev = ts
	}
	assert.Equal(t, 9.0, prev)
}

func TestReplica_CrossedDetectedAfterBatch(t *testing.T) {
	r := NewFromSnapshot([]Entry{set("101", "1", 1)}, []Entry{set("100", "1", 1)})

	// Mid-batch the book is crossed (ask 99.5 < bid 100) but the bid removal
	// in the same message resolves it.
	err := r.Apply(Delta{
		Asks: []Entry{set("99.5", "1", 2)},
		Bids: []Entry{del("100", 2), set("99", "1", 2)},
	})
	require.NoError(t, err)
	assert.False(t, r.IsCrossed())

	err = r.Apply(Delta{Bids: []Entry{set("99.9", "1", 3)}})
	require.Error(t, err)
	assert.True(t, r.IsCrossed())

	var ce *CrossedBookError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.BestAsk.Equal(d("99.5")))
	assert.True(t, ce.BestBid.Equal(d("99.9")))
	assert.ErrorIs(t, err, ErrCrossedBook)
}

func TestReplica_LockedBookIsNotCrossed(t *testing.T) {
	r := NewFromSnapshot([]Entry{set("100", "1", 1)}, []Entry{set("100", "1", 1)})
	assert.False(t, r.IsCrossed())
	assert.NoError(t, r.CheckCrossed())
}

func TestReplica_ExactDecimalComparison(t *testing.T) {
	// 0.1+0.2 style rounding must not matter.
	r := NewFromSnapshot(
		[]Entry{set("0.30000000", "1", 1)},
		[]Entry{set("0.29999999", "1", 1)},
	)
	assert.False(t, r.IsCrossed())

	require.NoError(t, r.Apply(Delta{Bids: []Entry{set("0.30000000", "1", 2)}}))
	assert.False(t, r.IsCrossed())
}

func TestReplica_CloneIsIndependent(t *testing.T) {
	r := NewFromSnapshot([]Entry{set("10", "1", 1)}, []Entry{set("9", "1", 1)})
	c := r.Clone()

	require.NoError(t, r.Apply(Delta{Asks: []Entry{del("10", 2)}}))

	_, ok := c.BestAsk()
	assert.True(t, ok)
	ts, _ := c.LastUpdate()
	assert.Equal(t, 1.0, ts)
}

func TestReplica_Depth(t *testing.T) {
	r := NewFromSnapshot(
		[]Entry{set("12", "1", 1), set("11", "1", 1), set("13", "1", 1)},
		[]Entry{set("8", "1", 1), set("9", "1", 1)},
	)

	bids, asks := r.Depth(2)
	require.Len(t, bids, 2)
	require.Len(t, asks, 2)
	assert.True(t, bids[0].Price.Equal(d("9")))
	assert.True(t, asks[0].Price.Equal(d("11")))
	assert.True(t, asks[1].Price.Equal(d("12")))
}

func TestReplica_TruncateDropsWorstLevels(t *testing.T) {
	r := NewFromSnapshot(
		[]Entry{set("11", "1", 1), set("12", "1", 1)},
		[]Entry{set("9", "1", 1), set("8", "1", 1)},
	)
	c := r.Clone()

	require.NoError(t, r.Apply(Delta{
		Asks: []Entry{set("10.5", "1", 2)},
		Bids: []Entry{set("9.5", "1", 2)},
	}))
	assert.Equal(t, 2, r.Truncate(2))

	bids, asks := r.Depth(0)
	require.Len(t, bids, 2)
	require.Len(t, asks, 2)
	assert.True(t, bids[0].Price.Equal(d("9.5")))
	assert.True(t, bids[1].Price.Equal(d("9")))
	assert.True(t, asks[0].Price.Equal(d("10.5")))
	assert.True(t, asks[1].Price.Equal(d("11")))

	assert.Zero(t, r.Truncate(0), "no depth keeps everything")
	assert.Zero(t, r.Truncate(5))
	assert.Equal(t, 2, c.Asks().Len(), "clone unaffected")
	assert.Equal(t, 2, c.Bids().Len())
}

func TestSide_String(t *testing.T) {
	assert.Equal(t, "bid", Bid.String())
	assert.Equal(t, "ask", Ask.String())
}
