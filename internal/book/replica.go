package book

import (
	"github.com/shopspring/decimal"
)

// Entry is one price level change as carried on the wire.
type Entry struct {
	Price     decimal.Decimal
	Volume    decimal.Decimal
	Timestamp float64 // Seconds since epoch, ordering only
	Remove    bool    // Volume was the zero sentinel: delete the level
}

// Delta is the set of changes carried by one message.
// Asks are applied before bids.
type Delta struct {
	Asks []Entry
	Bids []Entry
}

// Replica is a local copy of one instrument's order book.
type Replica struct {
	bids       *LevelMap
	asks       *LevelMap
	lastUpdate float64
	hasUpdate  bool
}

// NewReplica creates an empty replica.
func NewReplica() *Replica {
	return &Replica{
		bids: NewLevelMap(Bid),
		asks: NewLevelMap(Ask),
	}
}

// NewFromSnapshot builds a replica from a full snapshot.
func NewFromSnapshot(asks, bids []Entry) *Replica {
	r := NewReplica()
	r.LoadSnapshot(asks, bids)
	return r
}

// LoadSnapshot replaces both sides wholesale. LastUpdate becomes the
// maximum timestamp across all entries.
func (r *Replica) LoadSnapshot(asks, bids []Entry) {
	r.asks = NewLevelMap(Ask)
	r.bids = NewLevelMap(Bid)
	r.lastUpdate = 0
	r.hasUpdate = false

	for _, e := range asks {
		r.asks.Set(e.Price, e.Volume)
		r.observe(e.Timestamp)
	}
	for _, e := range bids {
		r.bids.Set(e.Price, e.Volume)
		r.observe(e.Timestamp)
	}
}

// ApplyDelta applies changes to one side. On error the side is unchanged.
func (r *Replica) ApplyDelta(side Side, entries []Entry) error {
	staged, ts, err := stage(r.levels(side), entries)
	if err != nil {
		return err
	}
	r.swap(side, staged)
	r.observe(ts)
	return nil
}

// Apply applies one message's batch: asks first, then bids. Either both
// sides change or neither does. The crossed check runs once, after the
// whole batch, and is reported as a *CrossedBookError.
func (r *Replica) Apply(d Delta) error {
	var asks, bids *LevelMap
	var askTs, bidTs float64
	var err error

	if len(d.Asks) > 0 {
		if asks, askTs, err = stage(r.asks, d.Asks); err != nil {
			return err
		}
	}
	if len(d.Bids) > 0 {
		if bids, bidTs, err = stage(r.bids, d.Bids); err != nil {
			return err
		}
	}

	if asks != nil {
		r.asks = asks
		r.observe(askTs)
	}
	if bids != nil {
		r.bids = bids
		r.observe(bidTs)
	}

	return r.CheckCrossed()
}

// stage applies entries to a copy of m and returns it with the highest
// timestamp seen.
func stage(m *LevelMap, entries []Entry) (*LevelMap, float64, error) {
	staged := m.Clone()
	var maxTs float64
	for _, e := range entries {
		if e.Remove {
			if err := staged.Remove(e.Price); err != nil {
				return nil, 0, &RemoveError{Side: m.side, Price: e.Price}
			}
		} else {
			staged.Set(e.Price, e.Volume)
		}
		if e.Timestamp > maxTs {
			maxTs = e.Timestamp
		}
	}
	return staged, maxTs, nil
}

func (r *Replica) swap(side Side, m *LevelMap) {
	if side == Bid {
		r.bids = m
	} else {
		r.asks = m
	}
}

func (r *Replica) levels(side Side) *LevelMap {
	if side == Bid {
		return r.bids
	}
	return r.asks
}

// observe advances lastUpdate. Zero timestamps carry no information.
func (r *Replica) observe(ts float64) {
	if ts <= 0 {
		return
	}
	if !r.hasUpdate || ts > r.lastUpdate {
		r.lastUpdate = ts
		r.hasUpdate = true
	}
}

// IsCrossed reports whether best ask is below best bid.
// A book with an empty side is never crossed.
func (r *Replica) IsCrossed() bool {
	bid, okBid := r.bids.Best()
	ask, okAsk := r.asks.Best()
	if !okBid || !okAsk {
		return false
	}
	return ask.Price.LessThan(bid.Price)
}

// CheckCrossed returns a *CrossedBookError when the book is crossed.
func (r *Replica) CheckCrossed() error {
	if !r.IsCrossed() {
		return nil
	}
	bid, _ := r.bids.Best()
	ask, _ := r.asks.Best()
	return &CrossedBookError{
		BestBid:    bid.Price,
		BestAsk:    ask.Price,
		LastUpdate: r.lastUpdate,
	}
}

// Bids returns the bid side.
func (r *Replica) Bids() *LevelMap { return r.bids }

// Asks returns the ask side.
func (r *Replica) Asks() *LevelMap { return r.asks }

// BestBid returns the highest bid.
func (r *Replica) BestBid() (Level, bool) { return r.bids.Best() }

// BestAsk returns the lowest ask.
func (r *Replica) BestAsk() (Level, bool) { return r.asks.Best() }

// LastUpdate returns the newest timestamp applied. ok is false until a
// timestamped entry has been seen.
func (r *Replica) LastUpdate() (ts float64, ok bool) {
	return r.lastUpdate, r.hasUpdate
}

// Spread returns best ask minus best bid.
func (r *Replica) Spread() (decimal.Decimal, bool) {
	bid, okBid := r.bids.Best()
	ask, okAsk := r.asks.Best()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

// Mid returns the midpoint of best bid and best ask.
func (r *Replica) Mid() (decimal.Decimal, bool) {
	bid, okBid := r.bids.Best()
	ask, okAsk := r.asks.Best()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// Depth returns up to n levels per side, best first.
func (r *Replica) Depth(n int) (bids, asks []Level) {
	return r.bids.Levels(n), r.asks.Levels(n)
}

// Truncate keeps the best depth levels per side. A depth-limited feed
// does not send removals for levels pushed past its depth, so the owner
// trims after each update. depth <= 0 keeps everything.
func (r *Replica) Truncate(depth int) int {
	return r.bids.Truncate(depth) + r.asks.Truncate(depth)
}

// Clone returns an independent copy safe to hand to other goroutines.
func (r *Replica) Clone() *Replica {
	return &Replica{
		bids:       r.bids.Clone(),
		asks:       r.asks.Clone(),
		lastUpdate: r.lastUpdate,
		hasUpdate:  r.hasUpdate,
	}
}
