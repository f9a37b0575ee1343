package book

import "github.com/shopspring/decimal"

// Side identifies one side of the book.
type Side int

const (
	Bid Side = iota
	Ask
)

// String returns "bid" or "ask".
func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

// Better reports whether price a ranks ahead of price b on this side.
// Asks rank low-to-high, bids high-to-low.
func (s Side) Better(a, b decimal.Decimal) bool {
	if s == Bid {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}
