package dispatch

import (
	"github.com/rickgao/krakenbook/internal/kraken"
)

// Identity keys a logical stream: (channel name, symbol).
type Identity struct {
	Channel string // Base channel name, e.g. "book"
	Symbol  string // Pair, e.g. "XBT/USD"; empty for pairless channels
}

// String renders "channel_symbol", e.g. "book_XBT/USD".
func (id Identity) String() string {
	if id.Symbol == "" {
		return id.Channel
	}
	return id.Channel + "_" + id.Symbol
}

// IdentityOf returns the identity of the request's first pair.
func IdentityOf(req kraken.SubscribeRequest) Identity {
	return Identity{Channel: req.Subscription.Name, Symbol: req.Symbol()}
}

// IdentitiesOf returns one identity per pair in the request.
func IdentitiesOf(req kraken.SubscribeRequest) []Identity {
	if len(req.Pair) == 0 {
		return []Identity{{Channel: req.Subscription.Name}}
	}
	ids := make([]Identity, 0, len(req.Pair))
	for _, p := range req.Pair {
		ids = append(ids, Identity{Channel: req.Subscription.Name, Symbol: p})
	}
	return ids
}
