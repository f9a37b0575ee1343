package dispatch

import (
	"github.com/rickgao/krakenbook/internal/book"
	"github.com/rickgao/krakenbook/internal/kraken"
)

// Handler receives the results of dispatching frames for one identity.
//
// Callbacks run on the connection's reader goroutine. The *book.Replica
// passed in is live: it is only valid for the duration of the call and
// must be cloned to be retained.
type Handler interface {
	// OnSnapshot is called with a freshly built replica.
	OnSnapshot(id Identity, r *book.Replica)

	// OnUpdate is called after a delta batch has been applied.
	OnUpdate(id Identity, r *book.Replica)

	// OnEvent receives control frames and non-book channel data verbatim.
	OnEvent(id Identity, ev kraken.Event)

	// OnError receives book consistency and protocol ordering errors.
	OnError(id Identity, err error)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Snapshot func(id Identity, r *book.Replica)
	Update   func(id Identity, r *book.Replica)
	Event    func(id Identity, ev kraken.Event)
	Error    func(id Identity, err error)
}

func (h HandlerFuncs) OnSnapshot(id Identity, r *book.Replica) {
	if h.Snapshot != nil {
		h.Snapshot(id, r)
	}
}

func (h HandlerFuncs) OnUpdate(id Identity, r *book.Replica) {
	if h.Update != nil {
		h.Update(id, r)
	}
}

func (h HandlerFuncs) OnEvent(id Identity, ev kraken.Event) {
	if h.Event != nil {
		h.Event(id, ev)
	}
}

func (h HandlerFuncs) OnError(id Identity, err error) {
	if h.Error != nil {
		h.Error(id, err)
	}
}
