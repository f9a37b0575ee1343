package dispatch

import (
	"github.com/rickgao/krakenbook/internal/book"
	"github.com/rickgao/krakenbook/internal/kraken"
)

// UpdateKind says which callback produced an Update.
type UpdateKind int

const (
	UpdateSnapshot UpdateKind = iota + 1
	UpdateBook
	UpdateEvent
	UpdateError
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateSnapshot:
		return "snapshot"
	case UpdateBook:
		return "update"
	case UpdateEvent:
		return "event"
	case UpdateError:
		return "error"
	default:
		return "unknown"
	}
}

// Update is one handler callback captured for asynchronous consumption.
type Update struct {
	Identity Identity
	Kind     UpdateKind
	Book     *book.Replica // Clone, set for UpdateSnapshot and UpdateBook
	Event    kraken.Event  // Set for UpdateEvent
	Err      error         // Set for UpdateError
}

// Updates is a Handler that queues every callback for a consumer goroutine.
// Books are cloned so the consumer never touches the live replica. Nothing
// is dropped: when the queue reaches its limit the reader waits.
type Updates struct {
	queue *Queue[Update]
}

// NewUpdates creates a queueing handler.
func NewUpdates(initialCapacity, limit int) *Updates {
	return &Updates{queue: NewQueue[Update](initialCapacity, limit)}
}

func (u *Updates) OnSnapshot(id Identity, r *book.Replica) {
	u.queue.Send(Update{Identity: id, Kind: UpdateSnapshot, Book: r.Clone()})
}

func (u *Updates) OnUpdate(id Identity, r *book.Replica) {
	u.queue.Send(Update{Identity: id, Kind: UpdateBook, Book: r.Clone()})
}

func (u *Updates) OnEvent(id Identity, ev kraken.Event) {
	u.queue.Send(Update{Identity: id, Kind: UpdateEvent, Event: ev})
}

func (u *Updates) OnError(id Identity, err error) {
	u.queue.Send(Update{Identity: id, Kind: UpdateError, Err: err})
}

// Next blocks for the next update. Returns false after Close once drained.
func (u *Updates) Next() (Update, bool) {
	return u.queue.Receive()
}

// Close stops accepting updates and wakes the consumer.
func (u *Updates) Close() {
	u.queue.Close()
}

// Stats returns queue statistics.
func (u *Updates) Stats() QueueStats {
	return u.queue.Stats()
}
