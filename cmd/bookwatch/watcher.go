package main

import (
	"log/slog"

	"github.com/rickgao/krakenbook/internal/book"
	"github.com/rickgao/krakenbook/internal/config"
	"github.com/rickgao/krakenbook/internal/dispatch"
	"github.com/rickgao/krakenbook/internal/journal"
)

// watcher consumes the updates of one subscription on its own goroutine.
// It logs top of book, journals incidents and applies the corruption policy.
type watcher struct {
	updates *dispatch.Updates
	policy  string
	journal *journal.Writer // nil when the journal is disabled
	abort   func()
	logger  *slog.Logger

	// halted identities wait for a snapshot. Out-of-order deltas for them
	// are expected and not journaled again.
	halted map[dispatch.Identity]bool
}

func newWatcher(updates *dispatch.Updates, policy string, j *journal.Writer, abort func(), logger *slog.Logger) *watcher {
	return &watcher{
		updates: updates,
		policy:  policy,
		journal: j,
		abort:   abort,
		logger:  logger,
		halted:  make(map[dispatch.Identity]bool),
	}
}

// run consumes until the updates queue is closed and drained.
func (w *watcher) run() error {
	for {
		u, ok := w.updates.Next()
		if !ok {
			return nil
		}
		w.handle(u)
	}
}

func (w *watcher) handle(u dispatch.Update) {
	switch u.Kind {
	case dispatch.UpdateSnapshot:
		if w.halted[u.Identity] {
			delete(w.halted, u.Identity)
			w.logger.Info("book resynchronized", "identity", u.Identity.String())
		}
		w.logger.Info("book snapshot",
			append([]any{
				"identity", u.Identity.String(),
				"bids", u.Book.Bids().Len(),
				"asks", u.Book.Asks().Len(),
			}, topOfBook(u.Book)...)...,
		)

	case dispatch.UpdateBook:
		w.logger.Debug("top of book",
			append([]any{"identity", u.Identity.String()}, topOfBook(u.Book)...)...,
		)

	case dispatch.UpdateEvent:
		if u.Event.IsError() {
			w.logger.Warn("server error event",
				"identity", u.Identity.String(),
				"event", u.Event.Name,
				"message", u.Event.ErrorMessage,
			)
			return
		}
		w.logger.Debug("event",
			"identity", u.Identity.String(),
			"event", u.Event.Name,
			"status", u.Event.Status,
		)

	case dispatch.UpdateError:
		w.handleError(u.Identity, u.Err)
	}
}

func (w *watcher) handleError(id dispatch.Identity, err error) {
	kind := journal.Classify(err)

	switch kind {
	case journal.KindConsistency:
		w.halted[id] = true
		w.record(journal.FromError(id, err))
		w.logger.Error("book corrupted",
			"identity", id.String(),
			"policy", w.policy,
			"error", err,
		)
		if w.policy == config.CorruptionAbort && w.abort != nil {
			w.abort()
		}

	case journal.KindOutOfOrder:
		if w.halted[id] {
			return
		}
		w.halted[id] = true
		w.record(journal.FromError(id, err))
		w.logger.Warn("delta before snapshot", "identity", id.String())

	case journal.KindExhausted:
		// The session journals its own transitions; exhaustion is recorded
		// here because the state does not change.
		w.record(journal.FromError(id, err))
		w.logger.Error("reconnect retries exhausted, subscription parked",
			"identity", id.String(),
		)

	default:
		w.record(journal.FromError(id, err))
		w.logger.Warn("stream error", "identity", id.String(), "error", err)
	}
}

func (w *watcher) record(inc journal.Incident) {
	if w.journal != nil {
		w.journal.Record(inc)
	}
}

// topOfBook renders best bid/ask and spread as log attributes.
func topOfBook(r *book.Replica) []any {
	attrs := make([]any, 0, 6)
	if bid, ok := r.BestBid(); ok {
		attrs = append(attrs, "bid", bid.Price.String(), "bid_volume", bid.Volume.String())
	}
	if ask, ok := r.BestAsk(); ok {
		attrs = append(attrs, "ask", ask.Price.String(), "ask_volume", ask.Volume.String())
	}
	if spread, ok := r.Spread(); ok {
		attrs = append(attrs, "spread", spread.String())
	}
	return attrs
}
