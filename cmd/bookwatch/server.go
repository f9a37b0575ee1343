package main

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/krakenbook/internal/connection"
	"github.com/rickgao/krakenbook/internal/dispatch"
	"github.com/rickgao/krakenbook/internal/journal"
	"github.com/rickgao/krakenbook/internal/version"
)

// pinger is the health probe for the journal database.
type pinger interface {
	Ping(ctx context.Context) error
}

// serverDeps is everything the HTTP handlers read from.
type serverDeps struct {
	manager     connection.Manager
	dispatcher  *dispatch.Dispatcher
	journal     *journal.Writer // nil when disabled
	db          pinger          // nil when disabled
	gatherer    prometheus.Gatherer
	metricsPath string
	depth       int
	logger      *slog.Logger
}

type bookLevel [2]string // price, volume

type bookView struct {
	Identity   string      `json:"identity"`
	State      string      `json:"state"`
	ConnID     string      `json:"conn_id,omitempty"`
	Synced     bool        `json:"synced"`
	LastUpdate float64     `json:"last_update,omitempty"`
	Bids       []bookLevel `json:"bids"`
	Asks       []bookLevel `json:"asks"`
}

// newHandler creates the HTTP handler for health, books and metrics.
func newHandler(deps serverDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		stats := deps.manager.Stats()
		health := struct {
			Status     string         `json:"status"`
			Version    string         `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.String(),
			Components: make(map[string]any),
		}

		health.Components["connections"] = map[string]int{
			"subscriptions": stats.Subscriptions,
			"connected":     stats.Connected,
			"reconnecting":  stats.Reconnecting,
			"exhausted":     stats.Exhausted,
		}
		switch {
		case stats.Subscriptions > 0 && stats.Connected == 0:
			health.Status = "unhealthy"
		case stats.Connected < stats.Subscriptions:
			health.Status = "degraded"
		}

		health.Components["dispatcher"] = deps.dispatcher.Stats()

		if deps.journal != nil {
			health.Components["journal"] = deps.journal.Stats()
		}
		if deps.db != nil {
			if err := deps.db.Ping(ctx); err != nil {
				if health.Status == "healthy" {
					health.Status = "degraded"
				}
				health.Components["journal_db"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["journal_db"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			deps.logger.Warn("write health response", "error", err)
		}
	})

	mux.HandleFunc("/debug/books", func(w http.ResponseWriter, r *http.Request) {
		views := collectBooks(deps.manager, deps.dispatcher, deps.depth)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"count": len(views),
			"books": views,
		}); err != nil {
			deps.logger.Warn("write books response", "error", err)
		}
	})

	mux.Handle(deps.metricsPath, promhttp.HandlerFor(deps.gatherer, promhttp.HandlerOpts{}))

	return mux
}

// collectBooks renders every subscribed book, sorted by identity.
func collectBooks(m connection.Manager, d *dispatch.Dispatcher, depth int) []bookView {
	var views []bookView
	for _, s := range m.Sessions() {
		state := s.State().String()
		connID := s.ConnID()
		for _, id := range s.Identities() {
			v := bookView{
				Identity: id.String(),
				State:    state,
				ConnID:   connID,
				Bids:     []bookLevel{},
				Asks:     []bookLevel{},
			}
			if r, ok := d.Snapshot(id); ok {
				v.Synced = true
				v.LastUpdate, _ = r.LastUpdate()
				bids, asks := r.Depth(depth)
				for _, l := range bids {
					v.Bids = append(v.Bids, bookLevel{l.Price.String(), l.Volume.String()})
				}
				for _, l := range asks {
					v.Asks = append(v.Asks, bookLevel{l.Price.String(), l.Volume.String()})
				}
			}
			views = append(views, v)
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Identity < views[j].Identity })
	return views
}
