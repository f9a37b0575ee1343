// streamtest subscribes to one Kraken book and prints every update.
// Usage: go run ./cmd/streamtest --pair XBT/USD --depth 10
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/rickgao/krakenbook/internal/config"
	"github.com/rickgao/krakenbook/internal/connection"
	"github.com/rickgao/krakenbook/internal/dispatch"
	"github.com/rickgao/krakenbook/internal/kraken"
	"github.com/rickgao/krakenbook/internal/logging"
)

func main() {
	url := flag.String("url", kraken.PublicURL, "websocket endpoint")
	pair := flag.String("pair", "XBT/USD", "pair to subscribe")
	depth := flag.Int("depth", 10, "book depth (10, 25, 100, 500, 1000)")
	levels := flag.Int("levels", 3, "levels per side to print on snapshots")
	verbose := flag.Bool("verbose", false, "print raw event JSON")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	lg, err := logging.NewWithWriter(config.LoggingConfig{Level: *logLevel, Format: "console"}, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "streamtest: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	logger := lg.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := dispatch.New(logger, nil)
	cfg := connection.DefaultManagerConfig()
	cfg.URL = *url
	cfg.ResyncOnCorruption = true
	cfg.OnTransition = func(t connection.Transition) {
		logger.Info("state",
			"from", t.From.String(),
			"to", t.To.String(),
			"conn_id", t.ConnID,
			"retries", t.Retries,
		)
	}
	mgr := connection.NewManager(cfg, d, logger)

	updates := dispatch.NewUpdates(256, 0)
	if _, err := mgr.Subscribe(ctx, kraken.NewSubscribe("book", *depth, *pair), updates); err != nil {
		logger.Error("subscribe failed", "error", err)
		os.Exit(1)
	}

	p := printer{out: os.Stdout, levels: *levels, verbose: *verbose}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			u, ok := updates.Next()
			if !ok {
				return
			}
			p.print(u)
		}
	}()

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ds := d.Stats()
				qs := updates.Stats()
				logger.Info("stats",
					"received", ds.MessagesReceived,
					"snapshots", ds.Snapshots,
					"deltas", ds.Deltas,
					"parse_errors", ds.ParseErrors,
					"consistency_errors", ds.ConsistencyErrors,
					"queued", qs.Count,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop", "pair", *pair, "url", *url)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down...")
	mgr.Stop(shutdownCtx)
	updates.Close()
	<-done
	logger.Info("shutdown complete")
}

// printer renders updates as one line each.
type printer struct {
	out     io.Writer
	levels  int
	verbose bool
}

func (p printer) print(u dispatch.Update) {
	switch u.Kind {
	case dispatch.UpdateSnapshot:
		bids, asks := u.Book.Depth(p.levels)
		fmt.Fprintf(p.out, "[SNAPSHOT] %s bids=%d asks=%d\n", u.Identity, u.Book.Bids().Len(), u.Book.Asks().Len())
		for i := range max(len(bids), len(asks)) {
			var bid, ask string
			if i < len(bids) {
				bid = bids[i].Volume.String() + " @ " + bids[i].Price.String()
			}
			if i < len(asks) {
				ask = asks[i].Volume.String() + " @ " + asks[i].Price.String()
			}
			fmt.Fprintf(p.out, "    %-32s | %s\n", bid, ask)
		}

	case dispatch.UpdateBook:
		bid, _ := u.Book.BestBid()
		ask, _ := u.Book.BestAsk()
		spread, _ := u.Book.Spread()
		fmt.Fprintf(p.out, "[UPDATE] %s bid=%s ask=%s spread=%s\n", u.Identity, bid.Price, ask.Price, spread)

	case dispatch.UpdateEvent:
		if p.verbose {
			var pretty any
			if err := json.Unmarshal(u.Event.Raw, &pretty); err == nil {
				data, _ := json.MarshalIndent(pretty, "", "  ")
				fmt.Fprintf(p.out, "[EVENT] %s %s\n", u.Identity, data)
				return
			}
		}
		fmt.Fprintf(p.out, "[EVENT] %s event=%s status=%s\n", u.Identity, u.Event.Name, u.Event.Status)

	case dispatch.UpdateError:
		fmt.Fprintf(p.out, "[ERROR] %s %v\n", u.Identity, u.Err)
	}
}
