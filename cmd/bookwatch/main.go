package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/krakenbook/internal/api"
	"github.com/rickgao/krakenbook/internal/config"
	"github.com/rickgao/krakenbook/internal/connection"
	"github.com/rickgao/krakenbook/internal/database"
	"github.com/rickgao/krakenbook/internal/dispatch"
	"github.com/rickgao/krakenbook/internal/journal"
	"github.com/rickgao/krakenbook/internal/kraken"
	"github.com/rickgao/krakenbook/internal/logging"
	"github.com/rickgao/krakenbook/internal/metrics"
	"github.com/rickgao/krakenbook/internal/version"
)

const (
	updatesInitialCapacity = 256
	updatesLimit           = 65536
	shutdownTimeout        = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "configs/bookwatch.yaml", "path to config file")
	envFile := flag.String("env", "", "optional .env file loaded before the config")
	watch := flag.Bool("watch-config", true, "apply logging.level changes without a restart")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "bookwatch: load env file: %v\n", err)
			os.Exit(1)
		}
	}

	if err := run(*configPath, *watch); err != nil {
		fmt.Fprintf(os.Stderr, "bookwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, watchConfig bool) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lg, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer lg.Sync()
	logger := lg.Logger
	slog.SetDefault(logger)

	logger.Info("starting bookwatch",
		append(version.LogAttrs(), "config", configPath, "instance_id", cfg.Instance.ID)...,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.API.Preflight {
		client := api.NewClient(cfg.API.RestURL,
			api.WithLogger(logger.With("component", "api")),
			api.WithTimeout(10*time.Second),
			api.WithRetries(3, time.Second),
		)
		if err := preflight(ctx, client, cfg.Subscriptions, logger); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Journal
	var (
		pool   *pgxpool.Pool
		writer *journal.Writer
	)
	if cfg.Journal.Enabled {
		db := cfg.Journal.Database
		logger.Info("connecting to journal database",
			"host", db.Host,
			"port", db.Port,
			"database", db.Name,
		)
		pool, err = database.Connect(ctx, db)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer pool.Close()

		writer = journal.NewWriter(journal.Config{
			Instance:      cfg.Instance.ID,
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
			BufferSize:    cfg.Journal.BufferSize,
		}, pool, logger.With("component", "journal"))
		if err := writer.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := writer.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
	}

	dispatcher := dispatch.New(logger.With("component", "dispatcher"), m)

	mcfg := managerConfig(cfg)
	mcfg.OnTransition = func(t connection.Transition) {
		if t.To == connection.Reconnecting {
			logger.Warn("connection lost",
				"identity", t.Identity.String(),
				"conn_id", t.ConnID,
				"retries", t.Retries,
				"error", t.Err,
			)
		}
		if writer != nil {
			writer.Record(journal.FromTransition(t))
		}
	}
	manager := connection.NewManager(mcfg, dispatcher, logger.With("component", "connection"),
		connection.WithMetrics(m),
	)

	// abort stops the journal so the incident that caused it is written,
	// then exits without waiting for anything else.
	abort := func() {
		logger.Error("aborting on book corruption")
		if writer != nil {
			abortCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			writer.Stop(abortCtx)
			cancel()
		}
		lg.Sync()
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	var queues []*dispatch.Updates
	for _, sub := range cfg.Subscriptions {
		updates := dispatch.NewUpdates(updatesInitialCapacity, updatesLimit)
		queues = append(queues, updates)

		req := kraken.NewSubscribe(sub.Name, sub.Depth, sub.Pairs...)
		var opts []connection.SubscribeOption
		if sub.Private {
			opts = append(opts, connection.Private())
		}
		session, err := manager.Subscribe(gctx, req, updates, opts...)
		if err != nil {
			stopAll(logger, manager, queues, writer)
			return fmt.Errorf("subscribe %s %v: %w", sub.Name, sub.Pairs, err)
		}
		logger.Info("subscribed",
			"identity", session.Identity().String(),
			"pairs", len(sub.Pairs),
			"depth", sub.Depth,
			"private", sub.Private,
		)

		w := newWatcher(updates, cfg.Book.OnCorruption, writer, abort,
			logger.With("component", "watcher", "subscription", session.Identity().String()))
		g.Go(w.run)
	}

	// HTTP server for health, books and metrics
	var db pinger
	if pool != nil {
		db = pool
	}
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: newHandler(serverDeps{
			manager:     manager,
			dispatcher:  dispatcher,
			journal:     writer,
			db:          db,
			gatherer:    reg,
			metricsPath: cfg.Metrics.Path,
			depth:       cfg.Book.Depth,
			logger:      logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.Metrics.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", "error", err)
		}
		stopAll(logger, manager, queues, writer)
		return nil
	})

	logger.Info("bookwatch running",
		"instance_id", cfg.Instance.ID,
		"subscriptions", len(cfg.Subscriptions),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	if watchConfig {
		cw, err := config.NewWatcher(configPath, config.DefaultReloadCooldown, func(next *config.Config) {
			applyReload(lg, cfg, next)
		}, logger.With("component", "config"))
		if err != nil {
			logger.Warn("config watch disabled", "error", err)
		} else {
			g.Go(func() error { return cw.Run(gctx) })
		}
	}

	err = g.Wait()
	logger.Info("bookwatch stopped")
	return err
}

// stopAll stops the sessions first so no callback lands on a closed queue,
// then lets the watchers drain and finally flushes the journal.
func stopAll(logger *slog.Logger, manager connection.Manager, queues []*dispatch.Updates, writer *journal.Writer) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := manager.Stop(ctx); err != nil {
		logger.Warn("connection manager stop", "error", err)
	}
	for _, q := range queues {
		q.Close()
	}
	if writer != nil {
		if err := writer.Stop(ctx); err != nil {
			logger.Warn("journal stop", "error", err)
		}
	}
}

// managerConfig maps the config file onto the connection manager.
func managerConfig(cfg *config.Config) connection.ManagerConfig {
	c := cfg.Connections
	return connection.ManagerConfig{
		URL:                cfg.API.WSURL,
		PrivateURL:         cfg.API.PrivateWSURL,
		InitialDelay:       c.ReconnectInitialDelay,
		MaxDelay:           c.ReconnectMaxDelay,
		Multiplier:         c.ReconnectMultiplier,
		Jitter:             c.ReconnectJitter,
		MaxRetries:         c.MaxRetries,
		HandshakeTimeout:   c.HandshakeTimeout,
		PingInterval:       c.PingInterval,
		PingTimeout:        c.PingTimeout,
		WriteTimeout:       c.WriteTimeout,
		BufferSize:         c.BufferSize,
		ResyncOnCorruption: cfg.Book.OnCorruption == config.CorruptionResync,
	}
}
