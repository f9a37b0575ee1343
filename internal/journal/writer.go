package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/krakenbook/internal/dispatch"
)

// DB is the subset of *pgxpool.Pool the writer uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config holds writer settings.
type Config struct {
	Instance      string
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int // Queued incidents beyond this are dropped
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
		BufferSize:    1000,
	}
}

// Stats contains writer statistics.
type Stats struct {
	Recorded int64
	Dropped  int64
	Inserted int64
	Errors   int64
	Flushes  int64
}

// Writer batches incidents into book_incidents.
type Writer struct {
	cfg    Config
	logger *slog.Logger
	db     DB

	input *dispatch.Queue[Incident]

	batch       []Incident
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	consumed chan struct{}

	stats Stats
}

// NewWriter creates a Writer. db is usually a *pgxpool.Pool.
func NewWriter(cfg Config, db DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	return &Writer{
		cfg:      cfg,
		db:       db,
		logger:   logger,
		input:    dispatch.NewQueue[Incident](min(64, cfg.BufferSize), cfg.BufferSize),
		batch:    make([]Incident, 0, cfg.BatchSize),
		consumed: make(chan struct{}),
	}
}

// EnsureSchema creates the incident table if needed.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create book_incidents: %w", err)
	}
	return nil
}

// Record queues an incident without blocking. It fills in the ID, instance
// and time when unset. Returns false if the incident was dropped because
// the queue is full or the writer is stopped.
func (w *Writer) Record(inc Incident) bool {
	if inc.ID == uuid.Nil {
		inc.ID = uuid.New()
	}
	if inc.Instance == "" {
		inc.Instance = w.cfg.Instance
	}
	if inc.OccurredAt.IsZero() {
		inc.OccurredAt = time.Now()
	}

	if !w.input.TrySend(inc) {
		w.batchMu.Lock()
		w.stats.Dropped++
		w.batchMu.Unlock()
		w.logger.Warn("journal full, dropping incident",
			"identity", inc.Identity,
			"kind", string(inc.Kind),
		)
		return false
	}

	w.batchMu.Lock()
	w.stats.Recorded++
	w.batchMu.Unlock()
	return true
}

// Start begins consuming incidents and writing batches.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the queue, writes what is left and shuts down. ctx bounds
// both the drain and the final flush.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	w.input.Close()
	if w.cancel == nil {
		return nil
	}

	select {
	case <-w.consumed:
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out", "pending", w.input.Len())
	}

	w.cancel()
	w.flushTicker.Stop()
	w.wg.Wait()

	if err := w.flush(ctx); err != nil {
		return fmt.Errorf("final journal flush: %w", err)
	}
	w.logger.Info("journal writer stopped")
	return nil
}

// Stats returns current statistics.
func (w *Writer) Stats() Stats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// consumeLoop moves incidents from the queue into the batch until the
// queue is closed and drained.
func (w *Writer) consumeLoop() {
	defer close(w.consumed)

	for {
		inc, ok := w.input.Receive()
		if !ok {
			return
		}
		if w.add(inc) {
			w.flush(w.ctx)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// add appends to the batch and reports whether it reached BatchSize.
func (w *Writer) add(inc Incident) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, inc)
	return len(w.batch) >= w.cfg.BatchSize
}

// flush writes the current batch. Failed rows are logged and counted,
// not retried.
func (w *Writer) flush(ctx context.Context) error {
	w.batchMu.Lock()
	rows := w.batch
	w.batch = make([]Incident, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	inserted, err := w.insert(ctx, rows)

	w.batchMu.Lock()
	w.stats.Flushes++
	w.stats.Inserted += int64(inserted)
	if err != nil {
		w.stats.Errors++
	}
	w.batchMu.Unlock()

	if err != nil {
		w.logger.Error("incident batch insert failed", "error", err, "count", len(rows))
		return err
	}

	w.logger.Debug("flushed incidents",
		"count", len(rows),
		"duration", time.Since(start),
	)
	return nil
}

// insert sends one batch. Rows skipped by ON CONFLICT are not counted.
func (w *Writer) insert(ctx context.Context, rows []Incident) (inserted int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertIncident,
			r.ID, r.Instance, r.Identity, string(r.Kind), r.Detail, r.ConnID, r.Retries, r.OccurredAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += int(ct.RowsAffected())
	}
	return inserted, nil
}
