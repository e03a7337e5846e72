package trendimport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/TrendImport/internal/adapters/collector"
	"github.com/ghalamif/TrendImport/internal/adapters/observability"
	"github.com/ghalamif/TrendImport/internal/adapters/queue"
	"github.com/ghalamif/TrendImport/internal/adapters/sink"
	"github.com/ghalamif/TrendImport/internal/adapters/wal"
	"github.com/ghalamif/TrendImport/internal/app/pipeline"
	"github.com/ghalamif/TrendImport/internal/domain"
	"github.com/ghalamif/TrendImport/internal/ports"
)

var (
	// ErrQueueFull indicates the in-memory queue rejected the sample according to policy.
	ErrQueueFull = pipeline.ErrQueueFull
	// ErrWALFull indicates the WAL is at capacity and OnWALFull != "block".
	ErrWALFull = pipeline.ErrWALFull
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collector     Collector
	sink          Sink
	wal           WAL
	queue         SampleQueue
	observability Observability
}

// WithCollector replaces the file collector, e.g. with an in-memory source.
func WithCollector(col Collector) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.collector = col
	}
}

// WithSink sends batches somewhere other than TimescaleDB.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithWAL lets callers bring their own WAL implementation or reuse an existing instance.
func WithWAL(w WAL) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.wal = w
	}
}

// WithSampleQueue injects a custom queue implementation.
func WithSampleQueue(q SampleQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// Runtime wires the file collector → WAL → queue → sink pipeline and exposes
// lifecycle hooks for embedding the importer inside any Go service.
type Runtime struct {
	cfg       *Config
	policy    ports.Policy
	obs       ports.Observability
	wal       ports.WAL
	queue     ports.SampleQueue
	collector ports.Collector
	sink      ports.Sink
	db        *sql.DB

	cancel       context.CancelFunc
	importDoneCh <-chan struct{}
	ingestDoneCh chan struct{}
	metricsSrv   *http.Server
	gaugeStopCh  chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewRuntime bootstraps the default adapters (file collector, file WAL,
// in-memory queue, Timescale sink, Prometheus observability). Any of them
// can be replaced with a RuntimeOption.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs(nil, slog.Default())
	}

	var (
		walAdapter ports.WAL
		err        error
	)
	if overrides.wal != nil {
		walAdapter = overrides.wal
	} else {
		walAdapter, err = wal.NewFileWAL(cfg.WAL.Dir)
		if err != nil {
			return nil, fmt.Errorf("open wal: %w", err)
		}
	}

	q := overrides.queue
	if q == nil {
		q = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	col := overrides.collector
	if col == nil {
		importOpts, err := cfg.Import.Options()
		if err != nil {
			return nil, err
		}
		col, err = collector.NewFileCollector(collector.Config{
			Files:    cfg.Import.Files,
			WatchDir: cfg.Import.WatchDir,
		}, importOpts, obs)
		if err != nil {
			return nil, err
		}
	}

	var (
		db  *sql.DB
		snk ports.Sink
	)
	if overrides.sink != nil {
		snk = overrides.sink
	} else {
		db, err = sql.Open("postgres", cfg.Timescale.ConnString)
		if err != nil {
			return nil, err
		}
		snk = sink.NewTimescaleSink(db, cfg.Timescale.Table)
	}

	return &Runtime{
		cfg:       cfg,
		policy:    cfg.Policy,
		obs:       obs,
		wal:       walAdapter,
		queue:     q,
		collector: col,
		sink:      snk,
		db:        db,
	}, nil
}

// Start replays uncommitted WAL entries, then begins the import and ingest
// pipelines and the metrics server. It returns once replay has been queued.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.ingestDoneCh = make(chan struct{})
	go func() {
		defer close(r.ingestDoneCh)
		pipeline.RunIngestPipeline(ctx, r.wal, r.queue, r.sink, r.policy, r.obs)
	}()

	if err := replayWALIntoQueue(ctx, r.wal, r.queue, r.policy, r.obs); err != nil {
		cancel()
		return err
	}

	importDone, err := pipeline.RunImportPipeline(ctx, r.collector, r.wal, r.queue, r.policy, r.obs)
	if err != nil {
		cancel()
		return err
	}
	r.importDoneCh = importDone

	r.startMetrics()
	return nil
}

// Run starts the runtime and blocks until ctx is cancelled or, when no
// directory is watched, until every imported sample has been committed by
// the sink. It then shuts down gracefully.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
	case <-r.drained(ctx):
		if err := r.wal.TruncateCommitted(); err != nil {
			runErr = fmt.Errorf("truncate wal: %w", err)
		}
		r.obs.LogInfo("import_drained")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(runErr, r.Shutdown(shutdownCtx))
}

// Shutdown stops the pipelines, metrics server, collector, WAL and DB
// connection. It is safe to call more than once.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() {
		r.shutdownErr = r.shutdown(ctx)
	})
	return r.shutdownErr
}

func (r *Runtime) shutdown(ctx context.Context) error {
	var errs []error

	if r.cancel != nil {
		r.cancel()
	}
	if r.collector != nil {
		if err := r.collector.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, done := range []<-chan struct{}{r.importDoneCh, r.ingestDoneCh} {
		if done == nil {
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("waiting for pipeline: %w", ctx.Err()))
		}
	}

	if r.gaugeStopCh != nil {
		close(r.gaugeStopCh)
	}
	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if c, ok := r.wal.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close wal: %w", err))
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// drained closes once the import pipeline is done, the queue is empty and
// the WAL holds nothing uncommitted.
func (r *Runtime) drained(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-r.importDoneCh:
		}

		ticker := time.NewTicker(idleInterval(r.policy))
		defer ticker.Stop()
		for {
			if r.queue.Len() == 0 && r.wal.Stats().Pending() == 0 {
				close(out)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func (r *Runtime) startMetrics() {
	if r.cfg.Metrics.Addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:              r.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics_server_exited", err, ports.Field{Key: "addr", Value: r.cfg.Metrics.Addr})
		}
	}()

	r.gaugeStopCh = make(chan struct{})
	go r.recordResourceGauges(r.gaugeStopCh, time.Second)
}

func (r *Runtime) recordResourceGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stats := r.wal.Stats()
			r.obs.SetGauge(observability.WALSizeBytes, float64(stats.SizeBytes))
			r.obs.SetGauge(observability.QueueLength, float64(r.queue.Len()))
		}
	}
}

// replayWALIntoQueue re-enqueues every uncommitted entry left by a previous
// run. The ingest pipeline must already be draining q.
func replayWALIntoQueue(ctx context.Context, walAdapter ports.WAL, q ports.SampleQueue, pol ports.Policy, obs ports.Observability) error {
	stats := walAdapter.Stats()
	if stats.Pending() == 0 {
		return nil
	}
	start := stats.OldestUncommitted

	sleep := idleInterval(pol)
	var replayed int
	err := walAdapter.Iterate(start, func(id ports.WALEntryID, sample *domain.Sample) error {
		for !q.Enqueue(id, sample) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
		}
		replayed++
		return nil
	})
	if err != nil {
		return fmt.Errorf("wal replay: %w", err)
	}
	if replayed > 0 {
		obs.LogInfo("wal_replay_complete",
			ports.Field{Key: "samples", Value: replayed},
			ports.Field{Key: "from_id", Value: start})
	}
	return nil
}

func idleInterval(pol ports.Policy) time.Duration {
	if pol.IdleSleep <= 0 {
		return 5 * time.Millisecond
	}
	return pol.IdleSleep
}
