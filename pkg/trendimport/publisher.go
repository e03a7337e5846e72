package trendimport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/TrendImport/internal/adapters/observability"
	"github.com/ghalamif/TrendImport/internal/adapters/queue"
	"github.com/ghalamif/TrendImport/internal/adapters/wal"
	"github.com/ghalamif/TrendImport/internal/app/pipeline"
	"github.com/ghalamif/TrendImport/internal/ports"
)

// PublisherConfig configures the WAL-backed publisher used by callers that
// produce samples themselves, e.g. from Import on an uploaded stream.
type PublisherConfig struct {
	Policy Policy
	WAL    WALConfig
	// Obs defaults to Prometheus metrics on a private registry.
	Obs Observability
}

func (c *PublisherConfig) applyDefaults() {
	if c.Policy.MaxWALSizeBytes == 0 {
		c.Policy.MaxWALSizeBytes = 10 << 30
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 100_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 5_000
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Policy.OnWALFull == "" {
		c.Policy.OnWALFull = "block"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/trendimport-wal"
	}
}

func (c *PublisherConfig) validate() error {
	if c.Policy.MaxQueueLen <= 0 {
		return fmt.Errorf("policy.max_queue_len must be > 0")
	}
	if c.Policy.MaxBatchSize <= 0 {
		return fmt.Errorf("policy.max_batch_size must be > 0")
	}
	return nil
}

// Publisher exposes the WAL → queue → sink pipeline to external producers.
type Publisher struct {
	policy ports.Policy
	wal    *wal.FileWAL
	queue  ports.SampleQueue
	obs    ports.Observability

	cancel    context.CancelFunc
	doneCh    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewPublisher opens the WAL, replays anything a previous process left
// uncommitted into fn, and starts delivering published samples to fn in
// batches.
func NewPublisher(cfg *PublisherConfig, fn SampleBatchSink) (*Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("sink callback is required")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	walAdapter, err := wal.NewFileWAL(cfg.WAL.Dir)
	if err != nil {
		return nil, err
	}
	obs := cfg.Obs
	if obs == nil {
		obs = observability.NewPromObs(prometheus.NewRegistry(), nil)
	}
	q := queue.NewMemQueue(cfg.Policy.MaxQueueLen)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		policy: cfg.Policy,
		wal:    walAdapter,
		queue:  q,
		obs:    obs,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}

	go func() {
		defer close(p.doneCh)
		pipeline.RunIngestPipeline(ctx, walAdapter, q, NewCallbackSink("publisher", fn), cfg.Policy, obs)
	}()

	if err := replayWALIntoQueue(ctx, walAdapter, q, cfg.Policy, obs); err != nil {
		_ = p.Close(context.Background())
		return nil, err
	}
	return p, nil
}

// Publish appends each sample to the WAL and enqueues it according to
// policy. It stops at the first sample that is rejected.
func (p *Publisher) Publish(ctx context.Context, samples ...*Sample) error {
	for _, s := range samples {
		if err := pipeline.Admit(ctx, p.wal, p.queue, s, p.policy, p.obs); err != nil {
			return err
		}
	}
	return nil
}

// Stats reports the publisher's WAL position.
func (p *Publisher) Stats() WALStats { return p.wal.Stats() }

// Close stops delivery and closes the WAL. Samples not yet delivered stay
// in the WAL and are replayed by the next publisher on the same directory.
func (p *Publisher) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.cancel()
		select {
		case <-p.doneCh:
		case <-ctx.Done():
			p.closeErr = ctx.Err()
			return
		}
		p.closeErr = p.wal.Close()
	})
	return p.closeErr
}
