package pipeline

import (
	"context"
	"time"

	"github.com/ghalamif/TrendImport/internal/adapters/observability"
	"github.com/ghalamif/TrendImport/internal/domain"
	"github.com/ghalamif/TrendImport/internal/ports"
)

// RunIngestPipeline drains the queue into the sink until ctx is done. A
// failed batch is retried in place so later batches never commit past it;
// if ctx ends first it stays uncommitted and is replayed from the WAL.
func RunIngestPipeline(ctx context.Context, wal ports.WAL, q ports.SampleQueue, sink ports.Sink, pol ports.Policy, obs ports.Observability) {
	var ready <-chan struct{}
	if rq, ok := q.(ports.NotifyingQueue); ok {
		ready = rq.Ready()
	}
	idle := idleSleep(pol)

	for {
		if ctx.Err() != nil {
			return
		}

		batch := q.DequeueBatch(pol.MaxBatchSize)
		if len(batch) == 0 {
			waitForWork(ctx, ready, idle)
			continue
		}

		for {
			err := writeBatch(ctx, sink, batch, obs)
			if err == nil {
				break
			}
			obs.LogError("sink_write_failed", err,
				ports.Field{Key: "sink", Value: sink.Name()},
				ports.Field{Key: "samples", Value: len(batch)})
			if !sleepCtx(ctx, idle) {
				return
			}
		}

		if err := wal.Commit(batch[len(batch)-1].ID); err != nil {
			obs.LogError("wal_commit_failed", err)
			continue
		}
		compactIfDue(wal, pol, obs)
	}
}

// maxCommittedBytes caps how much committed data the WAL keeps on disk.
const maxCommittedBytes = 64 << 20

// compactIfDue truncates the WAL once committed entries take up half the
// size limit, or maxCommittedBytes when that is smaller or no limit is set.
func compactIfDue(wal ports.WAL, pol ports.Policy, obs ports.Observability) {
	threshold := int64(maxCommittedBytes)
	if half := pol.MaxWALSizeBytes / 2; half > 0 && half < threshold {
		threshold = half
	}
	if wal.Stats().CommittedBytes < threshold {
		return
	}
	if err := wal.TruncateCommitted(); err != nil {
		obs.LogError("wal_compact_failed", err)
	}
}

func writeBatch(ctx context.Context, sink ports.Sink, batch []ports.QueuedSample, obs ports.Observability) error {
	out := make([]*domain.Sample, len(batch))
	for i, item := range batch {
		out[i] = item.Sample
	}

	start := time.Now()
	var err error
	if cs, ok := sink.(ports.ContextSink); ok {
		err = cs.WriteBatchContext(ctx, out)
	} else {
		err = sink.WriteBatch(out)
	}
	if err != nil {
		return err
	}
	obs.ObserveLatency(observability.SinkLatency, time.Since(start).Seconds())
	obs.IncCounter(observability.SamplesIngested, float64(len(out)))
	return nil
}

func waitForWork(ctx context.Context, ready <-chan struct{}, idle time.Duration) {
	t := time.NewTimer(idle)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-ready:
	case <-t.C:
	}
}
