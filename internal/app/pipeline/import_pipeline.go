package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/TrendImport/internal/adapters/observability"
	"github.com/ghalamif/TrendImport/internal/domain"
	"github.com/ghalamif/TrendImport/internal/ports"
)

var (
	// ErrQueueFull indicates the queue rejected the sample according to policy.
	ErrQueueFull = errors.New("queue full")
	// ErrWALFull indicates the WAL is at capacity and OnWALFull is not "block".
	ErrWALFull = errors.New("wal full")
)

// RunImportPipeline starts the collector and moves every sample it produces
// through the WAL into the queue. The returned channel is closed once the
// collector has closed its output or ctx is done.
func RunImportPipeline(ctx context.Context, col ports.Collector, wal ports.WAL, q ports.SampleQueue, pol ports.Policy, obs ports.Observability) (<-chan struct{}, error) {
	ch := make(chan *domain.Sample, pol.MaxQueueLen)

	if err := col.Start(ch); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-ch:
				if !ok {
					return
				}
				err := Admit(ctx, wal, q, s, pol, obs)
				switch {
				case errors.Is(err, ErrQueueFull):
					obs.IncCounter(observability.QueueDropped, 1)
				case errors.Is(err, ErrWALFull):
					obs.IncCounter(observability.WALDropped, 1)
				case err != nil && ctx.Err() != nil:
					return
				}
			}
		}
	}()

	return done, nil
}

// Admit appends s to the WAL and enqueues it, applying the WAL and queue
// backpressure policies.
func Admit(ctx context.Context, wal ports.WAL, q ports.SampleQueue, s *domain.Sample, pol ports.Policy, obs ports.Observability) error {
	if !waitForWALCapacity(ctx, wal, pol, obs) {
		return ErrWALFull
	}

	id, err := wal.Append(s)
	if err != nil {
		obs.LogCritical("wal_append_failed", err,
			ports.Field{Key: "source", Value: s.Source},
			ports.Field{Key: "line", Value: s.Line})
		return err
	}

	if !enqueueWithPolicy(ctx, q, id, s, pol, obs) {
		return ErrQueueFull
	}
	return nil
}

func waitForWALCapacity(ctx context.Context, wal ports.WAL, pol ports.Policy, obs ports.Observability) bool {
	if pol.MaxWALSizeBytes <= 0 {
		return true
	}
	sleep := idleSleep(pol)

	// Committed entries count as free space; the ingest side compacts them away.
	for {
		stats := wal.Stats()
		if stats.PendingBytes() < pol.MaxWALSizeBytes {
			return true
		}

		switch pol.OnWALFull {
		case "block":
			if !sleepCtx(ctx, sleep) {
				return false
			}
		case "drop":
			obs.LogError("wal_full_drop", fmt.Errorf("pending=%d limit=%d", stats.PendingBytes(), pol.MaxWALSizeBytes))
			return false
		default:
			obs.LogError("wal_policy_invalid", fmt.Errorf("policy=%s", pol.OnWALFull))
			return false
		}
	}
}

func enqueueWithPolicy(ctx context.Context, q ports.SampleQueue, id ports.WALEntryID, s *domain.Sample, pol ports.Policy, obs ports.Observability) bool {
	sleep := idleSleep(pol)

	for {
		if ok := q.Enqueue(id, s); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			if !sleepCtx(ctx, sleep) {
				return false
			}
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}

func idleSleep(pol ports.Policy) time.Duration {
	if pol.IdleSleep <= 0 {
		return 5 * time.Millisecond
	}
	return pol.IdleSleep
}

// sleepCtx reports false if ctx ended before d elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
