package trendimport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ghalamif/TrendImport/internal/domain"
	"github.com/ghalamif/TrendImport/internal/ports"
)

// ErrChannelSinkClosed is returned for trend batches written after the
// channel sink's close function ran.
var ErrChannelSinkClosed = errors.New("trendimport: channel sink closed")

// SampleBatchSink receives trend samples in WAL order, at most
// Policy.MaxBatchSize per call. The slice holds copies the callee may keep.
// Returning an error leaves the batch uncommitted; it is retried unchanged.
type SampleBatchSink func([]Sample) error

// NewCallbackSink turns fn into a Sink, for embedding the importer without
// a database. An empty name becomes "callback".
func NewCallbackSink(name string, fn SampleBatchSink) Sink {
	return &funcSink{name: nameOr(name, "callback"), fn: fn}
}

// NewChannelSink delivers each trend batch on the returned
// channel. The ingest pipeline waits until the batch is received, so an
// unread channel holds back WAL commits. Call the returned function on
// shutdown; it closes the channel once pending sends have given up.
func NewChannelSink(name string, buffer int) (Sink, <-chan []Sample, func()) {
	s := &chanSink{
		name: nameOr(name, "channel"),
		out:  make(chan []Sample, max(buffer, 0)),
		done: make(chan struct{}),
	}
	return s, s.out, s.close
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

type funcSink struct {
	name string
	fn   SampleBatchSink
}

var _ ports.Sink = (*funcSink)(nil)

func (s *funcSink) Name() string { return s.name }

func (s *funcSink) WriteBatch(samples []*domain.Sample) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(samples) == 0 {
		return nil
	}
	return s.fn(copyBatch(samples))
}

type chanSink struct {
	name string
	out  chan []Sample
	done chan struct{}

	// senders hold the read lock so close never races a send on out.
	mu        sync.RWMutex
	closeOnce sync.Once
}

var _ ports.ContextSink = (*chanSink)(nil)

func (s *chanSink) Name() string { return s.name }

func (s *chanSink) WriteBatch(samples []*domain.Sample) error {
	return s.WriteBatchContext(context.Background(), samples)
}

// WriteBatchContext gives up when ctx ends so a reader that went away
// cannot wedge pipeline shutdown.
func (s *chanSink) WriteBatchContext(ctx context.Context, samples []*domain.Sample) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.done:
		return ErrChannelSinkClosed
	default:
	}
	if len(samples) == 0 {
		return nil
	}

	select {
	case s.out <- copyBatch(samples):
		return nil
	case <-s.done:
		return ErrChannelSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *chanSink) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		defer s.mu.Unlock()
		close(s.out)
	})
}

// copyBatch detaches the batch from the queue's samples.
func copyBatch(samples []*domain.Sample) []Sample {
	out := make([]Sample, 0, len(samples))
	for _, sample := range samples {
		out = append(out, *sample)
	}
	return out
}
