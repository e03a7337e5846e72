package ports

import (
	"context"

	"github.com/ghalamif/TrendImport/internal/domain"
)

// Sink persists ordered batches of imported samples. A batch is stored
// whole or not at all; failed batches are retried unchanged.
type Sink interface {
	WriteBatch(samples []*domain.Sample) error
	Name() string
}

// ContextSink is a Sink whose writes can be cancelled.
type ContextSink interface {
	Sink
	WriteBatchContext(ctx context.Context, samples []*domain.Sample) error
}
