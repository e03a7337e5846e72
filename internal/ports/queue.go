package ports

import "github.com/ghalamif/TrendImport/internal/domain"

// QueuedSample pairs a sample with the WAL entry that holds it, so the
// ingest side can commit what the sink has stored.
type QueuedSample struct {
	ID     WALEntryID
	Sample *domain.Sample
}

// SampleQueue buffers admitted samples between import and sink in FIFO order.
type SampleQueue interface {
	// Enqueue reports false when the queue is at capacity.
	Enqueue(id WALEntryID, s *domain.Sample) bool
	DequeueBatch(max int) []QueuedSample
	Len() int
}

// NotifyingQueue signals consumers on enqueue so they need not poll.
type NotifyingQueue interface {
	SampleQueue
	Ready() <-chan struct{}
}
