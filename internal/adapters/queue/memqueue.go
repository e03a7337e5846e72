package queue

import (
	"sync"

	"github.com/ghalamif/TrendImport/internal/domain"
	"github.com/ghalamif/TrendImport/internal/ports"
)

// MemQueue is a bounded in-memory queue that preserves FIFO ordering, so
// samples reach the sink in the order they were imported.
type MemQueue struct {
	mu    sync.Mutex
	data  []ports.QueuedSample
	cap   int
	ready chan struct{}
}

func NewMemQueue(capacity int) *MemQueue {
	return &MemQueue{
		data:  make([]ports.QueuedSample, 0, capacity),
		cap:   capacity,
		ready: make(chan struct{}, 1),
	}
}

func (q *MemQueue) Enqueue(id ports.WALEntryID, s *domain.Sample) bool {
	q.mu.Lock()
	if len(q.data) >= q.cap {
		q.mu.Unlock()
		return false
	}
	q.data = append(q.data, ports.QueuedSample{ID: id, Sample: s})
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

func (q *MemQueue) DequeueBatch(max int) []ports.QueuedSample {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]ports.QueuedSample, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Ready is signalled after an enqueue; consumers use it instead of polling.
func (q *MemQueue) Ready() <-chan struct{} { return q.ready }

var _ ports.NotifyingQueue = (*MemQueue)(nil)
