package ports

import "github.com/ghalamif/TrendImport/internal/domain"

// WALEntryID numbers WAL entries from 1 in append order.
type WALEntryID uint64

// WAL holds every admitted sample until the sink has committed it.
type WAL interface {
	Append(s *domain.Sample) (WALEntryID, error)
	// Iterate visits entries with ID >= from in order.
	Iterate(from WALEntryID, fn func(id WALEntryID, s *domain.Sample) error) error
	// Commit marks every entry up to and including upto as stored.
	Commit(upto WALEntryID) error
	// TruncateCommitted drops committed entries from storage.
	TruncateCommitted() error
	Stats() WALStats
}

type WALStats struct {
	OldestUncommitted WALEntryID
	LatestAppended    WALEntryID
	SizeBytes         int64
	// CommittedBytes is the part of SizeBytes that TruncateCommitted
	// would reclaim. Implementations may estimate it.
	CommittedBytes int64
}

// Pending is the number of appended entries not yet committed.
func (s WALStats) Pending() uint64 {
	if s.OldestUncommitted == 0 || s.OldestUncommitted > s.LatestAppended {
		return 0
	}
	return uint64(s.LatestAppended-s.OldestUncommitted) + 1
}

// PendingBytes is the storage still held by uncommitted entries.
func (s WALStats) PendingBytes() int64 {
	if s.CommittedBytes >= s.SizeBytes {
		return 0
	}
	return s.SizeBytes - s.CommittedBytes
}
