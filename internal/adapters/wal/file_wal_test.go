package wal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ghalamif/TrendImport/internal/domain"
	"github.com/ghalamif/TrendImport/internal/ports"
)

func TestFileWALAppendIterateAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}

	ts := time.Date(2020, 1, 2, 10, 0, 0, 0, time.UTC)
	s1 := domain.NewScalar(ts, 1)
	s2 := domain.NewStatistics(ts.Add(time.Second), 10, 2, 3)

	id1, err := w.Append(s1)
	if err != nil || id1 == 0 {
		t.Fatalf("append sample 1: %v id=%d", err, id1)
	}
	id2, err := w.Append(s2)
	if err != nil || id2 == 0 {
		t.Fatalf("append sample 2: %v id=%d", err, id2)
	}

	var iterated []*domain.Sample
	if err := w.Iterate(1, func(id ports.WALEntryID, s *domain.Sample) error {
		iterated = append(iterated, s)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(iterated) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(iterated))
	}
	if got := iterated[1]; got.Kind != domain.KindStatistics || got.Min != 8 || got.Max != 13 || !got.Timestamp.Equal(s2.Timestamp) {
		t.Fatalf("statistics sample did not round trip: %+v", got)
	}

	if err := w.Commit(id2); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close wal: %v", err)
	}

	// Reopen and ensure committed metadata was persisted.
	w2, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}

	stats := w2.Stats()
	if stats.LatestAppended != id2 {
		t.Fatalf("expected latest appended %d, got %d", id2, stats.LatestAppended)
	}
	if stats.OldestUncommitted != id2+1 {
		t.Fatalf("expected oldest uncommitted %d, got %d", id2+1, stats.OldestUncommitted)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("close wal2: %v", err)
	}

	// A torn tail must be cut off on the next open.
	if err := appendGarbage(filepath.Join(dir, "wal.log")); err != nil {
		t.Fatalf("append garbage: %v", err)
	}
	w3, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen after garbage: %v", err)
	}
	defer w3.Close()
	if w3.Stats().SizeBytes != stats.SizeBytes {
		t.Fatalf("expected torn tail to be truncated to %d bytes, got %d", stats.SizeBytes, w3.Stats().SizeBytes)
	}
}

func TestFileWALTruncateCommitted(t *testing.T) {
	w, err := NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	defer w.Close()

	ts := time.Unix(0, 0).UTC()
	for i := 0; i < 3; i++ {
		if _, err := w.Append(domain.NewScalar(ts.Add(time.Duration(i)*time.Second), float64(i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	before := w.Stats().SizeBytes

	if err := w.Commit(2); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := w.TruncateCommitted(); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if after := w.Stats().SizeBytes; after <= 0 || after >= before {
		t.Fatalf("expected compacted size between 0 and %d, got %d", before, after)
	}

	var ids []ports.WALEntryID
	if err := w.Iterate(0, func(id ports.WALEntryID, s *domain.Sample) error {
		ids = append(ids, id)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("expected only entry 3 to survive, got %v", ids)
	}

	id, err := w.Append(domain.NewScalar(ts, 9))
	if err != nil || id != 4 {
		t.Fatalf("expected append after compaction to get id 4, got %d (%v)", id, err)
	}
}

func TestFileWALIterateCallbackMayCommitAndAppend(t *testing.T) {
	w, err := NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	defer w.Close()

	ts := time.Unix(0, 0).UTC()
	for i := 0; i < 5; i++ {
		if _, err := w.Append(domain.NewScalar(ts, float64(i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	done := make(chan error, 1)
	var visited int
	go func() {
		done <- w.Iterate(1, func(id ports.WALEntryID, s *domain.Sample) error {
			visited++
			if err := w.Commit(id); err != nil {
				return err
			}
			_, err := w.Append(domain.NewScalar(ts, 100))
			return err
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("iterate callback blocked on the WAL lock")
	}
	if visited != 5 {
		t.Fatalf("expected iteration over the 5 entries present at the start, got %d", visited)
	}
	if stats := w.Stats(); stats.LatestAppended != 10 || stats.Pending() != 5 {
		t.Fatalf("unexpected stats after iterate: %+v", stats)
	}
}

func TestFileWALCommittedBytes(t *testing.T) {
	w, err := NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	defer w.Close()

	ts := time.Unix(0, 0).UTC()
	for i := 0; i < 4; i++ {
		if _, err := w.Append(domain.NewScalar(ts, float64(i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	stats := w.Stats()
	if stats.CommittedBytes != 0 || stats.PendingBytes() != stats.SizeBytes {
		t.Fatalf("expected nothing committed yet, got %+v", stats)
	}

	if err := w.Commit(2); err != nil {
		t.Fatalf("commit: %v", err)
	}
	stats = w.Stats()
	if stats.CommittedBytes != stats.SizeBytes/2 {
		t.Fatalf("expected half of %d bytes committed, got %d", stats.SizeBytes, stats.CommittedBytes)
	}

	if err := w.TruncateCommitted(); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	after := w.Stats()
	if after.CommittedBytes != 0 || after.SizeBytes != stats.PendingBytes() {
		t.Fatalf("expected only pending bytes after compaction, got %+v (pending before %d)", after, stats.PendingBytes())
	}

	if err := w.Commit(4); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := w.Stats(); got.CommittedBytes != got.SizeBytes {
		t.Fatalf("expected everything committed, got %+v", got)
	}
}

func appendGarbage(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte{0xFF, 0xAA})
	return err
}
