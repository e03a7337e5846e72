package wal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ghalamif/TrendImport/internal/domain"
	"github.com/ghalamif/TrendImport/internal/ports"
)

// entry format: [8 bytes id][4 bytes len][len bytes json sample]
const recordHeaderLen = 12

// FileWAL persists imported samples until the sink has committed them, so a
// crash between import and sink write replays instead of losing data.
type FileWAL struct {
	mu        sync.Mutex
	path      string
	metaPath  string
	file      *os.File
	writer    *bufio.Writer
	nextID    ports.WALEntryID
	firstID   ports.WALEntryID // first entry in the file, 0 when empty
	committed ports.WALEntryID
	sizeBytes int64
}

func NewFileWAL(dir string) (*FileWAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w := &FileWAL{
		path:     filepath.Join(dir, "wal.log"),
		metaPath: filepath.Join(dir, "wal.meta"),
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	if err := w.bootstrap(); err != nil {
		_ = w.file.Close()
		return nil, err
	}
	return w, nil
}

func (w *FileWAL) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.writer = bufio.NewWriterSize(f, 1<<20)
	return nil
}

func (w *FileWAL) bootstrap() error {
	if err := w.scanExisting(); err != nil {
		return err
	}
	if err := w.loadCommitted(); err != nil {
		return err
	}
	if w.nextID < w.committed {
		w.nextID = w.committed
	}
	_, err := w.file.Seek(0, io.SeekEnd)
	return err
}

// scanExisting finds the last complete record and cuts off a torn tail.
func (w *FileWAL) scanExisting() error {
	rf, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	reader := bufio.NewReader(rf)
	var (
		offset  int64
		firstID ports.WALEntryID
		lastID  ports.WALEntryID
	)
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("wal scan header: %w", err)
		}
		id, length := decodeHeader(hdr)
		if _, err := io.CopyN(io.Discard, reader, int64(length)); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("wal scan body: %w", err)
		}
		offset += recordHeaderLen + int64(length)
		if firstID == 0 {
			firstID = id
		}
		lastID = id
	}

	if err := w.file.Truncate(offset); err != nil {
		return err
	}
	w.sizeBytes = offset
	w.firstID = firstID
	w.nextID = lastID
	return nil
}

func (w *FileWAL) loadCommitted() error {
	data, err := os.ReadFile(w.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fmt.Errorf("wal meta parse: %w", err)
	}
	w.committed = ports.WALEntryID(u)
	return nil
}

func (w *FileWAL) Append(s *domain.Sample) (ports.WALEntryID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := json.Marshal(s)
	if err != nil {
		return 0, fmt.Errorf("wal encode sample: %w", err)
	}

	id := w.nextID + 1
	hdr := encodeHeader(id, len(b))
	if _, err := w.writer.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := w.writer.Write(b); err != nil {
		return 0, err
	}

	if w.firstID == 0 {
		w.firstID = id
	}
	w.nextID = id
	w.sizeBytes += int64(len(b) + len(hdr))
	return id, nil
}

// Iterate visits the entries present when it was called. The lock is only
// held while taking that snapshot, so fn may block on a consumer that
// commits or appends concurrently.
func (w *FileWAL) Iterate(from ports.WALEntryID, fn func(id ports.WALEntryID, s *domain.Sample) error) error {
	w.mu.Lock()
	if err := w.writer.Flush(); err != nil {
		w.mu.Unlock()
		return err
	}
	f, err := os.Open(w.path)
	size := w.sizeBytes
	w.mu.Unlock()
	if err != nil {
		return err
	}
	// An open handle keeps reading the pre-compaction file after a rename.
	defer f.Close()

	return readEntries(io.LimitReader(f, size), from, func(id ports.WALEntryID, raw []byte) error {
		var s domain.Sample
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("corrupt WAL entry %d: %w", id, err)
		}
		return fn(id, &s)
	})
}

func (w *FileWAL) iterateLocked(from ports.WALEntryID, fn func(id ports.WALEntryID, raw []byte) error) error {
	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return readEntries(f, from, fn)
}

func readEntries(src io.Reader, from ports.WALEntryID, fn func(id ports.WALEntryID, raw []byte) error) error {
	r := bufio.NewReader(src)
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("wal iterate header: %w", err)
		}
		id, length := decodeHeader(hdr)

		b := make([]byte, length)
		if _, err := io.ReadFull(r, b); err != nil {
			return fmt.Errorf("corrupt WAL: %w", err)
		}
		if id < from {
			continue
		}
		if err := fn(id, b); err != nil {
			return err
		}
	}
}

func (w *FileWAL) Commit(upto ports.WALEntryID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if upto > w.committed {
		w.committed = upto
	}
	return w.persistMetaLocked()
}

// TruncateCommitted rewrites the log keeping only uncommitted entries.
func (w *FileWAL) TruncateCommitted() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}

	tmpPath := w.path + ".compact"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(tmp)

	var size int64
	err = w.iterateLocked(w.committed+1, func(id ports.WALEntryID, raw []byte) error {
		hdr := encodeHeader(id, len(raw))
		if _, err := bw.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := bw.Write(raw); err != nil {
			return err
		}
		size += recordHeaderLen + int64(len(raw))
		return nil
	})
	if err == nil {
		err = bw.Flush()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("wal compact: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return err
	}
	if err := w.open(); err != nil {
		return err
	}
	w.sizeBytes = size
	w.firstID = 0
	if size > 0 {
		w.firstID = w.committed + 1
	}
	return nil
}

func (w *FileWAL) Stats() ports.WALStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ports.WALStats{
		OldestUncommitted: w.committed + 1,
		LatestAppended:    w.nextID,
		SizeBytes:         w.sizeBytes,
		CommittedBytes:    w.committedBytesLocked(),
	}
}

// committedBytesLocked estimates the committed share of the file from the
// entry counts on either side of the commit mark.
func (w *FileWAL) committedBytesLocked() int64 {
	if w.firstID == 0 || w.committed < w.firstID {
		return 0
	}
	done := w.committed
	if done > w.nextID {
		done = w.nextID
	}
	total := int64(w.nextID - w.firstID + 1)
	return w.sizeBytes * int64(done-w.firstID+1) / total
}

// Close flushes buffered entries and releases the log file.
func (w *FileWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *FileWAL) persistMetaLocked() error {
	data := []byte(fmt.Sprintf("%d\n", w.committed))
	return os.WriteFile(w.metaPath, data, 0o644)
}

func encodeHeader(id ports.WALEntryID, length int) [recordHeaderLen]byte {
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(length))
	return hdr
}

func decodeHeader(hdr [recordHeaderLen]byte) (ports.WALEntryID, uint32) {
	return ports.WALEntryID(binary.BigEndian.Uint64(hdr[0:8])), binary.BigEndian.Uint32(hdr[8:12])
}

var _ ports.WAL = (*FileWAL)(nil)
