// Package segment implements one log segment: a store file plus two
// sparse index files (offset and time) covering a contiguous offset
// range of a partition, in a self-describing, JSON-framed,
// crash-recoverable format.
package segment

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flashq/flashq/internal/record"
	"github.com/flashq/flashq/internal/storeindex"
)

// State is a segment's position in its one-way Writable -> Sealed state
// machine.
type State int

const (
	Writable State = iota
	Sealed
)

func stem(baseOffset uint64) string {
	return fmt.Sprintf("%020d", baseOffset)
}

func logPath(dir string, baseOffset uint64) string      { return filepath.Join(dir, stem(baseOffset)+".log") }
func indexPath(dir string, baseOffset uint64) string     { return filepath.Join(dir, stem(baseOffset)+".index") }
func timeIndexPath(dir string, baseOffset uint64) string { return filepath.Join(dir, stem(baseOffset)+".timeindex") }

// Segment is a partition's contiguous offset sub-range, backed by a .log,
// .index, and .timeindex file sharing one zero-padded base-offset stem.
type Segment struct {
	dir        string
	baseOffset uint64
	config     Config
	logger     zerolog.Logger

	store     *store
	offsetIdx *storeindex.OffsetIndex
	timeIdx   *storeindex.TimeIndex

	meta                sync.RWMutex
	nextOffset          uint64
	lastTimestampMillis int64
	bytesSinceIndex     uint64
	state               State
}

// OpenOrCreate opens an existing segment on disk or creates an empty one.
// If the .log file already has data, it's validated and truncated to its
// last intact record boundary, and both sparse indices are rebuilt from
// a full scan of the (now-clean) store — indices are never required for
// correctness, only a lookup accelerator, so rebuilding unconditionally
// keeps the recovery path single-shaped instead of branching on whether
// a persisted index looks healthy.
func OpenOrCreate(dir string, baseOffset uint64, cfg Config, logger zerolog.Logger) (*Segment, error) {
	cfg = cfg.WithDefaults()

	logFile, err := os.OpenFile(logPath(dir, baseOffset), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("segment: open log: %w", err)
	}
	st, err := newStore(logFile)
	if err != nil {
		return nil, fmt.Errorf("segment: stat log: %w", err)
	}

	needsRecovery := st.Size() > 0
	if needsRecovery {
		validEnd := scanStore(st, baseOffset, func(scannedRecord) {})
		if validEnd != st.Size() {
			logger.Warn().
				Str("segment", stem(baseOffset)).
				Uint64("valid_end", validEnd).
				Uint64("discarded_bytes", st.Size()-validEnd).
				Msg("truncating torn tail")
			if err := st.Truncate(int64(validEnd)); err != nil {
				return nil, fmt.Errorf("segment: truncate torn tail: %w", err)
			}
		}
		// Rebuilding needs the indices empty; remove any existing ones
		// and recreate fresh so replaying the scan below starts clean.
		_ = os.Remove(indexPath(dir, baseOffset))
		_ = os.Remove(timeIndexPath(dir, baseOffset))
	}

	maxEntries := cfg.maxIndexEntries()

	idxFile, err := os.OpenFile(indexPath(dir, baseOffset), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("segment: open index: %w", err)
	}
	offsetIdx, err := storeindex.NewOffsetIndex(idxFile, maxEntries*8)
	if err != nil {
		return nil, fmt.Errorf("segment: open offset index: %w", err)
	}

	tidxFile, err := os.OpenFile(timeIndexPath(dir, baseOffset), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("segment: open time index: %w", err)
	}
	timeIdx, err := storeindex.NewTimeIndex(tidxFile, maxEntries*12)
	if err != nil {
		return nil, fmt.Errorf("segment: open time index: %w", err)
	}

	seg := &Segment{
		dir:        dir,
		baseOffset: baseOffset,
		config:     cfg,
		logger:     logger,
		store:      st,
		offsetIdx:  offsetIdx,
		timeIdx:    timeIdx,
		nextOffset: baseOffset,
	}

	if needsRecovery {
		var last record.WithOffset
		var count uint64
		scanStore(st, baseOffset, func(sr scannedRecord) {
			seg.maybeIndex(sr.rec, sr.pos, sr.frameLen)
			last = sr.rec
			count++
		})
		if count > 0 {
			seg.nextOffset = last.Offset + 1
			seg.lastTimestampMillis = last.Timestamp.UnixMilli()
		}
	}

	return seg, nil
}

// BaseOffset is the offset of this segment's first record.
func (s *Segment) BaseOffset() uint64 { return s.baseOffset }

// NextOffset is the offset that will be assigned to the next record
// appended to this segment.
func (s *Segment) NextOffset() uint64 {
	s.meta.RLock()
	defer s.meta.RUnlock()
	return s.nextOffset
}

// Count is the number of records currently in this segment.
func (s *Segment) Count() uint64 {
	return s.NextOffset() - s.baseOffset
}

// LastTimestampMillis is the timestamp, in milliseconds since epoch, of
// the last appended record, or 0 if the segment is empty.
func (s *Segment) LastTimestampMillis() int64 {
	s.meta.RLock()
	defer s.meta.RUnlock()
	return s.lastTimestampMillis
}

// SizeBytes is the current size of the segment's store file.
func (s *Segment) SizeBytes() uint64 { return s.store.Size() }

// IsSealed reports whether the segment has been sealed.
func (s *Segment) IsSealed() bool {
	s.meta.RLock()
	defer s.meta.RUnlock()
	return s.state == Sealed
}

// Append writes one record to the segment, enforcing max_segment_bytes:
// unlike AppendBatch, a single Append never grows the segment past its
// soft size limit.
func (s *Segment) Append(rec record.WithOffset) (int, error) {
	return s.appendBatch([]record.WithOffset{rec}, true)
}

// AppendBatch writes all of records or none of them. It does not enforce
// MaxStoreBytes: a batch must never be split across segments, so the
// manager may deliberately let one atomic batch push a segment past its
// soft limit, rolling afterward.
func (s *Segment) AppendBatch(records []record.WithOffset) (int, error) {
	return s.appendBatch(records, false)
}

func (s *Segment) appendBatch(records []record.WithOffset, enforceSizeLimit bool) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if s.IsSealed() {
		return 0, ErrSegmentSealed
	}

	frames := make([][]byte, len(records))
	total := 0
	for i, rec := range records {
		if rec.Offset < s.baseOffset || rec.Offset-s.baseOffset > uint64(^uint32(0)) {
			return 0, ErrSegmentFull{Reason: "relative offset overflow"}
		}
		frame, err := record.Encode(rec)
		if err != nil {
			return 0, err
		}
		frames[i] = frame
		total += len(frame)
	}

	if enforceSizeLimit && s.store.Size()+uint64(total) > s.config.MaxStoreBytes {
		return 0, ErrSegmentFull{Reason: "max_segment_bytes exceeded"}
	}

	combined := make([]byte, 0, total)
	for _, f := range frames {
		combined = append(combined, f...)
	}

	startPos, err := s.store.Append(combined)
	if err != nil {
		return 0, err
	}

	pos := startPos
	for i, rec := range records {
		s.maybeIndex(rec, pos, len(frames[i]))
		pos += uint64(len(frames[i]))
	}

	last := records[len(records)-1]
	s.meta.Lock()
	s.nextOffset = last.Offset + 1
	s.lastTimestampMillis = last.Timestamp.UnixMilli()
	s.meta.Unlock()

	return total, nil
}

// maybeIndex inserts a sparse index entry for rec if enough bytes have
// accumulated since the last one, or if this is the segment's first
// record (always indexed regardless of the interval).
func (s *Segment) maybeIndex(rec record.WithOffset, pos uint64, frameLen int) {
	s.meta.Lock()
	due := s.offsetIdx.IsEmpty() || s.bytesSinceIndex >= s.config.IndexIntervalBytes
	if due {
		s.bytesSinceIndex = 0
	} else {
		s.bytesSinceIndex += uint64(frameLen)
	}
	s.meta.Unlock()

	if !due {
		return
	}

	relOffset := uint32(rec.Offset - s.baseOffset)
	if err := s.offsetIdx.Insert(relOffset, uint32(pos)); err != nil {
		s.logger.Warn().Err(err).Str("segment", stem(s.baseOffset)).Msg("offset index insert failed, leaving this sample out")
	}
	if err := s.timeIdx.Insert(rec.Timestamp.UnixMilli(), uint32(pos)); err != nil {
		s.logger.Warn().Err(err).Str("segment", stem(s.baseOffset)).Msg("time index insert failed, leaving this sample out")
	}
}

// Flush drains buffered writes to the OS without fsyncing.
func (s *Segment) Flush() error { return s.store.Flush() }

// Sync flushes and fsyncs the store file.
func (s *Segment) Sync() error { return s.store.Sync() }

// ReadFrom returns records with offset >= offset, in increasing order,
// bounded by maxRecords and maxBytes, along with the total framed bytes
// consumed (so a caller walking multiple segments can carry a byte budget
// forward without re-encoding). Records between the located index entry
// and offset are discarded silently, since the index is sparse.
func (s *Segment) ReadFrom(offset uint64, maxRecords, maxBytes int) ([]record.WithOffset, int, error) {
	base, next := s.baseOffset, s.NextOffset()
	if offset < base || offset > next {
		return nil, 0, ErrOffsetOutOfRange{Offset: offset, BaseOffset: base, NextOffset: next}
	}
	if offset == next {
		return nil, 0, nil
	}

	startPos, ok := s.offsetIdx.LookupFloor(uint32(offset - base))
	if !ok {
		startPos = 0
	}
	return s.scanFrom(uint64(startPos), func(rec record.WithOffset) bool {
		return rec.Offset >= offset
	}, maxRecords, maxBytes)
}

// ReadFromTime returns records with timestamp >= ts (ts in milliseconds
// since epoch), in offset order, bounded by maxRecords and maxBytes, along
// with the total framed bytes consumed.
func (s *Segment) ReadFromTime(tsMillis int64, maxRecords, maxBytes int) ([]record.WithOffset, int, error) {
	// Index entries can share a timestamp (one timestamp per batch), so the
	// floor entry for tsMillis itself may sit after earlier records stamped
	// tsMillis; start from the last entry strictly before tsMillis instead.
	var startPos uint32
	ok := false
	if tsMillis > math.MinInt64 {
		startPos, ok = s.timeIdx.LookupFloor(tsMillis - 1)
	}
	if !ok {
		startPos = 0
	}
	return s.scanFrom(uint64(startPos), func(rec record.WithOffset) bool {
		return rec.Timestamp.UnixMilli() >= tsMillis
	}, maxRecords, maxBytes)
}

func (s *Segment) scanFrom(startPos uint64, match func(record.WithOffset) bool, maxRecords, maxBytes int) ([]record.WithOffset, int, error) {
	size := s.store.Size()
	if startPos >= size {
		return nil, 0, nil
	}

	reader := &storeReaderAt{s: s.store, off: int64(startPos)}
	var out []record.WithOffset
	bytesUsed := 0

	for uint64(reader.off) < s.store.Size() {
		rec, frameLen, err := record.ReadFrame(reader)
		if err != nil {
			break
		}
		if !match(rec) {
			continue
		}
		out = append(out, rec)
		bytesUsed += frameLen
		if maxRecords > 0 && len(out) >= maxRecords {
			break
		}
		if maxBytes > 0 && bytesUsed >= maxBytes {
			break
		}
	}
	return out, bytesUsed, nil
}

// Seal flushes and fsyncs the store, then marks the segment read-only.
// Appends to this implementation are always whole-frame atomic writes
// (see AppendBatch), so the store file is already at a valid record
// boundary by construction; Seal doesn't need to re-scan to find one the
// way Open's crash recovery does.
func (s *Segment) Seal() error {
	s.meta.Lock()
	if s.state == Sealed {
		s.meta.Unlock()
		return nil
	}
	s.state = Sealed
	s.meta.Unlock()

	return s.store.Sync()
}

// Close flushes and closes the segment's files.
func (s *Segment) Close() error {
	if err := s.offsetIdx.Close(); err != nil {
		return err
	}
	if err := s.timeIdx.Close(); err != nil {
		return err
	}
	return s.store.Close()
}
