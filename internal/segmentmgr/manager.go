// Package segmentmgr owns a partition's ordered sequence of log segments:
// which one is active and writable, how a write that would overflow the
// active segment triggers a seal-and-roll, and how a read for an
// arbitrary offset or timestamp locates the segment that holds it.
package segmentmgr

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flashq/flashq/internal/record"
	"github.com/flashq/flashq/internal/segment"
)

// Config sizes a manager's segments and its sealed-segment fd cache.
type Config struct {
	Segment     segment.Config
	FDCacheSize int
}

// segmentInfo is what the manager remembers about a segment without
// necessarily holding it open: enough to route reads and verify the
// chain is gap-free.
type segmentInfo struct {
	baseOffset uint64
	count      uint64
}

func (si segmentInfo) nextOffset() uint64 { return si.baseOffset + si.count }

// Manager is the ordered, gap-free sequence of segments backing one
// partition's log.
type Manager struct {
	dir    string
	config Config
	logger zerolog.Logger

	mu       sync.RWMutex
	segments []segmentInfo
	active   *segment.Segment
	fds      *fdCache
}

// Load opens dir's segment chain, creating a fresh single segment at
// base offset 0 if dir is empty. Every segment but the last on disk is
// reopened once just to measure its record count, then closed; the last
// (by base offset) becomes the live, held-open active segment. The chain
// is then checked for gaps before Load returns.
func Load(dir string, cfg Config, logger zerolog.Logger) (*Manager, error) {
	baseOffsets, err := segmentBaseOffsets(dir)
	if err != nil {
		return nil, err
	}

	fds, err := newFDCache(cfg.FDCacheSize)
	if err != nil {
		return nil, fmt.Errorf("segmentmgr: fd cache: %w", err)
	}

	m := &Manager{dir: dir, config: cfg, logger: logger, fds: fds}

	if len(baseOffsets) == 0 {
		active, err := segment.OpenOrCreate(dir, 0, cfg.Segment, logger)
		if err != nil {
			return nil, err
		}
		m.active = active
		m.segments = []segmentInfo{{baseOffset: 0, count: 0}}
		return m, nil
	}

	for i, off := range baseOffsets {
		seg, err := segment.OpenOrCreate(dir, off, cfg.Segment, logger)
		if err != nil {
			return nil, err
		}
		count := seg.Count()
		if i == len(baseOffsets)-1 {
			m.active = seg
		} else if err := seg.Close(); err != nil {
			return nil, err
		}
		m.segments = append(m.segments, segmentInfo{baseOffset: off, count: count})
	}

	for i := 1; i < len(m.segments); i++ {
		prev, cur := m.segments[i-1], m.segments[i]
		if cur.baseOffset != prev.nextOffset() {
			return nil, ErrSegmentChainCorrupt{
				Dir:              dir,
				PrevBaseOffset:   prev.baseOffset,
				PrevNextOffset:   prev.nextOffset(),
				FoundNextBaseOff: cur.baseOffset,
			}
		}
	}

	return m, nil
}

func segmentBaseOffsets(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("segmentmgr: read dir: %w", err)
	}

	var offsets []uint64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".log")
		off, err := strconv.ParseUint(stem, 10, 64)
		if err != nil {
			continue
		}
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets, nil
}

// HighWaterMark is the offset that will be assigned to the next appended
// record.
func (m *Manager) HighWaterMark() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.NextOffset()
}

// EarliestOffset is the lowest offset still retained.
func (m *Manager) EarliestOffset() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.segments[0].baseOffset
}

// Count is the number of records currently retained across all segments.
func (m *Manager) Count() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.NextOffset() - m.segments[0].baseOffset
}

// AppendBatch appends records to the active segment, first sealing it and
// rolling to a fresh one if the active segment has already reached
// max_segment_bytes before this batch, or if the batch would overflow its
// relative-offset space. A batch is never split across segments: if it
// pushes the active segment over its soft limit, that's left for the
// next roll.
func (m *Manager) AppendBatch(records []record.WithOffset) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lastOffset := records[len(records)-1].Offset
	relOverflow := lastOffset-m.active.BaseOffset() > uint64(^uint32(0))
	overSize := m.active.SizeBytes() >= m.config.Segment.WithDefaults().MaxStoreBytes

	if relOverflow || overSize {
		if err := m.roll(); err != nil {
			return 0, err
		}
	}

	n, err := m.active.AppendBatch(records)
	if err != nil {
		return 0, err
	}
	m.segments[len(m.segments)-1].count = m.active.Count()
	return n, nil
}

// roll seals the active segment and opens a fresh one at its next
// offset. Called with mu held.
func (m *Manager) roll() error {
	if err := m.active.Seal(); err != nil {
		return fmt.Errorf("segmentmgr: seal active segment: %w", err)
	}
	m.segments[len(m.segments)-1].count = m.active.Count()
	newBase := m.active.NextOffset()

	if err := m.active.Close(); err != nil {
		return fmt.Errorf("segmentmgr: close sealed segment: %w", err)
	}

	next, err := segment.OpenOrCreate(m.dir, newBase, m.config.Segment, m.logger)
	if err != nil {
		return fmt.Errorf("segmentmgr: open rolled segment: %w", err)
	}

	m.active = next
	m.segments = append(m.segments, segmentInfo{baseOffset: newBase, count: 0})
	m.logger.Info().Str("dir", m.dir).Uint64("new_base_offset", newBase).Msg("rolled segment")
	return nil
}

// snapshot takes a consistent view of the segment chain under a short
// read lock, then releases it: everything past this point walks segment
// files without holding the manager lock, so readers only take a brief
// lock to snapshot state.
func (m *Manager) snapshot() (active *segment.Segment, segments []segmentInfo) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active, append([]segmentInfo(nil), m.segments...)
}

// segmentFor returns the open segment for baseOffset, which may be the
// live active segment or a sealed one served from (and added to) the fd
// cache.
func (m *Manager) segmentFor(active *segment.Segment, baseOffset uint64) (*segment.Segment, error) {
	if baseOffset == active.BaseOffset() {
		return active, nil
	}
	if seg, ok := m.fds.get(baseOffset); ok {
		return seg, nil
	}
	seg, err := segment.OpenOrCreate(m.dir, baseOffset, m.config.Segment, m.logger)
	if err != nil {
		return nil, err
	}
	m.fds.add(baseOffset, seg)
	return seg, nil
}

// FindSegmentForOffset returns the segment containing offset, or the
// active segment if offset is exactly the high water mark (an empty read
// waiting at the tail).
func (m *Manager) FindSegmentForOffset(offset uint64) (*segment.Segment, error) {
	active, segments := m.snapshot()
	hwm := active.NextOffset()

	if offset == hwm {
		return active, nil
	}
	if offset < segments[0].baseOffset || offset > hwm {
		return nil, ErrOffsetOutOfRange{Offset: offset, EarliestOffset: segments[0].baseOffset, HighWaterMark: hwm}
	}
	for _, s := range segments {
		upper := s.nextOffset()
		if s.baseOffset == active.BaseOffset() {
			upper = hwm
		}
		if offset >= s.baseOffset && offset < upper {
			return m.segmentFor(active, s.baseOffset)
		}
	}
	return nil, ErrOffsetOutOfRange{Offset: offset, EarliestOffset: segments[0].baseOffset, HighWaterMark: hwm}
}

// FindSegmentForTime returns the earliest segment whose last record
// timestamp is >= tsMillis, scanning backward from the active segment;
// falls back to the earliest retained segment if every segment's last
// record predates tsMillis.
func (m *Manager) FindSegmentForTime(tsMillis int64) (*segment.Segment, error) {
	active, segments := m.snapshot()

	found := segments[0].baseOffset
	for i := len(segments) - 1; i >= 0; i-- {
		seg, err := m.segmentFor(active, segments[i].baseOffset)
		if err != nil {
			return nil, err
		}
		if seg.Count() == 0 {
			continue
		}
		if seg.LastTimestampMillis() < tsMillis {
			break
		}
		found = segments[i].baseOffset
	}
	return m.segmentFor(active, found)
}

// ReadFrom walks segments forward starting from the one containing
// offset, concatenating records until maxRecords or maxBytes is reached
// (0 means unbounded) or the chain is exhausted.
func (m *Manager) ReadFrom(offset uint64, maxRecords, maxBytes int) ([]record.WithOffset, error) {
	active, segments := m.snapshot()
	hwm := active.NextOffset()

	if offset < segments[0].baseOffset || offset > hwm {
		return nil, ErrOffsetOutOfRange{Offset: offset, EarliestOffset: segments[0].baseOffset, HighWaterMark: hwm}
	}
	if offset == hwm {
		return nil, nil
	}

	startIdx := -1
	for i, s := range segments {
		upper := s.nextOffset()
		if s.baseOffset == active.BaseOffset() {
			upper = hwm
		}
		if offset >= s.baseOffset && offset < upper {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		return nil, ErrOffsetOutOfRange{Offset: offset, EarliestOffset: segments[0].baseOffset, HighWaterMark: hwm}
	}

	var out []record.WithOffset
	next := offset
	remainingRecords, remainingBytes := maxRecords, maxBytes

	for i := startIdx; i < len(segments); i++ {
		seg, err := m.segmentFor(active, segments[i].baseOffset)
		if err != nil {
			return out, err
		}
		got, used, err := seg.ReadFrom(next, remainingRecords, remainingBytes)
		if err != nil {
			return out, err
		}
		out = append(out, got...)
		if len(got) > 0 {
			next = got[len(got)-1].Offset + 1
		} else {
			next = seg.NextOffset()
		}

		if maxRecords > 0 {
			remainingRecords = maxRecords - len(out)
			if remainingRecords <= 0 {
				break
			}
		}
		if maxBytes > 0 {
			remainingBytes -= used
			if remainingBytes <= 0 {
				break
			}
		}
	}
	return out, nil
}

// SyncActive flushes and fsyncs the current active segment, used by the
// partition log's batch and interval durability policies.
func (m *Manager) SyncActive() error {
	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()
	return active.Sync()
}

// Close flushes the active segment and closes every open segment,
// including whatever the fd cache is still holding.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fds.purge()
	return m.active.Close()
}
