// Package memstore is the in-memory storage backend's partition log: the
// same PartitionLog surface as internal/partitionlog, held entirely in
// process memory with no segment files, no index files, and no
// fsyncing — used for tests and ephemeral deployments.
package memstore

import (
	"sync"
	"time"

	"github.com/flashq/flashq/internal/partitionlog"
	"github.com/flashq/flashq/internal/record"
	"github.com/flashq/flashq/internal/segmentmgr"
)

// Config mirrors the sizing knobs that matter for a memory-only log:
// there's no segment rolling or index interval to configure.
type Config struct {
	MaxBatchBytes uint64
}

func (c Config) withDefaults() Config {
	if c.MaxBatchBytes == 0 {
		c.MaxBatchBytes = partitionlog.DefaultMaxBatchBytes
	}
	return c
}

// PartitionLog is a topic-partition's records kept as a plain slice
// behind one mutex: no durability, no segment rolling, offsets are just
// slice indices.
type PartitionLog struct {
	config Config

	mu      sync.Mutex
	records []record.WithOffset
}

// New returns an empty in-memory partition log.
func New(cfg Config) *PartitionLog {
	return &PartitionLog{config: cfg.withDefaults()}
}

// Append assigns the next offset, stamps rec with the current UTC time,
// and appends it.
func (p *PartitionLog) Append(rec record.Record) (uint64, error) {
	return p.AppendBatch([]record.Record{rec})
}

// AppendBatch assigns consecutive offsets and one entry timestamp to the
// whole batch, mirroring partitionlog.PartitionLog's semantics minus
// persistence.
func (p *PartitionLog) AppendBatch(records []record.Record) (uint64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ts := time.Now().UTC()
	offset := uint64(len(p.records))
	staged := make([]record.WithOffset, len(records))
	total := 0
	for i, r := range records {
		wo := record.WithOffset{Record: r, Offset: offset + uint64(i), Timestamp: ts}
		frame, err := record.Encode(wo)
		if err != nil {
			return 0, err
		}
		staged[i] = wo
		total += len(frame)
	}
	if total > int(p.config.MaxBatchBytes) {
		return 0, partitionlog.ErrBatchTooLarge{Size: total, MaxSize: p.config.MaxBatchBytes}
	}

	p.records = append(p.records, staged...)
	return staged[len(staged)-1].Offset, nil
}

// ReadFromOffset returns records with offset >= offset, bounded by
// maxRecords and maxBytes (0 means unbounded for either).
func (p *PartitionLog) ReadFromOffset(offset uint64, maxRecords, maxBytes int) ([]record.WithOffset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hwm := uint64(len(p.records))
	if offset > hwm {
		return nil, segmentmgr.ErrOffsetOutOfRange{Offset: offset, EarliestOffset: 0, HighWaterMark: hwm}
	}
	if offset == hwm {
		return nil, nil
	}
	return p.collect(p.records[offset:], maxRecords, maxBytes), nil
}

// ReadFromTime returns records with timestamp >= tsMillis, offset-ordered.
func (p *PartitionLog) ReadFromTime(tsMillis int64, maxRecords, maxBytes int) ([]record.WithOffset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := len(p.records)
	for i, r := range p.records {
		if r.Timestamp.UnixMilli() >= tsMillis {
			start = i
			break
		}
	}
	return p.collect(p.records[start:], maxRecords, maxBytes), nil
}

// collect applies the maxRecords/maxBytes progress-guarantee bounds to an
// already-filtered, already-ordered slice. Called with p.mu held.
func (p *PartitionLog) collect(in []record.WithOffset, maxRecords, maxBytes int) []record.WithOffset {
	var out []record.WithOffset
	bytesUsed := 0
	for _, r := range in {
		frame, err := record.Encode(r)
		if err != nil {
			break
		}
		out = append(out, r)
		bytesUsed += len(frame)
		if maxRecords > 0 && len(out) >= maxRecords {
			break
		}
		if maxBytes > 0 && bytesUsed >= maxBytes {
			break
		}
	}
	return out
}

// HighWaterMark is the offset the next append will receive.
func (p *PartitionLog) HighWaterMark() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint64(len(p.records))
}

// EarliestOffset is always 0: the memory backend never retires records.
func (p *PartitionLog) EarliestOffset() uint64 { return 0 }

// Count is the number of records currently retained.
func (p *PartitionLog) Count() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint64(len(p.records))
}

// Close is a no-op: there's nothing to flush or release.
func (p *PartitionLog) Close() error { return nil }
