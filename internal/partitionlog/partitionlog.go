// Package partitionlog is one topic-partition's public surface:
// assigning offsets, batching, and read-by-offset or read-by-time,
// backed by a segmentmgr.Manager. Offset assignment and durability
// policy live here; segment routing and rolling belong to segmentmgr.
package partitionlog

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/flashq/flashq/internal/record"
	"github.com/flashq/flashq/internal/segmentmgr"
)

// PartitionLog is one topic-partition's append-only record log.
type PartitionLog struct {
	topic     string
	partition int
	config    Config
	logger    zerolog.Logger

	mgr *segmentmgr.Manager

	writeMu  sync.Mutex
	poisoned error

	stopFsync chan struct{}
	fsyncDone chan struct{}
}

// Open loads (or creates) the segment chain at dir and returns a ready
// PartitionLog for (topic, partition).
func Open(dir, topic string, partition int, cfg Config, logger zerolog.Logger) (*PartitionLog, error) {
	cfg = cfg.WithDefaults()

	mgr, err := segmentmgr.Load(dir, cfg.Segments, logger)
	if err != nil {
		return nil, err
	}

	pl := &PartitionLog{
		topic:     topic,
		partition: partition,
		config:    cfg,
		logger:    logger,
		mgr:       mgr,
	}

	if cfg.Durability == DurabilityInterval {
		pl.stopFsync = make(chan struct{})
		pl.fsyncDone = make(chan struct{})
		go pl.runIntervalFsync()
	}

	return pl, nil
}

// Append assigns the next offset, stamps the record with the current UTC
// time, appends it, and returns the assigned offset.
func (pl *PartitionLog) Append(rec record.Record) (uint64, error) {
	last, err := pl.AppendBatch([]record.Record{rec})
	if err != nil {
		return 0, err
	}
	return last, nil
}

// AppendBatch assigns consecutive offsets to records, stamping all of
// them with one timestamp (the batch's wall-clock time at entry), and
// returns the last assigned offset.
func (pl *PartitionLog) AppendBatch(records []record.Record) (uint64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	pl.writeMu.Lock()
	defer pl.writeMu.Unlock()

	if pl.poisoned != nil {
		return 0, ErrPartitionPoisoned{Cause: pl.poisoned}
	}

	withOffsets, totalBytes, err := pl.stamp(records)
	if err != nil {
		return 0, err
	}
	if totalBytes > int(pl.config.MaxBatchBytes) {
		return 0, ErrBatchTooLarge{Size: totalBytes, MaxSize: pl.config.MaxBatchBytes}
	}

	if _, err := pl.mgr.AppendBatch(withOffsets); err != nil {
		if !isDomainError(err) {
			pl.poisoned = err
		}
		return 0, err
	}

	if pl.config.Durability == DurabilityBatch {
		if err := pl.mgr.SyncActive(); err != nil {
			pl.poisoned = err
			return 0, err
		}
	}

	return withOffsets[len(withOffsets)-1].Offset, nil
}

// stamp assigns consecutive offsets starting at the current high water
// mark and a single entry timestamp to every record, pre-encoding each
// one to measure the batch's total serialized size up front.
func (pl *PartitionLog) stamp(records []record.Record) ([]record.WithOffset, int, error) {
	offset := pl.mgr.HighWaterMark()
	ts := time.Now().UTC()

	out := make([]record.WithOffset, len(records))
	total := 0
	for i, r := range records {
		wo := record.WithOffset{Record: r, Offset: offset, Timestamp: ts}
		frame, err := record.Encode(wo)
		if err != nil {
			return nil, 0, err
		}
		out[i] = wo
		total += len(frame)
		offset++
	}
	return out, total, nil
}

// isDomainError reports whether err is a per-call validation failure
// (never poisons the partition) as opposed to an underlying I/O failure.
func isDomainError(err error) bool {
	var tooLarge record.ErrRecordTooLarge
	return errors.As(err, &tooLarge)
}

// ReadFromOffset returns records with offset >= offset, bounded by
// maxRecords and maxBytes (0 means unbounded for either).
func (pl *PartitionLog) ReadFromOffset(offset uint64, maxRecords, maxBytes int) ([]record.WithOffset, error) {
	return pl.mgr.ReadFrom(offset, maxRecords, maxBytes)
}

// ReadFromTime returns records with timestamp >= tsMillis, offset-ordered.
func (pl *PartitionLog) ReadFromTime(tsMillis int64, maxRecords, maxBytes int) ([]record.WithOffset, error) {
	seg, err := pl.mgr.FindSegmentForTime(tsMillis)
	if err != nil {
		return nil, err
	}
	got, _, err := seg.ReadFromTime(tsMillis, maxRecords, maxBytes)
	if err != nil {
		return nil, err
	}
	if maxRecords > 0 && len(got) >= maxRecords {
		return got, nil
	}
	// The located segment may not hold every qualifying record: walk
	// forward from its first return (or its own high water mark, if it
	// held none) the same way ReadFromOffset does.
	next := seg.NextOffset()
	if len(got) > 0 {
		next = got[len(got)-1].Offset + 1
	}
	remainingRecords := 0
	if maxRecords > 0 {
		remainingRecords = maxRecords - len(got)
	}
	rest, err := pl.mgr.ReadFrom(next, remainingRecords, 0)
	if err != nil {
		return got, nil
	}
	for _, r := range rest {
		if r.Timestamp.UnixMilli() >= tsMillis {
			got = append(got, r)
		}
	}
	return got, nil
}

// HighWaterMark is the offset the next append will receive.
func (pl *PartitionLog) HighWaterMark() uint64 { return pl.mgr.HighWaterMark() }

// EarliestOffset is the lowest offset still retained.
func (pl *PartitionLog) EarliestOffset() uint64 { return pl.mgr.EarliestOffset() }

// Count is the number of records currently retained.
func (pl *PartitionLog) Count() uint64 { return pl.mgr.Count() }

func (pl *PartitionLog) runIntervalFsync() {
	defer close(pl.fsyncDone)
	ticker := time.NewTicker(pl.config.fsyncInterval())
	defer ticker.Stop()

	for {
		select {
		case <-pl.stopFsync:
			return
		case <-ticker.C:
			if err := pl.mgr.SyncActive(); err != nil {
				pl.logger.Warn().Err(err).Str("topic", pl.topic).Int("partition", pl.partition).Msg("interval fsync failed")
			}
		}
	}
}

// Close stops the background fsync goroutine (if any) and closes the
// underlying segment manager.
func (pl *PartitionLog) Close() error {
	if pl.stopFsync != nil {
		close(pl.stopFsync)
		<-pl.fsyncDone
	}
	return pl.mgr.Close()
}
