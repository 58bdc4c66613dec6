// Package flashq is the storage backend factory: the single entry point
// that opens either an in-memory or a file-rooted
// backend behind the same PartitionLog and ConsumerOffsetStore surface,
// and that owns the data directory's exclusive lock for the file
// backend's lifetime.
package flashq

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flashq/flashq/internal/memstore"
	"github.com/flashq/flashq/internal/offsetstore"
	"github.com/flashq/flashq/internal/partitionlog"
	"github.com/flashq/flashq/internal/segment"
	"github.com/flashq/flashq/internal/segmentmgr"
)

func partitionKey(topic string, partition int) string {
	return topic + "/" + strconv.Itoa(partition)
}

// Backend is an open storage backend: a factory for partition logs and
// the shared consumer offset store. Partition creation is a get-or-insert
// under a mutex rather than a lock-free sync.Map, because constructing a
// file-backed PartitionLog opens segment files — racing two goroutines
// through an unguarded "create, then store if absent" sequence could open
// the same segment directory twice and corrupt it, which a plain
// LoadOrStore can't prevent.
type Backend struct {
	config Config
	logger zerolog.Logger
	lock   *dirLock

	mu         sync.Mutex
	partitions map[string]PartitionLog

	offsets *offsetstore.ConsumerOffsetStore
}

// Open constructs a backend per cfg.Kind. For KindFile, it acquires the
// exclusive data_dir lock; a second process opening the same directory
// fails immediately with ErrDataDirLocked.
func Open(cfg Config, logger zerolog.Logger) (*Backend, error) {
	cfg = cfg.WithDefaults()

	b := &Backend{
		config:     cfg,
		logger:     logger,
		partitions: map[string]PartitionLog{},
	}

	switch cfg.Kind {
	case KindFile:
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("flashq: data_dir is required for the file backend")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("flashq: mkdir data_dir: %w", err)
		}
		lock, err := acquireDirLock(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		b.lock = lock

		offsets, err := offsetstore.Open(filepath.Join(cfg.DataDir, "consumer_groups"), logger)
		if err != nil {
			_ = lock.release()
			return nil, err
		}
		b.offsets = offsets

	case KindMemory:
		offsets, err := offsetstore.Open("", logger)
		if err != nil {
			return nil, err
		}
		b.offsets = offsets

	default:
		return nil, fmt.Errorf("flashq: unknown backend kind %d", cfg.Kind)
	}

	return b, nil
}

// CreateOrOpenPartition returns the PartitionLog for (topic, partition),
// creating it on first access.
func (b *Backend) CreateOrOpenPartition(topic string, partition int) (PartitionLog, error) {
	if err := validateName("topic", topic); err != nil {
		return nil, err
	}

	key := partitionKey(topic, partition)

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.partitions[key]; ok {
		return existing, nil
	}

	pl, err := b.openPartitionLocked(topic, partition)
	if err != nil {
		return nil, err
	}
	b.partitions[key] = pl
	return pl, nil
}

func (b *Backend) openPartitionLocked(topic string, partition int) (PartitionLog, error) {
	switch b.config.Kind {
	case KindMemory:
		return memstore.New(memstore.Config{MaxBatchBytes: b.config.MaxBatchBytes}), nil

	case KindFile:
		dir := filepath.Join(b.config.DataDir, topic, strconv.Itoa(partition))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("flashq: mkdir partition dir: %w", err)
		}
		cfg := partitionlog.Config{
			Segments: segmentmgr.Config{
				Segment: segment.Config{
					MaxStoreBytes:      b.config.MaxSegmentBytes,
					IndexIntervalBytes: b.config.IndexIntervalBytes,
				},
				FDCacheSize: b.config.FDCachePerPartition,
			},
			MaxBatchBytes:       b.config.MaxBatchBytes,
			Durability:          b.config.Durability,
			FsyncIntervalMillis: b.config.FsyncIntervalMillis,
		}
		return partitionlog.Open(dir, topic, partition, cfg, b.logger)

	default:
		return nil, fmt.Errorf("flashq: unknown backend kind %d", b.config.Kind)
	}
}

// ConsumerOffsets returns a handle bound to group, backed by this
// backend's single shared offset store, so callers don't have to repeat
// the group id on every call.
func (b *Backend) ConsumerOffsets(group string) (*GroupOffsets, error) {
	if err := validateName("group_id", group); err != nil {
		return nil, err
	}
	return &GroupOffsets{group: group, store: b.offsets}, nil
}

// Close closes every open partition and releases the data_dir lock, if
// one was acquired.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for _, pl := range b.partitions {
		if err := pl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := b.lock.release(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
