package partitionlog

import (
	"time"

	"github.com/flashq/flashq/internal/segmentmgr"
)

// Config sizes a partition's segments and governs its durability policy.
type Config struct {
	Segments            segmentmgr.Config
	MaxBatchBytes       uint64
	Durability          Durability
	FsyncIntervalMillis int
}

// WithDefaults fills in zero fields with their production defaults.
func (c Config) WithDefaults() Config {
	if c.MaxBatchBytes == 0 {
		c.MaxBatchBytes = DefaultMaxBatchBytes
	}
	if c.FsyncIntervalMillis == 0 {
		c.FsyncIntervalMillis = DefaultFsyncIntervalMillis
	}
	return c
}

func (c Config) fsyncInterval() time.Duration {
	return time.Duration(c.FsyncIntervalMillis) * time.Millisecond
}
