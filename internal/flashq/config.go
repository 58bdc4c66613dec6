package flashq

import "github.com/flashq/flashq/internal/partitionlog"

// Kind selects a backend's storage medium.
type Kind int

const (
	KindMemory Kind = iota
	KindFile
)

// Config is everything a backend open call accepts.
type Config struct {
	Kind                Kind
	DataDir             string
	MaxSegmentBytes     uint64
	IndexIntervalBytes  uint64
	MaxBatchBytes       uint64
	Durability          partitionlog.Durability
	FsyncIntervalMillis int
	FDCachePerPartition int
}

// WithDefaults fills in zero fields with their production defaults.
func (c Config) WithDefaults() Config {
	if c.MaxSegmentBytes == 0 {
		c.MaxSegmentBytes = 134_217_728
	}
	if c.IndexIntervalBytes == 0 {
		c.IndexIntervalBytes = 4096
	}
	if c.MaxBatchBytes == 0 {
		c.MaxBatchBytes = 8_388_608
	}
	if c.FsyncIntervalMillis == 0 {
		c.FsyncIntervalMillis = 100
	}
	if c.FDCachePerPartition == 0 {
		c.FDCachePerPartition = 64
	}
	return c
}
