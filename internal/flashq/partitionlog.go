package flashq

import "github.com/flashq/flashq/internal/record"

// PartitionLog is the surface both the memory and file backends'
// partition implementations satisfy. Collaborators code against this
// interface and never see which backend they got.
type PartitionLog interface {
	Append(rec record.Record) (uint64, error)
	AppendBatch(records []record.Record) (uint64, error)
	ReadFromOffset(offset uint64, maxRecords, maxBytes int) ([]record.WithOffset, error)
	ReadFromTime(tsMillis int64, maxRecords, maxBytes int) ([]record.WithOffset, error)
	HighWaterMark() uint64
	EarliestOffset() uint64
	Count() uint64
	Close() error
}
