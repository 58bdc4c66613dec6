package auth

import (
	"github.com/flashq/flashq/internal/flashq"
	"github.com/flashq/flashq/internal/record"
)

// PartitionLog wraps a flashq.PartitionLog, authorizing subject for the
// produce action before writes and the consume action before reads. It
// satisfies flashq.PartitionLog itself, so callers can't tell an
// authorized partition apart from a bare one.
type PartitionLog struct {
	inner      flashq.PartitionLog
	authorizer *Authorizer
	subject    string
	object     string
}

// NewPartitionLog wraps inner so appends and reads are checked against
// authorizer for (subject, object). HighWaterMark, EarliestOffset, Count
// and Close pass through unchecked.
func NewPartitionLog(inner flashq.PartitionLog, authorizer *Authorizer, subject, object string) *PartitionLog {
	return &PartitionLog{inner: inner, authorizer: authorizer, subject: subject, object: object}
}

func (p *PartitionLog) Append(rec record.Record) (uint64, error) {
	if err := p.authorizer.Authorize(p.subject, p.object, ProduceAction); err != nil {
		return 0, err
	}
	return p.inner.Append(rec)
}

func (p *PartitionLog) AppendBatch(records []record.Record) (uint64, error) {
	if err := p.authorizer.Authorize(p.subject, p.object, ProduceAction); err != nil {
		return 0, err
	}
	return p.inner.AppendBatch(records)
}

func (p *PartitionLog) ReadFromOffset(offset uint64, maxRecords, maxBytes int) ([]record.WithOffset, error) {
	if err := p.authorizer.Authorize(p.subject, p.object, ConsumeAction); err != nil {
		return nil, err
	}
	return p.inner.ReadFromOffset(offset, maxRecords, maxBytes)
}

func (p *PartitionLog) ReadFromTime(tsMillis int64, maxRecords, maxBytes int) ([]record.WithOffset, error) {
	if err := p.authorizer.Authorize(p.subject, p.object, ConsumeAction); err != nil {
		return nil, err
	}
	return p.inner.ReadFromTime(tsMillis, maxRecords, maxBytes)
}

func (p *PartitionLog) HighWaterMark() uint64  { return p.inner.HighWaterMark() }
func (p *PartitionLog) EarliestOffset() uint64 { return p.inner.EarliestOffset() }
func (p *PartitionLog) Count() uint64          { return p.inner.Count() }
func (p *PartitionLog) Close() error           { return p.inner.Close() }

var _ flashq.PartitionLog = (*PartitionLog)(nil)
