package segment

import (
	"errors"
	"fmt"
)

// ErrSegmentFull is returned by Append/AppendBatch when a write cannot be
// accepted by this segment; the segment manager reacts by sealing it and
// rolling to a new one.
type ErrSegmentFull struct {
	Reason string
}

func (e ErrSegmentFull) Error() string {
	return fmt.Sprintf("segment: full: %s", e.Reason)
}

// ErrSegmentSealed is returned by Append/AppendBatch on a sealed segment.
var ErrSegmentSealed = errors.New("segment: sealed, cannot append")

// ErrOffsetOutOfRange is returned by ReadFrom when offset doesn't fall
// within [base_offset, next_offset].
type ErrOffsetOutOfRange struct {
	Offset     uint64
	BaseOffset uint64
	NextOffset uint64
}

func (e ErrOffsetOutOfRange) Error() string {
	return fmt.Sprintf("segment: offset %d out of range [%d,%d]", e.Offset, e.BaseOffset, e.NextOffset)
}
