package segmentmgr

import "fmt"

// ErrSegmentChainCorrupt is returned by Load when the segments found on
// disk don't form a gap-free chain: some segment's base offset doesn't
// pick up exactly where the previous one left off.
type ErrSegmentChainCorrupt struct {
	Dir              string
	PrevBaseOffset   uint64
	PrevNextOffset   uint64
	FoundNextBaseOff uint64
}

func (e ErrSegmentChainCorrupt) Error() string {
	return fmt.Sprintf("segmentmgr: %s: segment chain gap: expected next base offset %d after [%d,%d), found %d",
		e.Dir, e.PrevNextOffset, e.PrevBaseOffset, e.PrevNextOffset, e.FoundNextBaseOff)
}

// ErrOffsetOutOfRange is returned when a requested offset falls outside
// [earliest_offset, high_water_mark].
type ErrOffsetOutOfRange struct {
	Offset         uint64
	EarliestOffset uint64
	HighWaterMark  uint64
}

func (e ErrOffsetOutOfRange) Error() string {
	return fmt.Sprintf("segmentmgr: offset %d out of range [%d,%d]", e.Offset, e.EarliestOffset, e.HighWaterMark)
}
