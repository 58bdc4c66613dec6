package storeindex

import "os"

// TimeIndex maps a sampled subset of a segment's record timestamps
// (milliseconds since epoch) to their byte position in the store file.
// Timestamps may repeat across records, so keys may repeat too, but only
// if the file position strictly increases — the index stays monotonic on
// position even when it isn't strictly monotonic on key.
type TimeIndex struct {
	p        *packedIndex
	lastKey  int64
	lastPos  uint32
	hasEntry bool
}

// NewTimeIndex opens the time index backed by f, preallocating the file
// to maxBytes.
func NewTimeIndex(f *os.File, maxBytes uint64) (*TimeIndex, error) {
	p, err := newPackedIndex(f, maxBytes, 8)
	if err != nil {
		return nil, err
	}
	ti := &TimeIndex{p: p}
	if n := p.entryCount(); n > 0 {
		k, pos, err := p.readAt(n - 1)
		if err != nil {
			return nil, err
		}
		ti.lastKey, ti.lastPos, ti.hasEntry = k, pos, true
	}
	return ti, nil
}

// Insert appends (timestampMillis, position). position must strictly
// increase; timestampMillis must be >= the last inserted key, and if equal,
// position must still have increased (which it always has, since the store
// only grows).
func (ti *TimeIndex) Insert(timestampMillis int64, position uint32) error {
	if ti.hasEntry {
		if timestampMillis < ti.lastKey {
			return ErrKeyNotMonotonic{Key: timestampMillis, LastKey: ti.lastKey}
		}
		if position <= ti.lastPos {
			return ErrKeyNotMonotonic{Key: timestampMillis, LastKey: ti.lastKey}
		}
	}
	if err := ti.p.appendRaw(timestampMillis, position); err != nil {
		return err
	}
	ti.lastKey, ti.lastPos, ti.hasEntry = timestampMillis, position, true
	return nil
}

// LookupFloor returns the file position of the latest entry whose key is <=
// timestampMillis. ok is false if the index has no such entry.
func (ti *TimeIndex) LookupFloor(timestampMillis int64) (position uint32, ok bool) {
	return ti.p.lookupFloor(timestampMillis)
}

// IsEmpty reports whether the index has no entries.
func (ti *TimeIndex) IsEmpty() bool { return ti.p.isEmpty() }

// Close flushes the index to disk, truncates off the preallocated tail,
// and closes the file.
func (ti *TimeIndex) Close() error { return ti.p.close() }

// Name returns the index's file path.
func (ti *TimeIndex) Name() string { return ti.p.name() }
