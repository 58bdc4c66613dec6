package storeindex

import "os"

// OffsetIndex maps a sampled subset of a segment's relative offsets to
// their byte position in the store file. Keys must be strictly
// increasing.
type OffsetIndex struct {
	p        *packedIndex
	lastKey  int64
	hasEntry bool
}

// NewOffsetIndex opens the offset index backed by f, preallocating the
// file to maxBytes.
// maxBytes bounds how many entries the index can ever hold; it's derived by
// the segment from max_segment_bytes/index_interval_bytes.
func NewOffsetIndex(f *os.File, maxBytes uint64) (*OffsetIndex, error) {
	p, err := newPackedIndex(f, maxBytes, 4)
	if err != nil {
		return nil, err
	}
	oi := &OffsetIndex{p: p}
	if n := p.entryCount(); n > 0 {
		k, _, err := p.readAt(n - 1)
		if err != nil {
			return nil, err
		}
		oi.lastKey, oi.hasEntry = k, true
	}
	return oi, nil
}

// Insert appends (relativeOffset, position). relativeOffset must be
// strictly greater than every previously inserted key.
func (oi *OffsetIndex) Insert(relativeOffset uint32, position uint32) error {
	key := int64(relativeOffset)
	if oi.hasEntry && key <= oi.lastKey {
		return ErrKeyNotMonotonic{Key: key, LastKey: oi.lastKey}
	}
	if err := oi.p.appendRaw(key, position); err != nil {
		return err
	}
	oi.lastKey, oi.hasEntry = key, true
	return nil
}

// LookupFloor returns the file position of the largest indexed key <=
// relativeOffset. ok is false if the index has no such entry, meaning the
// caller should scan from the start of the segment.
func (oi *OffsetIndex) LookupFloor(relativeOffset uint32) (position uint32, ok bool) {
	return oi.p.lookupFloor(int64(relativeOffset))
}

// IsEmpty reports whether the index has no entries.
func (oi *OffsetIndex) IsEmpty() bool { return oi.p.isEmpty() }

// Close flushes the index to disk, truncates off the preallocated tail,
// and closes the file.
func (oi *OffsetIndex) Close() error { return oi.p.close() }

// Name returns the index's file path.
func (oi *OffsetIndex) Name() string { return oi.p.name() }
