package storeindex

import "fmt"

// ErrKeyNotMonotonic is returned by Insert when the supplied key would
// break the index's strictly-increasing-key invariant (or, for the time
// index, the increasing-position-on-equal-key invariant).
type ErrKeyNotMonotonic struct {
	Key     int64
	LastKey int64
}

func (e ErrKeyNotMonotonic) Error() string {
	return fmt.Sprintf("storeindex: entry with key %d breaks the index's monotonicity rule (last indexed key %d)", e.Key, e.LastKey)
}

// errFull is returned internally when an index file has no room left for
// another entry; the segment logs it and leaves that sample out of the
// index, never surfacing it to users directly.
type errFull struct{}

func (errFull) Error() string { return "storeindex: index file is full" }
