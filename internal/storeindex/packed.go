// Package storeindex implements the sparse offset and time indices a log
// segment keeps alongside its store file. Both index flavors are sorted,
// fixed-width-entry, memory-mapped files supporting floor-lookup; they
// share the packedIndex primitive below and differ only in key width
// and monotonicity rule.
package storeindex

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/tysonmote/gommap"
)

const posWidth = 4

var enc = binary.LittleEndian

// packedIndex is a sorted array of (key, position) entries backed by a
// memory-mapped, pre-truncated file. keyWidth is 4 for the offset index
// and 8 for the time index; entryWidth is keyWidth+posWidth.
type packedIndex struct {
	mu sync.RWMutex

	file     *os.File
	mmap     gommap.MMap
	size     uint64
	maxBytes uint64

	keyWidth   uint64
	entryWidth uint64
}

func newPackedIndex(f *os.File, maxBytes uint64, keyWidth uint64) (*packedIndex, error) {
	fi, err := os.Stat(f.Name())
	if err != nil {
		return nil, err
	}

	idx := &packedIndex{
		file:       f,
		size:       uint64(fi.Size()),
		maxBytes:   maxBytes,
		keyWidth:   keyWidth,
		entryWidth: keyWidth + posWidth,
	}

	// gommap can't grow a mapped file, so preallocate to the cap now and
	// truncate back down to the live size on Close.
	if err := os.Truncate(f.Name(), int64(maxBytes)); err != nil {
		return nil, err
	}

	idx.mmap, err = gommap.Map(f.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	return idx, nil
}

// entryCount returns the number of fully-written entries.
func (i *packedIndex) entryCount() uint64 {
	return i.size / i.entryWidth
}

// readAt returns the key and position of the n'th entry (0-based).
func (i *packedIndex) readAt(n uint64) (key int64, pos uint32, err error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if n >= i.entryCount() {
		return 0, 0, io.EOF
	}
	off := n * i.entryWidth
	key = i.readKey(i.mmap[off : off+i.keyWidth])
	pos = enc.Uint32(i.mmap[off+i.keyWidth : off+i.entryWidth])
	return key, pos, nil
}

// appendRaw writes a new entry without any monotonicity validation; the
// typed wrappers (OffsetIndex, TimeIndex) enforce their own rule before
// calling this.
func (i *packedIndex) appendRaw(key int64, pos uint32) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.size+i.entryWidth > i.maxBytes {
		return errFull{}
	}

	off := i.size
	i.writeKey(i.mmap[off:off+i.keyWidth], key)
	enc.PutUint32(i.mmap[off+i.keyWidth:off+i.entryWidth], pos)
	i.size += i.entryWidth
	return nil
}

// lookupFloor returns the position of the last entry whose key is <= target.
// ok is false when the index has no such entry (caller should scan from the
// start of the segment).
func (i *packedIndex) lookupFloor(target int64) (pos uint32, ok bool) {
	i.mu.RLock()
	n := i.entryCount()
	i.mu.RUnlock()

	if n == 0 {
		return 0, false
	}

	// lo converges to the first index whose key is > target; the floor
	// entry, if any, sits just before it.
	lo, hi := uint64(0), n
	for lo < hi {
		mid := lo + (hi-lo)/2
		k, _, err := i.readAt(mid)
		if err != nil {
			return 0, false
		}
		if k <= target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0, false
	}
	_, pos, err := i.readAt(lo - 1)
	if err != nil {
		return 0, false
	}
	return pos, true
}

func (i *packedIndex) readKey(b []byte) int64 {
	if i.keyWidth == 4 {
		return int64(enc.Uint32(b))
	}
	return int64(enc.Uint64(b))
}

func (i *packedIndex) writeKey(b []byte, key int64) {
	if i.keyWidth == 4 {
		enc.PutUint32(b, uint32(key))
		return
	}
	enc.PutUint64(b, uint64(key))
}

func (i *packedIndex) close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.mmap.Sync(gommap.MS_SYNC); err != nil {
		return err
	}
	if err := i.file.Sync(); err != nil {
		return err
	}
	if err := i.file.Truncate(int64(i.size)); err != nil {
		return err
	}
	return i.file.Close()
}

func (i *packedIndex) name() string {
	return i.file.Name()
}

func (i *packedIndex) isEmpty() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.size == 0
}
