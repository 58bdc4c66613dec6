package segment

import (
	"errors"
	"io"

	"github.com/flashq/flashq/internal/record"
)

// scannedRecord is one frame recovered by a forward scan, along with its
// byte position and on-disk length.
type scannedRecord struct {
	rec      record.WithOffset
	pos      uint64
	frameLen int
}

// scanStore walks a segment's store file forward from byte 0, decoding
// frames and invoking visit for each one that's valid: contiguous
// offsets starting at baseOffset, a fully-readable length prefix, and a
// payload that decodes cleanly. It stops at the first
// invalid frame — a torn trailing write, by construction, since every
// complete write is internally self-consistent — and returns the byte
// offset just past the last valid frame.
//
// This is also how segments rebuild their sparse indices: replaying the
// same scan and feeding every visited record through maybeIndex
// reconstructs exactly the index a live append sequence would have
// produced.
func scanStore(st *store, baseOffset uint64, visit func(scannedRecord)) (validEnd uint64) {
	size := st.Size()
	reader := &storeReaderAt{s: st}
	var prevOffset uint64
	haveFirst := false

	for uint64(reader.off) < size {
		pos := uint64(reader.off)
		rec, frameLen, err := record.ReadFrame(reader)
		if err != nil {
			// Length prefix unreadable, payload runs past EOF, or the
			// JSON body failed to decode: whatever's left is a torn
			// write (or corruption indistinguishable from one), so stop
			// here regardless of the underlying error.
			_ = errors.Is(err, io.EOF) // torn-tail and clean-EOF are handled identically: stop
			break
		}
		if haveFirst && rec.Offset != prevOffset+1 {
			break
		}
		if !haveFirst && rec.Offset != baseOffset {
			break
		}

		visit(scannedRecord{rec: rec, pos: pos, frameLen: frameLen})
		prevOffset = rec.Offset
		haveFirst = true
		validEnd = pos + uint64(frameLen)
	}
	return validEnd
}
