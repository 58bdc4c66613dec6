package record

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// LengthWidth is the width, in bytes, of the frame's leading payload-length
// prefix.
const LengthWidth = 4

var enc = binary.LittleEndian

// wireRecord is the canonical JSON body of a frame. []byte fields are
// base64-encoded by encoding/json, which keeps the frame text-safe while
// staying binary-clean, and map keys are emitted sorted, which keeps the
// encoding deterministic.
type wireRecord struct {
	Key     []byte            `json:"key,omitempty"`
	Value   []byte            `json:"value"`
	Headers map[string][]byte `json:"headers,omitempty"`
}

// Encode serializes one record into a self-describing frame:
//
//	[ u32 payload_length ][ u64 offset ][ u32 ts_length ][ ts bytes ][ json body ]
//
// payload_length covers everything after itself. The returned slice
// includes the length prefix, so it can be written to a segment's store
// file as-is.
func Encode(r WithOffset) ([]byte, error) {
	if err := r.Record.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(wireRecord{Key: r.Key, Value: r.Value, Headers: r.Headers})
	if err != nil {
		return nil, fmt.Errorf("record: marshal body: %w", err)
	}

	ts := []byte(r.Timestamp.UTC().Format(time.RFC3339Nano))
	payloadLen := 8 + 4 + len(ts) + len(body)

	buf := make([]byte, LengthWidth+payloadLen)
	enc.PutUint32(buf[0:4], uint32(payloadLen))
	enc.PutUint64(buf[4:12], r.Offset)
	enc.PutUint32(buf[12:16], uint32(len(ts)))
	copy(buf[16:16+len(ts)], ts)
	copy(buf[16+len(ts):], body)
	return buf, nil
}

// DecodePayload decodes the bytes following the length prefix (i.e. exactly
// payloadLen bytes) into a record. ReadFrame calls it after reading the
// length prefix, which is how both segment reads and the scanning recovery
// path decode frames.
func DecodePayload(payload []byte) (WithOffset, error) {
	var out WithOffset
	if len(payload) < 12 {
		return out, fmt.Errorf("record: payload too short: %d bytes", len(payload))
	}
	out.Offset = enc.Uint64(payload[0:8])
	tsLen := enc.Uint32(payload[8:12])
	if uint32(len(payload)-12) < tsLen {
		return out, fmt.Errorf("record: payload too short for timestamp")
	}
	tsEnd := 12 + int(tsLen)
	ts, err := time.Parse(time.RFC3339Nano, string(payload[12:tsEnd]))
	if err != nil {
		return out, fmt.Errorf("record: parse timestamp: %w", err)
	}
	out.Timestamp = ts

	var wr wireRecord
	if err := json.Unmarshal(payload[tsEnd:], &wr); err != nil {
		return out, fmt.Errorf("record: unmarshal body: %w", err)
	}
	out.Key = wr.Key
	out.Value = wr.Value
	if len(wr.Headers) > 0 {
		out.Headers = Headers(wr.Headers)
	}
	return out, nil
}

// ReadFrame reads one full frame (length prefix + payload) from r and
// decodes it, returning the total number of bytes the frame occupies on
// disk. It's the primitive segment scans and recovery use to walk a log
// file forward without an index.
func ReadFrame(r io.Reader) (rec WithOffset, frameLen int, err error) {
	lenBuf := make([]byte, LengthWidth)
	if _, err = io.ReadFull(r, lenBuf); err != nil {
		return WithOffset{}, 0, err
	}
	payloadLen := enc.Uint32(lenBuf)

	payload := make([]byte, payloadLen)
	if _, err = io.ReadFull(r, payload); err != nil {
		return WithOffset{}, 0, err
	}

	rec, err = DecodePayload(payload)
	if err != nil {
		return WithOffset{}, 0, err
	}
	return rec, LengthWidth + int(payloadLen), nil
}
