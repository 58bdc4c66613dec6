package record_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flashq/flashq/internal/record"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := record.WithOffset{
		Record: record.Record{
			Key:   []byte("k1"),
			Value: []byte("hello world"),
			Headers: record.Headers{
				"trace-id": []byte("abc123"),
			},
		},
		Offset:    42,
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
	}

	frame, err := record.Encode(want)
	require.NoError(t, err)

	got, n, err := record.ReadFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	require.Equal(t, len(frame), n)
	require.Equal(t, want.Offset, got.Offset)
	require.True(t, want.Timestamp.Equal(got.Timestamp))
	require.Equal(t, want.Key, got.Key)
	require.Equal(t, want.Value, got.Value)
	require.Equal(t, want.Headers["trace-id"], got.Headers["trace-id"])
}

func TestEncodeRejectsOversizedValue(t *testing.T) {
	r := record.WithOffset{
		Record: record.Record{
			Value: make([]byte, record.MaxValueBytes+1),
		},
	}
	_, err := record.Encode(r)
	require.Error(t, err)
	var tooLarge record.ErrRecordTooLarge
	require.ErrorAs(t, err, &tooLarge)
	require.Equal(t, "value", tooLarge.Field)
}

func TestEncodeRequiresValue(t *testing.T) {
	_, err := record.Encode(record.WithOffset{})
	require.Error(t, err)
}

func TestReadFrameStopsOnTruncatedLength(t *testing.T) {
	frame, err := record.Encode(record.WithOffset{
		Record:    record.Record{Value: []byte("x")},
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	_, _, err = record.ReadFrame(bytes.NewReader(frame[:2]))
	require.Error(t, err)
}

func TestReadFrameStopsOnTruncatedPayload(t *testing.T) {
	frame, err := record.Encode(record.WithOffset{
		Record:    record.Record{Value: []byte("hello")},
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	_, _, err = record.ReadFrame(bytes.NewReader(frame[:len(frame)-3]))
	require.Error(t, err)
}
