package segment_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/flashq/flashq/internal/record"
	"github.com/flashq/flashq/internal/segment"
)

func newTestSegment(t *testing.T, baseOffset uint64, cfg segment.Config) *segment.Segment {
	t.Helper()
	seg, err := segment.OpenOrCreate(t.TempDir(), baseOffset, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = seg.Close() })
	return seg
}

func rec(offset uint64, value string) record.WithOffset {
	return record.WithOffset{
		Record:    record.Record{Value: []byte(value)},
		Offset:    offset,
		Timestamp: time.Now().UTC(),
	}
}

func TestAppendAndReadFromRoundTrip(t *testing.T) {
	seg := newTestSegment(t, 0, segment.Config{})

	for i, v := range []string{"a", "b", "c"} {
		n, err := seg.Append(rec(uint64(i), v))
		require.NoError(t, err)
		require.Positive(t, n)
	}
	require.EqualValues(t, 3, seg.NextOffset())

	got, _, err := seg.ReadFrom(0, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "a", string(got[0].Value))
	require.Equal(t, "c", string(got[2].Value))
}

func TestReadFromDiscardsRecordsBeforeRequestedOffset(t *testing.T) {
	seg := newTestSegment(t, 0, segment.Config{IndexIntervalBytes: 1})

	for i := 0; i < 10; i++ {
		_, err := seg.Append(rec(uint64(i), "x"))
		require.NoError(t, err)
	}

	got, _, err := seg.ReadFrom(7, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.EqualValues(t, 7, got[0].Offset)
}

func TestReadFromAtNextOffsetReturnsEmpty(t *testing.T) {
	seg := newTestSegment(t, 0, segment.Config{})
	_, err := seg.Append(rec(0, "x"))
	require.NoError(t, err)

	got, _, err := seg.ReadFrom(1, 10, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReadFromOutOfRange(t *testing.T) {
	seg := newTestSegment(t, 10, segment.Config{})
	_, err := seg.Append(rec(10, "x"))
	require.NoError(t, err)

	_, _, err = seg.ReadFrom(9, 10, 0)
	require.Error(t, err)
	_, _, err = seg.ReadFrom(12, 10, 0)
	require.Error(t, err)
}

func TestAppendRejectsWhenOverMaxStoreBytes(t *testing.T) {
	seg := newTestSegment(t, 0, segment.Config{MaxStoreBytes: 64})
	_, err := seg.Append(rec(0, "x"))
	require.NoError(t, err)

	_, err = seg.Append(rec(1, "this value is long enough to certainly exceed the tiny max store bytes limit configured above for this test"))
	require.Error(t, err)
	var full segment.ErrSegmentFull
	require.ErrorAs(t, err, &full)
}

func TestAppendBatchAtomicity(t *testing.T) {
	seg := newTestSegment(t, 0, segment.Config{})

	batch := []record.WithOffset{rec(0, "a"), rec(1, "b"), rec(2, "c")}
	n, err := seg.AppendBatch(batch)
	require.NoError(t, err)
	require.Positive(t, n)
	require.EqualValues(t, 3, seg.NextOffset())

	got, _, err := seg.ReadFrom(0, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestAppendBatchRejectsEmptyValue(t *testing.T) {
	seg := newTestSegment(t, 0, segment.Config{})

	bad := []record.WithOffset{rec(0, "a"), {Record: record.Record{}, Offset: 1, Timestamp: time.Now()}}
	_, err := seg.AppendBatch(bad)
	require.Error(t, err)

	// Nothing should have been written: next offset is unchanged.
	require.EqualValues(t, 0, seg.NextOffset())
	got, _, err := seg.ReadFrom(0, 10, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSealPreventsFurtherAppends(t *testing.T) {
	seg := newTestSegment(t, 0, segment.Config{})
	_, err := seg.Append(rec(0, "a"))
	require.NoError(t, err)

	require.NoError(t, seg.Seal())
	require.True(t, seg.IsSealed())

	_, err = seg.Append(rec(1, "b"))
	require.ErrorIs(t, err, segment.ErrSegmentSealed)

	// Reads still work on a sealed segment.
	got, _, err := seg.ReadFrom(0, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestReadFromTimeReturnsOffsetIncreasingRecords(t *testing.T) {
	seg := newTestSegment(t, 0, segment.Config{IndexIntervalBytes: 1})

	base := time.Now().UTC()
	for i := 0; i < 20; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		_, err := seg.Append(record.WithOffset{
			Record:    record.Record{Value: []byte("v")},
			Offset:    uint64(i),
			Timestamp: ts,
		})
		require.NoError(t, err)
	}

	threshold := base.Add(10 * time.Second)
	got, _, err := seg.ReadFromTime(threshold.UnixMilli(), 5, 0)
	require.NoError(t, err)
	require.Len(t, got, 5)
	var lastOffset int64 = -1
	for _, r := range got {
		require.GreaterOrEqual(t, r.Timestamp.UnixMilli(), threshold.UnixMilli())
		require.Greater(t, int64(r.Offset), lastOffset)
		lastOffset = int64(r.Offset)
	}
}

func TestMaxRecordsProgressGuaranteeReturnsOversizedRecord(t *testing.T) {
	seg := newTestSegment(t, 0, segment.Config{})
	big := make([]byte, 4096)
	_, err := seg.Append(record.WithOffset{
		Record:    record.Record{Value: big},
		Offset:    0,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	got, _, err := seg.ReadFrom(0, 10, 16)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
