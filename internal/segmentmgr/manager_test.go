package segmentmgr_test

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/flashq/flashq/internal/record"
	"github.com/flashq/flashq/internal/segment"
	"github.com/flashq/flashq/internal/segmentmgr"
)

func rec(offset uint64, value string) record.WithOffset {
	return record.WithOffset{
		Record:    record.Record{Value: []byte(value)},
		Offset:    offset,
		Timestamp: time.Now().UTC(),
	}
}

func newManager(t *testing.T, cfg segmentmgr.Config) (*segmentmgr.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	mgr, err := segmentmgr.Load(dir, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr, dir
}

func TestLoadCreatesFreshSegmentInEmptyDir(t *testing.T) {
	mgr, _ := newManager(t, segmentmgr.Config{})
	require.EqualValues(t, 0, mgr.HighWaterMark())
	require.EqualValues(t, 0, mgr.EarliestOffset())
}

func TestAppendBatchAdvancesHighWaterMark(t *testing.T) {
	mgr, _ := newManager(t, segmentmgr.Config{})

	n, err := mgr.AppendBatch([]record.WithOffset{rec(0, "a"), rec(1, "b"), rec(2, "c")})
	require.NoError(t, err)
	require.Positive(t, n)
	require.EqualValues(t, 3, mgr.HighWaterMark())
}

func TestAppendBatchRollsOnMaxStoreBytes(t *testing.T) {
	cfg := segmentmgr.Config{Segment: segment.Config{MaxStoreBytes: 80}}
	mgr, dir := newManager(t, cfg)

	_, err := mgr.AppendBatch([]record.WithOffset{rec(0, "first-record-value")})
	require.NoError(t, err)

	_, err = mgr.AppendBatch([]record.WithOffset{rec(1, "second-record-value-long-enough-to-roll")})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	logCount := 0
	for _, e := range entries {
		if !e.IsDir() {
			logCount++
		}
	}
	require.Greater(t, logCount, 3) // at least two segments' worth of .log/.index/.timeindex files
	require.EqualValues(t, 2, mgr.HighWaterMark())
}

func TestReadFromWalksAcrossSegmentRoll(t *testing.T) {
	cfg := segmentmgr.Config{Segment: segment.Config{MaxStoreBytes: 1}}
	mgr, _ := newManager(t, cfg)

	for i := 0; i < 5; i++ {
		_, err := mgr.AppendBatch([]record.WithOffset{rec(uint64(i), "v")})
		require.NoError(t, err)
	}

	got, err := mgr.ReadFrom(0, 100, 0)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, r := range got {
		require.EqualValues(t, i, r.Offset)
	}
}

func TestFindSegmentForOffsetOutOfRange(t *testing.T) {
	mgr, _ := newManager(t, segmentmgr.Config{})
	_, err := mgr.AppendBatch([]record.WithOffset{rec(0, "a")})
	require.NoError(t, err)

	_, err = mgr.FindSegmentForOffset(5)
	require.Error(t, err)
}

func TestFindSegmentForOffsetAtHighWaterMark(t *testing.T) {
	mgr, _ := newManager(t, segmentmgr.Config{})
	_, err := mgr.AppendBatch([]record.WithOffset{rec(0, "a")})
	require.NoError(t, err)

	seg, err := mgr.FindSegmentForOffset(1)
	require.NoError(t, err)
	require.EqualValues(t, 1, seg.NextOffset())
}

func TestLoadReopensExistingSegmentsAndPreservesHighWaterMark(t *testing.T) {
	cfg := segmentmgr.Config{Segment: segment.Config{MaxStoreBytes: 1}}
	dir := t.TempDir()

	mgr, err := segmentmgr.Load(dir, cfg, zerolog.Nop())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := mgr.AppendBatch([]record.WithOffset{rec(uint64(i), "v")})
		require.NoError(t, err)
	}
	require.NoError(t, mgr.Close())

	reopened, err := segmentmgr.Load(dir, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	require.EqualValues(t, 5, reopened.HighWaterMark())
	got, err := reopened.ReadFrom(0, 100, 0)
	require.NoError(t, err)
	require.Len(t, got, 5)
}

func TestLoadRejectsGapInSegmentChain(t *testing.T) {
	dir := t.TempDir()
	seg0, err := segment.OpenOrCreate(dir, 0, segment.Config{}, zerolog.Nop())
	require.NoError(t, err)
	_, err = seg0.Append(rec(0, "a"))
	require.NoError(t, err)
	require.NoError(t, seg0.Close())

	// Segment with base offset 10 instead of the expected 1 leaves a gap.
	seg10, err := segment.OpenOrCreate(dir, 10, segment.Config{}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, seg10.Close())

	_, err = segmentmgr.Load(dir, segmentmgr.Config{}, zerolog.Nop())
	require.Error(t, err)
	var corrupt segmentmgr.ErrSegmentChainCorrupt
	require.ErrorAs(t, err, &corrupt)
}
