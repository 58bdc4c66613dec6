package offsetstore_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/flashq/flashq/internal/offsetstore"
)

func TestCommitIsMonotonicAndIdempotent(t *testing.T) {
	s, err := offsetstore.Open("", zerolog.Nop())
	require.NoError(t, err)

	res, err := s.Commit("g", "t", 0, 5, "")
	require.NoError(t, err)
	require.Equal(t, offsetstore.Committed, res)

	res, err = s.Commit("g", "t", 0, 3, "")
	require.NoError(t, err)
	require.Equal(t, offsetstore.Unchanged, res)

	off, ok := s.Fetch("g", "t", 0)
	require.True(t, ok)
	require.EqualValues(t, 5, off)
}

func TestFetchUnsetReportsNotOK(t *testing.T) {
	s, err := offsetstore.Open("", zerolog.Nop())
	require.NoError(t, err)

	_, ok := s.Fetch("missing-group", "t", 0)
	require.False(t, ok)
}

func TestListReturnsAllEntriesForGroup(t *testing.T) {
	s, err := offsetstore.Open("", zerolog.Nop())
	require.NoError(t, err)

	_, err = s.Commit("g", "orders", 0, 10, "")
	require.NoError(t, err)
	_, err = s.Commit("g", "orders", 1, 20, "")
	require.NoError(t, err)

	entries := s.List("g")
	require.Len(t, entries, 2)
}

func TestDeleteGroupRemovesEntries(t *testing.T) {
	s, err := offsetstore.Open("", zerolog.Nop())
	require.NoError(t, err)

	_, err = s.Commit("g", "t", 0, 1, "")
	require.NoError(t, err)
	require.NoError(t, s.DeleteGroup("g"))

	_, ok := s.Fetch("g", "t", 0)
	require.False(t, ok)
}

func TestFilePersistenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := offsetstore.Open(dir, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.Commit("g", "orders", 2, 42, "checkpoint-a")
	require.NoError(t, err)

	reopened, err := offsetstore.Open(dir, zerolog.Nop())
	require.NoError(t, err)

	off, ok := reopened.Fetch("g", "orders", 2)
	require.True(t, ok)
	require.EqualValues(t, 42, off)

	entries := reopened.List("g")
	require.Len(t, entries, 1)
	require.Equal(t, "checkpoint-a", entries[0].Metadata)
}

func TestDeleteGroupRemovesFileOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := offsetstore.Open(dir, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.Commit("g", "t", 0, 1, "")
	require.NoError(t, err)
	require.NoError(t, s.DeleteGroup("g"))

	reopened, err := offsetstore.Open(dir, zerolog.Nop())
	require.NoError(t, err)
	_, ok := reopened.Fetch("g", "t", 0)
	require.False(t, ok)
}

func TestTopicNameContainingDoubleDashRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := offsetstore.Open(dir, zerolog.Nop())
	require.NoError(t, err)

	_, err = s.Commit("g", "weird--topic", 3, 7, "")
	require.NoError(t, err)

	reopened, err := offsetstore.Open(dir, zerolog.Nop())
	require.NoError(t, err)
	off, ok := reopened.Fetch("g", "weird--topic", 3)
	require.True(t, ok)
	require.EqualValues(t, 7, off)
}
