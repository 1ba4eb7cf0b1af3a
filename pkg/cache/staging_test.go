package cache

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStagingStorePutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newStagingStore(dir, 8)

	page := []byte("abcdefgh")
	require.NoError(t, s.put("p1", page))
	require.True(t, s.exists("p1"))

	got, err := s.get("p1")
	require.NoError(t, err)
	require.Equal(t, page, got)
}

func TestStagingStorePutRejectsWrongSize(t *testing.T) {
	dir := t.TempDir()
	s := newStagingStore(dir, 8)
	err := s.put("p1", []byte("short"))
	require.Error(t, err)
	require.False(t, s.exists("p1"))
}

func TestStagingStorePatchOverwritesSubRange(t *testing.T) {
	dir := t.TempDir()
	s := newStagingStore(dir, 8)
	require.NoError(t, s.put("p1", []byte("abcdefgh")))
	require.NoError(t, s.patch("p1", 2, []byte("XY")))

	got, err := s.get("p1")
	require.NoError(t, err)
	require.Equal(t, []byte("abXYefgh"), got)
}

func TestStagingStoreRemove(t *testing.T) {
	dir := t.TempDir()
	s := newStagingStore(dir, 8)
	require.NoError(t, s.put("p1", []byte("abcdefgh")))
	require.NoError(t, s.remove("p1"))
	require.False(t, s.exists("p1"))

	// removing an already-absent id is tolerated
	require.NoError(t, s.remove("p1"))
}

func TestStagingStoreFilenameIsPageID(t *testing.T) {
	dir := t.TempDir()
	s := newStagingStore(dir, 8)
	require.NoError(t, s.put("my-page-id", []byte("abcdefgh")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "my-page-id", entries[0].Name())
}
