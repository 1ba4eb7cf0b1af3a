package cache

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAcquireDirectoryGuardExclusive(t *testing.T) {
	dir := t.TempDir()

	g1, err := acquireDirectoryGuard(dir)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, g1.InstanceID)

	_, err = acquireDirectoryGuard(dir)
	require.ErrorIs(t, err, ErrDirectoryBusy)

	require.NoError(t, g1.release())
}

func TestAcquireDirectoryGuardReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	g1, err := acquireDirectoryGuard(dir)
	require.NoError(t, err)
	require.NoError(t, g1.release())

	g2, err := acquireDirectoryGuard(dir)
	require.NoError(t, err)
	require.NotEqual(t, g1.InstanceID, g2.InstanceID)
	require.NoError(t, g2.release())
}

func TestAcquireDirectoryGuardCreatesCacheDir(t *testing.T) {
	parent := t.TempDir()
	dir := parent + "/nested/cache"

	g, err := acquireDirectoryGuard(dir)
	require.NoError(t, err)
	defer g.release()

	fi, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}
