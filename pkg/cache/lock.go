package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// directoryGuard holds an exclusive, non-blocking flock on a sentinel
// file inside cache_dir for the lifetime of an Engine, so that two
// engine instances never share a staging directory; a second instance
// fails to start cleanly instead of silently corrupting the first
// one's index-equals-disk invariant.
type directoryGuard struct {
	file       *os.File
	InstanceID uuid.UUID
}

const lockFileName = ".kcfs.lock"

func acquireDirectoryGuard(dir string) (*directoryGuard, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, configErr("creating cache_dir %q: %v", dir, err)
	}
	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, configErr("opening lock file %q: %v", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, ErrDirectoryBusy
	}

	id := uuid.New()
	if err := f.Truncate(0); err == nil {
		f.WriteAt([]byte(fmt.Sprintf("kcfs-instance %s pid %d\n", id, os.Getpid())), 0)
	}

	return &directoryGuard{file: f, InstanceID: id}, nil
}

func (g *directoryGuard) release() error {
	if g == nil || g.file == nil {
		return nil
	}
	unix.Flock(int(g.file.Fd()), unix.LOCK_UN)
	return g.file.Close()
}
