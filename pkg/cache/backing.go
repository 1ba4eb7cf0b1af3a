package cache

import "os"

// BackingHandle is the subset of *os.File the engine needs against a
// backing file. Request-scoped handles (the fh argument to Read/Write/
// Flush) are owned by the filesystem bridge and are never closed by
// the engine; handles the engine opens itself (to write back a dirty
// page belonging to some other path during eviction, or to truncate a
// path with no caller-supplied handle) are opened and closed by the
// engine.
type BackingHandle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// BackingOpener opens a backing path for the engine's own use
// (eviction writeback, truncate). The filesystem bridge supplies its
// own implementation so that opens go through the same path
// resolution and permission model as caller-supplied handles; tests
// use osOpener directly against a temp directory.
type BackingOpener interface {
	Open(path string) (BackingHandle, error)
}

// osOpener opens backing paths directly against the local filesystem.
type osOpener struct{}

func (osOpener) Open(path string) (BackingHandle, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}
