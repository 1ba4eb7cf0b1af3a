// Package fsbridge adapts the page cache engine to bazil.org/fuse's
// FS/Node/Handle model, mirroring the pass-through filesystem surface
// of the original KubeCacheFS Operations class: every metadata call is
// forwarded straight to the storage root, while Read/Write/Flush/
// Setattr(size)/Fsync are routed through the cache engine. Open opens
// the backing file directly.
package fsbridge

import (
	"path/filepath"
	"strings"
)

// fullPath resolves a FUSE-relative path against the storage root, the
// same stripped-leading-slash join the original implementation used.
func fullPath(root, partial string) string {
	partial = strings.TrimPrefix(partial, "/")
	return filepath.Join(root, partial)
}
