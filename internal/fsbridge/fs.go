package fsbridge

import (
	"go.uber.org/zap"

	"bazil.org/fuse/fs"

	"github.com/kubecachefs/kcfs/pkg/cache"
)

// FS implements bazil.org/fuse's fs.FS, the root of a mounted kcfs
// filesystem. It holds no per-request state: every Node it produces
// resolves its own full path against Root on demand and routes file
// I/O through Engine.
type FS struct {
	Root   string
	Engine *cache.Engine
	Log    *zap.Logger
}

var _ fs.FS = (*FS)(nil)

func (f *FS) Root() (fs.Node, error) {
	return &Node{fs: f, rel: "/"}, nil
}
