package fsbridge

import (
	"context"
	"os"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
)

// Handle is an open file's FUSE handle. Read, Write and Flush go
// through the cache engine; Release closes the file directly. file satisfies
// cache.BackingHandle directly, so it is passed through unmodified as
// the fh argument the engine expects.
type Handle struct {
	node *Node
	file *os.File
}

var (
	_ fs.Handle         = (*Handle)(nil)
	_ fs.HandleReader   = (*Handle)(nil)
	_ fs.HandleWriter   = (*Handle)(nil)
	_ fs.HandleFlusher  = (*Handle)(nil)
	_ fs.HandleReleaser = (*Handle)(nil)
)

func (h *Handle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	data, err := h.node.fs.Engine.Read(h.node.full(), req.Size, req.Offset, h.file)
	if err != nil {
		return errnoFrom(err)
	}
	resp.Data = data
	return nil
}

func (h *Handle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	n, err := h.node.fs.Engine.Write(h.node.full(), req.Data, req.Offset, h.file)
	resp.Size = n
	if err != nil {
		return errnoFrom(err)
	}
	return nil
}

// Flush mirrors the original flush(): writes back every dirty resident
// page for this path and fsyncs the backing file.
func (h *Handle) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	return errnoFrom(h.node.fs.Engine.Flush(h.node.full(), h.file))
}

func (h *Handle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	return errnoFrom(h.file.Close())
}
