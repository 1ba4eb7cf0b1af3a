package fsbridge

import (
	"os"
	"syscall"
	"time"

	"bazil.org/fuse"
)

// fillAttr translates an os.FileInfo (backed by a Linux syscall.Stat_t)
// into a fuse.Attr: the fields the original getattr() exposed (atime,
// ctime, gid, mode, mtime, nlink, size, uid), plus the block count.
func fillAttr(fi os.FileInfo, attr *fuse.Attr) {
	attr.Size = uint64(fi.Size())
	attr.Mode = fi.Mode()

	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		attr.Mtime = fi.ModTime()
		return
	}
	attr.Nlink = uint32(st.Nlink)
	attr.Uid = st.Uid
	attr.Gid = st.Gid
	attr.Atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
	attr.Mtime = time.Unix(st.Mtim.Sec, st.Mtim.Nsec)
	attr.Ctime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	attr.Blocks = uint64(st.Blocks)
}
