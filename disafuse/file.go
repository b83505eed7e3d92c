package disafuse

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/wwylele/disafs-go/disa"
)

// fileHandle adapts a disa.DisaFile open handle to go-fuse's
// FileHandle/FileReader/FileWriter/FileGetattrer/FileReleaser
// interfaces, serializing every call through the same root mutex the
// node methods use (spec §5: the core is not internally synchronized).
type fileHandle struct {
	root *Root
	h    *disa.DisaFile
}

func newFileHandle(root *Root, h *disa.DisaFile) fs.FileHandle {
	return &fileHandle{root: root, h: h}
}

var _ = (fs.FileReader)((*fileHandle)(nil))
var _ = (fs.FileWriter)((*fileHandle)(nil))
var _ = (fs.FileGetattrer)((*fileHandle)(nil))
var _ = (fs.FileReleaser)((*fileHandle)(nil))
var _ = (fs.FileFlusher)((*fileHandle)(nil))

func (f *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	f.root.mu.Lock()
	defer f.root.mu.Unlock()
	n := f.h.Read(uint64(off), len(dest), dest)
	return fuse.ReadResultData(dest[:n]), 0
}

func (f *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	f.root.mu.Lock()
	defer f.root.mu.Unlock()
	n := f.h.Write(uint64(off), data)
	return uint32(n), 0
}

func (f *fileHandle) Getattr(ctx context.Context, out *fuse.AttrOut) syscall.Errno {
	f.root.mu.Lock()
	defer f.root.mu.Unlock()
	out.Attr.Mode = syscall.S_IFREG | 0644
	out.Attr.Size = f.h.FileSize()
	return 0
}

// Flush is a no-op: Disa.GetFileSize already consults the live handle
// map, so metadata is visible to other lookups without an explicit
// commit, and the committed write only happens at Release.
func (f *fileHandle) Flush(ctx context.Context) syscall.Errno {
	return 0
}

func (f *fileHandle) Release(ctx context.Context) syscall.Errno {
	f.root.mu.Lock()
	defer f.root.mu.Unlock()
	f.h.Close()
	return 0
}
