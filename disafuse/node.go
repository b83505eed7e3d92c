// Package disafuse bridges a disa.Disa save container onto a go-fuse
// v2 mount, the way fs/loopback.go in the go-fuse distribution bridges
// a real OS directory: on-demand Lookup/Readdir discovery instead of a
// precomputed tree, FsResult mapped to syscall.Errno at the boundary
// (spec §6's "mount bridge" external collaborator, §7's error table).
package disafuse

import (
	"context"
	"path"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/wwylele/disafs-go/disa"
)

// Root holds the disa.Disa instance and the single coarse mutex spec
// §5 requires around every inbound operation (the core has no
// internal locking of its own).
type Root struct {
	Disa *disa.Disa
	mu   sync.Mutex
}

// NewRoot builds the root InodeEmbedder for a disa-backed mount.
func NewRoot(d *disa.Disa) fs.InodeEmbedder {
	return &node{root: &Root{Disa: d}, index: disa.RootDirIndex, isFile: false, path: "/"}
}

// node is a filesystem node whose identity is a disa table index plus
// whether it names a directory or file entry — the two index spaces
// are disjoint at the disa layer but must be merged into go-fuse's
// single inode-number space, so dirIno/fileIno tag the low bit.
type node struct {
	fs.Inode

	root   *Root
	index  uint32
	isFile bool
	path   string
}

var _ = (fs.NodeLookuper)((*node)(nil))
var _ = (fs.NodeReaddirer)((*node)(nil))
var _ = (fs.NodeMkdirer)((*node)(nil))
var _ = (fs.NodeUnlinker)((*node)(nil))
var _ = (fs.NodeRmdirer)((*node)(nil))
var _ = (fs.NodeRenamer)((*node)(nil))
var _ = (fs.NodeOpener)((*node)(nil))
var _ = (fs.NodeCreater)((*node)(nil))
var _ = (fs.NodeGetattrer)((*node)(nil))
var _ = (fs.NodeSetattrer)((*node)(nil))
var _ = (fs.NodeStatfser)((*node)(nil))

func dirIno(index uint32) uint64  { return uint64(index) << 1 }
func fileIno(index uint32) uint64 { return uint64(index)<<1 | 1 }

func childPath(parent, name string) string {
	return path.Join(parent, name)
}

func (n *node) stableAttr() fs.StableAttr {
	if n.isFile {
		return fs.StableAttr{Mode: syscall.S_IFREG, Ino: fileIno(n.index)}
	}
	return fs.StableAttr{Mode: syscall.S_IFDIR, Ino: dirIno(n.index)}
}

func (n *node) newChild(ctx context.Context, stat disa.FsStat) *fs.Inode {
	child := &node{root: n.root, index: stat.Index, isFile: stat.IsFile, path: childPath(n.path, stat.Name.String())}
	return n.NewInode(ctx, child, child.stableAttr())
}

func (n *node) fillAttr(out *fuse.Attr) {
	if n.isFile {
		out.Mode = syscall.S_IFREG | 0644
		out.Size = n.root.Disa.GetFileSize(n.index)
		out.Ino = fileIno(n.index)
	} else {
		out.Mode = syscall.S_IFDIR | 0755
		out.Ino = dirIno(n.index)
	}
}

func (n *node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.root.mu.Lock()
	defer n.root.mu.Unlock()
	n.fillAttr(&out.Attr)
	return 0
}

// Setattr supports only size changes (truncate), and only growth: the
// core's Fat.TruncateChain for shrinking is not wired to any live
// FUSE call, matching the original's own deferral (SPEC_FULL.md §13).
func (n *node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	n.root.mu.Lock()
	defer n.root.mu.Unlock()
	if sz, ok := in.GetSize(); ok && n.isFile {
		if sz > n.root.Disa.GetFileSize(n.index) {
			h := n.root.Disa.Open(n.index)
			h.Write(sz, nil)
			h.Close()
		}
	}
	n.fillAttr(&out.Attr)
	return 0
}

// Statfs reports the container's block accounting, the way
// fs/loopback.go's NodeStatfser reports the host filesystem's —
// except the numbers here come from the FAT, not a real OS call.
func (n *node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	n.root.mu.Lock()
	defer n.root.mu.Unlock()
	out.Bsize = uint32(n.root.Disa.BlockSize)
	out.Frsize = out.Bsize
	out.Blocks = uint64(n.root.Disa.BlockCount())
	out.Bfree = uint64(n.root.Disa.FreeBlockCount())
	out.Bavail = out.Bfree
	out.NameLen = 16
	return 0
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.root.mu.Lock()
	defer n.root.mu.Unlock()
	stat := n.root.Disa.Find(childPath(n.path, name))
	if errno := lookupErrno(stat.Result); errno != 0 {
		return nil, errno
	}
	child := n.newChild(ctx, stat)
	if stat.IsFile {
		out.Attr.Mode = syscall.S_IFREG | 0644
		out.Attr.Size = n.root.Disa.GetFileSize(stat.Index)
		out.Attr.Ino = fileIno(stat.Index)
	} else {
		out.Attr.Mode = syscall.S_IFDIR | 0755
		out.Attr.Ino = dirIno(stat.Index)
	}
	return child, 0
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	n.root.mu.Lock()
	defer n.root.mu.Unlock()
	var entries []fuse.DirEntry
	for _, name := range n.root.Disa.ListSubDir(n.index) {
		entries = append(entries, fuse.DirEntry{Mode: syscall.S_IFDIR, Name: name.String()})
	}
	for _, name := range n.root.Disa.ListSubFile(n.index) {
		entries = append(entries, fuse.DirEntry{Mode: syscall.S_IFREG, Name: name.String()})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.root.mu.Lock()
	defer n.root.mu.Unlock()
	stat := n.root.Disa.MakeDir(childPath(n.path, name))
	if errno := mkdirErrno(stat.Result); errno != 0 {
		return nil, errno
	}
	out.Attr.Mode = syscall.S_IFDIR | 0755
	out.Attr.Ino = dirIno(stat.Index)
	return n.newChild(ctx, stat), 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	n.root.mu.Lock()
	defer n.root.mu.Unlock()
	res := n.root.Disa.RemoveFile(childPath(n.path, name))
	return unlinkErrno(res)
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	n.root.mu.Lock()
	defer n.root.mu.Unlock()
	p := childPath(n.path, name)
	stat := n.root.Disa.Find(p)
	if stat.Result != disa.ResultOK {
		return rmdirErrno(stat.Result)
	}
	if stat.IsFile {
		return syscall.ENOTDIR
	}
	if !n.root.Disa.IsDirEmpty(stat.Index) {
		return syscall.ENOTEMPTY
	}
	return rmdirErrno(n.root.Disa.RemoveDir(p))
}

// Rename reproduces main.cpp's rename() switch: the destination's
// existing type (none / same-type / cross-type) decides whether to
// move directly, to remove an existing destination first, or to fail outright
// (a directory can never be overwritten by a file or vice versa).
// Find never reports DirExists/FileExists on its own (see disa.FsStat:
// a resolved entry is ResultOK with IsFile set), so those arms of the
// original's switch collapse into the ResultOK case below, split on
// dstStat.IsFile instead.
func (n *node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	n.root.mu.Lock()
	defer n.root.mu.Unlock()
	np, ok := newParent.(*node)
	if !ok {
		return syscall.EXDEV
	}
	src := childPath(n.path, name)
	dst := childPath(np.path, newName)

	srcStat := n.root.Disa.Find(src)
	switch srcStat.Result {
	case disa.ResultOK:
	case disa.ResultFileInPath:
		return syscall.ENOTDIR
	default:
		return syscall.ENOENT
	}

	dstStat := n.root.Disa.Find(dst)
	switch dstStat.Result {
	case disa.ResultOK:
		if srcStat.IsFile != dstStat.IsFile {
			if srcStat.IsFile {
				return syscall.EISDIR
			}
			return syscall.ENOTDIR
		}
		if dstStat.IsFile {
			if res := n.root.Disa.RemoveFile(dst); res != disa.ResultOK {
				return unlinkErrno(res)
			}
		} else {
			if !n.root.Disa.IsDirEmpty(dstStat.Index) {
				return syscall.ENOTEMPTY
			}
			if res := n.root.Disa.RemoveDir(dst); res != disa.ResultOK {
				return rmdirErrno(res)
			}
		}
	case disa.ResultNotFound:
		// No entry at dst yet: proceed straight to the move.
	case disa.ResultFileInPath:
		return syscall.ENOTDIR
	default:
		return syscall.ENOENT
	}

	if srcStat.IsFile {
		return renameErrno(n.root.Disa.MoveFile(src, dst))
	}
	return renameErrno(n.root.Disa.MoveDir(src, dst))
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	n.root.mu.Lock()
	defer n.root.mu.Unlock()
	stat := n.root.Disa.MakeFile(childPath(n.path, name))
	if errno := mkdirErrno(stat.Result); errno != 0 {
		return nil, nil, 0, errno
	}
	out.Attr.Mode = syscall.S_IFREG | 0644
	out.Attr.Ino = fileIno(stat.Index)
	child := n.newChild(ctx, stat)
	h := n.root.Disa.Open(stat.Index)
	return child, newFileHandle(n.root, h), 0, 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	n.root.mu.Lock()
	defer n.root.mu.Unlock()
	if !n.isFile {
		return nil, 0, syscall.EISDIR
	}
	h := n.root.Disa.Open(n.index)
	return newFileHandle(n.root, h), 0, 0
}
