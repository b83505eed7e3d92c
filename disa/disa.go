package disa

import "github.com/wwylele/disafs-go/vfile"

// Disa is the parsed, live save container: metadata graph, block
// allocator, and the data region file handle I/O reads and writes
// through. Grounded on the Disa class in disa.{h,cpp} — the single
// entry point the mount bridge (out of core scope, spec §1) talks to.
type Disa struct {
	Meta      *FsMetadata
	Fat       *Fat
	Data      vfile.File
	BlockSize int64

	handles map[uint32]*DisaFile
}

// NewDisa assembles a Disa from its already-constructed parts. Used by
// OpenContainer's on-disk parsing and by anything building one
// directly (e.g. tests) without a container image.
func NewDisa(meta *FsMetadata, fat *Fat, data vfile.File, blockSize int64) *Disa {
	return &Disa{
		Meta:      meta,
		Fat:       fat,
		Data:      data,
		BlockSize: blockSize,
		handles:   make(map[uint32]*DisaFile),
	}
}

// NewScratchDisa builds a minimal in-memory Disa from nothing: a root
// directory, empty metadata tables sized for maxDirs/maxFiles
// additional entries, and a Fat/data region of blockCount blocks of
// blockSize bytes. There is no on-disk DISA image backing it — it
// exists only in memory, for exercising the tables and the mount
// bridge without a container to parse (OpenContainer's job). Not used
// by the container-parsing path itself, which always has real
// capacities from the SAVE header to work with.
func NewScratchDisa(maxDirs, dirBuckets, maxFiles, fileBuckets, blockCount uint32, blockSize int64) *Disa {
	dirSlots := maxDirs + 2 // slot 0 + root + maxDirs
	dirEntries := vfile.NewMemory(int64(dirSlots) * DirEntrySize)
	dirHash := vfile.NewMemory(int64(dirBuckets) * 4)
	dirs := NewDirectoryTable(dirEntries, dirHash)
	dirs.setU32(0, 0x4, dirSlots)
	dirs.setCurrentCount(RootDirIndex + 1)

	fileSlots := maxFiles + 1
	fileEntries := vfile.NewMemory(int64(fileSlots) * FileEntrySize)
	fileHash := vfile.NewMemory(int64(fileBuckets) * 4)
	files := NewFileTable(fileEntries, fileHash)
	files.setU32(0, 0x4, fileSlots)
	files.setCurrentCount(1)

	meta := NewFsMetadata(dirs, files)

	fatTable := vfile.NewMemory(int64(blockCount+1) * 8)
	fat := NewFat(fatTable)
	fat.setNode(0, fatNode{prev: NoIndex, next: NoIndex, size: blockCount})
	fat.setFreeHead(0)

	data := vfile.NewMemory(int64(blockCount) * blockSize)

	return NewDisa(meta, fat, data, blockSize)
}

// Find resolves path; see FsMetadata.Find.
func (d *Disa) Find(path string) FsStat { return d.Meta.Find(path) }

// MakeDir creates a directory; see FsMetadata.MakeDir.
func (d *Disa) MakeDir(path string) FsStat { return d.Meta.MakeDir(path) }

// RemoveDir removes an empty directory; see FsMetadata.RemoveDir.
func (d *Disa) RemoveDir(path string) FsResult { return d.Meta.RemoveDir(path) }

// MoveDir renames/relocates a directory; see FsMetadata.MoveDir. It is
// strict: dst must not already exist. The rename-overwrite dispatch a
// POSIX rename(2) requires (removing an empty existing destination
// first, with destination-type-dependent errno) is the FUSE bridge's
// job, the same way main.cpp's own rename() — not the lower
// disa.h/cpp interface — does that switch; see disafuse.node.Rename.
func (d *Disa) MoveDir(src, dst string) FsResult { return d.Meta.MoveDir(src, dst) }

// ListSubDir/ListSubFile expose the directory's children.
func (d *Disa) ListSubDir(index uint32) []Name  { return d.Meta.ListSubDir(index) }
func (d *Disa) ListSubFile(index uint32) []Name { return d.Meta.ListSubFile(index) }

// IsDirEmpty reports whether a directory has no children.
func (d *Disa) IsDirEmpty(index uint32) bool { return d.Meta.IsDirEmpty(index) }

// BlockCount and FreeBlockCount expose the data partition's block
// accounting, for statfs reporting by the mount bridge.
func (d *Disa) BlockCount() uint32     { return d.Fat.BlockCount() }
func (d *Disa) FreeBlockCount() uint32 { return d.Fat.FreeBlockCount() }

// MakeFile creates a new, empty file; see FsMetadata.MakeFile.
func (d *Disa) MakeFile(path string) FsStat { return d.Meta.MakeFile(path) }

// GetFileSize returns the currently-open size if a handle is live for
// index, else the on-disk size (spec §4.11).
func (d *Disa) GetFileSize(index uint32) uint64 {
	if h, ok := d.handles[index]; ok {
		return h.fileSize
	}
	return d.Meta.Files.GetFileSize(index)
}

// Open returns the (possibly shared) handle for file index, creating
// it from on-disk state if none is live yet.
func (d *Disa) Open(index uint32) *DisaFile {
	if h, ok := d.handles[index]; ok {
		h.refCount++
		return h
	}
	first := d.Meta.Files.GetFirstBlockIndex(index)
	h := &DisaFile{
		disa:      d,
		index:     index,
		fileSize:  d.Meta.Files.GetFileSize(index),
		refCount:  1,
	}
	if first != EmptyBlockIndex {
		h.firstBlockIndex = first
		h.chain = d.Fat.GetChain(first)
	} else {
		h.firstBlockIndex = EmptyBlockIndex
	}
	d.handles[index] = h
	return h
}

// RemoveFile deletes the file at path. If a handle is currently open
// for it, the handle is detached (its eventual Close frees the
// chain) rather than freeing it here; otherwise any backing chain is
// freed immediately. See spec §4.11/§8 scenario 4.
func (d *Disa) RemoveFile(path string) FsResult {
	stat := d.Meta.Find(path)
	if stat.Result != ResultOK {
		return stat.Result
	}
	if !stat.IsFile {
		// A directory exists at this name: unlink's caller maps this
		// to EISDIR (disafuse's unlinkErrno), not ENOTDIR/EIO.
		return ResultDirExists
	}
	d.removeFileEntry(stat.Parent, stat.Index)
	return ResultOK
}

func (d *Disa) removeFileEntry(parent, index uint32) {
	if h, ok := d.handles[index]; ok {
		h.detached = true
		delete(d.handles, index)
	} else if !d.Meta.Files.IsEmpty(index) {
		d.Fat.FreeChain(d.Meta.Files.GetFirstBlockIndex(index))
	}
	d.Meta.unlinkFileSibling(parent, index)
	d.Meta.Files.RemoveFile(index)
}

// MoveFile renames/relocates a file; see FsMetadata.MoveFile. Strict
// in the same way MoveDir is; see its doc comment above.
func (d *Disa) MoveFile(src, dst string) FsResult {
	return d.Meta.MoveFile(src, dst)
}
