package disa

// RootDirIndex is the fixed table index of the save container's root
// directory (spec §3): it always exists and is never added, removed,
// or renamed.
const RootDirIndex uint32 = 1

// FsMetadata is the inner filesystem graph: the directory and file
// metadata tables plus the path-walking and sibling-list bookkeeping
// that ties them together. It knows nothing about file content
// storage (the FAT/data partition, spec §4.9) — that lives in Disa.
// Grounded on FsInterface/the metadata-table-walking sections of
// disa.cpp.
type FsMetadata struct {
	Dirs  *DirectoryTable
	Files *FileTable
}

func NewFsMetadata(dirs *DirectoryTable, files *FileTable) *FsMetadata {
	return &FsMetadata{Dirs: dirs, Files: files}
}

// resolveParentDir walks segments as directory names from root,
// returning the final directory's index. A name blocked by an
// existing file (not a directory) yields FileInPath; a missing name
// yields PathNotFound.
func (m *FsMetadata) resolveParentDir(segments []string) (uint32, FsResult) {
	cur := RootDirIndex
	for _, seg := range segments {
		name := NewName(seg)
		next := m.Dirs.FindIndex(name, cur)
		if next == 0 {
			if m.Files.FindIndex(name, cur) != 0 {
				return 0, ResultFileInPath
			}
			return 0, ResultPathNotFound
		}
		cur = next
	}
	return cur, ResultOK
}

// Find resolves an absolute path, distinguishing a directory result
// from a file result via IsFile. The root path ("/") always resolves
// to RootDirIndex.
func (m *FsMetadata) Find(path string) FsStat {
	segments, ok := splitPath(path)
	if !ok {
		return FsStat{Result: ResultInvalidPath}
	}
	if len(segments) == 0 {
		return FsStat{Index: RootDirIndex, Result: ResultOK}
	}
	parent, res := m.resolveParentDir(segments[:len(segments)-1])
	if res != ResultOK {
		return FsStat{Result: res}
	}
	name := NewName(segments[len(segments)-1])
	if idx := m.Dirs.FindIndex(name, parent); idx != 0 {
		return FsStat{Parent: parent, Index: idx, Result: ResultOK, Name: name}
	}
	if idx := m.Files.FindIndex(name, parent); idx != 0 {
		return FsStat{Parent: parent, Index: idx, IsFile: true, Result: ResultOK, Name: name}
	}
	return FsStat{Parent: parent, Result: ResultNotFound, Name: name}
}

// MakeDir creates an empty directory at path. Fails with DirExists or
// FileExists if an entry already occupies the name; with
// PathNotFound/FileInPath/InvalidPath if the parent path does not
// resolve. Table exhaustion panics (spec §7 kind 4): it is a capacity
// precondition, not an ordinary recoverable outcome.
func (m *FsMetadata) MakeDir(path string) FsStat {
	segments, ok := splitPath(path)
	if !ok || len(segments) == 0 {
		return FsStat{Result: ResultInvalidPath}
	}
	parent, res := m.resolveParentDir(segments[:len(segments)-1])
	if res != ResultOK {
		return FsStat{Result: res}
	}
	name := NewName(segments[len(segments)-1])
	if m.Dirs.FindIndex(name, parent) != 0 {
		return FsStat{Result: ResultDirExists}
	}
	if m.Files.FindIndex(name, parent) != 0 {
		return FsStat{Result: ResultFileExists}
	}
	index := m.Dirs.AddDirectory(name, parent)
	if index == 0 {
		panic("disa: directory table exhausted")
	}
	return FsStat{Parent: parent, Index: index, Result: ResultOK, Name: name}
}

// IsDirEmpty reports whether a directory has no subdirectories and no
// subfiles. Callers (the FUSE bridge) check this before RemoveDir to
// surface ENOTEMPTY themselves, since that outcome has no FsResult of
// its own.
func (m *FsMetadata) IsDirEmpty(index uint32) bool {
	return m.Dirs.GetSubDirHead(index) == 0 && m.Dirs.GetSubFileHead(index) == 0
}

// RemoveDir deletes the (assumed-empty) directory at path.
func (m *FsMetadata) RemoveDir(path string) FsResult {
	stat := m.Find(path)
	if stat.Result != ResultOK {
		return stat.Result
	}
	if stat.IsFile {
		return ResultNotFound
	}
	if stat.Index == RootDirIndex {
		panic("disa: cannot remove root directory")
	}
	if !m.IsDirEmpty(stat.Index) {
		panic("disa: RemoveDir precondition violated: directory not empty")
	}
	m.Dirs.RemoveDirectory(stat.Index)
	return ResultOK
}

// MoveDir renames/relocates the directory at src to dst. dst must not
// already exist. Moving a directory into its own subtree is not
// validated here (left to the caller, spec §9 Open Question) since
// detecting it requires an ancestor walk the original does not
// perform either.
func (m *FsMetadata) MoveDir(src, dst string) FsResult {
	srcStat := m.Find(src)
	if srcStat.Result != ResultOK {
		return srcStat.Result
	}
	if srcStat.IsFile {
		return ResultNotFound
	}
	if srcStat.Index == RootDirIndex {
		panic("disa: cannot move root directory")
	}
	dstSegments, ok := splitPath(dst)
	if !ok || len(dstSegments) == 0 {
		return ResultInvalidPath
	}
	dstParent, res := m.resolveParentDir(dstSegments[:len(dstSegments)-1])
	if res != ResultOK {
		return res
	}
	dstName := NewName(dstSegments[len(dstSegments)-1])
	if m.Dirs.FindIndex(dstName, dstParent) != 0 {
		return ResultDirExists
	}
	if m.Files.FindIndex(dstName, dstParent) != 0 {
		return ResultFileExists
	}
	m.Dirs.MoveDirectory(srcStat.Index, dstName, dstParent)
	return ResultOK
}

// ListSubDir returns the names of a directory's immediate
// subdirectories.
func (m *FsMetadata) ListSubDir(index uint32) []Name {
	return m.Dirs.ListSubDir(index)
}

// ListSubFile returns the names of a directory's immediate files. The
// sibling list's head lives in the directory entry but its links live
// in the file entries, so this spans both tables.
func (m *FsMetadata) ListSubFile(index uint32) []Name {
	return m.Files.ListSiblings(m.Dirs.GetSubFileHead(index))
}

// MakeFile creates a new, dataless file at path.
func (m *FsMetadata) MakeFile(path string) FsStat {
	segments, ok := splitPath(path)
	if !ok || len(segments) == 0 {
		return FsStat{Result: ResultInvalidPath}
	}
	parent, res := m.resolveParentDir(segments[:len(segments)-1])
	if res != ResultOK {
		return FsStat{Result: res}
	}
	name := NewName(segments[len(segments)-1])
	if m.Dirs.FindIndex(name, parent) != 0 {
		return FsStat{Result: ResultDirExists}
	}
	if m.Files.FindIndex(name, parent) != 0 {
		return FsStat{Result: ResultFileExists}
	}
	index := m.Files.AddFile(name, parent)
	if index == 0 {
		panic("disa: file table exhausted")
	}
	m.Files.SetNext(index, m.Dirs.GetSubFileHead(parent))
	m.Dirs.SetSubFileHead(parent, index)
	return FsStat{Parent: parent, Index: index, IsFile: true, Result: ResultOK, Name: name}
}

// MoveFile renames/relocates the file at src to dst.
func (m *FsMetadata) MoveFile(src, dst string) FsResult {
	srcStat := m.Find(src)
	if srcStat.Result != ResultOK {
		return srcStat.Result
	}
	if !srcStat.IsFile {
		return ResultFileExists
	}
	dstSegments, ok := splitPath(dst)
	if !ok || len(dstSegments) == 0 {
		return ResultInvalidPath
	}
	dstParent, res := m.resolveParentDir(dstSegments[:len(dstSegments)-1])
	if res != ResultOK {
		return res
	}
	dstName := NewName(dstSegments[len(dstSegments)-1])
	if m.Dirs.FindIndex(dstName, dstParent) != 0 {
		return ResultDirExists
	}
	if m.Files.FindIndex(dstName, dstParent) != 0 {
		return ResultFileExists
	}
	m.unlinkFileSibling(srcStat.Parent, srcStat.Index)
	m.Files.MoveFile(srcStat.Index, dstName, dstParent)
	m.Files.SetNext(srcStat.Index, m.Dirs.GetSubFileHead(dstParent))
	m.Dirs.SetSubFileHead(dstParent, srcStat.Index)
	return ResultOK
}

func (m *FsMetadata) unlinkFileSibling(parent, index uint32) {
	head := m.Dirs.GetSubFileHead(parent)
	if head == index {
		m.Dirs.SetSubFileHead(parent, m.Files.GetNext(index))
		return
	}
	cur := head
	for {
		if cur == 0 {
			panic("disa: file not found in its parent's sub_file list")
		}
		next := m.Files.GetNext(cur)
		if next == index {
			m.Files.SetNext(cur, m.Files.GetNext(index))
			return
		}
		cur = next
	}
}
