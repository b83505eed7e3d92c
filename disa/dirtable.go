package disa

import "github.com/wwylele/disafs-go/vfile"

// Directory entry layout (40 bytes, spec §3):
//   0x00 parent          0x04 name[16]        0x14 next_sibling
//   0x18 sub_dir_head    0x1C sub_file_head   0x24 collision (0x28-4)
const (
	dirOffSubDirHead  = 0x18
	dirOffSubFileHead = 0x1C
)

// DirectoryTable is the spec §3 directory metadata table: index 1 is
// always the root directory. Grounded on the DirectoryTable
// specialization in metadata_table.cpp.
type DirectoryTable struct {
	metaTable
}

const DirEntrySize = 0x28

func NewDirectoryTable(entries, hash vfile.File) *DirectoryTable {
	return &DirectoryTable{metaTable: newMetaTable(entries, hash, DirEntrySize)}
}

func (t *DirectoryTable) GetSubDirHead(i uint32) uint32  { return t.getU32(i, dirOffSubDirHead) }
func (t *DirectoryTable) SetSubDirHead(i uint32, v uint32) { t.setU32(i, dirOffSubDirHead, v) }
func (t *DirectoryTable) GetSubFileHead(i uint32) uint32 { return t.getU32(i, dirOffSubFileHead) }
func (t *DirectoryTable) SetSubFileHead(i uint32, v uint32) { t.setU32(i, dirOffSubFileHead, v) }

// AddDirectory inserts a new subdirectory named name under parent,
// threading it onto parent's sub_dir_head list. Returns 0 if the
// table is full (spec §7 kind 4).
func (t *DirectoryTable) AddDirectory(name Name, parent uint32) uint32 {
	index := t.Add(name, parent)
	if index == 0 {
		return 0
	}
	t.SetNext(index, t.GetSubDirHead(parent))
	t.SetSubDirHead(parent, index)
	return index
}

// RemoveDirectory unlinks index from its parent's sub_dir_head list
// and frees its slot. Caller must ensure the directory is empty
// (spec §6's rmdir precondition).
func (t *DirectoryTable) RemoveDirectory(index uint32) {
	parent := t.GetParent(index)
	t.unlinkSibling(t.GetSubDirHead, t.SetSubDirHead, parent, index)
	t.Remove(index)
}

// MoveDirectory relocates index from its current parent's sibling
// list to newParent's, renaming it to newName.
func (t *DirectoryTable) MoveDirectory(index uint32, newName Name, newParent uint32) {
	oldParent := t.GetParent(index)
	t.unlinkSibling(t.GetSubDirHead, t.SetSubDirHead, oldParent, index)
	t.Move(index, newName, newParent)
	t.SetNext(index, t.GetSubDirHead(newParent))
	t.SetSubDirHead(newParent, index)
}

// ListSubDir returns the names of parent's immediate subdirectories.
func (t *DirectoryTable) ListSubDir(parent uint32) []Name {
	return t.ListSiblings(t.GetSubDirHead(parent))
}

// unlinkSibling removes index from the singly-linked list rooted at
// getHead(owner), fixing up either the head pointer or the
// predecessor's next_sibling field. Used for DirectoryTable's
// sub-directory lists; file sibling lists are unlinked by
// FsMetadata.unlinkFileSibling, since their head lives in the
// directory table.
func (t *metaTable) unlinkSibling(getHead func(uint32) uint32, setHead func(uint32, uint32), owner, index uint32) {
	head := getHead(owner)
	if head == index {
		setHead(owner, t.GetNext(index))
		return
	}
	cur := head
	for {
		if cur == 0 {
			panic("disa: sibling not found in owner's list")
		}
		next := t.GetNext(cur)
		if next == index {
			t.SetNext(cur, t.GetNext(index))
			return
		}
		cur = next
	}
}
