package disa

import "github.com/wwylele/disafs-go/vfile"

// File entry layout (48 bytes, spec §3):
//   0x00 parent           0x04 name[16]         0x14 next_sibling
//   0x18 unk_a (unused)   0x1C first_block_index 0x20 file_size (u64)
//   0x28 unk_b (unused)   0x2C hash_collision_next (entrySize-4)
const (
	fileOffBlockIdx = 0x1C
	fileOffSize     = 0x20
)

// EmptyBlockIndex is the sentinel stored in first_block_index for a
// file with no allocation yet (spec §3) — distinct from the FAT's own
// NoIndex encoding, since this field is a plain block number space.
const EmptyBlockIndex uint32 = 0x80000000

// FileTable is the spec §3 file metadata table. Grounded on the
// FileTable specialization in metadata_table.cpp.
type FileTable struct {
	metaTable
}

const FileEntrySize = 0x30

func NewFileTable(entries, hash vfile.File) *FileTable {
	return &FileTable{metaTable: newMetaTable(entries, hash, FileEntrySize)}
}

func (t *FileTable) GetFirstBlockIndex(i uint32) uint32    { return t.getU32(i, fileOffBlockIdx) }
func (t *FileTable) SetFirstBlockIndex(i uint32, v uint32) { t.setU32(i, fileOffBlockIdx, v) }
func (t *FileTable) GetFileSize(i uint32) uint64           { return t.getU64(i, fileOffSize) }
func (t *FileTable) SetFileSize(i uint32, v uint64)        { t.setU64(i, fileOffSize, v) }

// IsEmpty reports whether the file has no blocks allocated yet.
func (t *FileTable) IsEmpty(i uint32) bool {
	return t.GetFirstBlockIndex(i) == EmptyBlockIndex
}

// AddFile inserts a new, empty (file_size=0, unallocated) file named
// name under parent. Returns 0 if the table is full. The caller
// (FsMetadata) is responsible for threading it onto the parent
// directory's sub_file_head list, since that head lives in the
// DirectoryTable.
func (t *FileTable) AddFile(name Name, parent uint32) uint32 {
	index := t.Add(name, parent)
	if index == 0 {
		return 0
	}
	t.SetFirstBlockIndex(index, EmptyBlockIndex)
	t.SetFileSize(index, 0)
	return index
}

// RemoveFile frees index's slot. The caller must already have
// unlinked it from its parent's sub_file_head sibling list and freed
// any FAT chain backing it.
func (t *FileTable) RemoveFile(index uint32) {
	t.Remove(index)
}

// MoveFile relocates index to a new (name, parent) without touching
// sibling lists; callers manage sub_file_head linkage themselves.
func (t *FileTable) MoveFile(index uint32, newName Name, newParent uint32) {
	t.Move(index, newName, newParent)
}
