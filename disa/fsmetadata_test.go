package disa

import (
	"testing"

	"github.com/wwylele/disafs-go/vfile"
)

// newTestTables builds a DirectoryTable and FileTable sized for
// maxEntries live slots each (plus the reserved slot 0 and the
// pre-existing root directory at index 1), with empty hash tables of
// bucketCount buckets.
func newTestTables(t *testing.T, maxEntries, bucketCount uint32) (*DirectoryTable, *FileTable) {
	t.Helper()
	dirSlots := maxEntries + 2 // slot 0 + root + maxEntries
	dirEntries := vfile.NewMemory(int64(dirSlots) * DirEntrySize)
	dirHash := vfile.NewMemory(int64(bucketCount) * 4)
	dirs := NewDirectoryTable(dirEntries, dirHash)
	dirs.setU32(0, 0x4, dirSlots)
	dirs.setCurrentCount(RootDirIndex + 1)

	fileSlots := maxEntries + 1
	fileEntries := vfile.NewMemory(int64(fileSlots) * FileEntrySize)
	fileHash := vfile.NewMemory(int64(bucketCount) * 4)
	files := NewFileTable(fileEntries, fileHash)
	files.setU32(0, 0x4, fileSlots)
	files.setCurrentCount(1)

	return dirs, files
}

func TestDirectoryTableAddFindRemove(t *testing.T) {
	dirs, _ := newTestTables(t, 8, 4)
	idx := dirs.AddDirectory(NewName("pictures"), RootDirIndex)
	if idx == 0 {
		t.Fatal("AddDirectory returned 0")
	}
	if got := dirs.FindIndex(NewName("pictures"), RootDirIndex); got != idx {
		t.Fatalf("FindIndex = %d, want %d", got, idx)
	}
	dirs.RemoveDirectory(idx)
	if got := dirs.FindIndex(NewName("pictures"), RootDirIndex); got != 0 {
		t.Fatalf("FindIndex after remove = %d, want 0", got)
	}
}

func TestDirectoryTableExhaustionReturnsZero(t *testing.T) {
	dirs, _ := newTestTables(t, 2, 4)
	if idx := dirs.AddDirectory(NewName("a"), RootDirIndex); idx == 0 {
		t.Fatal("first AddDirectory should succeed")
	}
	if idx := dirs.AddDirectory(NewName("b"), RootDirIndex); idx == 0 {
		t.Fatal("second AddDirectory should succeed")
	}
	if idx := dirs.AddDirectory(NewName("c"), RootDirIndex); idx != 0 {
		t.Fatalf("third AddDirectory = %d, want 0 (table exhausted)", idx)
	}
}

func TestDirectoryTableFreedSlotIsReused(t *testing.T) {
	dirs, _ := newTestTables(t, 1, 4)
	a := dirs.AddDirectory(NewName("a"), RootDirIndex)
	dirs.RemoveDirectory(a)
	b := dirs.AddDirectory(NewName("b"), RootDirIndex)
	if b != a {
		t.Fatalf("AddDirectory after Remove reused index %d, want freed index %d", b, a)
	}
}

func TestListSiblingsOrder(t *testing.T) {
	dirs, _ := newTestTables(t, 8, 4)
	first := dirs.AddDirectory(NewName("first"), RootDirIndex)
	second := dirs.AddDirectory(NewName("second"), RootDirIndex)
	names := dirs.ListSubDir(RootDirIndex)
	if len(names) != 2 {
		t.Fatalf("len(names) = %d, want 2", len(names))
	}
	// AddDirectory threads new entries onto the head of the sibling
	// list, so the most recently added name comes first.
	if names[0].String() != "second" || names[1].String() != "first" {
		t.Fatalf("names = %v, want [second first]", names)
	}
	_, _ = first, second
}

func newTestMeta(t *testing.T, maxEntries, bucketCount uint32) *FsMetadata {
	t.Helper()
	dirs, files := newTestTables(t, maxEntries, bucketCount)
	return NewFsMetadata(dirs, files)
}

func TestFsMetadataMakeDirAndFind(t *testing.T) {
	m := newTestMeta(t, 8, 4)
	stat := m.MakeDir("/photos")
	if stat.Result != ResultOK {
		t.Fatalf("MakeDir result = %v", stat.Result)
	}
	found := m.Find("/photos")
	if found.Result != ResultOK || found.IsFile {
		t.Fatalf("Find(/photos) = %+v", found)
	}
	if found.Index != stat.Index {
		t.Fatalf("Find index %d != MakeDir index %d", found.Index, stat.Index)
	}
}

func TestFsMetadataMakeDirDuplicateNameFails(t *testing.T) {
	m := newTestMeta(t, 8, 4)
	m.MakeDir("/x")
	if res := m.MakeDir("/x"); res.Result != ResultDirExists {
		t.Fatalf("second MakeDir(/x) = %v, want DirExists", res.Result)
	}
}

func TestFsMetadataMakeFileWhereDirExistsFails(t *testing.T) {
	m := newTestMeta(t, 8, 4)
	m.MakeDir("/x")
	if res := m.MakeFile("/x"); res.Result != ResultDirExists {
		t.Fatalf("MakeFile(/x) over existing dir = %v, want DirExists", res.Result)
	}
}

func TestFsMetadataPathThroughFileFails(t *testing.T) {
	m := newTestMeta(t, 8, 4)
	m.MakeFile("/leaf")
	if res := m.MakeDir("/leaf/sub"); res.Result != ResultFileInPath {
		t.Fatalf("MakeDir under a file = %v, want FileInPath", res.Result)
	}
}

func TestFsMetadataRemoveNonEmptyDirPanics(t *testing.T) {
	m := newTestMeta(t, 8, 4)
	m.MakeDir("/x")
	m.MakeFile("/x/y")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic removing a non-empty directory")
		}
	}()
	m.RemoveDir("/x")
}

func TestFsMetadataMoveFileBetweenDirs(t *testing.T) {
	m := newTestMeta(t, 8, 4)
	m.MakeDir("/a")
	m.MakeDir("/b")
	m.MakeFile("/a/f")
	if res := m.MoveFile("/a/f", "/b/f"); res != ResultOK {
		t.Fatalf("MoveFile = %v", res)
	}
	if stat := m.Find("/a/f"); stat.Result != ResultNotFound {
		t.Fatalf("source still resolves after move: %v", stat.Result)
	}
	stat := m.Find("/b/f")
	if stat.Result != ResultOK || !stat.IsFile {
		t.Fatalf("Find(/b/f) after move = %+v", stat)
	}
}

func TestFsMetadataDotDotUnderflowIsInvalidPath(t *testing.T) {
	m := newTestMeta(t, 8, 4)
	if stat := m.Find("/../x"); stat.Result != ResultInvalidPath {
		t.Fatalf("Find(/../x) = %v, want InvalidPath", stat.Result)
	}
}

func TestFsMetadataDotDotNavigatesUp(t *testing.T) {
	m := newTestMeta(t, 8, 4)
	m.MakeDir("/a")
	m.MakeFile("/f")
	stat := m.Find("/a/../f")
	if stat.Result != ResultOK || !stat.IsFile {
		t.Fatalf("Find(/a/../f) = %+v", stat)
	}
}
