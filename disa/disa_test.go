package disa

import (
	"bytes"
	"testing"
)

const testBlockSize = 16

// newTestDisa builds a minimal in-memory Disa sized for maxEntries
// additional directories and files each, and a Fat/data region of
// blockCount blocks. This bypasses OpenContainer's on-disk parsing
// entirely, the way the lower disa layers are meant to be exercised
// directly without a full DIFI/IVFC-wrapped image. A thin test-local
// wrapper around the exported NewScratchDisa, which disafuse's own
// tests use directly since they live outside this package.
func newTestDisa(t *testing.T, maxEntries, bucketCount, blockCount uint32) *Disa {
	t.Helper()
	return NewScratchDisa(maxEntries, bucketCount, maxEntries, bucketCount, blockCount, testBlockSize)
}

func TestDisaWriteReadRoundTrip(t *testing.T) {
	d := newTestDisa(t, 8, 4, 16)
	stat := d.MakeFile("/a")
	if stat.Result != ResultOK {
		t.Fatalf("MakeFile = %v", stat.Result)
	}
	h := d.Open(stat.Index)
	payload := []byte("the quick brown fox jumps over")
	h.Write(0, payload)
	if h.FileSize() != uint64(len(payload)) {
		t.Fatalf("FileSize = %d, want %d", h.FileSize(), len(payload))
	}
	buf := make([]byte, len(payload))
	n := h.Read(0, len(buf), buf)
	if n != len(payload) || !bytes.Equal(buf, payload) {
		t.Fatalf("Read back %q (n=%d), want %q", buf[:n], n, payload)
	}
	h.Close()

	if got := d.GetFileSize(stat.Index); got != uint64(len(payload)) {
		t.Fatalf("GetFileSize after Close = %d, want %d", got, len(payload))
	}
}

func TestDisaWriteSpanningMultipleBlocks(t *testing.T) {
	d := newTestDisa(t, 8, 4, 16)
	stat := d.MakeFile("/big")
	h := d.Open(stat.Index)
	payload := bytes.Repeat([]byte{0x5A}, testBlockSize*3+5)
	h.Write(0, payload)
	buf := make([]byte, len(payload))
	h.Read(0, len(buf), buf)
	if !bytes.Equal(buf, payload) {
		t.Fatal("multi-block round trip mismatch")
	}
	h.Close()
}

func TestDisaReadClampsToFileSize(t *testing.T) {
	d := newTestDisa(t, 8, 4, 16)
	stat := d.MakeFile("/short")
	h := d.Open(stat.Index)
	h.Write(0, []byte("hi"))
	buf := make([]byte, 100)
	n := h.Read(0, 100, buf)
	if n != 2 {
		t.Fatalf("Read clamped length = %d, want 2", n)
	}
	h.Close()
}

func TestDisaSharedHandleRefCounting(t *testing.T) {
	d := newTestDisa(t, 8, 4, 16)
	stat := d.MakeFile("/shared")
	h1 := d.Open(stat.Index)
	h2 := d.Open(stat.Index)
	if h1 != h2 {
		t.Fatal("two Open calls for the same index returned different handles")
	}
	h1.Write(0, []byte("data"))
	h1.Close()
	// Still referenced by h2; GetFileSize should still reflect the
	// live handle, not a stale on-disk value.
	if got := d.GetFileSize(stat.Index); got != 4 {
		t.Fatalf("GetFileSize with h2 still open = %d, want 4", got)
	}
	h2.Close()
}

func TestDisaRemoveFileWhileOpenDetachesHandle(t *testing.T) {
	d := newTestDisa(t, 8, 4, 16)
	stat := d.MakeFile("/doomed")
	h := d.Open(stat.Index)
	h.Write(0, bytes.Repeat([]byte{1}, testBlockSize+1))

	if res := d.RemoveFile("/doomed"); res != ResultOK {
		t.Fatalf("RemoveFile while open = %v", res)
	}
	if found := d.Find("/doomed"); found.Result != ResultNotFound {
		t.Fatalf("entry still resolves after remove-while-open: %v", found.Result)
	}
	// The handle is still usable until Close, which frees its chain.
	buf := make([]byte, testBlockSize+1)
	h.Read(0, len(buf), buf)
	h.Close()
	if d.Fat.FreeBlockCount() != 16 {
		t.Fatalf("FreeBlockCount after detached Close = %d, want all 16 blocks back", d.Fat.FreeBlockCount())
	}
}

func TestDisaRemoveFileOnDirectoryReturnsDirExists(t *testing.T) {
	d := newTestDisa(t, 8, 4, 16)
	d.MakeDir("/adir")
	if res := d.RemoveFile("/adir"); res != ResultDirExists {
		t.Fatalf("RemoveFile on a directory = %v, want DirExists (unlinkErrno maps it to EISDIR)", res)
	}
	if found := d.Find("/adir"); found.Result != ResultOK {
		t.Fatalf("directory should survive a rejected RemoveFile: %v", found.Result)
	}
}

// Disa.MoveFile is strict: it never overwrites an existing
// destination itself. The rename-overwrite dispatch (remove an
// existing destination first, with the destination-type-dependent
// errno a POSIX rename requires) is the FUSE bridge's job — see
// disafuse.node.Rename and its own tests for the overwrite cases.
func TestDisaMoveFileRejectsExistingDestination(t *testing.T) {
	d := newTestDisa(t, 8, 4, 16)
	d.MakeFile("/src")
	d.MakeFile("/dst")

	if res := d.MoveFile("/src", "/dst"); res != ResultFileExists {
		t.Fatalf("MoveFile onto an existing file = %v, want FileExists", res)
	}
	if found := d.Find("/src"); found.Result != ResultOK {
		t.Fatalf("src should be untouched after a rejected move: %v", found.Result)
	}
}

func TestDisaMoveFileRelocatesToNewDestination(t *testing.T) {
	d := newTestDisa(t, 8, 4, 16)
	src := d.MakeFile("/src")
	h := d.Open(src.Index)
	h.Write(0, []byte("source data"))
	h.Close()

	if res := d.MoveFile("/src", "/dst"); res != ResultOK {
		t.Fatalf("MoveFile = %v", res)
	}
	found := d.Find("/dst")
	if found.Result != ResultOK || !found.IsFile {
		t.Fatalf("Find(/dst) after move = %+v", found)
	}
	h = d.Open(found.Index)
	buf := make([]byte, h.FileSize())
	h.Read(0, len(buf), buf)
	if !bytes.Equal(buf, []byte("source data")) {
		t.Fatalf("dst content after move = %q, want %q", buf, "source data")
	}
	h.Close()
	if found := d.Find("/src"); found.Result != ResultNotFound {
		t.Fatalf("src still resolves after move: %v", found.Result)
	}
}
