package disa

import (
	"testing"

	"github.com/wwylele/disafs-go/vfile"
)

// newTestFat builds a Fat over n blocks, all free as one run, the way
// a freshly formatted SAVE partition's FAT would look.
func newTestFat(n uint32) *Fat {
	table := vfile.NewMemory(int64(n+1) * 8)
	f := NewFat(table)
	f.setNode(0, fatNode{prev: NoIndex, next: NoIndex, size: n})
	f.setFreeHead(0)
	return f
}

func TestFatAllocateThenFreeRestoresCapacity(t *testing.T) {
	f := newTestFat(8)
	chain := f.AllocateChain(8, NoIndex)
	if len(chain) != 8 {
		t.Fatalf("len(chain) = %d, want 8", len(chain))
	}
	if f.getFreeHead() != NoIndex {
		t.Fatal("free list should be exhausted after allocating every block")
	}
	f.FreeChain(chain[0].BlockIndex)
	again := f.AllocateChain(8, NoIndex)
	if len(again) != 8 {
		t.Fatalf("len(again) = %d, want 8 after round-tripping through free", len(again))
	}
}

func TestFatAllocateBeyondCapacityPanics(t *testing.T) {
	f := newTestFat(4)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic allocating beyond total capacity")
		}
	}()
	f.AllocateChain(5, NoIndex)
}

func TestFatGetChainMatchesAllocationOrder(t *testing.T) {
	f := newTestFat(10)
	chain := f.AllocateChain(3, NoIndex)
	got := f.GetChain(chain[0].BlockIndex)
	if len(got) != 3 {
		t.Fatalf("GetChain length = %d, want 3", len(got))
	}
	for i := range chain {
		if got[i] != chain[i] {
			t.Fatalf("GetChain[%d] = %+v, want %+v", i, got[i], chain[i])
		}
	}
}

func TestFatExpandChainAppendsAndLinks(t *testing.T) {
	f := newTestFat(10)
	chain := f.AllocateChain(2, NoIndex)
	expanded := f.ExpandChain(chain, 3)
	if len(expanded) != 5 {
		t.Fatalf("len(expanded) = %d, want 5", len(expanded))
	}
	reread := f.GetChain(chain[0].BlockIndex)
	if len(reread) != 5 {
		t.Fatalf("GetChain after expand = %d blocks, want 5", len(reread))
	}
}

func TestFatTruncateChainAtNodeBoundary(t *testing.T) {
	f := newTestFat(10)
	a := f.AllocateChain(2, NoIndex)
	b := f.AllocateChain(2, a[0].BlockIndex)
	chain := append(a, b...)

	kept := f.TruncateChain(chain, 2)
	if len(kept) != 2 {
		t.Fatalf("len(kept) = %d, want 2", len(kept))
	}
	reread := f.GetChain(chain[0].BlockIndex)
	if len(reread) != 2 {
		t.Fatalf("chain still has %d blocks after truncation, want 2", len(reread))
	}
	if f.FreeBlockCount() != 8 {
		t.Fatalf("FreeBlockCount = %d, want 8 after freeing the truncated tail", f.FreeBlockCount())
	}
}

func TestFatTruncateChainMidRun(t *testing.T) {
	f := newTestFat(10)
	chain := f.AllocateChain(5, NoIndex)

	kept := f.TruncateChain(chain, 3)
	if len(kept) != 3 {
		t.Fatalf("len(kept) = %d, want 3", len(kept))
	}
	reread := f.GetChain(chain[0].BlockIndex)
	if len(reread) != 3 {
		t.Fatalf("chain still has %d blocks after mid-run truncation, want 3", len(reread))
	}
	if f.FreeBlockCount() != 7 {
		t.Fatalf("FreeBlockCount = %d, want 7", f.FreeBlockCount())
	}
}

func TestFatTruncateChainToZeroFreesEverything(t *testing.T) {
	f := newTestFat(6)
	chain := f.AllocateChain(6, NoIndex)
	kept := f.TruncateChain(chain, 0)
	if kept != nil {
		t.Fatalf("kept = %v, want nil", kept)
	}
	if f.FreeBlockCount() != 6 {
		t.Fatalf("FreeBlockCount = %d, want 6", f.FreeBlockCount())
	}
}

func TestFatFreeChainIsLIFO(t *testing.T) {
	f := newTestFat(4)
	chain := f.AllocateChain(4, NoIndex)
	f.FreeChain(chain[0].BlockIndex)
	if f.getFreeHead() != chain[0].BlockIndex {
		t.Fatalf("free head = %d, want the freed chain's own start %d reinserted LIFO", f.getFreeHead(), chain[0].BlockIndex)
	}
}
