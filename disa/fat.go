package disa

import "github.com/wwylele/disafs-go/vfile"

// NoIndex is the "none" sentinel for FAT block indices: logically
// -1, biased the way the on-disk format stores it (see getEntry).
const NoIndex uint32 = 0xFFFFFFFF

// BlockMap is {physical block index, is this block the first of its
// FAT node}. A chain is the ordered sequence of BlockMaps occupied by
// one logical file. Grounded on BlockMap/Fat in fat.{h,cpp}.
type BlockMap struct {
	BlockIndex  uint32
	IsNodeStart bool
}

// fatNode is the logical record derived from a node's entry pair:
// {prev, next, size} where size is the run length in blocks.
type fatNode struct {
	prev, next uint32
	size       uint32
}

// Fat is the run-length block allocator operating directly on the FAT
// table byte-file (spec §3/§4.9, §7 kind 4/5 for its error modes).
type Fat struct {
	table      vfile.File
	blockCount uint32
}

// NewFat wraps table (sized (blockCount+1)*8 bytes, see spec §6).
func NewFat(table vfile.File) *Fat {
	return &Fat{
		table:      table,
		blockCount: uint32(table.FileSize()/8) - 1,
	}
}

// entry is the raw on-disk (U, V) pair for a block index, after
// removing the top-bit flag and the +1 "none" bias (spec §3).
type entry struct {
	u, v           uint32
	uFlag, vFlag   bool
}

func (f *Fat) getEntry(blockIndex uint32) entry {
	raw := f.table.ReadAt(int64(blockIndex+1)*8, 8)
	u := leU32(raw[0:4])
	v := leU32(raw[4:8])
	var e entry
	if u >= 0x80000000 {
		u -= 0x80000000
		e.uFlag = true
	}
	if v >= 0x80000000 {
		v -= 0x80000000
		e.vFlag = true
	}
	e.u = u - 1
	e.v = v - 1
	return e
}

func (f *Fat) setEntry(blockIndex uint32, e entry) {
	u := e.u + 1
	v := e.v + 1
	if e.uFlag {
		u += 0x80000000
	}
	if e.vFlag {
		v += 0x80000000
	}
	buf := make([]byte, 8)
	putLeU32(buf[0:4], u)
	putLeU32(buf[4:8], v)
	f.table.WriteAt(int64(blockIndex+1)*8, buf)
}

func (f *Fat) getNode(blockIndex uint32) fatNode {
	first := f.getEntry(blockIndex)
	node := fatNode{prev: first.u, next: first.v}
	if (node.prev == NoIndex) != first.uFlag {
		panic("disa: FAT node prev-flag inconsistency")
	}
	if first.vFlag {
		expand := f.getEntry(blockIndex + 1)
		if !expand.uFlag || expand.u != blockIndex {
			panic("disa: FAT node multi-block start marker corrupt")
		}
		last := expand.v
		expand2 := f.getEntry(last)
		if !expand2.uFlag || expand2.u != blockIndex || expand2.v != last {
			panic("disa: FAT node multi-block end marker corrupt")
		}
		node.size = last - blockIndex + 1
	} else {
		node.size = 1
	}
	return node
}

func (f *Fat) setNode(blockIndex uint32, node fatNode) {
	first := entry{u: node.prev, v: node.next, uFlag: node.prev == NoIndex}
	if node.size == 1 {
		first.vFlag = false
	} else {
		first.vFlag = true
		expand := entry{u: blockIndex, v: blockIndex + node.size - 1, uFlag: true}
		f.setEntry(blockIndex+1, expand)
		f.setEntry(blockIndex+node.size-1, expand)
	}
	f.setEntry(blockIndex, first)
}

func (f *Fat) getFreeHead() uint32 {
	return leU32(f.table.ReadAt(4, 4)) - 1
}

func (f *Fat) setFreeHead(head uint32) {
	buf := make([]byte, 4)
	putLeU32(buf, head+1)
	f.table.WriteAt(4, buf)
}

func (f *Fat) addNodeToFreeChain(blockIndex uint32) {
	oldHeadIndex := f.getFreeHead()
	if oldHeadIndex != NoIndex {
		oldHead := f.getEntry(oldHeadIndex)
		if !oldHead.uFlag || oldHead.u != NoIndex {
			panic("disa: free list head corrupt")
		}
		oldHead.u = blockIndex
		oldHead.uFlag = false
		f.setEntry(oldHeadIndex, oldHead)
	}

	newHead := f.getEntry(blockIndex)
	newHead.uFlag = true
	newHead.u = NoIndex
	newHead.v = oldHeadIndex
	f.setEntry(blockIndex, newHead)

	f.setFreeHead(blockIndex)
}

func (f *Fat) popFreeHead() {
	oldHeadIndex := f.getFreeHead()
	if oldHeadIndex == NoIndex {
		panic("disa: FAT free list exhausted")
	}
	oldHead := f.getEntry(oldHeadIndex)
	newHeadIndex := oldHead.v
	if newHeadIndex != NoIndex {
		newHead := f.getEntry(newHeadIndex)
		newHead.uFlag = true
		newHead.u = NoIndex
		f.setEntry(newHeadIndex, newHead)
	}
	f.setFreeHead(newHeadIndex)
}

// BlockCount returns the total number of data blocks this FAT
// manages (spec §3's data_block_count).
func (f *Fat) BlockCount() uint32 { return f.blockCount }

// FreeBlockCount walks the free-node chain (non-destructively) and
// sums each node's run length, for reporting through statfs.
func (f *Fat) FreeBlockCount() uint32 {
	var free uint32
	cur := f.getFreeHead()
	for cur != NoIndex {
		node := f.getNode(cur)
		free += node.size
		cur = node.next
	}
	return free
}

// splitNode shrinks the node at blockIndex by splitSize blocks,
// returning the index of a new, unlinked node holding the split-off
// tail (of length splitSize).
func (f *Fat) splitNode(blockIndex, splitSize uint32) uint32 {
	node := f.getNode(blockIndex)
	if node.size <= splitSize {
		panic("disa: splitNode requires a strictly larger node")
	}
	node.size -= splitSize
	f.setNode(blockIndex, node)
	tailIndex := blockIndex + node.size
	f.setNode(tailIndex, fatNode{prev: NoIndex, next: NoIndex, size: splitSize})
	return tailIndex
}

// GetChain walks next pointers from start until NoIndex, validating
// prev pointers and multi-block end markers along the way (fatal on
// inconsistency, per spec §7 kind 1/5).
func (f *Fat) GetChain(start uint32) []BlockMap {
	var result []BlockMap
	current := start
	previous := NoIndex
	for current != NoIndex {
		node := f.getNode(current)
		if node.prev != previous {
			panic("disa: FAT chain prev-link mismatch")
		}
		result = append(result, BlockMap{BlockIndex: current, IsNodeStart: true})
		for i := current + 1; i < current+node.size; i++ {
			result = append(result, BlockMap{BlockIndex: i, IsNodeStart: false})
		}
		previous = current
		current = node.next
	}
	return result
}

// AllocateChain pops nodes off the free list until size blocks have
// been assigned, splitting the last popped node if it is larger than
// needed, and linking the result after prev (NoIndex for none).
func (f *Fat) AllocateChain(size uint32, prev uint32) []BlockMap {
	var result []BlockMap
	for size != 0 {
		newNodeIndex := f.getFreeHead()
		if newNodeIndex == NoIndex {
			panic("disa: FAT allocation requested beyond capacity")
		}
		newNode := f.getNode(newNodeIndex)
		if newNode.size > size {
			newNode.size = size
			newNodeIndex = f.splitNode(newNodeIndex, size)
		} else {
			f.popFreeHead()
		}
		newNode.prev = prev
		newNode.next = NoIndex
		f.setNode(newNodeIndex, newNode)
		if prev != NoIndex {
			prevEntry := f.getEntry(prev)
			if prevEntry.v != NoIndex {
				panic("disa: FAT prev node already has a next link")
			}
			prevEntry.v = newNodeIndex
			f.setEntry(prev, prevEntry)
		}

		result = append(result, BlockMap{BlockIndex: newNodeIndex, IsNodeStart: true})
		for i := newNodeIndex + 1; i < newNodeIndex+newNode.size; i++ {
			result = append(result, BlockMap{BlockIndex: i, IsNodeStart: false})
		}

		prev = newNodeIndex
		size -= newNode.size
	}
	return result
}

// FreeChain walks the chain starting at start and returns every node
// to the free list, LIFO (head-inserted), per spec §4.9.
func (f *Fat) FreeChain(start uint32) {
	cur := start
	for cur != NoIndex {
		next := f.getEntry(cur).v
		f.addNodeToFreeChain(cur)
		cur = next
	}
}

// ExpandChain allocates more additional blocks after the last node of
// chain, links them in, and appends the new BlockMaps to chain.
func (f *Fat) ExpandChain(chain []BlockMap, more uint32) []BlockMap {
	var lastNodeIndex uint32
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].IsNodeStart {
			lastNodeIndex = chain[i].BlockIndex
			break
		}
	}

	moreChain := f.AllocateChain(more, lastNodeIndex)

	prevEntry := f.getEntry(lastNodeIndex)
	prevEntry.v = moreChain[0].BlockIndex
	f.setEntry(lastNodeIndex, prevEntry)

	return append(chain, moreChain...)
}

// TruncateChain shortens chain to keep exactly keep blocks, splitting
// the boundary node if the cut bisects a run and freeing the
// remainder. Addresses the Open Question in spec §9 (the original
// left this unimplemented); it is not wired to any live FUSE
// operation, matching the original's own deferral (see SPEC_FULL.md
// §13).
func (f *Fat) TruncateChain(chain []BlockMap, keep uint32) []BlockMap {
	if keep == 0 {
		if len(chain) > 0 {
			f.FreeChain(chain[0].BlockIndex)
		}
		return nil
	}
	if keep >= uint32(len(chain)) {
		return chain
	}

	// Find the node containing position keep-1 (the last kept
	// block) and the node containing position keep (the first
	// dropped block, which may be the same node).
	lastKeptNodeStart := chain[0].BlockIndex
	for i := int(keep) - 1; i >= 0; i-- {
		if chain[i].IsNodeStart {
			lastKeptNodeStart = chain[i].BlockIndex
			break
		}
	}
	lastKeptNodeStartPos := 0
	for i := int(keep) - 1; i >= 0; i-- {
		if chain[i].IsNodeStart {
			lastKeptNodeStartPos = i
			break
		}
	}

	if chain[keep].IsNodeStart {
		// The cut falls exactly on a node boundary: keep the
		// last kept node whole, free everything from here on,
		// and clear its next link.
		f.FreeChain(chain[keep].BlockIndex)
		node := f.getNode(lastKeptNodeStart)
		node.next = NoIndex
		f.setNode(lastKeptNodeStart, node)
		return chain[:keep]
	}

	// The cut bisects the run starting at lastKeptNodeStart: shrink
	// it in place to the number of blocks kept, and free the
	// split-off tail (splitNode's splitSize is the tail's length,
	// not the kept length).
	keptInRun := keep - uint32(lastKeptNodeStartPos)
	run := f.getNode(lastKeptNodeStart)
	tailIndex := f.splitNode(lastKeptNodeStart, run.size-keptInRun)
	node := f.getNode(lastKeptNodeStart)
	node.next = NoIndex
	f.setNode(lastKeptNodeStart, node)
	tail := f.getNode(tailIndex)
	tail.next = run.next
	f.setNode(tailIndex, tail)
	f.FreeChain(tailIndex)
	return chain[:keep]
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLeU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
