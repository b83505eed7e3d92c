package disa

// DisaFile is a per-open-file handle: chain-aware byte I/O over the
// data region, with an in-memory BlockMap mirror to avoid re-walking
// the FAT on every access. Grounded on the nested DisaFile class in
// disa.cpp. Repeated Open calls for the same index share one handle
// via reference counting (spec §4.11, §5's open-file registry note).
type DisaFile struct {
	disa  *Disa
	index uint32

	fileSize        uint64
	firstBlockIndex uint32
	chain           []BlockMap

	refCount int
	detached bool
}

// FileSize returns the handle's current logical size.
func (h *DisaFile) FileSize() uint64 { return h.fileSize }

// Read copies up to size bytes starting at offset into buf, clipped
// to the handle's file_size, and returns the number of bytes actually
// copied into the front of buf.
func (h *DisaFile) Read(offset uint64, size int, buf []byte) int {
	end := offset + uint64(size)
	if end > h.fileSize {
		end = h.fileSize
	}
	if end <= offset {
		return 0
	}
	n := int(end - offset)
	pos := offset
	remaining := n
	for remaining > 0 {
		dataOffset, chunk := h.translate(pos, remaining)
		copy(buf[pos-offset:], h.disa.Data.ReadAt(dataOffset, int(chunk)))
		pos += chunk
		remaining -= int(chunk)
	}
	return n
}

// Write writes len(data) bytes at offset, growing the file (and its
// FAT chain) as needed, and returns len(data).
func (h *DisaFile) Write(offset uint64, data []byte) int {
	end := offset + uint64(len(data))
	if end > h.fileSize {
		h.grow(end)
	}
	pos := offset
	remaining := len(data)
	for remaining > 0 {
		dataOffset, chunk := h.translate(pos, remaining)
		h.disa.Data.WriteAt(dataOffset, data[pos-offset:pos-offset+chunk])
		pos += chunk
		remaining -= int(chunk)
	}
	return len(data)
}

// translate maps logical position pos to a data-region byte offset
// via the chain mirror, and returns the largest contiguous chunk (up
// to remaining) reachable before crossing into the next block.
func (h *DisaFile) translate(pos uint64, remaining int) (dataOffset int64, chunk uint64) {
	blockSize := uint64(h.disa.BlockSize)
	blockIdx := pos / blockSize
	inBlock := pos % blockSize
	chunk = blockSize - inBlock
	if uint64(remaining) < chunk {
		chunk = uint64(remaining)
	}
	dataOffset = int64(h.chain[blockIdx].BlockIndex)*int64(blockSize) + int64(inBlock)
	return dataOffset, chunk
}

// grow extends the handle's chain (allocating it fresh if the file
// was previously empty) so it can hold newSize bytes, then updates
// fileSize. Asserts the mirror matches a fresh FAT walk after
// growing, per the design note in spec §9.
func (h *DisaFile) grow(newSize uint64) {
	blockSize := uint64(h.disa.BlockSize)
	newBlockCount := uint32((newSize + blockSize - 1) / blockSize)
	if h.firstBlockIndex == EmptyBlockIndex {
		if newBlockCount > 0 {
			h.chain = h.disa.Fat.AllocateChain(newBlockCount, NoIndex)
			h.firstBlockIndex = h.chain[0].BlockIndex
		}
	} else {
		currentBlockCount := uint32(len(h.chain))
		if newBlockCount > currentBlockCount {
			h.chain = h.disa.Fat.ExpandChain(h.chain, newBlockCount-currentBlockCount)
		}
	}
	if h.firstBlockIndex != EmptyBlockIndex {
		fresh := h.disa.Fat.GetChain(h.firstBlockIndex)
		if len(fresh) != len(h.chain) {
			panic("disa: chain mirror desynchronized from FAT after growth")
		}
		for i := range fresh {
			if fresh[i] != h.chain[i] {
				panic("disa: chain mirror desynchronized from FAT after growth")
			}
		}
	}
	h.fileSize = newSize
}

// Close decrements the handle's reference count. At zero: a detached
// handle (its file was removed while open) frees its chain; otherwise
// its {file_size, first_block_index} are committed back to the file
// table.
func (h *DisaFile) Close() {
	h.refCount--
	if h.refCount > 0 {
		return
	}
	if h.detached {
		if h.firstBlockIndex != EmptyBlockIndex {
			h.disa.Fat.FreeChain(h.firstBlockIndex)
		}
		return
	}
	delete(h.disa.handles, h.index)
	h.disa.Meta.Files.SetFileSize(h.index, h.fileSize)
	h.disa.Meta.Files.SetFirstBlockIndex(h.index, h.firstBlockIndex)
}
