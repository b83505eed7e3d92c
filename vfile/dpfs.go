package vfile

import "encoding/binary"

// DpfsLevel maintains two copies of a body region and a selector
// bitmap indicating which copy is active per block. Grounded on
// dpfs_level.{h,cpp}. Reads return the active copy, zero-padded past
// FileSize. Writes only ever touch the selected copy; the selector
// itself is never modified by this layer (transaction management, and
// flipping the selector between transactions, is the caller's job —
// see spec §4.4).
type DpfsLevel struct {
	*BlockFile
	selector File
	pair     File // size 2*FileSize()
}

var _ File = (*DpfsLevel)(nil)
var _ BlockHooks = (*DpfsLevel)(nil)

// NewDpfsLevel builds a duplex level of the given blockSize. pair
// must be exactly twice the logical file size; selector is treated as
// a sequence of big-endian u32 groups per §3.
func NewDpfsLevel(selector, pair File, blockSize int64) *DpfsLevel {
	fileSize := pair.FileSize() / 2
	d := &DpfsLevel{selector: selector, pair: pair}
	d.BlockFile = NewBlockFile(fileSize, blockSize, d)
	return d
}

// selectOffset returns 0 or FileSize(), the byte offset of the active
// copy for the given block index.
func (d *DpfsLevel) selectOffset(blockIndex int64) int64 {
	u32Index := blockIndex / 32
	innerIndex := uint(blockIndex % 32)
	group := binary.BigEndian.Uint32(d.selector.ReadAt(u32Index*4, 4))
	bit := (group >> (31 - innerIndex)) & 1
	if bit == 1 {
		return d.FileSize()
	}
	return 0
}

func (d *DpfsLevel) ReadBlock(blockIndex int64) []byte {
	offset := blockIndex * d.BlockFile.blockSize
	upper := offset + d.BlockFile.blockSize
	end := upper
	if end > d.FileSize() {
		end = d.FileSize()
	}
	result := make([]byte, d.BlockFile.blockSize)
	copy(result, d.pair.ReadAt(offset+d.selectOffset(blockIndex), int(end-offset)))
	return result
}

func (d *DpfsLevel) WriteBlock(blockIndex int64, data []byte) {
	offset := blockIndex * d.BlockFile.blockSize
	upper := offset + d.BlockFile.blockSize
	end := upper
	if end > d.FileSize() {
		end = d.FileSize()
	}
	d.pair.WriteAt(offset+d.selectOffset(blockIndex), data[:end-offset])
}
