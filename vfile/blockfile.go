package vfile

// BlockHooks is implemented by a concrete block-granular layer
// (AES-CTR, DPFS, IVFC). Hooks are always called with a full
// blockSize-sized buffer; if the file's logical size ends mid-block,
// the hook is responsible for zero-padding short reads and ignoring
// bytes past FileSize on writes.
type BlockHooks interface {
	// ReadBlock returns exactly blockSize bytes for the given
	// 0-based block index.
	ReadBlock(blockIndex int64) []byte

	// WriteBlock writes exactly blockSize bytes at the given
	// 0-based block index.
	WriteBlock(blockIndex int64, data []byte)
}

// BlockFile turns byte-addressed Read/Write into block-aligned I/O
// against BlockHooks, handling read-modify-write of any unaligned
// head/tail block. Grounded on block_file.{h,cpp}.
type BlockFile struct {
	fileSize  int64
	blockSize int64
	hooks     BlockHooks
}

var _ File = (*BlockFile)(nil)

// NewBlockFile builds the block-aligned wrapper. hooks is normally
// the embedding type itself (AesCtrFile, DpfsLevel, IvfcLevel), which
// embeds *BlockFile and passes itself as hooks.
func NewBlockFile(fileSize, blockSize int64, hooks BlockHooks) *BlockFile {
	return &BlockFile{fileSize: fileSize, blockSize: blockSize, hooks: hooks}
}

func (b *BlockFile) FileSize() int64 { return b.fileSize }

func alignDown(x, align int64) int64 { return x / align * align }
func alignUp(x, align int64) int64   { return (x + align - 1) / align * align }

func (b *BlockFile) ReadAt(offset int64, size int) []byte {
	checkBounds(b.fileSize, offset, size)
	end := offset + int64(size)
	lower := alignDown(offset, b.blockSize)
	upper := alignUp(end, b.blockSize)

	result := make([]byte, 0, upper-lower)
	for pos := lower; pos < upper; pos += b.blockSize {
		result = append(result, b.hooks.ReadBlock(pos/b.blockSize)...)
	}
	result = result[offset-lower:]
	result = result[:size]
	return result
}

func (b *BlockFile) WriteAt(offset int64, data []byte) {
	checkBounds(b.fileSize, offset, len(data))
	end := offset + int64(len(data))
	lower := alignDown(offset, b.blockSize)
	upper := alignUp(end, b.blockSize)

	buffer := make([]byte, 0, upper-lower)
	if lower != offset {
		head := b.hooks.ReadBlock(lower / b.blockSize)
		buffer = append(buffer, head[:offset-lower]...)
	}
	buffer = append(buffer, data...)
	if upper != end {
		tail := b.hooks.ReadBlock(upper/b.blockSize - 1)
		buffer = append(buffer, tail[b.blockSize-(upper-end):]...)
	}

	for pos := lower; pos < upper; pos += b.blockSize {
		start := pos - lower
		b.hooks.WriteBlock(pos/b.blockSize, buffer[start:start+b.blockSize])
	}
}
