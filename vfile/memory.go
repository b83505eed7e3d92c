package vfile

// Memory is a File backed entirely by an in-memory byte slice. It is
// used by tests and by disa.NewScratchDisa's in-memory container; the
// container-parsing path does not use it.
type Memory struct {
	data []byte
}

var _ File = (*Memory)(nil)

// NewMemory returns a File of the given size, zero-initialized.
func NewMemory(size int64) *Memory {
	return &Memory{data: make([]byte, size)}
}

// NewMemoryFrom wraps an existing slice directly (no copy); its
// length becomes the FileSize.
func NewMemoryFrom(data []byte) *Memory {
	return &Memory{data: data}
}

func (m *Memory) FileSize() int64 { return int64(len(m.data)) }

func (m *Memory) ReadAt(offset int64, size int) []byte {
	checkBounds(m.FileSize(), offset, size)
	out := make([]byte, size)
	copy(out, m.data[offset:offset+int64(size)])
	return out
}

func (m *Memory) WriteAt(offset int64, data []byte) {
	checkBounds(m.FileSize(), offset, len(data))
	copy(m.data[offset:offset+int64(len(data))], data)
}

// Bytes exposes the backing slice directly, for tests.
func (m *Memory) Bytes() []byte { return m.data }
