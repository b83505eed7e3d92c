package vfile

import (
	"os"
)

// Disk is the leaf File backed by an OS file handle, opened
// read/write. It is the external collaborator named in spec §1/§6:
// the core only requires that it provide ReadAt/WriteAt/FileSize over
// a fixed-size region, nothing more.
type Disk struct {
	f    *os.File
	size int64
}

var _ File = (*Disk)(nil)

// OpenDisk opens path read/write and stats its current size, which
// becomes the Disk's fixed FileSize.
func OpenDisk(path string) (*Disk, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Disk{f: f, size: info.Size()}, nil
}

func (d *Disk) FileSize() int64 { return d.size }

func (d *Disk) ReadAt(offset int64, size int) []byte {
	checkBounds(d.size, offset, size)
	buf := make([]byte, size)
	if _, err := d.f.ReadAt(buf, offset); err != nil {
		panic(err)
	}
	return buf
}

func (d *Disk) WriteAt(offset int64, data []byte) {
	checkBounds(d.size, offset, len(data))
	if _, err := d.f.WriteAt(data, offset); err != nil {
		panic(err)
	}
}

// Close releases the underlying OS file handle.
func (d *Disk) Close() error {
	return d.f.Close()
}
