package disa

import "github.com/wwylele/disafs-go/vfile"

type headerReader struct {
	data []byte
}

func (r *headerReader) skip(n int) { r.data = r.data[n:] }

func (r *headerReader) u8() uint8 {
	v := r.data[0]
	r.data = r.data[1:]
	return v
}

func (r *headerReader) u32() uint32 {
	v := leU32(r.data[:4])
	r.data = r.data[4:]
	return v
}

func (r *headerReader) u64() uint64 {
	lo := uint64(leU32(r.data[0:4]))
	hi := uint64(leU32(r.data[4:8]))
	r.data = r.data[8:]
	return lo | hi<<32
}

func mustMagic(got, want uint32, what string) {
	if got != want {
		panic("disa: bad " + what + " magic/version")
	}
}

// OpenContainer parses a DISA container image and returns a ready
// Disa instance. container must already be the plaintext byte-file
// (any required AES-CTR decryption, per spec §6's key-derivation
// collaborator, is applied by the caller before this is invoked).
// Format violations panic (spec §7 kind 1).
func OpenContainer(container vfile.File) *Disa {
	header := container.ReadAt(0x100, 0x6C)
	r := &headerReader{data: header}
	mustMagic(r.u32(), 0x41534944, "DISA") // "DISA"
	mustMagic(r.u32(), 0x00040000, "DISA version")

	partitionCount := r.u64()
	if partitionCount != 1 && partitionCount != 2 {
		panic("disa: bad DISA partition_count")
	}
	tableSecOffset := int64(r.u64())
	tablePriOffset := int64(r.u64())
	tableSize := int64(r.u64())
	saveEntryOffset := int64(r.u64())
	saveEntrySize := int64(r.u64())
	dataEntryOffset := int64(r.u64())
	dataEntrySize := int64(r.u64())
	saveOffset := int64(r.u64())
	saveSize := int64(r.u64())
	dataOffset := int64(r.u64())
	dataSize := int64(r.u64())
	activeTable := r.u8()
	if activeTable >= 2 {
		panic("disa: bad DISA active_table")
	}

	tableHash := vfile.NewSubFile(container, 0x16C, 0x20)
	tableOffset := tablePriOffset
	if activeTable != 0 {
		tableOffset = tableSecOffset
	}
	tableBody := vfile.NewSubFile(container, tableOffset, tableSize)
	table := vfile.NewIvfcLevel(tableHash, tableBody, tableSize)

	saveHeader := vfile.NewSubFile(table, saveEntryOffset, saveEntrySize)
	saveBody := vfile.NewSubFile(container, saveOffset, saveSize)
	partSave := vfile.MakeDifiFile(saveHeader, saveBody)

	var partData vfile.File
	if partitionCount == 2 {
		dataHeader := vfile.NewSubFile(table, dataEntryOffset, dataEntrySize)
		dataBody := vfile.NewSubFile(container, dataOffset, dataSize)
		partData = vfile.MakeDifiFile(dataHeader, dataBody)
	}

	return parseSavePartition(partSave, partData, partitionCount == 2)
}

func parseSavePartition(partSave, partData vfile.File, twoPartition bool) *Disa {
	sr := &headerReader{data: partSave.ReadAt(0, 0x88)}
	mustMagic(sr.u32(), 0x45564153, "SAVE") // "SAVE"
	mustMagic(sr.u32(), 0x00040000, "SAVE version")
	sr.skip(8 * 3) // reserved
	sr.skip(4)     // reserved
	blockSize := int64(sr.u32())

	dirHashOffset := int64(sr.u64())
	dirBucket := sr.u32()
	sr.skip(4)
	fileHashOffset := int64(sr.u64())
	fileBucket := sr.u32()
	sr.skip(4)
	fatOffset := int64(sr.u64())
	fatSize := sr.u32()
	sr.skip(4)
	dataRegionOffset := int64(sr.u64())
	dataBlockCount := sr.u32()
	sr.skip(4)
	if dataBlockCount != fatSize {
		panic("disa: SAVE data_block_count != fat_size")
	}

	dirLocatorA := sr.u32()
	dirLocatorB := sr.u32()
	dirMaxCount := sr.u32()
	sr.skip(4)
	fileLocatorA := sr.u32()
	fileLocatorB := sr.u32()
	fileMaxCount := sr.u32()
	sr.skip(4)
	if len(sr.data) != 0 {
		panic("disa: SAVE header not fully consumed")
	}

	var dataRegion vfile.File
	if twoPartition {
		dataRegion = partData
	} else {
		dataRegion = vfile.NewSubFile(partSave, dataRegionOffset, int64(dataBlockCount)*blockSize)
	}

	dirHash := vfile.NewSubFile(partSave, dirHashOffset, int64(dirBucket)*4)
	fileHash := vfile.NewSubFile(partSave, fileHashOffset, int64(fileBucket)*4)
	fat := NewFat(vfile.NewSubFile(partSave, fatOffset, (int64(fatSize)+1)*8))

	dirEntrySize := int64(dirMaxCount+2) * DirEntrySize
	fileEntrySize := int64(fileMaxCount+1) * FileEntrySize

	var dirEntries, fileEntries vfile.File
	if twoPartition {
		dirLocatorOffset := int64(dirLocatorA) | int64(dirLocatorB)<<32
		fileLocatorOffset := int64(fileLocatorA) | int64(fileLocatorB)<<32
		dirEntries = vfile.NewSubFile(partSave, dirLocatorOffset, dirEntrySize)
		fileEntries = vfile.NewSubFile(partSave, fileLocatorOffset, fileEntrySize)
	} else {
		dirBlockIndex := dirLocatorA
		fileBlockIndex := fileLocatorA
		dirOffset := dataRegionOffset + int64(dirBlockIndex)*blockSize
		fileOffset := dataRegionOffset + int64(fileBlockIndex)*blockSize
		dirEntries = vfile.NewSubFile(partSave, dirOffset, dirEntrySize)
		fileEntries = vfile.NewSubFile(partSave, fileOffset, fileEntrySize)
	}

	dirs := NewDirectoryTable(dirEntries, dirHash)
	files := NewFileTable(fileEntries, fileHash)
	meta := NewFsMetadata(dirs, files)

	return NewDisa(meta, fat, dataRegion, blockSize)
}
