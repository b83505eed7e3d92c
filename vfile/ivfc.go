package vfile

import (
	"bytes"
	"crypto/sha256"
)

// poisonByte fills a block whose hash fails to verify; see spec §3/§7.
const poisonByte = 0xDD

// IvfcLevel is a block-granular SHA-256 integrity layer: the hash
// file holds one 32-byte digest per block of the body. Grounded on
// ivfc_level.{h,cpp}. A mismatched hash on read yields a
// poison-filled block rather than an error (§7 kind 2); writes always
// restore integrity by recomputing and storing the hash first.
type IvfcLevel struct {
	*BlockFile
	hash File
	body File
}

var _ File = (*IvfcLevel)(nil)
var _ BlockHooks = (*IvfcLevel)(nil)

const ivfcHashSize = 0x20

// NewIvfcLevel builds an integrity level of the given blockSize over
// body, with digests stored in hash.
func NewIvfcLevel(hash, body File, blockSize int64) *IvfcLevel {
	l := &IvfcLevel{hash: hash, body: body}
	l.BlockFile = NewBlockFile(body.FileSize(), blockSize, l)
	return l
}

func (l *IvfcLevel) ReadBlock(blockIndex int64) []byte {
	offset := blockIndex * l.BlockFile.blockSize
	upper := offset + l.BlockFile.blockSize
	end := upper
	if end > l.FileSize() {
		end = l.FileSize()
	}
	result := make([]byte, l.BlockFile.blockSize)
	copy(result, l.body.ReadAt(offset, int(end-offset)))

	want := l.hash.ReadAt(blockIndex*ivfcHashSize, ivfcHashSize)
	got := sha256.Sum256(result)
	if !bytes.Equal(want, got[:]) {
		poisoned := make([]byte, l.BlockFile.blockSize)
		for i := range poisoned {
			poisoned[i] = poisonByte
		}
		return poisoned
	}
	return result
}

func (l *IvfcLevel) WriteBlock(blockIndex int64, data []byte) {
	digest := sha256.Sum256(data)
	l.hash.WriteAt(blockIndex*ivfcHashSize, digest[:])

	offset := blockIndex * l.BlockFile.blockSize
	upper := offset + l.BlockFile.blockSize
	end := upper
	if end > l.FileSize() {
		end = l.FileSize()
	}
	l.body.WriteAt(offset, data[:end-offset])
}
