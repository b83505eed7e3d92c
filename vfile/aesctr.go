package vfile

import "crypto/aes"

// AesCtrFile is a transparent AES-128-CTR decryption layer over a
// same-size cipher-text File. Grounded on aes_ctr.{h,cpp}: the block
// size is the AES block size (16 bytes); each logical block's
// pad is AES-ECB-encrypt(IV_i) under the configured key, where IV_i is
// the configured IV with its low 8 bytes big-endian-incremented by the
// block index.
type AesCtrFile struct {
	*BlockFile
	cipher File
	key    [16]byte
	iv     [16]byte
}

var _ File = (*AesCtrFile)(nil)
var _ BlockHooks = (*AesCtrFile)(nil)

const aesBlockSize = 16

// NewAesCtrFile wraps cipher (the cipher-text backing file) with
// AES-128-CTR decryption using key and the starting IV. Both key and
// iv must be 16 bytes.
func NewAesCtrFile(cipher File, key, iv []byte) *AesCtrFile {
	if len(key) != 16 || len(iv) != 16 {
		panic("vfile: AES-CTR key/iv must be 16 bytes")
	}
	f := &AesCtrFile{cipher: cipher}
	copy(f.key[:], key)
	copy(f.iv[:], iv)
	f.BlockFile = NewBlockFile(cipher.FileSize(), aesBlockSize, f)
	return f
}

// seekIV computes IV_i for block index i: the big-endian 64-bit tail
// (bytes 15 down to 8) of the configured IV, incremented by i with
// carry propagating up through byte 8, then AES-ECB-encrypted.
func (f *AesCtrFile) seekIV(blockIndex int64) [16]byte {
	var result [16]byte = f.iv
	carry := uint64(blockIndex)
	for i := 15; i > 7; i-- {
		carry += uint64(result[i])
		result[i] = byte(carry & 0xFF)
		carry >>= 8
	}

	block, err := aes.NewCipher(f.key[:])
	if err != nil {
		panic(err)
	}
	var pad [16]byte
	block.Encrypt(pad[:], result[:])
	return pad
}

func (f *AesCtrFile) ReadBlock(blockIndex int64) []byte {
	offset := blockIndex * aesBlockSize
	upper := offset + aesBlockSize
	end := upper
	if end > f.cipher.FileSize() {
		end = f.cipher.FileSize()
	}
	result := make([]byte, aesBlockSize)
	copy(result, f.cipher.ReadAt(offset, int(end-offset)))

	pad := f.seekIV(blockIndex)
	for i := 0; i < aesBlockSize; i++ {
		result[i] ^= pad[i]
	}
	return result
}

func (f *AesCtrFile) WriteBlock(blockIndex int64, data []byte) {
	offset := blockIndex * aesBlockSize
	upper := offset + aesBlockSize
	end := upper
	if end > f.cipher.FileSize() {
		end = f.cipher.FileSize()
	}

	pad := f.seekIV(blockIndex)
	buffer := make([]byte, end-offset)
	copy(buffer, data[:end-offset])
	for i := range buffer {
		buffer[i] ^= pad[i]
	}
	f.cipher.WriteAt(offset, buffer)
}
