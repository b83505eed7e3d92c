package vfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
)

// BlockProvider builds the typed message prefix an AES-CMAC signature
// is computed over, then hashes it. Grounded on AesCmacBlockProvider
// in aes_cmac.{h,cpp} and spec §3's three concrete block types.
type BlockProvider interface {
	// Hash returns SHA-256(Block(data)).
	Hash(data []byte) [32]byte
}

type blockFunc func(data []byte) []byte

func (f blockFunc) Hash(data []byte) [32]byte {
	return sha256.Sum256(f(data))
}

// NandSaveBlockProvider builds "CTR-SYS0" + u32 id + u32 0 + data,
// used for NAND save signatures.
func NandSaveBlockProvider(id uint32) BlockProvider {
	return blockFunc(func(data []byte) []byte {
		return concatTyped("CTR-SYS0", id, 0, data)
	})
}

// CtrSav0BlockProvider builds "CTR-SAV0" + data, the inner message
// used by CtrSignBlockProvider.
func CtrSav0BlockProvider() BlockProvider {
	return blockFunc(func(data []byte) []byte {
		out := make([]byte, 0, 8+len(data))
		out = append(out, []byte("CTR-SAV0")...)
		out = append(out, data...)
		return out
	})
}

// CtrSignBlockProvider builds "CTR-SIGN" + u32 id + u32 0x00040000 +
// SHA-256(CTR-SAV0 || data), used for SD save signatures.
func CtrSignBlockProvider(id uint32) BlockProvider {
	return blockFunc(func(data []byte) []byte {
		inner := CtrSav0BlockProvider().Hash(data)
		return concatTyped("CTR-SIGN", id, 0x00040000, inner[:])
	})
}

func concatTyped(tag string, a, b uint32, data []byte) []byte {
	out := make([]byte, 0, 8+4+4+len(data))
	out = append(out, []byte(tag)...)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], a)
	out = append(out, tmp[:]...)
	binary.LittleEndian.PutUint32(tmp[:], b)
	out = append(out, tmp[:]...)
	out = append(out, data...)
	return out
}

// AesCmacSigned wraps a data File and a 16-byte signature File under
// a 16-byte key and a BlockProvider. Grounded on AesCmacSigned in
// aes_cmac.{h,cpp}: every write is full-file (not incremental), since
// signed wrappers sit outermost and mutations coalesce (spec §4.6,
// §9).
type AesCmacSigned struct {
	signature File
	data      File
	key       []byte
	provider  BlockProvider
}

var _ File = (*AesCmacSigned)(nil)

// NewAesCmacSigned verifies the current signature over data and
// panics (kind-3 fatal per §7) if it does not match.
func NewAesCmacSigned(signature, data File, key []byte, provider BlockProvider) *AesCmacSigned {
	s := &AesCmacSigned{signature: signature, data: data, key: key, provider: provider}
	s.verify()
	return s
}

func (s *AesCmacSigned) verify() {
	hash := s.provider.Hash(s.data.ReadAt(0, int(s.data.FileSize())))
	want := s.signature.ReadAt(0, 16)
	got := aesCmac(s.key, hash[:])
	if !bytes.Equal(want, got) {
		panic("vfile: AES-CMAC signature mismatch")
	}
}

func (s *AesCmacSigned) FileSize() int64 { return s.data.FileSize() }

func (s *AesCmacSigned) ReadAt(offset int64, size int) []byte {
	return s.data.ReadAt(offset, size)
}

func (s *AesCmacSigned) WriteAt(offset int64, data []byte) {
	s.data.WriteAt(offset, data)
	hash := s.provider.Hash(s.data.ReadAt(0, int(s.data.FileSize())))
	sig := aesCmac(s.key, hash[:])
	s.signature.WriteAt(0, sig)
}
