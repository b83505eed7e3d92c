// Package keys derives the device-unique key material needed to
// decrypt an SD-card save container, following spec §6's key
// derivation contract: a movable.sed device key, two KeyX scrambling
// operations against boot9.bin, and a per-file CTR IV derivation.
// None of this is part of the core (spec §1 Non-goals/§6 "out of
// scope, stated only where it touches the core"); it is the external
// collaborator the disafuse CLI wires up before handing a decrypted
// byte-file to disa.OpenContainer.
package keys

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
)

// MovableSeedKeyOffset is the byte offset of the 16-byte device key
// inside a movable.sed file (spec §6).
const MovableSeedKeyOffset = 0x110

// DeviceKey holds the 16-byte key read from movable.sed.
type DeviceKey [16]byte

// LoadMovableSeed reads the device-unique key from a movable.sed
// file at the fixed offset spec §6 names.
func LoadMovableSeed(path string) (DeviceKey, error) {
	var key DeviceKey
	f, err := os.Open(path)
	if err != nil {
		return key, err
	}
	defer f.Close()
	buf := make([]byte, 16)
	if _, err := f.ReadAt(buf, MovableSeedKeyOffset); err != nil {
		return key, fmt.Errorf("keys: reading movable.sed: %w", err)
	}
	copy(key[:], buf)
	return key, nil
}

// sdDirNameByteOrder is the byte-rearrangement spec §6 specifies for
// turning SHA-256(device key) into the NAND/SD save directory's
// lowercase-hex name: only the first 16 digest bytes participate,
// reordered before hex-encoding.
var sdDirNameByteOrder = [16]int{3, 2, 1, 0, 7, 6, 5, 4, 11, 10, 9, 8, 15, 14, 13, 12}

// SDDirName computes the lowercase-hex SD save directory name for a
// device key.
func (k DeviceKey) SDDirName() string {
	digest := sha256.Sum256(k[:])
	var rearranged [16]byte
	for i, src := range sdDirNameByteOrder {
		rearranged[i] = digest[src]
	}
	return fmt.Sprintf("%x", rearranged)
}

// scrambler is the 16-byte constant boot9.bin's keyslot scrambling
// mixes into every KeyX/KeyY pair (the 3DS "generator constant").
var scrambler = [16]byte{
	0x1f, 0xf9, 0xe9, 0xaa, 0xc5, 0xfe, 0x04, 0x08,
	0x02, 0x45, 0x9d, 0xe3, 0xe7, 0xe3, 0xe7, 0x46,
}

// scramble derives a normal key from keyX and keyY the way the
// console's hardware AES engine does: rotl(rotl(keyX,2) XOR keyY, 87)
// + scrambler (mod 2^128), all as big-endian 128-bit integers.
func scramble(keyX, keyY [16]byte) [16]byte {
	x := rotlBytes(keyX, 2)
	var xorKeyY [16]byte
	for i := range xorKeyY {
		xorKeyY[i] = x[i] ^ keyY[i]
	}
	rotated := rotlBytes(xorKeyY, 87)
	return addBytesMod128(rotated, scrambler)
}

func rotlBytes(b [16]byte, bits int) [16]byte {
	var hi, lo uint64
	hi = binary.BigEndian.Uint64(b[0:8])
	lo = binary.BigEndian.Uint64(b[8:16])
	bits %= 128
	for bits > 0 {
		carry := hi >> 63
		hi = hi<<1 | lo>>63
		lo = lo<<1 | carry
		bits--
	}
	var out [16]byte
	binary.BigEndian.PutUint64(out[0:8], hi)
	binary.BigEndian.PutUint64(out[8:16], lo)
	return out
}

func addBytesMod128(a, b [16]byte) [16]byte {
	var out [16]byte
	var carry uint16
	for i := 15; i >= 0; i-- {
		sum := uint16(a[i]) + uint16(b[i]) + carry
		out[i] = byte(sum)
		carry = sum >> 8
	}
	return out
}

// Boot9KeyX holds the two KeyX values extracted from boot9.bin that
// spec §6 names: one for signing (NAND/SD-save signatures), one for
// CTR decryption.
type Boot9KeyX struct {
	Sign [16]byte
	CTR  [16]byte
}

// SigningKey scrambles the device key (as KeyY) against the signing
// KeyX to produce the AES-CMAC signing key.
func (b Boot9KeyX) SigningKey(device DeviceKey) [16]byte {
	return scramble(b.Sign, device)
}

// CTRKey scrambles the device key against the CTR KeyX to produce the
// AES-CTR decryption key.
func (b Boot9KeyX) CTRKey(device DeviceKey) [16]byte {
	return scramble(b.CTR, device)
}

// SDSaveIV derives the AES-CTR IV for an SD save file from its
// subpath (UTF-16LE-encoded, null-terminated), per spec §6: SHA-256
// of the encoded path, with the two 16-byte halves XORed together.
func SDSaveIV(subPath string) [16]byte {
	encoded := utf16LEWithNUL(subPath)
	digest := sha256.Sum256(encoded)
	var iv [16]byte
	for i := 0; i < 16; i++ {
		iv[i] = digest[i] ^ digest[i+16]
	}
	return iv
}

func utf16LEWithNUL(s string) []byte {
	out := make([]byte, 0, len(s)*2+2)
	for _, r := range s {
		if r <= 0xFFFF {
			out = append(out, byte(r), byte(r>>8))
		} else {
			r -= 0x10000
			hi := 0xD800 + (r >> 10)
			lo := 0xDC00 + (r & 0x3FF)
			out = append(out, byte(hi), byte(hi>>8), byte(lo), byte(lo>>8))
		}
	}
	out = append(out, 0x00, 0x00)
	return out
}
