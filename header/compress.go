package header

import (
	"bytes"
	"crypto/sha256"
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"math/bits"

	sha256simd "github.com/minio/sha256-simd"
)

// BlockSize is the SHA-256 block size in bytes.
const BlockSize = 64

// State is the SHA-256 chaining value after an exact number of blocks.
type State [8]uint32

// InitialState is the SHA-256 IV (FIPS 180-4 §5.3.3).
var InitialState = State{
	0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
	0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
}

// Compressor runs the SHA-256 block function over a block-aligned prefix.
type Compressor interface {
	Name() string
	Compress(prefix []byte) (State, error)
}

var errUnaligned = errors.New("prefix is not a multiple of the block size")

// -----------------------------------------------------------------------------
//
//	Portable block function
//
// -----------------------------------------------------------------------------

var k256 = [64]uint32{
	0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5, 0x3956c25b, 0x59f111f1, 0x923f82a4, 0xab1c5ed5,
	0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3, 0x72be5d74, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174,
	0xe49b69c1, 0xefbe4786, 0x0fc19dc6, 0x240ca1cc, 0x2de92c6f, 0x4a7484aa, 0x5cb0a9dc, 0x76f988da,
	0x983e5152, 0xa831c66d, 0xb00327c8, 0xbf597fc7, 0xc6e00bf3, 0xd5a79147, 0x06ca6351, 0x14292967,
	0x27b70a85, 0x2e1b2138, 0x4d2c6dfc, 0x53380d13, 0x650a7354, 0x766a0abb, 0x81c2c92e, 0x92722c85,
	0xa2bfe8a1, 0xa81a664b, 0xc24b8b70, 0xc76c51a3, 0xd192e819, 0xd6990624, 0xf40e3585, 0x106aa070,
	0x19a4c116, 0x1e376c08, 0x2748774c, 0x34b0bcb5, 0x391c0cb3, 0x4ed8aa4a, 0x5b9cca4f, 0x682e6ff3,
	0x748f82ee, 0x78a5636f, 0x84c87814, 0x8cc70208, 0x90befffa, 0xa4506ceb, 0xbef9a3f7, 0xc67178f2,
}

type portable struct{}

// Portable returns the pure-Go compressor. It is always available and is the
// reference the capability probe checks other strategies against.
func Portable() Compressor { return portable{} }

func (portable) Name() string { return "portable" }

func (portable) Compress(prefix []byte) (State, error) {
	if len(prefix)%BlockSize != 0 {
		return State{}, errUnaligned
	}
	st := InitialState
	var w [64]uint32
	for off := 0; off < len(prefix); off += BlockSize {
		block := prefix[off : off+BlockSize]
		for i := 0; i < 16; i++ {
			w[i] = binary.BigEndian.Uint32(block[4*i:])
		}
		for i := 16; i < 64; i++ {
			s0 := bits.RotateLeft32(w[i-15], -7) ^ bits.RotateLeft32(w[i-15], -18) ^ (w[i-15] >> 3)
			s1 := bits.RotateLeft32(w[i-2], -17) ^ bits.RotateLeft32(w[i-2], -19) ^ (w[i-2] >> 10)
			w[i] = w[i-16] + s0 + w[i-7] + s1
		}

		a, b, c, d, e, f, g, h := st[0], st[1], st[2], st[3], st[4], st[5], st[6], st[7]
		for i := 0; i < 64; i++ {
			t1 := h + (bits.RotateLeft32(e, -6) ^ bits.RotateLeft32(e, -11) ^ bits.RotateLeft32(e, -25)) +
				((e & f) ^ (^e & g)) + k256[i] + w[i]
			t2 := (bits.RotateLeft32(a, -2) ^ bits.RotateLeft32(a, -13) ^ bits.RotateLeft32(a, -22)) +
				((a & b) ^ (a & c) ^ (b & c))
			h, g, f, e, d, c, b, a = g, f, e, d+t1, c, b, a, t1+t2
		}
		st[0] += a
		st[1] += b
		st[2] += c
		st[3] += d
		st[4] += e
		st[5] += f
		st[6] += g
		st[7] += h
	}
	return st, nil
}

// -----------------------------------------------------------------------------
//
//	Marshaled-midstate strategies
//
// -----------------------------------------------------------------------------

// marshalMagic prefixes the binary encoding of a SHA-256 digest:
// magic || h[0..7] big-endian || buffered block || length.
const marshalMagic = "sha\x03"

type marshaled struct {
	name    string
	newHash func() hash.Hash
}

func (m marshaled) Name() string { return m.name }

func (m marshaled) Compress(prefix []byte) (State, error) {
	if len(prefix)%BlockSize != 0 {
		return State{}, errUnaligned
	}
	h := m.newHash()
	h.Write(prefix)
	bm, ok := h.(encoding.BinaryMarshaler)
	if !ok {
		return State{}, fmt.Errorf("%s: digest does not expose its state", m.name)
	}
	raw, err := bm.MarshalBinary()
	if err != nil {
		return State{}, fmt.Errorf("%s: marshal state: %w", m.name, err)
	}
	if len(raw) < len(marshalMagic)+32 || !bytes.Equal(raw[:len(marshalMagic)], []byte(marshalMagic)) {
		return State{}, fmt.Errorf("%s: unrecognised state encoding", m.name)
	}
	var st State
	for i := range st {
		st[i] = binary.BigEndian.Uint32(raw[len(marshalMagic)+4*i:])
	}
	return st, nil
}

// Accelerated returns the hardware-backed strategies in preference order.
// Each one may turn out unusable on a given platform; Probe decides.
func Accelerated() []Compressor {
	return []Compressor{
		marshaled{name: "sha256-simd", newHash: sha256simd.New},
		marshaled{name: "crypto/sha256", newHash: sha256.New},
	}
}

// Probe returns the first candidate whose output matches the portable block
// function on a fixed multi-block vector, falling back to Portable.
func Probe(candidates ...Compressor) Compressor {
	ref := Portable()
	vector := make([]byte, 3*BlockSize)
	for i := range vector {
		vector[i] = byte(i*7 + 3)
	}
	want, _ := ref.Compress(vector)
	for _, c := range candidates {
		got, err := c.Compress(vector)
		if err == nil && got == want {
			return c
		}
	}
	return ref
}
