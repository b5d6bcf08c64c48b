// Package commit computes, outside the circuit, the field-element
// commitments the circuit exposes as public outputs. All values are BN254
// scalar-field elements in 32-byte big-endian form, hashed with MiMC so the
// native and in-circuit results agree.
package commit

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"zkdomain/limbs"
)

// Size is the byte length of a Digest.
const Size = fr.Bytes

// Digest is a reduced BN254 scalar-field element.
type Digest [Size]byte

// Hex returns the 0x-prefixed hex encoding.
func (d Digest) Hex() string { return hexutil.Encode(d[:]) }

func (d Digest) String() string { return d.Hex() }

// Big returns the digest as an integer.
func (d Digest) Big() *big.Int { return new(big.Int).SetBytes(d[:]) }

// IsZero reports whether every byte is zero.
func (d Digest) IsZero() bool { return d == Digest{} }

// ParseHex decodes a 0x-prefixed digest and checks that it is reduced.
func ParseHex(s string) (Digest, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return Digest{}, err
	}
	return FromBytes(raw)
}

// FromBytes accepts exactly Size bytes holding a reduced field element.
func FromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != Size {
		return d, fmt.Errorf("digest must be %d bytes, got %d", Size, len(b))
	}
	copy(d[:], b)
	if d.Big().Cmp(fr.Modulus()) >= 0 {
		return Digest{}, fmt.Errorf("digest %s is not a reduced field element", d.Hex())
	}
	return d, nil
}

// Reduce maps arbitrary bytes into the field.
func Reduce(b []byte) Digest {
	var e fr.Element
	e.SetBytes(b)
	return e.Bytes()
}

func hashElements(elems ...[]byte) (Digest, error) {
	h := mimc.NewMiMC()
	for _, e := range elems {
		if _, err := h.Write(e); err != nil {
			return Digest{}, fmt.Errorf("mimc write: %w", err)
		}
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

func limbElements(l limbs.Limbs) ([][]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	out := make([][]byte, len(l))
	for i, v := range l {
		out[i] = v.FillBytes(make([]byte, Size))
	}
	return out, nil
}

// KeyCommitment binds the signer modulus: MiMC(modulus limbs).
func KeyCommitment(modulus limbs.Limbs) (Digest, error) {
	elems, err := limbElements(modulus)
	if err != nil {
		return Digest{}, err
	}
	return hashElements(elems...)
}

// SessionCommitment is the private per-email value nullifiers are derived
// from: MiMC(signature limbs).
func SessionCommitment(signature limbs.Limbs) (Digest, error) {
	elems, err := limbElements(signature)
	if err != nil {
		return Digest{}, err
	}
	return hashElements(elems...)
}

// Nullifier is MiMC(session, context).
func Nullifier(session, context Digest) (Digest, error) {
	return hashElements(session[:], context[:])
}

// ContextKey hashes length-prefixed parts with Keccak-256 and reduces the
// result into the field, so ("ab","c") and ("a","bc") differ.
func ContextKey(parts ...string) Digest {
	var buf []byte
	for _, p := range parts {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(p)))
		buf = append(buf, p...)
	}
	return Reduce(crypto.Keccak256(buf))
}
