// Package limbs converts RSA moduli and signatures into the fixed limb
// layout of the circuit's big-integer gadget and derives the Montgomery
// reduction constant.
package limbs

import (
	"math/big"

	"zkdomain/zkerr"
)

const (
	// Width is the number of bits per limb.
	Width = 120
	// Count is the number of limbs per big integer.
	Count = 18
	// MaxBits is the widest integer the layout can hold.
	MaxBits = Width * Count
)

// Limbs is a little-endian limb vector; Limbs[0] holds the low Width bits.
type Limbs [Count]*big.Int

var (
	limbMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), Width), big.NewInt(1))
	// montR is R = 2^(Width*Count).
	montR = new(big.Int).Lsh(big.NewInt(1), MaxBits)
)

// ToLimbs splits a big-endian integer into Count limbs, zero padded.
func ToLimbs(be []byte) (Limbs, error) {
	return FromInt(new(big.Int).SetBytes(be))
}

// FromInt splits a non-negative integer into Count limbs.
func FromInt(n *big.Int) (Limbs, error) {
	var out Limbs
	if n == nil {
		return out, zkerr.New(zkerr.KindLimb, "missing integer")
	}
	if n.Sign() < 0 {
		return out, zkerr.New(zkerr.KindLimb, "negative integer")
	}
	if n.BitLen() > MaxBits {
		return out, zkerr.New(zkerr.KindLimb, "integer of %d bits exceeds %d-bit limb layout", n.BitLen(), MaxBits)
	}
	rest := new(big.Int).Set(n)
	for i := range out {
		out[i] = new(big.Int).And(rest, limbMask)
		rest.Rsh(rest, Width)
	}
	return out, nil
}

// Int reconstructs the integer. It panics on nil limbs.
func (l Limbs) Int() *big.Int {
	n := new(big.Int)
	for i := Count - 1; i >= 0; i-- {
		n.Lsh(n, Width)
		n.Or(n, l[i])
	}
	return n
}

// Validate reports the first limb that is missing, negative or not below 2^Width.
func (l Limbs) Validate() error {
	for i, v := range l {
		if v == nil {
			return zkerr.New(zkerr.KindLimb, "limb %d is unset", i)
		}
		if v.Sign() < 0 || v.BitLen() > Width {
			return zkerr.New(zkerr.KindLimb, "limb %d out of range (%d bits)", i, v.BitLen())
		}
	}
	return nil
}

// ComputeRedc returns −N⁻¹ mod 2^(Width·Count) in limb form. N must be odd,
// which every RSA modulus is.
func ComputeRedc(modulus Limbs) (Limbs, error) {
	if err := modulus.Validate(); err != nil {
		return Limbs{}, err
	}
	n := modulus.Int()
	if n.Bit(0) == 0 {
		return Limbs{}, zkerr.New(zkerr.KindInverse, "modulus is even, no inverse modulo 2^%d", MaxBits)
	}
	inv := new(big.Int).ModInverse(n, montR)
	if inv == nil {
		return Limbs{}, zkerr.New(zkerr.KindInverse, "modulus has no inverse modulo 2^%d", MaxBits)
	}
	redc := new(big.Int).Sub(montR, inv)
	redc.Mod(redc, montR)
	return FromInt(redc)
}

// CheckRedc asserts (redc · N) mod R == R − 1.
func CheckRedc(modulus, redc Limbs) error {
	if err := modulus.Validate(); err != nil {
		return err
	}
	if err := redc.Validate(); err != nil {
		return err
	}
	prod := new(big.Int).Mul(modulus.Int(), redc.Int())
	prod.Mod(prod, montR)
	want := new(big.Int).Sub(montR, big.NewInt(1))
	if prod.Cmp(want) != 0 {
		return zkerr.New(zkerr.KindInverse, "redc · N ≢ −1 mod 2^%d", MaxBits)
	}
	return nil
}

// RSAKey is a signer modulus in circuit form.
type RSAKey struct {
	Modulus Limbs
	Redc    Limbs
	// Bits is the bit length of the original modulus.
	Bits int
}

// NewRSAKey converts a modulus and derives its reduction constant, asserting
// the constant before returning it.
func NewRSAKey(modulus *big.Int) (*RSAKey, error) {
	m, err := FromInt(modulus)
	if err != nil {
		return nil, err
	}
	redc, err := ComputeRedc(m)
	if err != nil {
		return nil, err
	}
	if err := CheckRedc(m, redc); err != nil {
		return nil, err
	}
	return &RSAKey{Modulus: m, Redc: redc, Bits: modulus.BitLen()}, nil
}
