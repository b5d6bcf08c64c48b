// Package circuit defines the gnark circuit that binds a prepared witness to
// its public outputs. It checks the witness layout (remainder padding,
// block alignment, the sender field position, the domain suffix of the
// address), the Montgomery constant of the signer key, and recomputes the
// key commitment and nullifier with MiMC.
package circuit

import (
	"math/big"
	"math/bits"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/selector"

	"zkdomain/header"
	"zkdomain/limbs"
	"zkdomain/locate"
)

const (
	lengthBits = 32
	carryBits  = limbs.Width + 8
)

var senderPrefix = []byte("from:")

// DomainCircuit is sized at compile time by the remainder capacity and the
// target domain. Build instances with New.
type DomainCircuit struct {
	// Public outputs
	KeyCommitment frontend.Variable `gnark:",public"`
	Nullifier     frontend.Variable `gnark:",public"`
	ContextKey    frontend.Variable `gnark:",public"`

	// Hash continuation
	HashState       [8]frontend.Variable
	Remainder       []frontend.Variable
	RemainderLength frontend.Variable
	TotalLength     frontend.Variable

	// Signer key and signature
	KeyLimbs       [limbs.Count]frontend.Variable
	RedcLimbs      [limbs.Count]frontend.Variable
	SignatureLimbs [limbs.Count]frontend.Variable

	// Sender field and address, remainder space
	HeaderOffset  frontend.Variable
	HeaderLength  frontend.Variable
	AddressOffset frontend.Variable
	AddressLength frontend.Variable

	Domain []byte `gnark:"-"`
}

// New returns an empty circuit for the given capacity and domain, suitable
// for compilation.
func New(capacity int, domain string) *DomainCircuit {
	return &DomainCircuit{
		Remainder: make([]frontend.Variable, capacity),
		Domain:    []byte(domain),
	}
}

// Capacity is the fixed remainder size the circuit was built for.
func (c *DomainCircuit) Capacity() int { return len(c.Remainder) }

// --- Helper Primitives ---
func eq(api frontend.API, a, b frontend.Variable) frontend.Variable {
	return api.IsZero(api.Sub(a, b))
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + 'a' - 'A'
	}
	return b
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// assertByteFold asserts v equals want, ignoring ASCII case.
func assertByteFold(api frontend.API, v frontend.Variable, want byte) {
	lo, hi := lower(want), upper(want)
	if lo == hi {
		api.AssertIsEqual(v, int(want))
		return
	}
	api.AssertIsEqual(api.Mul(api.Sub(v, int(lo)), api.Sub(v, int(hi))), 0)
}

// byteAt reads the byte at (selected index + shift) using a one-hot indicator
// vector. Out-of-range positions read as zero.
func byteAt(api frontend.API, bytes, indicator []frontend.Variable, shift int) frontend.Variable {
	acc := frontend.Variable(0)
	for i, ind := range indicator {
		j := i + shift
		if j < 0 || j >= len(bytes) {
			continue
		}
		acc = api.Add(acc, api.Mul(ind, bytes[j]))
	}
	return acc
}

// assertLessOrEqual asserts a <= b for operands already known to fit in
// lengthBits+1 bits.
func assertLessOrEqual(api frontend.API, a, b frontend.Variable) {
	api.ToBinary(api.Sub(b, a), lengthBits+1)
}

func rangeCheck(api frontend.API, vs []frontend.Variable, nbBits int) {
	for _, v := range vs {
		api.ToBinary(v, nbBits)
	}
}

// assertMontgomeryInverse checks redc*modulus == -1 mod 2^(Width*Count) by
// schoolbook multiplication over the low Count columns with carries.
func assertMontgomeryInverse(api frontend.API, modulus, redc [limbs.Count]frontend.Variable) {
	base := new(big.Int).Lsh(big.NewInt(1), limbs.Width)
	mask := new(big.Int).Sub(base, big.NewInt(1))

	carry := frontend.Variable(0)
	for k := 0; k < limbs.Count; k++ {
		col := carry
		for i := 0; i <= k; i++ {
			col = api.Add(col, api.Mul(redc[i], modulus[k-i]))
		}
		carry = api.Div(api.Sub(col, mask), base)
		api.ToBinary(carry, carryBits)
	}
}

func commitLimbs(api frontend.API, l [limbs.Count]frontend.Variable) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(l[:]...)
	return h.Sum(), nil
}

// -----------------------------------------------------------------------------
//
//	Main Circuit Logic
//
// -----------------------------------------------------------------------------
func (c *DomainCircuit) Define(api frontend.API) error {
	capacity := len(c.Remainder)

	// --- 1. Ranges ---
	rangeCheck(api, c.Remainder, 8)
	rangeCheck(api, c.HashState[:], 32)
	rangeCheck(api, c.KeyLimbs[:], limbs.Width)
	rangeCheck(api, c.RedcLimbs[:], limbs.Width)
	rangeCheck(api, c.SignatureLimbs[:], limbs.Width)
	rangeCheck(api, []frontend.Variable{
		c.RemainderLength, c.TotalLength,
		c.HeaderOffset, c.HeaderLength, c.AddressOffset, c.AddressLength,
	}, lengthBits)

	// --- 2. Remainder layout ---
	assertLessOrEqual(api, c.RemainderLength, capacity)
	prehashed := api.Sub(c.TotalLength, c.RemainderLength)
	prehashedBits := api.ToBinary(prehashed, lengthBits)
	for i := 0; i < bits.TrailingZeros(header.BlockSize); i++ {
		api.AssertIsEqual(prehashedBits[i], 0)
	}
	active := frontend.Variable(1)
	for i := 0; i < capacity; i++ {
		active = api.Mul(active, api.Sub(1, eq(api, c.RemainderLength, i)))
		api.AssertIsEqual(api.Mul(api.Sub(1, active), c.Remainder[i]), 0)
	}

	// --- 3. Sender field and address bounds ---
	headerEnd := api.Add(c.HeaderOffset, c.HeaderLength)
	addressEnd := api.Add(c.AddressOffset, c.AddressLength)
	api.AssertIsDifferent(c.HeaderLength, 0)
	assertLessOrEqual(api, headerEnd, c.RemainderLength)
	assertLessOrEqual(api, c.HeaderOffset, c.AddressOffset)
	assertLessOrEqual(api, addressEnd, headerEnd)
	assertLessOrEqual(api, locate.MinimumAddressLength(string(c.Domain)), c.AddressLength)

	headerAt := selector.Decoder(api, capacity, c.HeaderOffset)
	// the field name starts a line: previous byte is LF or the remainder start
	prev := byteAt(api, c.Remainder, headerAt, -1)
	api.AssertIsEqual(api.Mul(prev, api.Sub(prev, int('\n'))), 0)
	for k, want := range senderPrefix {
		assertByteFold(api, byteAt(api, c.Remainder, headerAt, k), want)
	}

	suffix := append([]byte{'@'}, c.Domain...)
	endAt := selector.Decoder(api, capacity+1, addressEnd)
	for k, want := range suffix {
		assertByteFold(api, byteAt(api, c.Remainder, endAt, k-len(suffix)), want)
	}

	// --- 4. Signer key ---
	assertMontgomeryInverse(api, c.KeyLimbs, c.RedcLimbs)

	// --- 5. Public outputs ---
	keyCommitment, err := commitLimbs(api, c.KeyLimbs)
	if err != nil {
		return err
	}
	api.AssertIsEqual(keyCommitment, c.KeyCommitment)

	session, err := commitLimbs(api, c.SignatureLimbs)
	if err != nil {
		return err
	}
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(session, c.ContextKey)
	api.AssertIsEqual(h.Sum(), c.Nullifier)

	return nil
}
