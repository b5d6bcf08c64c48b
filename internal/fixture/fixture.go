// Package fixture builds deterministic emails, keys and witnesses for tests.
package fixture

import (
	"crypto/sha256"
	"math/big"
	"strings"

	"github.com/stretchr/testify/require"

	"zkdomain/commit"
	"zkdomain/header"
	"zkdomain/limbs"
	"zkdomain/locate"
	"zkdomain/witness"
)

const (
	Header = "From: student@example.edu\r\nTo: x@y.com\r\nSubject: s\r\n\r\n"
	Domain = "example.edu"
	Sender = "student@example.edu"
)

// Modulus returns a deterministic odd 2048-bit integer.
func Modulus() *big.Int {
	var buf []byte
	seed := []byte("zkdomain fixture modulus")
	for len(buf) < 256 {
		sum := sha256.Sum256(append(seed, byte(len(buf))))
		buf = append(buf, sum[:]...)
	}
	n := new(big.Int).SetBytes(buf[:256])
	n.SetBit(n, 2047, 1)
	n.SetBit(n, 0, 1)
	return n
}

// Key wraps Modulus as an RSAKey.
func Key(t require.TestingT) *limbs.RSAKey {
	key, err := limbs.NewRSAKey(Modulus())
	require.NoError(t, err)
	return key
}

// PaddedHeader prefixes Header with a filler field of n bytes.
func PaddedHeader(n int) string {
	if n < len("X-Pad: \r\n") {
		return Header
	}
	return "X-Pad: " + strings.Repeat("p", n-len("X-Pad: \r\n")) + "\r\n" + Header
}

// Email describes one signed message to turn into a witness.
type Email struct {
	Header    string
	Sender    string
	Capacity  int
	Signature int64
	Context   commit.Digest
}

// SignatureLimbs derives a distinct value below Modulus per seed.
func SignatureLimbs(t require.TestingT, seed int64) limbs.Limbs {
	s := new(big.Int).Div(Modulus(), big.NewInt(seed+3))
	l, err := limbs.FromInt(s)
	require.NoError(t, err)
	return l
}

// Witness runs the preparation stages on e.
func (e Email) Witness(t require.TestingT) *witness.Witness {
	hdr, sender := e.Header, e.Sender
	if hdr == "" {
		hdr = Header
	}
	if sender == "" {
		sender = Sender
	}
	split, err := header.Split([]byte(hdr), e.Capacity)
	require.NoError(t, err)
	orig, err := locate.NewLocator(Domain).Locate([]byte(hdr), sender)
	require.NoError(t, err)
	offsets, err := locate.Translate(orig, split.PrehashedLength, split.RemainderLength())
	require.NoError(t, err)

	w, err := witness.Assemble(witness.Input{
		Split:     split,
		Key:       Key(t),
		Signature: SignatureLimbs(t, e.Signature),
		Offsets:   offsets,
		Capacity:  e.Capacity,
		Domain:    Domain,
		Context:   e.Context,
	})
	require.NoError(t, err)
	return w
}
