package commit

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkdomain/limbs"
)

func testLimbs(t *testing.T, seed int64) limbs.Limbs {
	n := new(big.Int).Exp(big.NewInt(seed), big.NewInt(300), nil)
	l, err := limbs.FromInt(n)
	require.NoError(t, err)
	return l
}

func TestNullifier_DeterministicAndContextBound(t *testing.T) {
	session, err := SessionCommitment(testLimbs(t, 7))
	require.NoError(t, err)

	ctxA := ContextKey("faculty-42", "2026-fall")
	ctxB := ContextKey("faculty-43", "2026-fall")

	n1, err := Nullifier(session, ctxA)
	require.NoError(t, err)
	n2, err := Nullifier(session, ctxA)
	require.NoError(t, err)
	n3, err := Nullifier(session, ctxB)
	require.NoError(t, err)

	assert.Equal(t, n1, n2)
	assert.NotEqual(t, n1, n3)
	assert.False(t, n1.IsZero())
}

func TestSessionCommitment_DiffersPerSignature(t *testing.T) {
	a, err := SessionCommitment(testLimbs(t, 7))
	require.NoError(t, err)
	b, err := SessionCommitment(testLimbs(t, 11))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestKeyCommitment_RejectsInvalidLimbs(t *testing.T) {
	var l limbs.Limbs
	_, err := KeyCommitment(l)
	assert.Error(t, err)
}

func TestContextKey_LengthPrefixed(t *testing.T) {
	assert.NotEqual(t, ContextKey("ab", "c"), ContextKey("a", "bc"))
	assert.Equal(t, ContextKey("x", "y"), ContextKey("x", "y"))
	assert.Less(t, ContextKey("x").Big().Cmp(fr.Modulus()), 0)
}

func TestFromBytes(t *testing.T) {
	_, err := FromBytes(make([]byte, 31))
	assert.Error(t, err)

	unreduced := fr.Modulus().FillBytes(make([]byte, Size))
	_, err = FromBytes(unreduced)
	assert.Error(t, err)

	d := ContextKey("ok")
	got, err := FromBytes(d[:])
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestHexRoundTrip(t *testing.T) {
	d := ContextKey("hex")
	got, err := ParseHex(d.Hex())
	require.NoError(t, err)
	assert.Equal(t, d, got)
	assert.True(t, bytes.HasPrefix([]byte(d.String()), []byte("0x")))
}
