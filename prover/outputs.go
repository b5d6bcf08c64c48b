package prover

import (
	"fmt"

	"zkdomain/circuit"
	"zkdomain/commit"
)

// OutputsSize is the encoded length of the public outputs: key commitment,
// nullifier and context key, 32 bytes each, in that order.
const OutputsSize = 3 * commit.Size

// Proof is an opaque Groth16 proof with the public outputs it attests to.
type Proof struct {
	Proof         []byte
	PublicOutputs []byte
}

// Public decodes PublicOutputs.
func (p *Proof) Public() (circuit.Public, error) {
	return DecodeOutputs(p.PublicOutputs)
}

// EncodeOutputs lays out the public outputs as consecutive 32-byte chunks.
func EncodeOutputs(pub circuit.Public) []byte {
	out := make([]byte, 0, OutputsSize)
	out = append(out, pub.KeyCommitment[:]...)
	out = append(out, pub.Nullifier[:]...)
	return append(out, pub.ContextKey[:]...)
}

// DecodeOutputs is the inverse of EncodeOutputs. Every chunk must be a
// reduced field element.
func DecodeOutputs(b []byte) (circuit.Public, error) {
	if len(b) != OutputsSize {
		return circuit.Public{}, fmt.Errorf("public outputs must be %d bytes, got %d", OutputsSize, len(b))
	}
	var (
		pub circuit.Public
		err error
	)
	chunk := func(i int) []byte { return b[i*commit.Size : (i+1)*commit.Size] }
	if pub.KeyCommitment, err = commit.FromBytes(chunk(0)); err != nil {
		return circuit.Public{}, fmt.Errorf("key commitment: %w", err)
	}
	if pub.Nullifier, err = commit.FromBytes(chunk(1)); err != nil {
		return circuit.Public{}, fmt.Errorf("nullifier: %w", err)
	}
	if pub.ContextKey, err = commit.FromBytes(chunk(2)); err != nil {
		return circuit.Public{}, fmt.Errorf("context key: %w", err)
	}
	return pub, nil
}
