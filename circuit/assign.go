package circuit

import (
	"fmt"

	"github.com/consensys/gnark/frontend"

	"zkdomain/commit"
	"zkdomain/limbs"
	"zkdomain/witness"
)

// Public holds the values the circuit exposes, computed natively.
type Public struct {
	KeyCommitment commit.Digest
	Nullifier     commit.Digest
	ContextKey    commit.Digest
}

// ComputePublic derives the public outputs for w outside the circuit.
func ComputePublic(w *witness.Witness) (Public, error) {
	key, err := commit.KeyCommitment(w.KeyLimbs)
	if err != nil {
		return Public{}, fmt.Errorf("key commitment: %w", err)
	}
	session, err := commit.SessionCommitment(w.SignatureLimbs)
	if err != nil {
		return Public{}, fmt.Errorf("session commitment: %w", err)
	}
	nullifier, err := commit.Nullifier(session, w.Context)
	if err != nil {
		return Public{}, fmt.Errorf("nullifier: %w", err)
	}
	return Public{KeyCommitment: key, Nullifier: nullifier, ContextKey: w.Context}, nil
}

func toRemainderArray(data []byte, capacity int) []frontend.Variable {
	arr := make([]frontend.Variable, capacity)
	for i := 0; i < capacity; i++ {
		arr[i] = 0
		if i < len(data) {
			arr[i] = data[i]
		}
	}
	return arr
}

func toLimbArray(l limbs.Limbs) [limbs.Count]frontend.Variable {
	var arr [limbs.Count]frontend.Variable
	for i, v := range l {
		arr[i] = v
	}
	return arr
}

// Assign builds the full circuit assignment for w, public outputs included.
func Assign(w *witness.Witness) (*DomainCircuit, Public, error) {
	if err := w.Validate(); err != nil {
		return nil, Public{}, err
	}
	pub, err := ComputePublic(w)
	if err != nil {
		return nil, Public{}, err
	}

	c := &DomainCircuit{
		KeyCommitment: pub.KeyCommitment.Big(),
		Nullifier:     pub.Nullifier.Big(),
		ContextKey:    pub.ContextKey.Big(),

		Remainder:       toRemainderArray(w.Remainder, w.Capacity),
		RemainderLength: w.RemainderLength(),
		TotalLength:     w.TotalLength,

		KeyLimbs:       toLimbArray(w.KeyLimbs),
		RedcLimbs:      toLimbArray(w.RedcLimbs),
		SignatureLimbs: toLimbArray(w.SignatureLimbs),

		HeaderOffset:  w.Header.Offset,
		HeaderLength:  w.Header.Length,
		AddressOffset: w.Address.Offset,
		AddressLength: w.Address.Length,

		Domain: []byte(w.Domain),
	}
	for i, word := range w.HashState {
		c.HashState[i] = word
	}
	return c, pub, nil
}

// PublicAssignment carries only the public outputs, for verification.
func PublicAssignment(pub Public) *DomainCircuit {
	return &DomainCircuit{
		KeyCommitment: pub.KeyCommitment.Big(),
		Nullifier:     pub.Nullifier.Big(),
		ContextKey:    pub.ContextKey.Big(),
	}
}
