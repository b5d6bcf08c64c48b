package prover

import (
	"bytes"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	gnarkwitness "github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
	"github.com/sirupsen/logrus"

	"zkdomain/circuit"
	"zkdomain/witness"
	"zkdomain/zkerr"
)

func (p *Program) fullWitness(w *witness.Witness) (gnarkwitness.Witness, circuit.Public, error) {
	if !p.CanProve() {
		return nil, circuit.Public{}, zkerr.New(zkerr.KindProver, "program %s is verifier-only", p.ID)
	}
	if w.Capacity != p.Capacity || w.Domain != p.Domain {
		return nil, circuit.Public{}, zkerr.New(zkerr.KindAssembly,
			"witness for capacity %d domain %q does not fit program for capacity %d domain %q",
			w.Capacity, w.Domain, p.Capacity, p.Domain)
	}
	assignment, pub, err := circuit.Assign(w)
	if err != nil {
		return nil, circuit.Public{}, err
	}
	full, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, circuit.Public{}, zkerr.Wrap(zkerr.KindAssembly, err, "witness creation failed")
	}
	return full, pub, nil
}

// Execute checks that w satisfies every constraint without producing a
// proof. An unsatisfied constraint is a KindExecution error.
func (p *Program) Execute(w *witness.Witness) (circuit.Public, error) {
	full, pub, err := p.fullWitness(w)
	if err != nil {
		return circuit.Public{}, err
	}
	if err := p.ccs.IsSolved(full); err != nil {
		return circuit.Public{}, zkerr.Wrap(zkerr.KindExecution, err, "circuit rejected witness")
	}
	return pub, nil
}

// Prove generates a Groth16 proof for w. A witness that fails the circuit is
// a KindExecution error; any other prover failure is KindProver.
func (p *Program) Prove(w *witness.Witness) (*Proof, error) {
	full, pub, err := p.fullWitness(w)
	if err != nil {
		return nil, err
	}
	if err := p.ccs.IsSolved(full); err != nil {
		return nil, zkerr.Wrap(zkerr.KindExecution, err, "circuit rejected witness")
	}
	proof, err := groth16.Prove(p.ccs, p.pk, full)
	if err != nil {
		return nil, zkerr.Wrap(zkerr.KindProver, err, "proof generation failed")
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, zkerr.Wrap(zkerr.KindProver, err, "serialize proof")
	}
	p.log.WithFields(logrus.Fields{
		"program":   p.ID.String(),
		"nullifier": pub.Nullifier.Hex(),
		"bytes":     buf.Len(),
	}).Debug("proof generated")
	return &Proof{Proof: buf.Bytes(), PublicOutputs: EncodeOutputs(pub)}, nil
}

// Verify reports whether proof attests to publicOutputs under this program.
// Malformed input verifies as false.
func (p *Program) Verify(proof, publicOutputs []byte) bool {
	pub, err := DecodeOutputs(publicOutputs)
	if err != nil {
		p.log.WithError(err).Debug("rejecting malformed public outputs")
		return false
	}
	gp := groth16.NewProof(ecc.BN254)
	if _, err := gp.ReadFrom(bytes.NewReader(proof)); err != nil {
		p.log.WithError(err).Debug("rejecting malformed proof")
		return false
	}
	public, err := frontend.NewWitness(circuit.PublicAssignment(pub), ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		p.log.WithError(err).Debug("rejecting public outputs")
		return false
	}
	if err := groth16.Verify(gp, p.vk, public); err != nil {
		p.log.WithError(err).Debug("proof did not verify")
		return false
	}
	return true
}
