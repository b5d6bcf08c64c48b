package grpcprover

import (
	"github.com/fxamacker/cbor/v2"

	"zkdomain/prover"
	"zkdomain/witness"
)

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

type proofMessage struct {
	Proof   []byte `cbor:"1,keyasint"`
	Outputs []byte `cbor:"2,keyasint"`
}

func encodeWitness(w *witness.Witness) ([]byte, error) { return encMode.Marshal(w) }

func decodeWitness(b []byte) (*witness.Witness, error) {
	var w witness.Witness
	if err := cbor.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func encodeProof(p *prover.Proof) ([]byte, error) {
	return encMode.Marshal(proofMessage{Proof: p.Proof, Outputs: p.PublicOutputs})
}

func decodeProof(b []byte) (*prover.Proof, error) {
	var m proofMessage
	if err := cbor.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &prover.Proof{Proof: m.Proof, PublicOutputs: m.Outputs}, nil
}
