// Package prover compiles the domain circuit into a Groth16 program over
// BN254, persists and pins its artifacts, and exposes Execute, Prove and
// Verify behind a bounded client.
package prover

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"zkdomain/circuit"
)

const (
	manifestFile = "manifest.yaml"
	circuitFile  = "circuit.r1cs"
	provingFile  = "proving.key"
	verifyFile   = "verifying.key"
)

// Program is a compiled circuit with its keys. A verifier-only Program has
// no constraint system and no proving key.
type Program struct {
	Capacity int
	Domain   string
	ID       cid.Cid

	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
	log *logrus.Logger
}

type manifest struct {
	Capacity int    `yaml:"capacity"`
	Domain   string `yaml:"domain"`
	ID       string `yaml:"id"`
}

// Compile builds the constraint system for capacity and domain.
func Compile(capacity int, domain string) (constraint.ConstraintSystem, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity %d is not positive", capacity)
	}
	if domain == "" {
		return nil, fmt.Errorf("empty domain")
	}
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit.New(capacity, domain))
	if err != nil {
		return nil, fmt.Errorf("circuit compilation failed: %w", err)
	}
	return cs, nil
}

// Setup compiles the circuit and runs a Groth16 setup. The keys are for
// development; production keys come from a ceremony and are loaded with
// Load.
func Setup(capacity int, domain string, logger *logrus.Logger) (*Program, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cs, err := Compile(capacity, domain)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"capacity":    capacity,
		"domain":      domain,
		"constraints": cs.GetNbConstraints(),
	}).Info("circuit compiled")

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, fmt.Errorf("trusted setup failed: %w", err)
	}
	id, err := artifactID(vk)
	if err != nil {
		return nil, err
	}
	return &Program{Capacity: capacity, Domain: domain, ID: id, ccs: cs, pk: pk, vk: vk, log: logger}, nil
}

// CanProve reports whether the program carries a proving key.
func (p *Program) CanProve() bool { return p.ccs != nil && p.pk != nil }

// NbConstraints is zero for a verifier-only program.
func (p *Program) NbConstraints() int {
	if p.ccs == nil {
		return 0
	}
	return p.ccs.GetNbConstraints()
}

// artifactID is the CIDv1 (raw, sha2-256) of the serialized verifying key.
func artifactID(vk groth16.VerifyingKey) (cid.Cid, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return cid.Undef, fmt.Errorf("serialize verifying key: %w", err)
	}
	sum, err := multihash.Sum(buf.Bytes(), multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Save writes the manifest and every artifact the program holds into dir.
func (p *Program) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	type artifact struct {
		name string
		w    io.WriterTo
	}
	artifacts := []artifact{{verifyFile, p.vk}}
	if p.CanProve() {
		artifacts = append(artifacts, artifact{circuitFile, p.ccs}, artifact{provingFile, p.pk})
	}
	for _, a := range artifacts {
		if err := writeArtifact(filepath.Join(dir, a.name), a.w); err != nil {
			return err
		}
	}

	raw, err := yaml.Marshal(manifest{Capacity: p.Capacity, Domain: p.Domain, ID: p.ID.String()})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFile), raw, 0o644)
}

func writeArtifact(path string, w io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func readArtifact(path string, r io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := r.ReadFrom(f); err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Load reads a program saved by Save. The verifying key must hash to the
// manifest ID and, when pin is defined, to pin as well. With verifierOnly
// the constraint system and proving key are not read.
func Load(dir string, pin cid.Cid, verifierOnly bool, logger *logrus.Logger) (*Program, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	raw, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	declared, err := cid.Decode(m.ID)
	if err != nil {
		return nil, fmt.Errorf("manifest id: %w", err)
	}

	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readArtifact(filepath.Join(dir, verifyFile), vk); err != nil {
		return nil, err
	}
	id, err := artifactID(vk)
	if err != nil {
		return nil, err
	}
	if !id.Equals(declared) {
		return nil, fmt.Errorf("verifying key hashes to %s, manifest declares %s", id, declared)
	}
	if pin.Defined() && !id.Equals(pin) {
		return nil, fmt.Errorf("verifying key %s does not match pinned program %s", id, pin)
	}

	p := &Program{Capacity: m.Capacity, Domain: m.Domain, ID: id, vk: vk, log: logger}
	if verifierOnly {
		return p, nil
	}
	p.ccs = groth16.NewCS(ecc.BN254)
	if err := readArtifact(filepath.Join(dir, circuitFile), p.ccs); err != nil {
		return nil, err
	}
	p.pk = groth16.NewProvingKey(ecc.BN254)
	if err := readArtifact(filepath.Join(dir, provingFile), p.pk); err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"id": id.String(), "constraints": p.NbConstraints()}).Info("program loaded")
	return p, nil
}
