// Package auth ties witness preparation, proving and nullifier registration
// into the email-domain authentication flow. A prover turns a signed email
// into a proof; a verifier accepts each proof at most once per context.
package auth

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"zkdomain/commit"
	"zkdomain/header"
	"zkdomain/limbs"
	"zkdomain/locate"
	"zkdomain/message"
	"zkdomain/nullifier"
	"zkdomain/prover"
	"zkdomain/witness"
	"zkdomain/zkerr"
)

// Config fixes the statement a Pipeline proves and accepts.
type Config struct {
	Domain   string
	Capacity int
	// NullifierTTL overrides the nullifier service default when positive.
	NullifierTTL time.Duration
}

// Reasons reported in a rejected Decision.
const (
	ReasonMalformed        = "malformed public outputs"
	ReasonContextMismatch  = "proof is for another context"
	ReasonUntrustedKey     = "signer key is not trusted"
	ReasonInvalidProof     = "proof does not verify"
	ReasonAlreadySubmitted = "already submitted"
	ReasonStoreUnavailable = "nullifier store unavailable"
)

// Decision is the verifier's answer for one submitted proof.
type Decision struct {
	Accepted  bool
	Nullifier commit.Digest
	Reason    string
	// Err classifies a rejection; a replayed nullifier is KindDuplicate.
	Err error
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	cfg        Config
	keys       KeyResolver
	splitter   *header.Splitter
	locator    *locate.Locator
	proofs     *prover.Client
	nullifiers *nullifier.Service
	log        *logrus.Logger

	mu      sync.RWMutex
	trusted map[commit.Digest]bool
}

// New builds a Pipeline. keys is only needed for Prepare and nullifiers only
// for VerifyEmailProof.
func New(cfg Config, keys KeyResolver, proofs *prover.Client, nullifiers *nullifier.Service, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{
		cfg:        cfg,
		keys:       keys,
		splitter:   header.NewSplitter(logger),
		locator:    locate.NewLocator(cfg.Domain),
		proofs:     proofs,
		nullifiers: nullifiers,
		log:        logger,
		trusted:    make(map[commit.Digest]bool),
	}
}

// Trust accepts proofs made with modulus and returns its key commitment.
func (p *Pipeline) Trust(modulus *big.Int) (commit.Digest, error) {
	l, err := limbs.FromInt(modulus)
	if err != nil {
		return commit.Digest{}, err
	}
	kc, err := commit.KeyCommitment(l)
	if err != nil {
		return commit.Digest{}, zkerr.Wrap(zkerr.KindHash, err, "key commitment")
	}
	p.mu.Lock()
	p.trusted[kc] = true
	p.mu.Unlock()
	p.log.WithField("key_commitment", kc.Hex()).Info("trusted signer key")
	return kc, nil
}

func (p *Pipeline) isTrusted(kc commit.Digest) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.trusted[kc]
}

// Prepare turns a raw signed email into a witness for sender in contextKey.
// The DKIM signature must be from the configured domain and cover the
// sender field.
func (p *Pipeline) Prepare(ctx context.Context, raw []byte, sender string, contextKey commit.Digest) (*witness.Witness, error) {
	msg, err := message.Parse(raw)
	if err != nil {
		return nil, err
	}
	sig, err := msg.DKIMSignature()
	if err != nil {
		return nil, err
	}
	if sig.Domain != p.cfg.Domain {
		return nil, zkerr.New(zkerr.KindMalformed, "signed by %q, want %q", sig.Domain, p.cfg.Domain)
	}
	if !sig.Signs(message.SenderField) {
		return nil, zkerr.New(zkerr.KindMalformed, "signature does not cover the %s field", message.SenderField)
	}
	log := p.log.WithFields(logrus.Fields{"domain": sig.Domain, "selector": sig.Selector})

	modulus, err := p.keys.LookupKey(ctx, sig.Domain, sig.Selector)
	if err != nil {
		return nil, err
	}
	key, err := limbs.NewRSAKey(modulus)
	if err != nil {
		return nil, err
	}
	sigLimbs, err := limbs.ToLimbs(sig.SignatureValue)
	if err != nil {
		return nil, err
	}

	split, err := p.splitter.Split(msg.Header, p.cfg.Capacity)
	if err != nil {
		return nil, err
	}
	orig, err := p.locator.Locate(msg.Header, sender)
	if err != nil {
		return nil, err
	}
	offsets, err := locate.Translate(orig, split.PrehashedLength, split.RemainderLength())
	if err != nil {
		return nil, err
	}

	w, err := witness.Assemble(witness.Input{
		Split:     split,
		Key:       key,
		Signature: sigLimbs,
		Offsets:   offsets,
		Capacity:  p.cfg.Capacity,
		Domain:    p.cfg.Domain,
		Context:   contextKey,
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"prehashed": split.PrehashedLength,
		"remainder": split.RemainderLength(),
		"key_bits":  key.Bits,
	}).Debug("witness prepared")
	return w, nil
}

// Authenticate prepares a witness and proves it.
func (p *Pipeline) Authenticate(ctx context.Context, raw []byte, sender string, contextKey commit.Digest) (*prover.Proof, error) {
	w, err := p.Prepare(ctx, raw, sender, contextKey)
	if err != nil {
		p.log.WithFields(logrus.Fields{
			"kind":  zkerr.KindOf(err),
			"class": zkerr.ClassOf(err),
		}).WithError(err).Info("email rejected before proving")
		return nil, err
	}
	return p.proofs.Prove(ctx, w)
}

// VerifyEmailProof accepts a proof for expectedContext when it verifies, was
// made with a trusted key and its nullifier has not been seen. Store
// failures reject.
func (p *Pipeline) VerifyEmailProof(ctx context.Context, proof, publicOutputs []byte, expectedContext commit.Digest) Decision {
	pub, err := prover.DecodeOutputs(publicOutputs)
	if err != nil {
		return p.reject(Decision{Reason: ReasonMalformed}, zkerr.Wrap(zkerr.KindMalformed, err, "public outputs"))
	}
	d := Decision{Nullifier: pub.Nullifier}
	if pub.ContextKey != expectedContext {
		return p.reject(withReason(d, ReasonContextMismatch),
			zkerr.New(zkerr.KindMalformed, "context %s, want %s", pub.ContextKey.Hex(), expectedContext.Hex()))
	}
	if !p.isTrusted(pub.KeyCommitment) {
		return p.reject(withReason(d, ReasonUntrustedKey),
			zkerr.New(zkerr.KindExecution, "key commitment %s is not trusted", pub.KeyCommitment.Hex()))
	}
	if !p.proofs.Verify(ctx, proof, publicOutputs) {
		return p.reject(withReason(d, ReasonInvalidProof), zkerr.New(zkerr.KindExecution, "proof does not verify"))
	}

	status, err := p.nullifiers.Register(ctx, pub.Nullifier, pub.ContextKey, []byte(p.cfg.Domain), p.cfg.NullifierTTL)
	switch {
	case err != nil:
		return p.reject(withReason(d, ReasonStoreUnavailable), err)
	case status == nullifier.AlreadyExists:
		return p.reject(withReason(d, ReasonAlreadySubmitted),
			zkerr.New(zkerr.KindDuplicate, "nullifier %s already registered", pub.Nullifier.Hex()))
	}
	d.Accepted = true
	p.log.WithField("nullifier", pub.Nullifier.Hex()).Info("email proof accepted")
	return d
}

func withReason(d Decision, reason string) Decision {
	d.Reason = reason
	return d
}

func (p *Pipeline) reject(d Decision, err error) Decision {
	d.Err = err
	entry := p.log.WithFields(logrus.Fields{"reason": d.Reason, "class": zkerr.ClassOf(err)})
	if !d.Nullifier.IsZero() {
		entry = entry.WithField("nullifier", d.Nullifier.Hex())
	}
	entry.WithError(err).Info("email proof rejected")
	return d
}
