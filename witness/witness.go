// Package witness assembles the named, validated record handed to the
// circuit. A Witness is either complete and consistent or not produced.
package witness

import (
	"fmt"
	"strings"

	"zkdomain/commit"
	"zkdomain/header"
	"zkdomain/limbs"
	"zkdomain/locate"
	"zkdomain/zkerr"
)

// Witness is everything one circuit execution needs. TotalLength is always
// the length of the original header, never the remainder length.
type Witness struct {
	HashState       header.State
	Remainder       []byte
	Capacity        int
	TotalLength     int
	PrehashedLength int

	KeyLimbs       limbs.Limbs
	RedcLimbs      limbs.Limbs
	SignatureLimbs limbs.Limbs

	Header  locate.SequenceRef
	Address locate.SequenceRef

	Domain  string
	Context commit.Digest
}

// RemainderLength is the logical length of the remainder.
func (w *Witness) RemainderLength() int { return len(w.Remainder) }

// PaddedRemainder returns the remainder zero-padded to Capacity.
func (w *Witness) PaddedRemainder() []byte {
	out := make([]byte, w.Capacity)
	copy(out, w.Remainder)
	return out
}

// Input collects the outputs of the earlier pipeline stages. Offsets must
// already be translated into Remainder space.
type Input struct {
	Split     *header.Result
	Key       *limbs.RSAKey
	Signature limbs.Limbs
	Offsets   locate.Offsets
	Capacity  int
	Domain    string
	Context   commit.Digest
}

// Assemble validates in and builds a Witness. On failure the returned error
// is a KindAssembly *zkerr.Error listing every violated invariant.
func Assemble(in Input) (*Witness, error) {
	var v violations
	if in.Split == nil {
		v.add("missing header split")
	}
	if in.Key == nil {
		v.add("missing signer key")
	}
	if len(v) > 0 {
		return nil, v.err()
	}

	w := &Witness{
		HashState:       in.Split.State,
		Remainder:       append([]byte(nil), in.Split.Remainder...),
		Capacity:        in.Capacity,
		TotalLength:     in.Split.TotalLength,
		PrehashedLength: in.Split.PrehashedLength,
		KeyLimbs:        in.Key.Modulus,
		RedcLimbs:       in.Key.Redc,
		SignatureLimbs:  in.Signature,
		Header:          in.Offsets.Header,
		Address:         in.Offsets.Address,
		Domain:          in.Domain,
		Context:         in.Context,
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// Validate checks every cross-field invariant of w.
func (w *Witness) Validate() error {
	var v violations
	remLen := w.RemainderLength()

	if w.Capacity <= 0 {
		v.add("capacity %d is not positive", w.Capacity)
	}
	if remLen > w.Capacity {
		v.add("remainder of %d bytes exceeds capacity %d", remLen, w.Capacity)
	}
	if w.PrehashedLength < 0 || w.PrehashedLength%header.BlockSize != 0 {
		v.add("prehashed length %d is not a non-negative multiple of %d", w.PrehashedLength, header.BlockSize)
	}
	if w.TotalLength != w.PrehashedLength+remLen {
		v.add("total length %d != prehashed %d + remainder %d", w.TotalLength, w.PrehashedLength, remLen)
	}

	if w.Header.Space != locate.Remainder {
		v.add("header range %s is not in remainder space", w.Header)
	}
	if w.Address.Space != locate.Remainder {
		v.add("address range %s is not in remainder space", w.Address)
	}
	if w.Header.Length <= 0 {
		v.add("header length %d is not positive", w.Header.Length)
	}
	if w.Header.Offset < 0 || w.Header.End() > remLen {
		v.add("header range %s outside remainder of %d bytes", w.Header, remLen)
	}
	if w.Address.Offset < w.Header.Offset || w.Address.Offset >= w.Header.End() {
		v.add("address offset %d outside header [%d, %d)", w.Address.Offset, w.Header.Offset, w.Header.End())
	}
	if w.Address.End() > w.Header.End() {
		v.add("address range %s runs past header end %d", w.Address, w.Header.End())
	}

	if w.Domain == "" {
		v.add("target domain is empty")
	}
	if need := locate.MinimumAddressLength(w.Domain); w.Address.Length < need {
		v.add("address length %d below minimum %d for domain %q", w.Address.Length, need, w.Domain)
	}

	for _, l := range []struct {
		name  string
		limbs limbs.Limbs
	}{{"key", w.KeyLimbs}, {"redc", w.RedcLimbs}, {"signature", w.SignatureLimbs}} {
		if err := l.limbs.Validate(); err != nil {
			v.add("%s limbs: %v", l.name, err)
		}
	}
	if w.KeyLimbs.Validate() == nil && w.RedcLimbs.Validate() == nil {
		if err := limbs.CheckRedc(w.KeyLimbs, w.RedcLimbs); err != nil {
			v.add("redc constant: %v", err)
		}
	}

	if len(v) > 0 {
		return v.err()
	}
	return nil
}

type violations []string

func (v *violations) add(format string, args ...any) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

func (v violations) err() error {
	return &zkerr.Error{
		Kind:       zkerr.KindAssembly,
		Message:    fmt.Sprintf("witness violates %d invariant(s): %s", len(v), strings.Join(v, "; ")),
		Violations: append([]string(nil), v...),
	}
}
