// Package locate finds the sender header and sender address in a message
// header and moves their byte ranges between coordinate spaces.
package locate

import (
	"bytes"
	"fmt"

	"zkdomain/message"
	"zkdomain/zkerr"
)

// Space names the coordinate system an offset is measured in.
type Space int

const (
	// Original offsets index the full header as received.
	Original Space = iota
	// Remainder offsets index the suffix left after prehashing.
	Remainder
)

func (s Space) String() string {
	switch s {
	case Original:
		return "original"
	case Remainder:
		return "remainder"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

// SequenceRef is a byte range tagged with its coordinate space. Offsets are
// signed so that out-of-range translations surface as negative values
// instead of wrapping.
type SequenceRef struct {
	Space  Space
	Offset int
	Length int
}

// End is the exclusive end offset.
func (r SequenceRef) End() int { return r.Offset + r.Length }

func (r SequenceRef) String() string {
	return fmt.Sprintf("%s[%d:+%d]", r.Space, r.Offset, r.Length)
}

// Offsets holds the sender-header and sender-address ranges, always in the
// same space.
type Offsets struct {
	Header  SequenceRef
	Address SequenceRef
}

// MinimumAddressLength is the shortest address that can end in "@"+domain:
// one local-part byte, the '@' and the domain.
func MinimumAddressLength(domain string) int { return len(domain) + 2 }

// Locator locates sender ranges for one target domain.
type Locator struct {
	Domain string
}

// NewLocator returns a Locator for domain.
func NewLocator(domain string) *Locator { return &Locator{Domain: domain} }

// Locate returns Original-space offsets of the sender header field and of
// senderAddress within it. The address is searched only inside the sender
// header, never in the rest of the text.
func (l *Locator) Locate(headerText []byte, senderAddress string) (Offsets, error) {
	if need := MinimumAddressLength(l.Domain); len(senderAddress) < need {
		return Offsets{}, zkerr.New(zkerr.KindDomainTooShort,
			"address %q is shorter than %d bytes required for domain %q", senderAddress, need, l.Domain)
	}

	start := message.FieldStart(headerText, message.SenderField)
	if start < 0 {
		return Offsets{}, zkerr.New(zkerr.KindNotFound, "no sender header")
	}
	end := message.FieldEnd(headerText, start)
	field := headerText[start:end]

	idx := findAddress(field, []byte(senderAddress), len(message.SenderField)+1)
	if idx < 0 {
		return Offsets{}, zkerr.New(zkerr.KindNotFound, "address %q not in sender header", senderAddress)
	}

	return Offsets{
		Header:  SequenceRef{Space: Original, Offset: start, Length: end - start},
		Address: SequenceRef{Space: Original, Offset: start + idx, Length: len(senderAddress)},
	}, nil
}

// findAddress prefers an angle-bracketed occurrence, then the first
// occurrence that is not part of a longer address.
func findAddress(field, addr []byte, from int) int {
	bracketed := append(append([]byte{'<'}, addr...), '>')
	if i := bytes.Index(field[from:], bracketed); i >= 0 {
		return from + i + 1
	}
	for pos := from; pos <= len(field)-len(addr); {
		i := bytes.Index(field[pos:], addr)
		if i < 0 {
			return -1
		}
		at := pos + i
		before := at == 0 || !isAddrByte(field[at-1])
		after := at+len(addr) == len(field) || !isAddrByte(field[at+len(addr)])
		if before && after {
			return at
		}
		pos = at + 1
	}
	return -1
}

func isAddrByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return bytes.IndexByte([]byte("!#$%&'*+/=?^_`{|}~.-@"), c) >= 0
}

// Translate moves Original-space offsets into Remainder space by subtracting
// prehashedLength. Every bound is checked with signed comparisons; a range
// that starts inside the prehashed prefix or runs past remainderLength is a
// RangeError.
func Translate(o Offsets, prehashedLength, remainderLength int) (Offsets, error) {
	if prehashedLength < 0 || remainderLength < 0 {
		return Offsets{}, zkerr.New(zkerr.KindRange,
			"negative split lengths (prehashed %d, remainder %d)", prehashedLength, remainderLength)
	}
	h, err := translate("header", o.Header, prehashedLength, remainderLength)
	if err != nil {
		return Offsets{}, err
	}
	a, err := translate("address", o.Address, prehashedLength, remainderLength)
	if err != nil {
		return Offsets{}, err
	}
	return Offsets{Header: h, Address: a}, nil
}

func translate(name string, r SequenceRef, prehashed, remainderLength int) (SequenceRef, error) {
	if r.Space != Original {
		return SequenceRef{}, zkerr.New(zkerr.KindRange, "%s range %s is not in original space", name, r)
	}
	if r.Length < 0 {
		return SequenceRef{}, zkerr.New(zkerr.KindRange, "%s range %s has negative length", name, r)
	}
	off := r.Offset - prehashed
	if off < 0 {
		return SequenceRef{}, zkerr.New(zkerr.KindRange,
			"%s range %s starts %d bytes inside the prehashed prefix", name, r, -off)
	}
	if off > remainderLength-r.Length {
		return SequenceRef{}, zkerr.New(zkerr.KindRange,
			"%s range %s ends past remainder of %d bytes", name, r, remainderLength)
	}
	return SequenceRef{Space: Remainder, Offset: off, Length: r.Length}, nil
}
