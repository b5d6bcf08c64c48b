package message

import (
	"bytes"
	"encoding/base64"
	"strings"

	"zkdomain/zkerr"
)

const dkimField = "dkim-signature"

// DKIMSignature holds the tags of a DKIM-Signature header that the prover
// needs. Unknown tags are kept in Tags.
type DKIMSignature struct {
	Version        string
	Algorithm      string
	Domain         string
	Selector       string
	SignedHeaders  []string
	BodyHash       string
	Canonicalized  string
	SignatureValue []byte
	Tags           map[string]string
}

// DKIMSignature parses the first DKIM-Signature field of the message.
func (m *RawMessage) DKIMSignature() (*DKIMSignature, error) {
	start := FieldStart(m.Header, dkimField)
	if start < 0 {
		return nil, zkerr.New(zkerr.KindNotFound, "no DKIM-Signature header")
	}
	end := FieldEnd(m.Header, start)
	return ParseDKIMSignature(m.Header[start+len(dkimField)+1 : end])
}

// ParseDKIMSignature parses a DKIM-Signature tag list (RFC 6376 §3.2).
func ParseDKIMSignature(value []byte) (*DKIMSignature, error) {
	tags := make(map[string]string)
	for _, part := range bytes.Split(value, []byte{';'}) {
		part = bytes.TrimSpace(part)
		if len(part) == 0 {
			continue
		}
		eq := bytes.IndexByte(part, '=')
		if eq <= 0 {
			return nil, zkerr.New(zkerr.KindMalformed, "DKIM tag without '=': %q", part)
		}
		name := string(bytes.TrimSpace(part[:eq]))
		if _, dup := tags[name]; dup {
			return nil, zkerr.New(zkerr.KindMalformed, "duplicate DKIM tag %q", name)
		}
		tags[name] = string(stripFWS(part[eq+1:]))
	}

	for _, required := range []string{"v", "a", "d", "s", "h", "b"} {
		if tags[required] == "" {
			return nil, zkerr.New(zkerr.KindMalformed, "DKIM-Signature missing %q tag", required)
		}
	}
	sig, err := base64.StdEncoding.DecodeString(tags["b"])
	if err != nil {
		return nil, zkerr.Wrap(zkerr.KindMalformed, err, "DKIM b= tag is not base64")
	}

	var signed []string
	for _, h := range strings.Split(tags["h"], ":") {
		if h = strings.TrimSpace(h); h != "" {
			signed = append(signed, strings.ToLower(h))
		}
	}

	return &DKIMSignature{
		Version:        tags["v"],
		Algorithm:      tags["a"],
		Domain:         strings.ToLower(tags["d"]),
		Selector:       tags["s"],
		SignedHeaders:  signed,
		BodyHash:       tags["bh"],
		Canonicalized:  tags["c"],
		SignatureValue: sig,
		Tags:           tags,
	}, nil
}

// Signs reports whether field is covered by the h= list.
func (d *DKIMSignature) Signs(field string) bool {
	for _, h := range d.SignedHeaders {
		if strings.EqualFold(h, field) {
			return true
		}
	}
	return false
}

func stripFWS(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
		default:
			out = append(out, c)
		}
	}
	return out
}
