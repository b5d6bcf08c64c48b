// Package message frames raw RFC 5322 messages and scans their header
// fields. Both CRLF and bare LF line endings are accepted.
package message

import (
	"bytes"

	"zkdomain/zkerr"
)

// SenderField is the header field whose address is proven.
const SenderField = "from"

// RawMessage is a message split at its first blank line. Header keeps the
// blank-line separator; Body is everything after it.
type RawMessage struct {
	Header []byte
	Body   []byte
}

// Parse splits raw at the first blank line.
func Parse(raw []byte) (*RawMessage, error) {
	end := headerEnd(raw)
	if end < 0 {
		return nil, zkerr.New(zkerr.KindMalformed, "message has no blank line between header and body")
	}
	return &RawMessage{Header: raw[:end], Body: raw[end:]}, nil
}

// headerEnd returns the offset just past the blank line ending the header
// section, or -1.
func headerEnd(raw []byte) int {
	pos := 0
	for pos < len(raw) {
		if raw[pos] == '\n' {
			return pos + 1
		}
		if raw[pos] == '\r' && pos+1 < len(raw) && raw[pos+1] == '\n' {
			return pos + 2
		}
		nl := bytes.IndexByte(raw[pos:], '\n')
		if nl < 0 {
			return -1
		}
		pos += nl + 1
	}
	return -1
}

// Field is one (possibly folded) header field. Offset and Length cover the
// field name through the last value byte, excluding the final line break.
type Field struct {
	Name   string
	Offset int
	Length int
	Value  []byte
}

// Fields lists the header fields of header in order. Scanning stops at the
// blank line, so body text is never reported as a field.
func Fields(header []byte) []Field {
	var out []Field
	pos := 0
	for pos < len(header) && !isBlankLine(header, pos) {
		if isWSP(header[pos]) {
			// stray continuation without a field
			pos = nextLine(header, pos)
			continue
		}
		colon := bytes.IndexByte(lineAt(header, pos), ':')
		if colon <= 0 {
			pos = nextLine(header, pos)
			continue
		}
		end := FieldEnd(header, pos)
		out = append(out, Field{
			Name:   string(header[pos : pos+colon]),
			Offset: pos,
			Length: end - pos,
			Value:  header[pos+colon+1 : end],
		})
		pos = nextLine(header, end)
	}
	return out
}

// FieldStart returns the offset of the first header line whose field name
// equals name (ASCII case-insensitive), or -1. Only line starts inside the
// header section are considered.
func FieldStart(header []byte, name string) int {
	pos := 0
	for pos < len(header) && !isBlankLine(header, pos) {
		if hasFieldName(header[pos:], name) {
			return pos
		}
		pos = nextLine(header, pos)
	}
	return -1
}

// FieldEnd returns the exclusive end of the field starting at start: the
// offset of the line break of its last line, after following folded
// continuation lines.
func FieldEnd(header []byte, start int) int {
	pos := start
	for {
		nl := bytes.IndexByte(header[pos:], '\n')
		if nl < 0 {
			return len(header)
		}
		lf := pos + nl
		if lf+1 < len(header) && isWSP(header[lf+1]) {
			pos = lf + 1
			continue
		}
		if lf > start && header[lf-1] == '\r' {
			return lf - 1
		}
		return lf
	}
}

func hasFieldName(line []byte, name string) bool {
	if len(line) <= len(name) || line[len(name)] != ':' {
		return false
	}
	return bytes.EqualFold(line[:len(name)], []byte(name))
}

func lineAt(b []byte, pos int) []byte {
	if nl := bytes.IndexByte(b[pos:], '\n'); nl >= 0 {
		return b[pos : pos+nl]
	}
	return b[pos:]
}

func nextLine(b []byte, pos int) int {
	nl := bytes.IndexByte(b[pos:], '\n')
	if nl < 0 {
		return len(b)
	}
	return pos + nl + 1
}

func isBlankLine(b []byte, pos int) bool {
	return b[pos] == '\n' || (b[pos] == '\r' && pos+1 < len(b) && b[pos+1] == '\n')
}

func isWSP(c byte) bool { return c == ' ' || c == '\t' }
