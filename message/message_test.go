package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkdomain/zkerr"
)

func TestParse_SplitsAtFirstBlankLine(t *testing.T) {
	raw := []byte("From: a@b.edu\r\nSubject: hi\r\n\r\nbody line\r\n\r\nmore\r\n")
	m, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "From: a@b.edu\r\nSubject: hi\r\n\r\n", string(m.Header))
	assert.Equal(t, "body line\r\n\r\nmore\r\n", string(m.Body))
}

func TestParse_LFLineEndings(t *testing.T) {
	m, err := Parse([]byte("From: a@b.edu\nTo: c@d.org\n\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, "From: a@b.edu\nTo: c@d.org\n\n", string(m.Header))
	assert.Equal(t, "body\n", string(m.Body))
}

func TestParse_NoBlankLine(t *testing.T) {
	_, err := Parse([]byte("From: a@b.edu\r\nSubject: x"))
	assert.True(t, zkerr.IsKind(err, zkerr.KindMalformed))
}

func TestFieldStart_CaseInsensitiveLineStartOnly(t *testing.T) {
	header := []byte("X-From: spoof@evil.com\r\nReply-To: r@x.com\r\nfROM: real@example.edu\r\n\r\n")
	assert.Equal(t, 43, FieldStart(header, SenderField))
}

func TestFieldStart_IgnoresBody(t *testing.T) {
	raw := []byte("Subject: s\r\n\r\nFrom: forged@example.edu\r\n")
	assert.Equal(t, -1, FieldStart(raw, SenderField))
}

func TestFieldEnd_FollowsFolding(t *testing.T) {
	header := []byte("From: \"Long Name\"\r\n <student@example.edu>\r\nTo: x@y.com\r\n\r\n")
	end := FieldEnd(header, 0)
	assert.Equal(t, "From: \"Long Name\"\r\n <student@example.edu>", string(header[:end]))
}

func TestFields(t *testing.T) {
	header := []byte("From: a@b.edu\r\nSubject: one\r\n two\r\n\r\n")
	fields := Fields(header)
	require.Len(t, fields, 2)
	assert.Equal(t, "From", fields[0].Name)
	assert.Equal(t, 0, fields[0].Offset)
	assert.Equal(t, len("From: a@b.edu"), fields[0].Length)
	assert.Equal(t, "Subject", fields[1].Name)
	assert.Equal(t, " one\r\n two", string(fields[1].Value))
}

func TestDKIMSignature(t *testing.T) {
	raw := []byte("DKIM-Signature: v=1; a=rsa-sha256; c=relaxed/relaxed; d=Example.edu;\r\n" +
		"\ts=sel1; h=from:to:subject; bh=AAAA;\r\n" +
		"\tb=aGVs\r\n bG8=\r\n" +
		"From: student@example.edu\r\n\r\nbody")
	m, err := Parse(raw)
	require.NoError(t, err)

	sig, err := m.DKIMSignature()
	require.NoError(t, err)
	assert.Equal(t, "example.edu", sig.Domain)
	assert.Equal(t, "sel1", sig.Selector)
	assert.Equal(t, "rsa-sha256", sig.Algorithm)
	assert.Equal(t, []byte("hello"), sig.SignatureValue)
	assert.True(t, sig.Signs("From"))
	assert.False(t, sig.Signs("cc"))
}

func TestDKIMSignature_Missing(t *testing.T) {
	m, err := Parse([]byte("From: a@b.edu\r\n\r\n"))
	require.NoError(t, err)
	_, err = m.DKIMSignature()
	assert.True(t, zkerr.IsKind(err, zkerr.KindNotFound))
}

func TestParseDKIMSignature_MissingTag(t *testing.T) {
	_, err := ParseDKIMSignature([]byte(" v=1; a=rsa-sha256; d=x.edu; h=from; b=AA=="))
	assert.True(t, zkerr.IsKind(err, zkerr.KindMalformed))
}
