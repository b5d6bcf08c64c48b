package header

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"zkdomain/zkerr"
)

// buildHeader returns a header of exactly total bytes whose From line starts
// at fromAt.
func buildHeader(t require.TestingT, total, fromAt int) []byte {
	const from = "From: student@example.edu\r\n"
	require.GreaterOrEqual(t, fromAt, 7)
	tail := total - fromAt - len(from)
	require.GreaterOrEqual(t, tail, 9)

	var b bytes.Buffer
	b.WriteString("X-A: ")
	b.WriteString(strings.Repeat("a", fromAt-len("X-A: ")-2))
	b.WriteString("\r\n")
	b.WriteString(from)
	b.WriteString("X-B: ")
	b.WriteString(strings.Repeat("b", tail-len("X-B: ")-4))
	b.WriteString("\r\n\r\n")
	require.Equal(t, total, b.Len())
	return b.Bytes()
}

func TestSplit_IdentityWhenWithinCapacity(t *testing.T) {
	hdr := []byte("From: student@example.edu\r\nTo: x@y.com\r\nSubject: s\r\n\r\n")
	res, err := Split(hdr, 2560)
	require.NoError(t, err)

	assert.Equal(t, 0, res.PrehashedLength)
	assert.Equal(t, InitialState, res.State)
	assert.Equal(t, len(hdr), res.TotalLength)
	assert.Equal(t, hdr, res.Remainder)
	assert.Same(t, &hdr[0], &res.Remainder[0], "identity case must not copy")
}

func TestSplit_LargeHeader(t *testing.T) {
	hdr := buildHeader(t, 12447, 10771)
	res, err := Split(hdr, 2560)
	require.NoError(t, err)

	assert.Zero(t, res.PrehashedLength%BlockSize)
	assert.LessOrEqual(t, res.PrehashedLength, 10771)
	assert.LessOrEqual(t, res.TotalLength-res.PrehashedLength, 2560)
	assert.Equal(t, 10752, res.PrehashedLength)
	assert.Equal(t, 12447, res.TotalLength)
	assert.Equal(t, hdr[10752:], res.Remainder)
	assert.True(t, bytes.HasPrefix(res.Remainder[10771-10752:], []byte("From:")))

	want, err := Portable().Compress(hdr[:10752])
	require.NoError(t, err)
	assert.Equal(t, want, res.State)
}

func TestSplit_SenderHeaderTooEarly(t *testing.T) {
	hdr := buildHeader(t, 5000, 100)
	_, err := Split(hdr, 1000)
	require.Error(t, err)
	assert.True(t, zkerr.IsKind(err, zkerr.KindCapacity))
}

func TestSplit_NoSenderHeader(t *testing.T) {
	hdr := append([]byte("Subject: "), bytes.Repeat([]byte("x"), 300)...)
	hdr = append(hdr, "\r\n\r\nFrom: body@example.edu\r\n"...)
	_, err := Split(hdr, 64)
	assert.True(t, zkerr.IsKind(err, zkerr.KindNotFound))
}

func TestSplit_NoSenderHeaderWithinCapacity(t *testing.T) {
	_, err := Split([]byte("To: x@y.com\r\nSubject: s\r\n\r\nFrom: body@example.edu\r\n"), 2560)
	assert.True(t, zkerr.IsKind(err, zkerr.KindNotFound))
	assert.Equal(t, zkerr.ClassInput, zkerr.ClassOf(err))
}

func TestSplit_RejectsNonPositiveCapacity(t *testing.T) {
	_, err := Split([]byte("From: a@b.c\r\n\r\n"), 0)
	assert.True(t, zkerr.IsKind(err, zkerr.KindMalformed))
}

func TestSplit_Concurrent(t *testing.T) {
	hdr := buildHeader(t, 4096, 3000)
	s := NewSplitter(nil)
	want, err := s.Split(hdr, 1500)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Split(hdr, 1500)
			assert.NoError(t, err)
			assert.Equal(t, want.State, got.State)
			assert.Equal(t, want.PrehashedLength, got.PrehashedLength)
		}()
	}
	wg.Wait()
}

func TestSplit_Invariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(80, 3000).Draw(t, "total")
		fromAt := rapid.IntRange(7, total-27-9).Draw(t, "fromAt")
		capacity := rapid.IntRange(1, 4000).Draw(t, "capacity")
		hdr := buildHeader(t, total, fromAt)

		res, err := Split(hdr, capacity)
		if err != nil {
			if !zkerr.IsKind(err, zkerr.KindCapacity) {
				t.Fatalf("unexpected error: %v", err)
			}
			if total <= capacity {
				t.Fatalf("identity case must not fail")
			}
			return
		}
		if res.PrehashedLength%BlockSize != 0 {
			t.Fatalf("prehashed %d not block aligned", res.PrehashedLength)
		}
		if res.PrehashedLength > fromAt {
			t.Fatalf("prehashed %d passes sender header at %d", res.PrehashedLength, fromAt)
		}
		if res.RemainderLength() > capacity || len(res.Remainder) != res.RemainderLength() {
			t.Fatalf("remainder %d exceeds capacity %d", res.RemainderLength(), capacity)
		}
	})
}

func TestPortable_KnownAnswer(t *testing.T) {
	msg := []byte("abc")
	block := make([]byte, BlockSize)
	copy(block, msg)
	block[len(msg)] = 0x80
	binary.BigEndian.PutUint64(block[BlockSize-8:], uint64(len(msg)*8))

	st, err := Portable().Compress(block)
	require.NoError(t, err)

	var digest [32]byte
	for i, w := range st {
		binary.BigEndian.PutUint32(digest[4*i:], w)
	}
	assert.Equal(t, sha256.Sum256(msg), digest)
}

func TestPortable_RejectsUnaligned(t *testing.T) {
	_, err := Portable().Compress(make([]byte, 65))
	assert.Error(t, err)
}

type brokenCompressor struct{}

func (brokenCompressor) Name() string { return "broken" }
func (brokenCompressor) Compress([]byte) (State, error) {
	return State{1, 2, 3}, nil
}

func TestProbe(t *testing.T) {
	assert.Equal(t, "portable", Probe(brokenCompressor{}).Name())

	for _, c := range Accelerated() {
		picked := Probe(c)
		if picked.Name() == c.Name() {
			vec := bytes.Repeat([]byte{0x5a}, 4*BlockSize)
			got, err := c.Compress(vec)
			require.NoError(t, err)
			want, _ := Portable().Compress(vec)
			assert.Equal(t, want, got, c.Name())
		}
	}
}
