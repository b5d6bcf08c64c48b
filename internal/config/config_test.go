package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkdomain/auth"
	"zkdomain/internal/fixture"
)

func keyRecord(t *testing.T) string {
	rec, err := auth.FormatKeyRecord(fixture.Modulus())
	require.NoError(t, err)
	return rec
}

func TestParse_Full(t *testing.T) {
	mh, err := multihash.Sum([]byte("vk"), multihash.SHA2_256, -1)
	require.NoError(t, err)
	pin := cid.NewCidV1(cid.Raw, mh)
	rec := keyRecord(t)

	cfg, err := Parse([]byte(`
domain: Example.EDU
capacity: 1024
artifactsDir: /var/lib/zkdomain
programID: ` + pin.String() + `
logLevel: debug
prover:
  workers: 4
  timeout: 90s
  remote: prover.internal:7443
nullifier:
  path: /var/lib/zkdomain/nullifiers
  ttl: 720h
  retries: 5
trustedKeys:
  - "` + rec + `"
keys:
  sel._domainkey.example.edu: "` + rec + `"
`))
	require.NoError(t, err)

	assert.Equal(t, "example.edu", cfg.Domain)
	assert.Equal(t, 1024, cfg.Capacity)
	assert.Equal(t, 4, cfg.Prover.Workers)
	assert.Equal(t, 90*time.Second, cfg.Prover.Timeout)
	assert.Equal(t, "prover.internal:7443", cfg.Prover.Remote)
	assert.Equal(t, 720*time.Hour, cfg.Nullifier.TTL)
	assert.Equal(t, 5, cfg.Nullifier.Retries)
	assert.Equal(t, 5*time.Millisecond, cfg.Nullifier.Backoff, "unset fields keep defaults")
	assert.Equal(t, logrus.DebugLevel, cfg.Logger().GetLevel())

	got, err := cfg.Pin()
	require.NoError(t, err)
	assert.True(t, pin.Equals(got))

	trusted, err := cfg.Trusted()
	require.NoError(t, err)
	require.Len(t, trusted, 1)
	assert.Zero(t, trusted[0].Cmp(fixture.Modulus()))

	resolver, err := cfg.KeyResolver()
	require.NoError(t, err)
	assert.IsType(t, auth.StaticKeys{}, resolver)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("domain: example.edu\n"))
	require.NoError(t, err)
	want := Default()
	want.Domain = "example.edu"
	assert.Equal(t, want, *cfg)

	pin, err := cfg.Pin()
	require.NoError(t, err)
	assert.False(t, pin.Defined())

	resolver, err := cfg.KeyResolver()
	require.NoError(t, err)
	assert.IsType(t, auth.DNSKeys{}, resolver)
}

func TestParse_ReportsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(`
capacity: -1
programID: not-a-cid
logLevel: chatty
prover:
  workers: 0
nullifier:
  retries: -2
trustedKeys:
  - "v=DKIM1; k=rsa; p="
`))
	require.Error(t, err)
	for _, want := range []string{"domain", "capacity", "programID", "logLevel", "prover.workers", "nullifier.retries", "trustedKeys[0]"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("domain: example.edu\nprovr:\n  workers: 2\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zkdomain.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domain: example.edu\ncapacity: 512\n"), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Capacity)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
