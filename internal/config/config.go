// Package config loads the zkdomain YAML configuration.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"zkdomain/auth"
)

type Config struct {
	Domain       string `yaml:"domain"`
	Capacity     int    `yaml:"capacity"`
	ArtifactsDir string `yaml:"artifactsDir"`
	// ProgramID pins the circuit artifacts by content ID. Empty accepts
	// whatever the artifacts directory holds.
	ProgramID string `yaml:"programID"`
	LogLevel  string `yaml:"logLevel"`

	Prover    Prover    `yaml:"prover"`
	Nullifier Nullifier `yaml:"nullifier"`

	// TrustedKeys are DKIM key records ("v=DKIM1; k=rsa; p=...") whose
	// proofs the verifier accepts.
	TrustedKeys []string `yaml:"trustedKeys"`
	// Keys maps selector._domainkey.domain to a key record and replaces
	// DNS lookups when set.
	Keys map[string]string `yaml:"keys"`
}

type Prover struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
	// Remote is the address of a gRPC prover; empty proves in process.
	Remote string `yaml:"remote"`
	Listen string `yaml:"listen"`
}

type Nullifier struct {
	// Path of the Badger directory; empty keeps nullifiers in memory.
	Path       string        `yaml:"path"`
	TTL        time.Duration `yaml:"ttl"`
	Retries    int           `yaml:"retries"`
	Backoff    time.Duration `yaml:"backoff"`
	GCInterval time.Duration `yaml:"gcInterval"`
}

// Default returns the configuration used for missing fields.
func Default() Config {
	return Config{
		Capacity:     2560,
		ArtifactsDir: "artifacts",
		LogLevel:     "info",
		Prover: Prover{
			Workers: 1,
			Timeout: 10 * time.Minute,
			Listen:  "127.0.0.1:7443",
		},
		Nullifier: Nullifier{
			Retries:    3,
			Backoff:    5 * time.Millisecond,
			GCInterval: 10 * time.Minute,
		},
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes data over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Domain = strings.ToLower(strings.TrimSpace(cfg.Domain))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.Domain == "" || strings.ContainsAny(c.Domain, "@ \t") {
		bad("domain %q is not a DNS name", c.Domain)
	}
	if c.Capacity <= 0 {
		bad("capacity %d must be positive", c.Capacity)
	}
	if c.ArtifactsDir == "" {
		bad("artifactsDir is required")
	}
	if _, err := c.Pin(); err != nil {
		bad("programID: %v", err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		bad("logLevel: %v", err)
	}
	if c.Prover.Workers < 1 {
		bad("prover.workers %d must be at least 1", c.Prover.Workers)
	}
	if c.Prover.Timeout < 0 {
		bad("prover.timeout must not be negative")
	}
	if c.Nullifier.TTL < 0 {
		bad("nullifier.ttl must not be negative")
	}
	if c.Nullifier.Retries < 0 {
		bad("nullifier.retries must not be negative")
	}
	for i, rec := range c.TrustedKeys {
		if _, err := auth.ParseKeyRecord(rec); err != nil {
			bad("trustedKeys[%d]: %v", i, err)
		}
	}
	for name, rec := range c.Keys {
		if _, err := auth.ParseKeyRecord(rec); err != nil {
			bad("keys[%s]: %v", name, err)
		}
	}
	return errors.Join(errs...)
}

// Pin returns the pinned program ID, or cid.Undef when none is set.
func (c *Config) Pin() (cid.Cid, error) {
	if c.ProgramID == "" {
		return cid.Undef, nil
	}
	return cid.Decode(c.ProgramID)
}

// Logger builds a logrus logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

// Trusted parses TrustedKeys into moduli.
func (c *Config) Trusted() ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(c.TrustedKeys))
	for _, rec := range c.TrustedKeys {
		n, err := auth.ParseKeyRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// KeyResolver returns a static resolver when Keys is set and DNS otherwise.
func (c *Config) KeyResolver() (auth.KeyResolver, error) {
	if len(c.Keys) == 0 {
		return auth.DNSKeys{}, nil
	}
	keys := make(auth.StaticKeys, len(c.Keys))
	for name, rec := range c.Keys {
		n, err := auth.ParseKeyRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("keys[%s]: %w", name, err)
		}
		keys[strings.ToLower(name)] = n
	}
	return keys, nil
}
