package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"math/big"
	"net"
	"strings"

	"zkdomain/zkerr"
)

// KeyResolver finds the RSA modulus a domain signs with under selector.
type KeyResolver interface {
	LookupKey(ctx context.Context, domain, selector string) (*big.Int, error)
}

// KeyName is the DNS name of a DKIM key record.
func KeyName(domain, selector string) string {
	return strings.ToLower(selector + "._domainkey." + domain)
}

// StaticKeys resolves from a fixed map keyed by KeyName.
type StaticKeys map[string]*big.Int

func (s StaticKeys) LookupKey(_ context.Context, domain, selector string) (*big.Int, error) {
	n, ok := s[KeyName(domain, selector)]
	if !ok {
		return nil, zkerr.New(zkerr.KindNotFound, "no key for %s", KeyName(domain, selector))
	}
	return n, nil
}

// DNSKeys resolves DKIM key records over DNS.
type DNSKeys struct {
	Resolver *net.Resolver
}

func (d DNSKeys) LookupKey(ctx context.Context, domain, selector string) (*big.Int, error) {
	r := d.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	txts, err := r.LookupTXT(ctx, KeyName(domain, selector))
	if err != nil {
		return nil, zkerr.Wrap(zkerr.KindNotFound, err, "lookup %s", KeyName(domain, selector))
	}
	// long records arrive split into several strings
	return ParseKeyRecord(strings.Join(txts, ""))
}

// ParseKeyRecord extracts the RSA modulus from a DKIM key record such as
// "v=DKIM1; k=rsa; p=MIIBIjAN...".
func ParseKeyRecord(record string) (*big.Int, error) {
	tags := map[string]string{}
	for _, part := range strings.Split(record, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		tags[strings.TrimSpace(name)] = strings.Join(strings.Fields(value), "")
	}
	if k, ok := tags["k"]; ok && k != "rsa" {
		return nil, zkerr.New(zkerr.KindMalformed, "unsupported key type %q", k)
	}
	p := tags["p"]
	if p == "" {
		return nil, zkerr.New(zkerr.KindMalformed, "key record has no public key (revoked?)")
	}
	der, err := base64.StdEncoding.DecodeString(p)
	if err != nil {
		return nil, zkerr.Wrap(zkerr.KindMalformed, err, "decode key record")
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		if rsaPub, rerr := x509.ParsePKCS1PublicKey(der); rerr == nil {
			return rsaPub.N, nil
		}
		return nil, zkerr.Wrap(zkerr.KindMalformed, err, "parse key record")
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, zkerr.New(zkerr.KindMalformed, "key record holds %T, not RSA", pub)
	}
	return rsaPub.N, nil
}

// FormatKeyRecord renders n (with exponent 65537) as a DKIM key record.
func FormatKeyRecord(n *big.Int) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&rsa.PublicKey{N: n, E: 65537})
	if err != nil {
		return "", fmt.Errorf("marshal key: %w", err)
	}
	return "v=DKIM1; k=rsa; p=" + base64.StdEncoding.EncodeToString(der), nil
}
