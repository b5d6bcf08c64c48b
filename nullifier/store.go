// Package nullifier records spent nullifiers so each (email, context) pair
// is accepted at most once.
package nullifier

import (
	"context"
	"errors"
	"time"

	"github.com/fxamacker/cbor/v2"

	"zkdomain/commit"
)

// ErrConflict marks a transient store failure caused by a concurrent writer.
// The Service retries it; any other store error fails closed.
var ErrConflict = errors.New("nullifier: concurrent write conflict")

// Record is the stored value for a nullifier.
type Record struct {
	Context   commit.Digest `cbor:"1,keyasint"`
	Metadata  []byte        `cbor:"2,keyasint,omitempty"`
	CreatedAt time.Time     `cbor:"3,keyasint"`
	ExpiresAt time.Time     `cbor:"4,keyasint"`
}

// Expired reports whether the record has a deadline at or before now.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Store persists nullifiers. InsertIfAbsent must be a single atomic
// compare-and-insert: of any number of concurrent calls for one key, exactly
// one reports inserted. A zero ttl never expires.
type Store interface {
	InsertIfAbsent(ctx context.Context, key commit.Digest, rec Record, ttl time.Duration) (inserted bool, err error)
	Get(ctx context.Context, key commit.Digest) (*Record, error)
	Close() error
}

// ErrNotFound is returned by Get for absent or expired keys.
var ErrNotFound = errors.New("nullifier: not found")

var encMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func encodeRecord(r Record) ([]byte, error) { return encMode.Marshal(r) }

func decodeRecord(b []byte) (*Record, error) {
	var r Record
	if err := cbor.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
