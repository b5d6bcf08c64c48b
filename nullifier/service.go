package nullifier

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"zkdomain/commit"
	"zkdomain/zkerr"
)

// Status is the outcome of a registration.
type Status int

const (
	Accepted Status = iota
	AlreadyExists
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "Accepted"
	case AlreadyExists:
		return "AlreadyExists"
	default:
		return "Unknown"
	}
}

// Config tunes registration.
type Config struct {
	// TTL applies when Register is called with a zero ttl. Zero keeps
	// nullifiers forever.
	TTL time.Duration
	// Retries bounds extra attempts after a write conflict.
	Retries int
	// Backoff is the first retry delay; it doubles on each attempt.
	Backoff time.Duration
}

// Service derives and registers nullifiers.
type Service struct {
	store Store
	cfg   Config
	now   func() time.Time
	log   *logrus.Logger
}

// NewService wraps store. now may be nil.
func NewService(store Store, cfg Config, now func() time.Time, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if now == nil {
		now = time.Now
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Millisecond
	}
	return &Service{store: store, cfg: cfg, now: now, log: logger}
}

// Derive computes the nullifier for a session commitment in a context.
func (s *Service) Derive(session, contextKey commit.Digest) (commit.Digest, error) {
	n, err := commit.Nullifier(session, contextKey)
	if err != nil {
		return commit.Digest{}, zkerr.Wrap(zkerr.KindHash, err, "derive nullifier")
	}
	return n, nil
}

// Register records nullifier once. A nullifier already present and not yet
// expired is AlreadyExists. Write conflicts are retried with exponential
// backoff; any other store failure, or running out of retries, is a
// KindStore error and the caller must reject.
func (s *Service) Register(ctx context.Context, nullifier, contextKey commit.Digest, metadata []byte, ttl time.Duration) (Status, error) {
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}
	now := s.now()
	rec := Record{Context: contextKey, Metadata: metadata, CreatedAt: now}
	if ttl > 0 {
		rec.ExpiresAt = now.Add(ttl)
	}
	log := s.log.WithField("nullifier", nullifier.Hex())

	delay := s.cfg.Backoff
	for attempt := 0; ; attempt++ {
		inserted, err := s.store.InsertIfAbsent(ctx, nullifier, rec, ttl)
		switch {
		case err == nil && inserted:
			log.Debug("nullifier accepted")
			return Accepted, nil
		case err == nil:
			log.Info("nullifier already registered")
			return AlreadyExists, nil
		case !errors.Is(err, ErrConflict):
			log.WithError(err).Error("nullifier store failed")
			return AlreadyExists, zkerr.Wrap(zkerr.KindStore, err, "register nullifier")
		case attempt >= s.cfg.Retries:
			log.WithError(err).Error("nullifier store kept conflicting")
			return AlreadyExists, zkerr.Wrap(zkerr.KindStore, err, "register nullifier after %d attempts", attempt+1)
		}

		log.WithField("attempt", attempt+1).Debug("write conflict, retrying")
		select {
		case <-ctx.Done():
			return AlreadyExists, zkerr.Wrap(zkerr.KindStore, ctx.Err(), "register nullifier")
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// Lookup returns the stored record, or ErrNotFound.
func (s *Service) Lookup(ctx context.Context, nullifier commit.Digest) (*Record, error) {
	return s.store.Get(ctx, nullifier)
}
