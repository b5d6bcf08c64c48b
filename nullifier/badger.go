package nullifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"zkdomain/commit"
)

var keyPrefix = []byte("nullifier/")

var errExists = errors.New("nullifier exists")

// BadgerStore keeps nullifiers in Badger. Expiry uses Badger entry TTLs,
// which have one-second granularity.
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Logger
}

// OpenBadger opens (or creates) a store at dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir string, logger *logrus.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, log: logger}, nil
}

func storeKey(key commit.Digest) []byte {
	return append(append([]byte(nil), keyPrefix...), key[:]...)
}

func (s *BadgerStore) InsertIfAbsent(ctx context.Context, key commit.Digest, rec Record, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	val, err := encodeRecord(rec)
	if err != nil {
		return false, fmt.Errorf("encode record: %w", err)
	}
	k := storeKey(key)

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		switch {
		case err == nil:
			return errExists
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		e := badger.NewEntry(k, val)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errExists):
		return false, nil
	case errors.Is(err, badger.ErrConflict):
		return false, ErrConflict
	default:
		return false, err
	}
}

func (s *BadgerStore) Get(ctx context.Context, key commit.Digest) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec, err = decodeRecord(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return rec, err
}

// RunGC collects the value log every interval until ctx is done.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				err := s.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
					s.log.WithError(err).Warn("nullifier store garbage collection failed")
				}
				break
			}
		}
	}
}

func (s *BadgerStore) Close() error { return s.db.Close() }

// badgerLogger routes Badger's chatter through logrus at debug level, keeping
// warnings and errors visible.
type badgerLogger struct{ l *logrus.Logger }

func (b badgerLogger) Errorf(f string, args ...interface{})   { b.l.Errorf("badger: "+f, args...) }
func (b badgerLogger) Warningf(f string, args ...interface{}) { b.l.Warnf("badger: "+f, args...) }
func (b badgerLogger) Infof(f string, args ...interface{})    { b.l.Debugf("badger: "+f, args...) }
func (b badgerLogger) Debugf(f string, args ...interface{})   { b.l.Debugf("badger: "+f, args...) }
