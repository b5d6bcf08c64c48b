package prover

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"zkdomain/circuit"
	"zkdomain/witness"
	"zkdomain/zkerr"
)

// Backend runs the circuit. Program is served locally through Local; the
// grpcprover package provides a remote implementation.
type Backend interface {
	Execute(ctx context.Context, w *witness.Witness) (circuit.Public, error)
	Prove(ctx context.Context, w *witness.Witness) (*Proof, error)
	Verify(ctx context.Context, proof, publicOutputs []byte) (bool, error)
}

// Local adapts a Program to Backend. Proving cannot be interrupted, so Local
// runs to completion; Client enforces deadlines and keeps the worker slot
// until the call returns.
type Local struct {
	Program *Program
}

func (l Local) Execute(ctx context.Context, w *witness.Witness) (circuit.Public, error) {
	if err := ctx.Err(); err != nil {
		return circuit.Public{}, err
	}
	return l.Program.Execute(w)
}

func (l Local) Prove(ctx context.Context, w *witness.Witness) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.Program.Prove(w)
}

func (l Local) Verify(ctx context.Context, proof, publicOutputs []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return l.Program.Verify(proof, publicOutputs), nil
}

type outcome[T any] struct {
	v   T
	err error
}

// run calls fn on a worker slot. The slot is released when fn returns, not
// when ctx is done, so abandoned calls still count against Workers.
func run[T any](c *Client, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := c.acquire(ctx); err != nil {
		return zero, err
	}
	done := make(chan outcome[T], 1)
	go func() {
		defer c.pool.Release(1)
		v, err := fn(ctx)
		done <- outcome[T]{v, err}
	}()
	select {
	case r := <-done:
		return r.v, classify(r.err)
	case <-ctx.Done():
		return zero, zkerr.Wrap(zkerr.KindProver, ctx.Err(), "prover did not answer in time")
	}
}

// ClientConfig bounds the work a Client admits.
type ClientConfig struct {
	// Workers caps concurrent Execute and Prove calls.
	Workers int
	// Timeout applies to each call; zero means no timeout.
	Timeout time.Duration
}

// Client is the proof client used by the pipeline. Concurrent Prove calls
// share a fixed pool of workers; each call is independent.
type Client struct {
	backend Backend
	pool    *semaphore.Weighted
	timeout time.Duration
	log     *logrus.Logger
}

// NewClient wraps backend. Workers below one are treated as one.
func NewClient(backend Backend, cfg ClientConfig, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Client{
		backend: backend,
		pool:    semaphore.NewWeighted(int64(cfg.Workers)),
		timeout: cfg.Timeout,
		log:     logger,
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// acquire waits for a worker slot. Running out of time while waiting is a
// KindProver error.
func (c *Client) acquire(ctx context.Context) error {
	if err := c.pool.Acquire(ctx, 1); err != nil {
		return zkerr.Wrap(zkerr.KindProver, err, "no prover worker available")
	}
	return nil
}

// classify keeps circuit and input errors as they are and turns everything
// else, timeouts included, into KindProver.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var zerr *zkerr.Error
	if errors.As(err, &zerr) {
		return err
	}
	return zkerr.Wrap(zkerr.KindProver, err, "prover backend failed")
}

// Execute runs the circuit on w without proving.
func (c *Client) Execute(ctx context.Context, w *witness.Witness) (circuit.Public, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return run(c, ctx, func(ctx context.Context) (circuit.Public, error) {
		return c.backend.Execute(ctx, w)
	})
}

// Prove executes the circuit on w and returns a proof with its public
// outputs.
func (c *Client) Prove(ctx context.Context, w *witness.Witness) (*Proof, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	proof, err := run(c, ctx, func(ctx context.Context) (*Proof, error) {
		return c.backend.Prove(ctx, w)
	})
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"kind":  zkerr.KindOf(err),
			"class": zkerr.ClassOf(err),
		}).WithError(err).Warn("proving failed")
		return nil, err
	}
	c.log.WithField("elapsed", time.Since(start)).Info("proof generated")
	return proof, nil
}

// Verify reports whether proof attests to publicOutputs. Backend failures
// verify as false.
func (c *Client) Verify(ctx context.Context, proof, publicOutputs []byte) bool {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	ok, err := c.backend.Verify(ctx, proof, publicOutputs)
	if err != nil {
		c.log.WithError(err).Warn("verification failed to run")
		return false
	}
	return ok
}
