// Package header precomputes the SHA-256 state of a header prefix so that
// only a bounded suffix has to be hashed inside the circuit.
package header

import (
	"sync"

	"github.com/sirupsen/logrus"

	"zkdomain/message"
	"zkdomain/zkerr"
)

// Result is the outcome of Split. Remainder aliases the input header.
type Result struct {
	State           State
	Remainder       []byte
	TotalLength     int
	PrehashedLength int
}

// RemainderLength is the logical length of the remainder buffer.
func (r *Result) RemainderLength() int { return r.TotalLength - r.PrehashedLength }

// Splitter is safe for concurrent use; it holds no mutable state.
type Splitter struct {
	compressor Compressor
	log        *logrus.Logger
}

// NewSplitter probes the available compression strategies once and keeps
// the selected one for every later call.
func NewSplitter(logger *logrus.Logger) *Splitter {
	return NewSplitterWith(Probe(Accelerated()...), logger)
}

// NewSplitterWith uses c without probing.
func NewSplitterWith(c Compressor, logger *logrus.Logger) *Splitter {
	if logger == nil {
		logger = logrus.New()
	}
	logger.WithField("strategy", c.Name()).Debug("sha256 compression strategy selected")
	return &Splitter{compressor: c, log: logger}
}

// Strategy names the compression strategy in use.
func (s *Splitter) Strategy() string { return s.compressor.Name() }

var defaultSplitter = sync.OnceValue(func() *Splitter { return NewSplitter(nil) })

// Split runs the process-wide default Splitter.
func Split(header []byte, capacity int) (*Result, error) {
	return defaultSplitter().Split(header, capacity)
}

// Split hashes the longest block-aligned prefix of header that still leaves
// the sender header inside the remainder, and leaves at most capacity bytes.
func (s *Splitter) Split(header []byte, capacity int) (*Result, error) {
	if capacity <= 0 {
		return nil, zkerr.New(zkerr.KindMalformed, "capacity must be positive, got %d", capacity)
	}
	senderStart := message.FieldStart(header, message.SenderField)
	if senderStart < 0 {
		return nil, zkerr.New(zkerr.KindNotFound, "no sender header in message")
	}

	total := len(header)
	if total <= capacity {
		return &Result{State: InitialState, Remainder: header, TotalLength: total}, nil
	}

	minSplit := total - capacity
	split := (senderStart / BlockSize) * BlockSize
	if split < minSplit {
		// Any block boundary at or past minSplit lies beyond senderStart, so
		// the sender header would be hashed away.
		return nil, zkerr.New(zkerr.KindCapacity,
			"header of %d bytes needs a split at or after %d but the sender header starts at %d (capacity %d)",
			total, minSplit, senderStart, capacity)
	}

	st, err := s.compressor.Compress(header[:split])
	if err != nil {
		return nil, zkerr.Wrap(zkerr.KindHash, err, "compress header prefix")
	}

	s.log.WithFields(logrus.Fields{
		"total":     total,
		"prehashed": split,
		"remainder": total - split,
		"capacity":  capacity,
	}).Debug("header split")

	return &Result{
		State:           st,
		Remainder:       header[split:],
		TotalLength:     total,
		PrehashedLength: split,
	}, nil
}
