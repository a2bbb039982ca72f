// Package stream provides the bounded push streams and lazy pull iterators
// used by the chunk store contract.
//
// Write paths consume a push stream under backpressure: the producer's Send
// blocks whenever the sink has not yet drained the bounded queue, so a
// producer can never outrun the sink. Read paths hand back pull iterators
// that fetch elements lazily and terminate with an explicit error, never by
// silent truncation.
package stream

import (
	"context"
	"sync"

	"github.com/yu-shipit/FiloDB-sub000/internal/errors"
)

// Stream is a bounded, single-producer push stream. The producer feeds
// elements with Send and finishes with Close (exhausted) or Fail (error);
// the consumer drains C and then inspects Err. A consumer that hits an
// unrecoverable error calls Abandon, which unblocks and fails any pending
// or future Send.
//
// Send, Close and Fail must be called from a single producer goroutine.
type Stream[T any] struct {
	ch   chan T
	done chan struct{}

	closeOnce sync.Once
	doneOnce  sync.Once

	mu  sync.Mutex
	err error
}

// New creates a stream whose queue holds at most capacity in-flight
// elements. Capacity bounds, not disables, backpressure: a zero capacity
// makes every Send rendezvous with the consumer.
func New[T any](capacity int) *Stream[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Stream[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// Send queues one element, blocking while the consumer is behind. It
// returns the stream's terminal error if the consumer abandoned the
// stream, or the context error if ctx ends first.
func (s *Stream[T]) Send(ctx context.Context, v T) error {
	select {
	case <-s.done:
		return s.terminalErr()
	default:
	}
	select {
	case s.ch <- v:
		return nil
	case <-s.done:
		return s.terminalErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the stream exhausted. No Send may follow.
func (s *Stream[T]) Close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// Fail terminates the stream with a producer-side error. The consumer
// observes the queued elements, then the closed channel, then err.
func (s *Stream[T]) Fail(err error) {
	s.setErr(err)
	s.Close()
}

// Abandon stops consumption with a consumer-side error. Pending and future
// Send calls unblock and return the error.
func (s *Stream[T]) Abandon(err error) {
	s.setErr(err)
	s.doneOnce.Do(func() { close(s.done) })
}

// C is the consumer's receive channel. It is closed once the producer
// calls Close or Fail; after the range ends the consumer must check Err.
func (s *Stream[T]) C() <-chan T {
	return s.ch
}

// Err returns the stream's terminal error, nil for a cleanly exhausted
// stream.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream[T]) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil && err != nil {
		s.err = err
	}
}

func (s *Stream[T]) terminalErr() error {
	if err := s.Err(); err != nil {
		return err
	}
	return errors.ErrStreamAborted
}

// SendAll feeds every element of a slice and closes the stream, failing it
// with the first Send error. Intended for tests and bulk import paths.
func SendAll[T any](ctx context.Context, s *Stream[T], items []T) error {
	for _, v := range items {
		if err := s.Send(ctx, v); err != nil {
			s.Fail(err)
			return err
		}
	}
	s.Close()
	return nil
}
