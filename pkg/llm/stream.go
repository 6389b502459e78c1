package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// StreamState represents where a streaming call is in its lifecycle
type StreamState int

const (
	StreamReceiving StreamState = iota
	StreamDone
	StreamFailed
	StreamCancelled
)

func (s StreamState) String() string {
	switch s {
	case StreamReceiving:
		return "receiving"
	case StreamDone:
		return "done"
	case StreamFailed:
		return "failed"
	case StreamCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ErrStreamClosed is reported when Close interrupts a stream
var ErrStreamClosed = errors.New("stream closed")

// FragmentSource produces the next fragment of a stream.
// It returns io.EOF once the backend signals the end of the stream.
type FragmentSource func() (Fragment, error)

// Stream is a single-pass, pull-based sequence of fragments.
//
// Next advances to the next fragment and reports whether one is available.
// Once Next returns false the stream is in a terminal state, the underlying
// connection has been released and Err reports why it stopped (nil on a clean
// end). Close may be called from another goroutine to abort a stream.
type Stream struct {
	ctx    context.Context
	next   FragmentSource
	body   io.Closer
	closed atomic.Bool
	once   sync.Once

	state   StreamState
	current Fragment
	err     error
}

// NewStream wraps a fragment source bound to ctx. body is closed when the
// stream reaches a terminal state; it may be nil.
func NewStream(ctx context.Context, next FragmentSource, body io.Closer) *Stream {
	return &Stream{
		ctx:   ctx,
		next:  next,
		body:  body,
		state: StreamReceiving,
	}
}

// NewStaticStream returns a stream that yields the given fragments in order
func NewStaticStream(ctx context.Context, fragments ...Fragment) *Stream {
	i := 0
	return NewStream(ctx, func() (Fragment, error) {
		if i >= len(fragments) {
			return Fragment{}, io.EOF
		}
		f := fragments[i]
		i++
		return f, nil
	}, nil)
}

// Next advances the stream. It never reads once a terminal state is reached.
func (s *Stream) Next() bool {
	if s.state != StreamReceiving {
		return false
	}
	if s.closed.Load() {
		s.finish(StreamCancelled, ErrStreamClosed)
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.finish(StreamCancelled, err)
		return false
	}

	frag, err := s.next()
	if err == nil {
		s.current = frag
		return true
	}

	switch {
	case errors.Is(err, io.EOF):
		s.finish(StreamDone, nil)
	case s.ctx.Err() != nil:
		s.finish(StreamCancelled, s.ctx.Err())
	case s.closed.Load():
		s.finish(StreamCancelled, ErrStreamClosed)
	default:
		s.finish(StreamFailed, err)
	}
	return false
}

// Fragment returns the fragment produced by the last successful Next
func (s *Stream) Fragment() Fragment {
	return s.current
}

// Err returns the error that stopped the stream, or nil on a clean end
func (s *Stream) Err() error {
	return s.err
}

// State returns the current lifecycle state
func (s *Stream) State() StreamState {
	return s.state
}

// Close releases the connection. Safe to call multiple times.
func (s *Stream) Close() error {
	s.closed.Store(true)
	return s.release()
}

// Collect drains the stream and returns the concatenated content
func (s *Stream) Collect() (string, error) {
	var sb strings.Builder
	for s.Next() {
		sb.WriteString(s.current.Content)
	}
	return sb.String(), s.err
}

func (s *Stream) finish(state StreamState, err error) {
	s.state = state
	s.err = err
	s.current = Fragment{}
	s.release()
}

func (s *Stream) release() error {
	var err error
	s.once.Do(func() {
		if s.body != nil {
			err = s.body.Close()
		}
	})
	return err
}
