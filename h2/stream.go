// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package h2

import (
	"github.com/pkg/errors"

	"github.com/packetd/fluxhttp/internal/metrics"
	"github.com/packetd/fluxhttp/piece"
)

// StreamState is the per-stream lifecycle state, RFC 7540 §5.1. The
// reserved states for server push are not modeled: this driver never pushes.
type StreamState int

const (
	StreamIdle StreamState = iota
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

// ErrProtocolError is a connection-level error: the peer violated the frame
// state machine in a way that isn't scoped to one stream. The caller should
// respond with GOAWAY.
var ErrProtocolError = errors.New("h2: protocol error")

// ErrStreamClosed is returned when a frame arrives for a stream that no
// longer accepts frames from the peer (half-closed(remote) or Closed); the
// caller should respond with RST_STREAM(STREAM_CLOSED).
var ErrStreamClosed = errors.New("h2: stream closed")

// Stream tracks the server-side view of one HTTP/2 stream.
type Stream struct {
	ID    uint32
	State StreamState

	// headerBlock accumulates HEADERS + CONTINUATION fragments until
	// END_HEADERS is seen.
	headerBlock []byte
	headersDone bool

	Fields []HeaderField

	bodyCh chan piece.Piece
}

// NewStream creates a stream in the Idle state.
func NewStream(id uint32) *Stream {
	return &Stream{ID: id, State: StreamIdle, bodyCh: make(chan piece.Piece, 1)}
}

// OnHeaders transitions Idle -> Open (or stays Open across CONTINUATION) and
// accumulates the header block fragment. endStream marks that no DATA will
// follow; endHeaders marks this as the final fragment of the block.
func (s *Stream) OnHeaders(fragment []byte, endStream, endHeaders bool) error {
	switch s.State {
	case StreamIdle:
		s.State = StreamOpen
	case StreamOpen, StreamHalfClosedLocal:
		// CONTINUATION on an already-open stream, or trailers.
	default:
		return errors.WithStack(ErrStreamClosed)
	}
	s.headerBlock = append(s.headerBlock, fragment...)
	if endHeaders {
		s.headersDone = true
	}
	if endStream {
		s.closeRemote()
	}
	return nil
}

// HeaderBlock returns the accumulated header block once END_HEADERS has
// been seen; ok is false if CONTINUATION is still pending.
func (s *Stream) HeaderBlock() (block []byte, ok bool) {
	return s.headerBlock, s.headersDone
}

// OnData records the arrival of a DATA frame (the caller forwards its
// payload to the body channel) and, if endStream is set, transitions to
// half-closed(remote).
func (s *Stream) OnData(endStream bool) error {
	switch s.State {
	case StreamOpen, StreamHalfClosedLocal:
	default:
		return errors.WithStack(ErrStreamClosed)
	}
	if endStream {
		s.closeRemote()
	}
	return nil
}

func (s *Stream) closeRemote() {
	switch s.State {
	case StreamOpen:
		s.State = StreamHalfClosedRemote
	case StreamHalfClosedLocal:
		s.markClosed()
	}
}

// CloseLocal marks that this server has sent END_STREAM.
func (s *Stream) CloseLocal() {
	switch s.State {
	case StreamOpen:
		s.State = StreamHalfClosedLocal
	case StreamHalfClosedRemote:
		s.markClosed()
	}
}

// Reset forces the stream to Closed, as on RST_STREAM from either side.
func (s *Stream) Reset() {
	if s.State != StreamClosed {
		s.markClosed()
	}
}

// markClosed transitions to Closed and reports it exactly once.
func (s *Stream) markClosed() {
	s.State = StreamClosed
	metrics.H2StreamClosed()
}

// IsClosed reports whether the stream is fully closed.
func (s *Stream) IsClosed() bool { return s.State == StreamClosed }
