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
)

// ErrRefusedStream is returned when a HEADERS frame would open a stream
// beyond max_concurrent_streams; the caller should respond with
// RST_STREAM(REFUSED_STREAM) rather than failing the whole connection.
var ErrRefusedStream = errors.New("h2: refused stream, max_concurrent_streams reached")

// ConnState is the per-connection HTTP/2 state. Only the read loop mutates
// it; the write loop receives settings as copies in event payloads (see
// events.go) and uses ConnState only for its stateless HPACK encoder, per
// the single-threaded cooperative discipline this driver follows.
type ConnState struct {
	LocalSettings Settings
	PeerSettings  Settings

	streams        map[uint32]*Stream
	highestPeerID  uint32
	nextLocalID    uint32
	goAwaySent     bool
	goAwayReceived bool

	decoder *Decoder
	encoder *Encoder
}

// NewConnState creates connection state with the given locally-announced
// settings; peer settings start at the protocol defaults until a SETTINGS
// frame updates them.
func NewConnState(local Settings) *ConnState {
	return &ConnState{
		LocalSettings: local,
		PeerSettings:  DefaultSettings(),
		streams:       make(map[uint32]*Stream),
		nextLocalID:   2, // server-initiated streams are even; unused unless pushing
		decoder:       NewDecoder(),
		encoder:       NewEncoder(),
	}
}

// Close releases the HPACK decoding context.
func (c *ConnState) Close() {
	c.decoder.Release()
}

// Stream returns the stream registered for id, if any. It never creates a
// stream; OpenStream does that.
func (c *ConnState) Stream(id uint32) (*Stream, bool) {
	s, ok := c.streams[id]
	return s, ok
}

// OpenStream validates and registers a new client-initiated stream.
// isNewStream is false (with a nil error) if id refers to an existing
// stream — callers should route the frame to it instead of treating this as
// stream creation.
func (c *ConnState) OpenStream(id uint32) (stream *Stream, isNewStream bool, err error) {
	if s, ok := c.streams[id]; ok {
		return s, false, nil
	}
	if id%2 == 0 || id <= c.highestPeerID {
		return nil, false, ErrProtocolError
	}
	if uint32(c.ActiveStreamCount()) >= c.LocalSettings.MaxConcurrentStreams {
		return nil, true, ErrRefusedStream
	}
	s := NewStream(id)
	c.streams[id] = s
	c.highestPeerID = id
	metrics.H2StreamOpened()
	return s, true, nil
}

// ActiveStreamCount returns the number of streams not yet fully Closed.
func (c *ConnState) ActiveStreamCount() int {
	n := 0
	for _, s := range c.streams {
		if !s.IsClosed() {
			n++
		}
	}
	return n
}

// HighestPeerStreamID returns the highest client stream id opened so far,
// for use in a GOAWAY frame.
func (c *ConnState) HighestPeerStreamID() uint32 { return c.highestPeerID }

// MarkGoAwaySent/MarkGoAwayReceived record one-shot GOAWAY bookkeeping.
func (c *ConnState) MarkGoAwaySent()     { c.goAwaySent = true }
func (c *ConnState) MarkGoAwayReceived() { c.goAwayReceived = true }
func (c *ConnState) GoAwaySent() bool    { return c.goAwaySent }
