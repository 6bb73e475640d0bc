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

import "github.com/packetd/fluxhttp/piece"

// EventKind discriminates the Event union exchanged between the read and
// write loops over the connection's internal channel.
type EventKind int

const (
	EventInitialSettings EventKind = iota
	EventSettingsAck
	EventHeaders
	EventData
	EventRSTStream
	EventGoAway
	EventWindowUpdate
	EventPingAck
	EventConnectionClosed
)

// Event is the message passed from the read loop to the write loop. The
// read loop owns ConnState; the write loop takes what it writes from the
// fields of the Event it receives and touches ConnState only for its
// stateless HPACK encoder, per the message-passing discipline this driver
// follows instead of shared mutation.
type Event struct {
	Kind     EventKind
	StreamID uint32

	StatusCode int
	Headers    []HeaderField
	EndStream  bool

	Data piece.Piece

	ErrorCode    uint32
	LastStreamID uint32
	DebugData    []byte

	PingPayload [8]byte

	WindowIncrement uint32

	// Settings carries the locally-announced settings for EventInitialSettings.
	Settings Settings

	Err error // set on EventConnectionClosed when the closure was an error
}

// HTTP/2 error codes, RFC 7540 §7.
const (
	ErrCodeNoError            uint32 = 0x0
	ErrCodeProtocolError      uint32 = 0x1
	ErrCodeInternalError      uint32 = 0x2
	ErrCodeFlowControlError   uint32 = 0x3
	ErrCodeSettingsTimeout    uint32 = 0x4
	ErrCodeStreamClosed       uint32 = 0x5
	ErrCodeFrameSizeError     uint32 = 0x6
	ErrCodeRefusedStream      uint32 = 0x7
	ErrCodeCancel             uint32 = 0x8
	ErrCodeCompressionError   uint32 = 0x9
	ErrCodeConnectError       uint32 = 0xa
	ErrCodeEnhanceYourCalm    uint32 = 0xb
	ErrCodeInadequateSecurity uint32 = 0xc
	ErrCodeHTTP11Required     uint32 = 0xd
)
