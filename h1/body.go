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

// Package h1 实现 HTTP/1.1 的报文体编解码：content-length 定长体与
// chunked 传输编码 以及请求行/状态行/头部的解析
package h1

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/packetd/fluxhttp/piece"
	"github.com/packetd/fluxhttp/roll"
)

// BodyMode selects how a Body's bytes are delimited on the wire.
type BodyMode int

const (
	// ModeNone means the message has no body (HEAD responses, 204/304,
	// responses to CONNECT, etc).
	ModeNone BodyMode = iota
	// ModeContentLength means the body is exactly a known number of bytes.
	ModeContentLength
	// ModeChunked means the body is delimited by chunked transfer-coding.
	ModeChunked
)

// ErrShortBody is returned when the source reaches EOF before a
// content-length body has delivered all of its declared bytes.
var ErrShortBody = errors.New("h1: connection closed before content-length body was fully read")

// ErrMalformedChunk is returned for a syntactically invalid chunk-size line
// or a chunk whose trailing CRLF is missing.
var ErrMalformedChunk = errors.New("h1: malformed chunk encoding")

type chunkPhase int

const (
	phaseSize chunkPhase = iota
	phaseData
	phaseDataCRLF
	phaseTrailer
	phaseDone
)

// Body streams a request or response body out of buf/src, one piece at a
// time, following the delimiting rule selected by mode.
type Body struct {
	mode      BodyMode
	buf       *roll.RollMut
	src       roll.Source
	done      bool
	remaining int64 // ModeContentLength: bytes left to deliver

	phase          chunkPhase // ModeChunked
	chunkRemaining int64
}

// NewEmptyBody returns a Body that yields no data, for messages with no
// body at all.
func NewEmptyBody() *Body {
	return &Body{mode: ModeNone, done: true}
}

// NewContentLengthBody returns a Body that reads exactly length bytes.
func NewContentLengthBody(buf *roll.RollMut, src roll.Source, length int64) *Body {
	b := &Body{mode: ModeContentLength, buf: buf, src: src, remaining: length}
	if length == 0 {
		b.done = true
	}
	return b
}

// NewChunkedBody returns a Body that decodes chunked transfer-coding.
func NewChunkedBody(buf *roll.RollMut, src roll.Source) *Body {
	return &Body{mode: ModeChunked, buf: buf, src: src, phase: phaseSize}
}

// Mode reports which delimiting rule this Body uses.
func (b *Body) Mode() BodyMode { return b.mode }

// Done reports whether the body has been fully consumed.
func (b *Body) Done() bool { return b.done }

// Next returns the next chunk of body bytes. A zero-length piece with a nil
// error signals the body is exhausted.
func (b *Body) Next(ctx context.Context) (piece.Piece, error) {
	if b.done {
		return piece.Piece{}, nil
	}
	switch b.mode {
	case ModeNone:
		b.done = true
		return piece.Piece{}, nil
	case ModeContentLength:
		return b.nextContentLength(ctx)
	case ModeChunked:
		return b.nextChunked(ctx)
	default:
		return piece.Piece{}, errors.Errorf("h1: unknown body mode %d", b.mode)
	}
}

// fill always issues one more read, appending whatever arrives to buf. It is
// used by the chunk-size/CRLF/trailer line scanners, which call it exactly
// when their parse attempt found an incomplete (but possibly non-empty)
// buffered prefix.
func (b *Body) fill(ctx context.Context, want int) error {
	n, err := b.buf.ReadInto(ctx, want, b.src)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.WithStack(ErrShortBody)
	}
	return nil
}

// fillIfEmpty reads more only when buf is currently drained. It is used by
// the content-length and chunk-data paths, which pull fixed-size spans out
// of whatever is already buffered before asking for more.
func (b *Body) fillIfEmpty(ctx context.Context, want int) error {
	if !b.buf.IsEmpty() {
		return nil
	}
	return b.fill(ctx, want)
}

func (b *Body) nextContentLength(ctx context.Context) (piece.Piece, error) {
	if b.remaining == 0 {
		b.done = true
		return piece.Piece{}, nil
	}
	want := b.remaining
	if cap := int64(b.buf.Cap()); cap > 0 && cap < want {
		want = cap
	}
	if err := b.fillIfEmpty(ctx, int(want)); err != nil {
		return piece.Piece{}, err
	}
	take := b.remaining
	if int64(b.buf.Len()) < take {
		take = int64(b.buf.Len())
	}
	r, ok := b.buf.TakeAtMost(int(take))
	if !ok {
		return piece.Piece{}, errors.WithStack(ErrShortBody)
	}
	b.remaining -= int64(r.Len())
	if b.remaining == 0 {
		b.done = true
	}
	return piece.FromRoll(r), nil
}

func (b *Body) nextChunked(ctx context.Context) (piece.Piece, error) {
	for {
		switch b.phase {
		case phaseSize:
			line, consumed, ok, err := parseChunkSizeLine(b.buf)
			if err != nil {
				return piece.Piece{}, err
			}
			if !ok {
				if err := b.fill(ctx, 4096); err != nil {
					return piece.Piece{}, err
				}
				continue
			}
			b.buf.Keep(b.buf.Len() - consumed)
			if line == 0 {
				b.phase = phaseTrailer
				continue
			}
			b.chunkRemaining = line
			b.phase = phaseData

		case phaseData:
			if b.chunkRemaining == 0 {
				b.phase = phaseDataCRLF
				continue
			}
			want := b.chunkRemaining
			if cap := int64(b.buf.Cap()); cap > 0 && cap < want {
				want = cap
			}
			if err := b.fillIfEmpty(ctx, int(want)); err != nil {
				return piece.Piece{}, err
			}
			take := b.chunkRemaining
			if int64(b.buf.Len()) < take {
				take = int64(b.buf.Len())
			}
			r, ok := b.buf.TakeAtMost(int(take))
			if !ok {
				return piece.Piece{}, errors.WithStack(ErrMalformedChunk)
			}
			b.chunkRemaining -= int64(r.Len())
			return piece.FromRoll(r), nil

		case phaseDataCRLF:
			line, consumed, ok, err := nextCRLFLineAsString(b.buf)
			if err != nil {
				return piece.Piece{}, err
			}
			if !ok {
				if err := b.fill(ctx, 2); err != nil {
					return piece.Piece{}, err
				}
				continue
			}
			if line != "" {
				return piece.Piece{}, errors.WithStack(ErrMalformedChunk)
			}
			b.buf.Keep(b.buf.Len() - consumed)
			b.phase = phaseSize

		case phaseTrailer:
			line, consumed, ok, err := nextCRLFLineAsString(b.buf)
			if err != nil {
				return piece.Piece{}, err
			}
			if !ok {
				if err := b.fill(ctx, 4096); err != nil {
					return piece.Piece{}, err
				}
				continue
			}
			b.buf.Keep(b.buf.Len() - consumed)
			if line == "" {
				b.phase = phaseDone
				b.done = true
				return piece.Piece{}, nil
			}
			// trailer header lines are discarded; nothing in this codec
			// surfaces trailers to the driver today.

		case phaseDone:
			b.done = true
			return piece.Piece{}, nil
		}
	}
}

func nextCRLFLineAsString(buf *roll.RollMut) (string, int, bool, error) {
	line, consumed, ok := nextCRLFLine(buf)
	if !ok {
		return "", 0, false, nil
	}
	return string(line), consumed, true, nil
}

// parseChunkSizeLine parses a "<hex-size>[;ext...]\r\n" line. It returns
// ok=false (not an error) when the line isn't fully buffered yet.
func parseChunkSizeLine(buf *roll.RollMut) (int64, int, bool, error) {
	line, consumed, ok := nextCRLFLine(buf)
	if !ok {
		return 0, 0, false, nil
	}
	hexPart := line
	for i, c := range line {
		if c == ';' {
			hexPart = line[:i]
			break
		}
	}
	size, err := strconv.ParseInt(string(hexPart), 16, 64)
	if err != nil || size < 0 {
		return 0, 0, false, errors.Wrap(ErrMalformedChunk, "invalid chunk size")
	}
	return size, consumed, true, nil
}
