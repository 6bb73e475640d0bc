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

package h1

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/packetd/fluxhttp/ownedio"
	"github.com/packetd/fluxhttp/piece"
	"github.com/packetd/fluxhttp/roll"
)

// WriteMode mirrors BodyMode for the write side: it governs how
// WriteBodyChunk frames each chunk on the wire.
type WriteMode int

const (
	WriteModeEmpty WriteMode = iota
	WriteModeContentLength
	WriteModeChunked
)

var crlf = []byte("\r\n")
var finalChunk = []byte("0\r\n\r\n")

// ErrWriteChunkWhenNone is returned when WriteBodyChunk is called against
// WriteModeEmpty: a message declared to have no body must not write one.
var ErrWriteChunkWhenNone = errors.New("h1: write_body_chunk called with no body expected")

// WriteBodyChunk writes one body chunk according to mode, framing it as a
// chunked-encoding segment, a bare content-length span, or rejecting it
// outright for WriteModeEmpty.
func WriteBodyChunk(ctx context.Context, w ownedio.WriteOwned, mode WriteMode, p piece.Piece) error {
	switch mode {
	case WriteModeEmpty:
		p.Release()
		return errors.WithStack(ErrWriteChunkWhenNone)
	case WriteModeContentLength:
		if p.IsEmpty() {
			return nil
		}
		list := piece.NewList()
		list.PushBack(p)
		return ownedio.WritevAll(ctx, w, list)
	case WriteModeChunked:
		return writeChunkedSegment(ctx, w, p)
	default:
		return errors.Errorf("h1: unknown write mode %d", mode)
	}
}

func writeChunkedSegment(ctx context.Context, w ownedio.WriteOwned, p piece.Piece) error {
	if p.IsEmpty() {
		return nil
	}
	header := piece.FromHeap(append([]byte(strconv.FormatInt(int64(p.Len()), 16)), crlf...))
	list := piece.NewList()
	list.PushBack(header)
	list.PushBack(p)
	list.PushBack(piece.FromStatic(crlf))
	return ownedio.WritevAll(ctx, w, list)
}

// WriteBodyEnd writes the terminator for the given mode: the zero-length
// final chunk for WriteModeChunked, nothing otherwise.
func WriteBodyEnd(ctx context.Context, w ownedio.WriteOwned, mode WriteMode) error {
	if mode != WriteModeChunked {
		return nil
	}
	list := piece.NewList()
	list.PushBack(piece.FromStatic(finalChunk))
	return ownedio.WritevAll(ctx, w, list)
}

// IntoInner releases the Body's hold on its read buffer and transport so
// the connection can reuse both for the next H1 request on the same
// keep-alive connection.
func (b *Body) IntoInner() (*roll.RollMut, roll.Source) {
	return b.buf, b.src
}
