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
	"bytes"

	"github.com/pkg/errors"

	"github.com/packetd/fluxhttp/internal/headername"
	"github.com/packetd/fluxhttp/piece"
	"github.com/packetd/fluxhttp/roll"
)

// ErrMalformedStartLine is returned when a request or status line cannot be
// split into its three whitespace-separated fields.
var ErrMalformedStartLine = errors.New("h1: malformed request/status line")

// ErrMalformedHeaderField is returned when a header line has no ":"
// separator.
var ErrMalformedHeaderField = errors.New("h1: malformed header field")

// RequestLine is the parsed first line of an HTTP/1.1 request.
type RequestLine struct {
	Method  piece.Piece
	Path    piece.Piece
	Version piece.Piece
}

// Header is one parsed "Name: Value" field. Name is looked up against the
// interned header-name table first, falling back to a heap-backed Piece for
// names not in the well-known set.
type Header struct {
	Name  piece.Piece
	Value piece.Piece
}

// HeaderBlock is every header field up to (and not including) the blank
// line that terminates an HTTP/1.1 header section.
type HeaderBlock struct {
	Fields []Header
}

// ParseRequestLine is a parseio.ParseFunc[RequestLine] over buf's front
// line, of the form "METHOD SP request-target SP HTTP-version CRLF".
func ParseRequestLine(buf *roll.RollMut) (RequestLine, int, bool, error) {
	line, consumed, ok := nextCRLFLine(buf)
	if !ok {
		return RequestLine{}, 0, false, nil
	}
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 {
		return RequestLine{}, 0, false, errors.WithStack(ErrMalformedStartLine)
	}
	rl := RequestLine{
		Method:  piece.FromHeap(append([]byte(nil), parts[0]...)),
		Path:    piece.FromHeap(append([]byte(nil), parts[1]...)),
		Version: piece.FromHeap(append([]byte(nil), parts[2]...)),
	}
	return rl, consumed, true, nil
}

// StatusLine is the parsed first line of an HTTP/1.1 response.
type StatusLine struct {
	Version    piece.Piece
	StatusCode int
	Reason     piece.Piece
}

// ParseStatusLine is a parseio.ParseFunc[StatusLine] over buf's front line,
// of the form "HTTP-version SP status-code SP reason-phrase CRLF".
func ParseStatusLine(buf *roll.RollMut) (StatusLine, int, bool, error) {
	line, consumed, ok := nextCRLFLine(buf)
	if !ok {
		return StatusLine{}, 0, false, nil
	}
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) < 2 {
		return StatusLine{}, 0, false, errors.WithStack(ErrMalformedStartLine)
	}
	code, err := parsePositiveInt(parts[1])
	if err != nil {
		return StatusLine{}, 0, false, errors.Wrap(ErrMalformedStartLine, "bad status code")
	}
	sl := StatusLine{
		Version:    piece.FromHeap(append([]byte(nil), parts[0]...)),
		StatusCode: code,
	}
	if len(parts) == 3 {
		sl.Reason = piece.FromHeap(append([]byte(nil), parts[2]...))
	}
	return sl, consumed, true, nil
}

func parsePositiveInt(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, errors.New("empty integer")
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, errors.Errorf("non-digit byte %q", c)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// ParseHeaderBlock is a parseio.ParseFunc[HeaderBlock] that scans forward
// through buf's filled window one CRLF-terminated line at a time, without
// consuming any of it, until it finds the blank line that ends the header
// section. It reports incomplete (ok=false) until that full section is
// buffered, so a single call either yields every header field or none.
func ParseHeaderBlock(buf *roll.RollMut) (HeaderBlock, int, bool, error) {
	var fields []Header
	at := 0
	for {
		line, next, ok := nextCRLFLineAt(buf, at)
		if !ok {
			return HeaderBlock{}, 0, false, nil
		}
		if len(line) == 0 {
			return HeaderBlock{Fields: fields}, next, true, nil
		}
		h, err := parseHeaderField(line)
		if err != nil {
			return HeaderBlock{}, 0, false, err
		}
		fields = append(fields, h)
		at = next
	}
}

func parseHeaderField(line []byte) (Header, error) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return Header{}, errors.WithStack(ErrMalformedHeaderField)
	}
	name := line[:idx]
	value := bytes.TrimSpace(line[idx+1:])

	var namePiece piece.Piece
	if interned, ok := headername.Lookup(name); ok {
		namePiece = interned
	} else {
		namePiece = piece.FromHeap(append([]byte(nil), name...))
	}
	return Header{
		Name:  namePiece,
		Value: piece.FromHeap(append([]byte(nil), value...)),
	}, nil
}
