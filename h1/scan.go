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

	"github.com/packetd/fluxhttp/roll"
)

// maxStitchedLine bounds how many bytes, first segment included,
// nextCRLFLineAt will copy into its scratch buffer when a line straddles a
// block boundary. Request lines, header lines and chunk-size lines are all short;
// this only exists to cap pathological input.
const maxStitchedLine = 8192

// nextCRLFLine looks for a CRLF-terminated line at the front of buf's
// filled window. ok is false when no full line is buffered yet.
func nextCRLFLine(buf *roll.RollMut) (line []byte, consumed int, ok bool) {
	return nextCRLFLineAt(buf, 0)
}

// nextCRLFLineAt looks for a CRLF-terminated line starting at offset at
// (relative to buf's filled window). next is the offset, also relative to
// the filled window, just past the terminating CRLF. Unlike
// roll.RollMut.ContiguousRange, this can see across block boundaries by
// copying the straddling prefix into a scratch buffer once a line is found
// not to fit in a single block; the common case where it does fit is still
// zero-copy.
func nextCRLFLineAt(buf *roll.RollMut, at int) (line []byte, next int, ok bool) {
	seg := buf.ContiguousRange(at)
	if idx := indexCRLF(seg); idx >= 0 {
		return seg[:idx], at + idx + 2, true
	}
	if buf.Len() <= at+len(seg) {
		return nil, 0, false
	}

	stitched := make([]byte, 0, maxStitchedLine)
	stitched = append(stitched, seg...)
	pos := at + len(seg)
	for pos < buf.Len() && len(stitched) < maxStitchedLine {
		more := buf.ContiguousRange(pos)
		if len(more) == 0 {
			break
		}
		stitched = append(stitched, more...)
		pos += len(more)
		if idx := indexCRLF(stitched); idx >= 0 {
			return stitched[:idx], at + idx + 2, true
		}
	}
	return nil, 0, false
}

// indexCRLF returns the index of the first "\r\n" in b, or -1. Every request
// line, header line and chunk-size line in this codec is CRLF-delimited,
// RFC 9112 §2.2.
func indexCRLF(b []byte) int {
	return bytes.Index(b, []byte("\r\n"))
}
