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
	fasthttp2 "github.com/dgrr/http2"
)

// HeaderField is one decoded name/value pair.
type HeaderField struct {
	Name  string
	Value string
}

// Decoder wraps a per-connection HPACK decoding context. It is not safe for
// concurrent use: a connection's streams must share one Decoder serially,
// since HPACK's dynamic table is connection-scoped.
type Decoder struct {
	hp *fasthttp2.HPACK
}

// NewDecoder acquires an HPACK decoding context from the shared pool.
func NewDecoder() *Decoder {
	return &Decoder{hp: fasthttp2.AcquireHPACK()}
}

// Release returns the decoding context to the pool. The Decoder must not be
// used afterwards.
func (d *Decoder) Release() {
	d.hp.Reset()
	fasthttp2.ReleaseHPACK(d.hp)
}

// DecodeAll decodes every header field in a header block fragment. The
// caller must have already reassembled CONTINUATION frames into one
// contiguous block before calling this.
func (d *Decoder) DecodeAll(block []byte) ([]HeaderField, error) {
	var fields []HeaderField
	field := &fasthttp2.HeaderField{}
	buf := block
	for len(buf) > 0 {
		field.Reset()
		rest, err := d.hp.Next(field, buf)
		if err != nil {
			return nil, err
		}
		buf = rest
		fields = append(fields, HeaderField{Name: field.Key(), Value: field.Value()})
	}
	return fields, nil
}

// Encoder serializes header fields using HPACK's "literal header field
// without indexing, new name" representation (RFC 7541 §6.2.2), with
// Huffman coding disabled. It never touches the dynamic table, so it always
// produces decodable output regardless of peer table state, at the cost of
// the compression ratio a stateful encoder would get. dgrr/http2 only
// exposes a confirmed decode path in this codebase's dependency surface, so
// the encode side is hand-rolled rather than guessed at.
type Encoder struct{}

// NewEncoder returns a stateless Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// AppendHeader appends the HPACK-encoded representation of name/value to
// dst and returns the extended slice.
func (e *Encoder) AppendHeader(dst []byte, name, value string) []byte {
	dst = append(dst, 0x00) // literal, without indexing, new name
	dst = appendHPACKString(dst, name)
	dst = appendHPACKString(dst, value)
	return dst
}

func appendHPACKString(dst []byte, s string) []byte {
	dst = appendHPACKInt(dst, 7, 0, uint64(len(s)))
	return append(dst, s...)
}

// appendHPACKInt appends v, HPACK-integer-encoded with an N-bit prefix, with
// the high (8-N) bits of the first byte set to flags (e.g. the Huffman bit).
func appendHPACKInt(dst []byte, n uint8, flags byte, v uint64) []byte {
	max := uint64(1<<n) - 1
	if v < max {
		return append(dst, flags|byte(v))
	}
	dst = append(dst, flags|byte(max))
	v -= max
	for v >= 128 {
		dst = append(dst, byte(v%128+128))
		v /= 128
	}
	return append(dst, byte(v))
}
