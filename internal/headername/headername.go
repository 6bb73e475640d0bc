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

// Package headername 驻留常见的 HTTP 头部名 避免为 content-type host
// content-length 这类高频出现的头反复分配字节切片
//
// 查找以 xxhash 对小写化后的名字求哈希 命中时返回的是同一个底层数组的
// piece.Piece 副本 不占用额外内存 也不需要引用计数（与堆分配的 Piece 一样由
// GC 管理生命周期）
package headername

import (
	"bytes"

	"github.com/cespare/xxhash/v2"

	"github.com/packetd/fluxhttp/piece"
)

var wellKnown = []string{
	"content-length",
	"content-type",
	"host",
	"connection",
	"transfer-encoding",
	"date",
	"server",
	"user-agent",
	"accept",
	"accept-encoding",
	"cache-control",
	"cookie",
	"set-cookie",
	"location",
	"authorization",
	"referer",
	"etag",
	"last-modified",
	"vary",
	"te",
	"upgrade",
	"expect",
	"if-none-match",
	"if-modified-since",
	"content-encoding",
	"accept-language",
	"x-forwarded-for",
	"x-request-id",
	":method",
	":path",
	":scheme",
	":authority",
	":status",
}

type entry struct {
	name []byte
}

var table map[uint64][]entry

func init() {
	table = make(map[uint64][]entry, len(wellKnown))
	for _, name := range wellKnown {
		b := []byte(name)
		h := xxhash.Sum64(b)
		table[h] = append(table[h], entry{name: b})
	}
}

// Lookup returns an interned Piece for name if it is one of the well-known
// header names, comparing case-insensitively against the ASCII header-name
// conventions. The second return value is false when name is not interned,
// in which case the caller should fall back to piece.FromHeap/FromRoll.
func Lookup(name []byte) (piece.Piece, bool) {
	lowered := toLowerASCII(name)
	h := xxhash.Sum64(lowered)
	for _, e := range table[h] {
		if bytes.Equal(e.name, lowered) {
			return piece.FromInternedHeaderName(e.name), true
		}
	}
	return piece.Piece{}, false
}

func toLowerASCII(b []byte) []byte {
	for _, c := range b {
		if c >= 'A' && c <= 'Z' {
			out := make([]byte, len(b))
			for i, c2 := range b {
				if c2 >= 'A' && c2 <= 'Z' {
					c2 += 'a' - 'A'
				}
				out[i] = c2
			}
			return out
		}
	}
	return b
}
