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

// Package piece 提供跨越不同底层存储的统一只读字节视图
//
// 一个 Piece 可能指向一段静态字节 一段堆上分配的字节 一段 roll.Roll（池化内存
// 的零拷贝窗口）或是一个驻留的头部名常量 上层代码（H1/H2 编解码 PieceList）不
// 需要关心具体后端 只需要 Bytes()/Len()/Split() 即可
package piece

import (
	"github.com/pkg/errors"

	"github.com/packetd/fluxhttp/roll"
)

type kind uint8

const (
	kindStatic kind = iota
	kindHeap
	kindRoll
	kindHeaderName
)

// Piece is an immutable, splittable view over one of several backing
// storages. The zero value is an empty Piece.
type Piece struct {
	k    kind
	data []byte   // backing for kindStatic, kindHeap, kindHeaderName
	r    roll.Roll // backing for kindRoll
}

// FromStatic wraps a byte slice known to live for the life of the process
// (a string literal's backing array, a package-level constant table).
func FromStatic(b []byte) Piece {
	return Piece{k: kindStatic, data: b}
}

// FromHeap wraps a heap-allocated byte slice. Unlike roll.Roll, heap pieces
// are not pool-managed: Go's garbage collector already gives them the
// sharing and lifetime guarantees that would otherwise require a manual
// refcount, so no Release bookkeeping is needed for this variant.
func FromHeap(b []byte) Piece {
	return Piece{k: kindHeap, data: b}
}

// FromRoll wraps a roll.Roll, taking ownership of its block reference.
func FromRoll(r roll.Roll) Piece {
	return Piece{k: kindRoll, r: r}
}

// FromInternedHeaderName wraps a byte slice owned by the header-name
// interning table (see internal/headername). It behaves like a static
// piece: the table outlives any connection that could hold this Piece.
func FromInternedHeaderName(b []byte) Piece {
	return Piece{k: kindHeaderName, data: b}
}

// Len returns the number of bytes in the piece.
func (p Piece) Len() int {
	if p.k == kindRoll {
		return p.r.Len()
	}
	return len(p.data)
}

// IsEmpty reports whether the piece has no bytes.
func (p Piece) IsEmpty() bool { return p.Len() == 0 }

// Bytes returns the piece's bytes. The returned slice is valid until the
// piece (or whichever clone/split holds the same backing) is released.
func (p Piece) Bytes() []byte {
	if p.k == kindRoll {
		return p.r.Bytes()
	}
	return p.data
}

// IsHeaderName reports whether this piece was produced by the header-name
// interning table, letting codecs skip a redundant case-normalization pass.
func (p Piece) IsHeaderName() bool { return p.k == kindHeaderName }

// Split divides the piece at byte offset at into two pieces that together
// cover the original range. For a Roll-backed piece this retains the
// underlying block once more (one reference per returned half); callers
// should treat p as consumed after calling Split.
func (p Piece) Split(at int) (Piece, Piece) {
	if at < 0 || at > p.Len() {
		panic("piece: split index out of range")
	}
	switch p.k {
	case kindRoll:
		left, right := p.r.Split(at)
		return Piece{k: kindRoll, r: left}, Piece{k: kindRoll, r: right}
	default:
		return Piece{k: p.k, data: p.data[:at]}, Piece{k: p.k, data: p.data[at:]}
	}
}

// Clone returns an independent Piece referring to the same bytes, retaining
// the underlying block if this is a Roll-backed piece.
func (p Piece) Clone() Piece {
	if p.k == kindRoll {
		return Piece{k: kindRoll, r: p.r.Clone()}
	}
	return p
}

// Release releases any pooled resources held by the piece (a no-op unless
// the piece is Roll-backed). Safe to call on a zero-value Piece.
func (p Piece) Release() {
	if p.k == kindRoll {
		p.r.Release()
	}
}

// ErrSplitRange is returned by helpers that validate a split offset before
// calling Split, so callers get a wrapped error instead of a panic.
var ErrSplitRange = errors.New("piece: split index out of range")

// TrySplit is the non-panicking counterpart to Split.
func (p Piece) TrySplit(at int) (Piece, Piece, error) {
	if at < 0 || at > p.Len() {
		return Piece{}, Piece{}, ErrSplitRange
	}
	left, right := p.Split(at)
	return left, right, nil
}
