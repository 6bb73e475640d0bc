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

package piece

// PieceList is an ordered queue of pieces awaiting a vectored write. It
// tracks the combined byte length so callers can decide how much more to
// buffer before flushing without walking the whole list.
type PieceList struct {
	items []Piece
	total int
}

// NewList returns an empty PieceList.
func NewList() *PieceList {
	return &PieceList{}
}

// Len returns the combined byte length of every piece currently queued.
func (l *PieceList) Len() int { return l.total }

// NumPieces returns the number of queued pieces.
func (l *PieceList) NumPieces() int { return len(l.items) }

// IsEmpty reports whether the list has no pieces.
func (l *PieceList) IsEmpty() bool { return len(l.items) == 0 }

// PushBack appends a piece to the end of the list. Empty pieces are dropped
// silently so NumPieces stays representative of real write submissions.
func (l *PieceList) PushBack(p Piece) {
	if p.IsEmpty() {
		return
	}
	l.items = append(l.items, p)
	l.total += p.Len()
}

// PushFront prepends a piece to the front of the list, for re-queueing a
// partially written piece ahead of whatever follows it.
func (l *PieceList) PushFront(p Piece) {
	if p.IsEmpty() {
		return
	}
	l.items = append([]Piece{p}, l.items...)
	l.total += p.Len()
}

// PopFront removes and returns the first piece in the list.
func (l *PieceList) PopFront() (Piece, bool) {
	if len(l.items) == 0 {
		return Piece{}, false
	}
	p := l.items[0]
	l.items = l.items[1:]
	l.total -= p.Len()
	return p, true
}

// FollowedBy appends other's pieces after this list's pieces, leaving other
// empty.
func (l *PieceList) FollowedBy(other *PieceList) {
	l.items = append(l.items, other.items...)
	l.total += other.total
	other.items = nil
	other.total = 0
}

// PrecededBy prepends other's pieces before this list's pieces, leaving
// other empty.
func (l *PieceList) PrecededBy(other *PieceList) {
	l.items = append(other.items, l.items...)
	l.total += other.total
	other.items = nil
	other.total = 0
}

// Clear releases every queued piece's resources and empties the list.
func (l *PieceList) Clear() {
	for _, p := range l.items {
		p.Release()
	}
	l.items = nil
	l.total = 0
}
