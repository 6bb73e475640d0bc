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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPieceListPushAndPop(t *testing.T) {
	l := NewList()
	l.PushBack(FromStatic([]byte("ab")))
	l.PushBack(FromStatic([]byte("cde")))
	assert.Equal(t, 5, l.Len())
	assert.Equal(t, 2, l.NumPieces())

	p, ok := l.PopFront()
	require.True(t, ok)
	assert.Equal(t, []byte("ab"), p.Bytes())
	assert.Equal(t, 3, l.Len())
}

func TestPieceListPushFrontOrdering(t *testing.T) {
	l := NewList()
	l.PushBack(FromStatic([]byte("b")))
	l.PushFront(FromStatic([]byte("a")))

	first, _ := l.PopFront()
	second, _ := l.PopFront()
	assert.Equal(t, []byte("a"), first.Bytes())
	assert.Equal(t, []byte("b"), second.Bytes())
}

func TestPieceListEmptyPiecesDropped(t *testing.T) {
	l := NewList()
	l.PushBack(Piece{})
	assert.True(t, l.IsEmpty())
	assert.Equal(t, 0, l.NumPieces())
}

func TestPieceListFollowedBy(t *testing.T) {
	a := NewList()
	a.PushBack(FromStatic([]byte("a")))
	b := NewList()
	b.PushBack(FromStatic([]byte("b")))

	a.FollowedBy(b)
	assert.Equal(t, 2, a.NumPieces())
	assert.True(t, b.IsEmpty())

	first, _ := a.PopFront()
	second, _ := a.PopFront()
	assert.Equal(t, []byte("a"), first.Bytes())
	assert.Equal(t, []byte("b"), second.Bytes())
}

func TestPieceListClearReleasesRolls(t *testing.T) {
	l := NewList()
	l.PushBack(FromStatic([]byte("a")))
	l.Clear()
	assert.True(t, l.IsEmpty())
	assert.Equal(t, 0, l.Len())
}
