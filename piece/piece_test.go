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

	"github.com/packetd/fluxhttp/internal/bufpool"
	"github.com/packetd/fluxhttp/roll"
)

func TestSplitStaticAndHeap(t *testing.T) {
	for name, p := range map[string]Piece{
		"static": FromStatic([]byte("hello world")),
		"heap":   FromHeap([]byte("hello world")),
	} {
		t.Run(name, func(t *testing.T) {
			left, right := p.Split(5)
			assert.Equal(t, []byte("hello"), left.Bytes())
			assert.Equal(t, []byte(" world"), right.Bytes())
			assert.Equal(t, p.Len(), left.Len()+right.Len())
		})
	}
}

func TestSplitRollRetainsBlock(t *testing.T) {
	pool := bufpool.New(16)
	blk := pool.Acquire()
	copy(blk.Bytes(), []byte("abcdefgh"))
	r := roll.FromBlock(blk, 0, 8)
	p := FromRoll(r)

	left, right := p.Split(3)
	assert.Equal(t, []byte("abc"), left.Bytes())
	assert.Equal(t, []byte("defgh"), right.Bytes())

	left.Release()
	right.Release()
}

func TestTrySplitOutOfRange(t *testing.T) {
	p := FromStatic([]byte("abc"))
	_, _, err := p.TrySplit(10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSplitRange)
}

func TestIsHeaderName(t *testing.T) {
	p := FromInternedHeaderName([]byte("content-type"))
	assert.True(t, p.IsHeaderName())
	assert.False(t, FromStatic([]byte("content-type")).IsHeaderName())
}
