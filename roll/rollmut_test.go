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

package roll

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/fluxhttp/internal/bufpool"
)

// fakeSource feeds fixed chunks to ReadOwned, one chunk per call, then
// returns the clean-EOF signal (0, buf, nil) forever after.
type fakeSource struct {
	chunks [][]byte
	pos    int
}

func (s *fakeSource) ReadOwned(ctx context.Context, buf []byte) (int, []byte, error) {
	if s.pos >= len(s.chunks) {
		return 0, buf, nil
	}
	c := s.chunks[s.pos]
	s.pos++
	n := copy(buf, c)
	return n, buf, nil
}

func TestRollMutReadIntoGrows(t *testing.T) {
	pool := bufpool.New(4)
	m := New(pool)
	src := &fakeSource{chunks: [][]byte{[]byte("ab"), []byte("cd"), []byte("ef")}}

	n, err := m.ReadInto(context.Background(), 64, src)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, m.Len())

	n, err = m.ReadInto(context.Background(), 64, src)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 4, m.Len())
	assert.Equal(t, []byte("abcd"), m.ContiguousRange(0))

	// third read must land in a freshly reserved block since the first is full
	n, err = m.ReadInto(context.Background(), 64, src)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 6, m.Len())
	assert.Equal(t, []byte("ef"), m.ContiguousRange(4))
}

func TestRollMutContiguousRangeStopsAtBlockBoundary(t *testing.T) {
	pool := bufpool.New(4)
	m := New(pool)
	src := &fakeSource{chunks: [][]byte{[]byte("abcd"), []byte("ef")}}

	_, err := m.ReadInto(context.Background(), 64, src)
	require.NoError(t, err)
	_, err = m.ReadInto(context.Background(), 64, src)
	require.NoError(t, err)
	require.Equal(t, 6, m.Len())

	assert.Equal(t, []byte("abcd"), m.ContiguousRange(0))
	assert.Equal(t, []byte("ef"), m.ContiguousRange(4))
}

func TestRollMutKeepReleasesConsumedBlocks(t *testing.T) {
	pool := bufpool.New(4)
	m := New(pool)
	src := &fakeSource{chunks: [][]byte{[]byte("abcd"), []byte("ef")}}
	_, _ = m.ReadInto(context.Background(), 64, src)
	_, _ = m.ReadInto(context.Background(), 64, src)

	m.Keep(2)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []byte("ef"), m.ContiguousRange(0))
	assert.Len(t, m.blocks, 1)
}

func TestRollMutTakeAtMostRespectsBlockBoundary(t *testing.T) {
	pool := bufpool.New(4)
	m := New(pool)
	src := &fakeSource{chunks: [][]byte{[]byte("abcd"), []byte("ef")}}
	_, _ = m.ReadInto(context.Background(), 64, src)
	_, _ = m.ReadInto(context.Background(), 64, src)

	r, ok := m.TakeAtMost(6)
	require.True(t, ok)
	assert.Equal(t, []byte("abcd"), r.Bytes())
	r.Release()

	r2, ok := m.TakeAtMost(6)
	require.True(t, ok)
	assert.Equal(t, []byte("ef"), r2.Bytes())
	r2.Release()

	_, ok = m.TakeAtMost(1)
	assert.False(t, ok)
}
