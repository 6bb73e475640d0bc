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

	"github.com/pkg/errors"

	"github.com/packetd/fluxhttp/internal/bufpool"
)

// Source is the read half of the owned-buffer I/O contract (see package
// ownedio for the canonical documented interface). It is re-declared here,
// structurally, so that roll does not need to import ownedio — any
// ownedio.ReadOwned implementation already satisfies this interface.
type Source interface {
	ReadOwned(ctx context.Context, buf []byte) (n int, out []byte, err error)
}

// RollMut is a growable, appendable read buffer backed by one or more
// fixed-size blocks from a bufpool.Pool.
//
// It tracks off (bytes before the filled window that are no longer part of
// it, but whose block(s) may still be referenced by live Rolls/Pieces), len
// (bytes filled and readable starting at off) and cap (unfilled capacity
// left across the constituent blocks, past the end of the filled window).
type RollMut struct {
	pool   *bufpool.Pool
	blocks []*bufpool.Block
	off    int
	len    int
}

// New creates an empty RollMut backed by the given pool. Reserve must be
// called (directly, or implicitly via ReadInto) before any bytes can be
// appended.
func New(pool *bufpool.Pool) *RollMut {
	return &RollMut{pool: pool}
}

// Len returns the number of filled, unconsumed bytes.
func (m *RollMut) Len() int { return m.len }

// IsEmpty reports whether there are no filled bytes left.
func (m *RollMut) IsEmpty() bool { return m.len == 0 }

// Cap returns the unfilled capacity left across all constituent blocks,
// i.e. the bytes past the end of the filled window.
func (m *RollMut) Cap() int {
	total := 0
	for _, b := range m.blocks {
		total += b.Cap()
	}
	return total - m.off - m.len
}

// Reserve appends a fresh block to the buffer, growing its capacity by one
// block size.
func (m *RollMut) Reserve() {
	m.blocks = append(m.blocks, m.pool.Acquire())
}

// blockSize returns the pool's fixed block size, or 0 if the RollMut has no
// pool.
func (m *RollMut) blockSize() int {
	if m.pool == nil {
		return 0
	}
	return m.pool.Size()
}

// ContiguousRange returns the largest contiguous byte slice available
// starting at the given offset relative to the filled window (i.e. the
// absolute position is off+at). The returned slice never crosses a block
// boundary, and is truncated to the end of the filled window.
func (m *RollMut) ContiguousRange(at int) []byte {
	if at < 0 || at > m.len {
		panic("roll: ContiguousRange offset out of range")
	}
	if at == m.len {
		return nil
	}
	bs := m.blockSize()
	abs := m.off + at
	blockIdx := abs / bs
	blockOff := abs % bs
	if blockIdx >= len(m.blocks) {
		return nil
	}
	avail := bs - blockOff
	remaining := m.len - at
	if avail > remaining {
		avail = remaining
	}
	return m.blocks[blockIdx].Bytes()[blockOff : blockOff+avail]
}

// Keep advances off so that only the last `rest` bytes of the current
// filled window remain; the consumed prefix becomes releasable. Fully
// consumed leading blocks are released back to the pool.
func (m *RollMut) Keep(rest int) {
	if rest < 0 || rest > m.len {
		panic("roll: Keep argument out of range")
	}
	consumed := m.len - rest
	m.off += consumed
	m.len = rest

	bs := m.blockSize()
	for len(m.blocks) > 0 && m.off >= bs {
		m.blocks[0].Release()
		m.blocks = m.blocks[1:]
		m.off -= bs
	}
}

// TakeAtMost removes up to n bytes from the front of the filled window and
// returns them as a Roll. Because a Roll cannot span multiple blocks, the
// actual amount taken may be smaller than n when the front block runs out
// first; callers (e.g. the H1 body codec) already treat chunk delivery as
// best-effort and loop until they have what they need.
//
// Returns false if the filled window is empty.
func (m *RollMut) TakeAtMost(n int) (Roll, bool) {
	if m.len == 0 {
		return Roll{}, false
	}
	if n <= 0 {
		return Roll{}, false
	}
	bs := m.blockSize()
	blockOff := m.off % bs
	avail := bs - blockOff
	take := n
	if take > avail {
		take = avail
	}
	if take > m.len {
		take = m.len
	}
	blk := m.blocks[0]
	blk.Retain()
	r := FromBlock(blk, blockOff, take)
	m.Keep(m.len - take)
	return r, true
}

// ReadInto appends up to limit fresh bytes from src into the buffer,
// reserving additional blocks as needed for the read to have somewhere to
// land. Returns the number of bytes appended; 0 with a nil error means
// clean EOF.
func (m *RollMut) ReadInto(ctx context.Context, limit int, src Source) (int, error) {
	if m.Cap() == 0 {
		m.Reserve()
	}
	bs := m.blockSize()
	tailAbs := m.off + m.len
	blockIdx := tailAbs / bs
	blockOff := tailAbs % bs
	if blockIdx >= len(m.blocks) {
		m.Reserve()
	}
	blk := m.blocks[blockIdx]
	room := bs - blockOff
	if room > limit {
		room = limit
	}
	if room <= 0 {
		return 0, nil
	}
	dst := blk.Bytes()[blockOff : blockOff+room]
	n, _, err := src.ReadOwned(ctx, dst)
	if err != nil {
		return 0, errors.Wrap(err, "roll: read_into failed")
	}
	m.len += n
	return n, nil
}
