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

package bufpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcquireIsZeroed(t *testing.T) {
	pool := New(16)
	blk := pool.Acquire()
	copy(blk.Bytes(), []byte("dirty-data------"))
	blk.Release()

	blk2 := pool.Acquire()
	assert.Equal(t, make([]byte, 16), blk2.Bytes())
}

func TestRefcountReleasesToPool(t *testing.T) {
	pool := New(8)
	blk := pool.Acquire()
	blk.Retain()

	blk.Release()
	// still one ref outstanding, pool should not have it back yet: acquiring
	// again must allocate a fresh block rather than reuse blk's storage.
	other := pool.Acquire()
	assert.NotSame(t, blk, other)

	blk.Release()
}

func TestDefaultPoolSingleton(t *testing.T) {
	a := Default()
	b := Default()
	assert.Same(t, a, b)
	assert.Equal(t, 4096, a.Size())
}
