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

package pipe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/fluxhttp/piece"
)

func TestPipeSequentialWritesAndReads(t *testing.T) {
	w, r := New()
	ctx := context.Background()
	done := make(chan struct{})

	go func() {
		defer close(done)
		n, _, err := w.WriteOwned(ctx, piece.FromStatic([]byte("hello")))
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		n, _, err = w.WriteOwned(ctx, piece.FromStatic([]byte("world")))
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		require.NoError(t, w.Shutdown(ctx))
	}()

	buf := make([]byte, 16)
	n, _, err := r.ReadOwned(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	n, _, err = r.ReadOwned(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))

	n, _, err = r.ReadOwned(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, StateEof, r.State())

	<-done
}

func TestPipeFragmentedRead(t *testing.T) {
	w, r := New()
	ctx := context.Background()
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _, err := w.WriteOwned(ctx, piece.FromStatic([]byte("hello world")))
		require.NoError(t, err)
		require.NoError(t, w.Shutdown(ctx))
	}()

	small := make([]byte, 4)
	var got []byte
	for {
		n, _, err := r.ReadOwned(ctx, small)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		got = append(got, small[:n]...)
	}
	assert.Equal(t, "hello world", string(got))
	<-done
}

func TestPipeFragmentedReadReset(t *testing.T) {
	w, r := New()
	ctx := context.Background()

	_, _, err := w.WriteOwned(ctx, piece.FromStatic([]byte("hello world")))
	require.NoError(t, err)

	small := make([]byte, 4)
	n, _, err := r.ReadOwned(ctx, small)
	require.NoError(t, err)
	assert.Equal(t, "hell", string(small[:n]))

	w.Reset()

	n, _, err = r.ReadOwned(ctx, small)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrReset)
	assert.Equal(t, StateReset, r.State())
}
