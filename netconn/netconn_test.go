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

package netconn

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/packetd/fluxhttp/piece"
)

func TestConnWriteOwnedThenReadOwned(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	serverConn := New(server)
	clientConn := New(client)

	done := make(chan error, 1)
	go func() {
		_, _, err := serverConn.WriteOwned(context.Background(), piece.FromHeap([]byte("hello")))
		done <- err
	}()

	buf := make([]byte, 5)
	n, out, err := clientConn.ReadOwned(context.Background(), buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(out[:n]))
	require.NoError(t, <-done)
}

func TestConnReadOwnedCleanEOF(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	require.NoError(t, server.Close())

	clientConn := New(client)
	buf := make([]byte, 16)
	n, _, err := clientConn.ReadOwned(context.Background(), buf)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestConnReadOwnedCanceledContext(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	clientConn := New(client)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := make([]byte, 16)
	_, _, err := clientConn.ReadOwned(ctx, buf)
	require.Error(t, err)
}
