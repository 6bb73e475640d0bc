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

package server

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/packetd/fluxhttp/driver"
	"github.com/packetd/fluxhttp/internal/bufpool"
	"github.com/packetd/fluxhttp/piece"
	"github.com/packetd/fluxhttp/pipe"
)

type duplex struct {
	r *pipe.Reader
	w *pipe.Writer
}

func (d *duplex) ReadOwned(ctx context.Context, buf []byte) (int, []byte, error) {
	return d.r.ReadOwned(ctx, buf)
}

func (d *duplex) WriteOwned(ctx context.Context, p piece.Piece) (int, piece.Piece, error) {
	return d.w.WriteOwned(ctx, p)
}

func (d *duplex) Shutdown(ctx context.Context) error {
	return d.w.Shutdown(ctx)
}

// echoDriver replies 200 with the method in a header and echoes the body
// back verbatim, to exercise both the response path and body draining.
type echoDriver struct{}

func (echoDriver) Handle(ctx context.Context, req driver.Request, body driver.Body, responder driver.Responder) error {
	var got []byte
	for {
		p, err := body.NextChunk(ctx)
		if err != nil {
			return err
		}
		if p.IsEmpty() {
			break
		}
		got = append(got, p.Bytes()...)
		p.Release()
	}

	headers := []driver.Header{
		{Name: "X-Method", Value: req.Method},
		{Name: "Content-Length", Value: itoa(len(got))},
	}
	if err := responder.WriteFinalResponse(ctx, 200, headers); err != nil {
		return err
	}
	if len(got) > 0 {
		if err := responder.WriteChunk(ctx, piece.FromHeap(got)); err != nil {
			return err
		}
	}
	return responder.FinishBody(ctx, nil)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func TestServeConnectionKeepAliveRoundTrip(t *testing.T) {
	clientWriter, serverReader := pipe.New()
	serverWriter, clientReader := pipe.New()
	serverTransport := &duplex{r: serverReader, w: serverWriter}

	pool := bufpool.New(32)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- ServeConnection(ctx, serverTransport, echoDriver{}, pool)
	}()

	writeAll(t, clientWriter, "GET /first HTTP/1.1\r\nHost: test\r\nContent-Length: 5\r\n\r\nhello")
	resp := readUntil(t, clientReader, "hello")
	require.Contains(t, resp, "HTTP/1.1 200 OK")
	require.Contains(t, resp, "X-Method: GET")
	require.Contains(t, resp, "hello")

	writeAll(t, clientWriter, "GET /second HTTP/1.1\r\nHost: test\r\nConnection: close\r\n\r\n")
	resp2 := readUntilEOF(t, clientReader)
	require.Contains(t, resp2, "HTTP/1.1 200 OK")
	require.Contains(t, resp2, "X-Method: GET")

	require.NoError(t, <-done)
}

func writeAll(t *testing.T, w *pipe.Writer, s string) {
	t.Helper()
	p := piece.FromHeap([]byte(s))
	for !p.IsEmpty() {
		n, out, err := w.WriteOwned(context.Background(), p)
		require.NoError(t, err)
		_, p = out.Split(n)
	}
}

// readUntil reads from r until the accumulated bytes contain want, then
// returns what has been read so far.
func readUntil(t *testing.T, r *pipe.Reader, want string) string {
	t.Helper()
	var buf bytes.Buffer
	tmp := make([]byte, 256)
	for !bytes.Contains(buf.Bytes(), []byte(want)) {
		n, _, err := r.ReadOwned(context.Background(), tmp)
		require.NoError(t, err)
		require.NotZero(t, n)
		buf.Write(tmp[:n])
	}
	return buf.String()
}

// readUntilEOF reads until the writer side shuts down (n==0, err==nil).
func readUntilEOF(t *testing.T, r *pipe.Reader) string {
	t.Helper()
	var buf bytes.Buffer
	tmp := make([]byte, 256)
	for {
		n, _, err := r.ReadOwned(context.Background(), tmp)
		if n == 0 && err == nil {
			return buf.String()
		}
		if err == io.EOF {
			return buf.String()
		}
		require.NoError(t, err)
		buf.Write(tmp[:n])
	}
}
