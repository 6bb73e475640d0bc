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

package h2

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/packetd/fluxhttp/driver"
	"github.com/packetd/fluxhttp/internal/bufpool"
	"github.com/packetd/fluxhttp/piece"
	"github.com/packetd/fluxhttp/pipe"
)

// duplex combines one pipe direction each way into a single Transport, as a
// real connection (a TCP socket, say) would present one bidirectional
// stream instead of two independent halves.
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

type echoDriver struct{}

func (echoDriver) Handle(ctx context.Context, req driver.Request, body driver.Body, responder driver.Responder) error {
	if err := responder.WriteFinalResponse(ctx, 200, []driver.Header{{Name: "x-method", Value: req.Method}}); err != nil {
		return err
	}
	if err := responder.WriteChunk(ctx, piece.FromStatic([]byte("hello"))); err != nil {
		return err
	}
	return responder.FinishBody(ctx, nil)
}

func clientReadN(t *testing.T, r *pipe.Reader, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	got := 0
	for got < n {
		nn, _, err := r.ReadOwned(context.Background(), buf[got:])
		require.NoError(t, err)
		require.NotZero(t, nn)
		got += nn
	}
	return buf
}

func clientReadFrame(t *testing.T, r *pipe.Reader) (FrameHeader, []byte) {
	t.Helper()
	hdr := DecodeFrameHeader(clientReadN(t, r, FrameHeaderLen))
	var payload []byte
	if hdr.Length > 0 {
		payload = clientReadN(t, r, int(hdr.Length))
	}
	return hdr, payload
}

func clientWriteFrame(t *testing.T, w *pipe.Writer, h FrameHeader, payload []byte) {
	t.Helper()
	h.Length = uint32(len(payload))
	buf := make([]byte, FrameHeaderLen+len(payload))
	h.Encode(buf[:FrameHeaderLen])
	copy(buf[FrameHeaderLen:], payload)
	p := piece.FromHeap(buf)
	for !p.IsEmpty() {
		n, out, err := w.WriteOwned(context.Background(), p)
		require.NoError(t, err)
		_, p = out.Split(n)
	}
}

func TestServeHandshakeAndSimpleRequest(t *testing.T) {
	clientWriter, serverReader := pipe.New()
	serverWriter, clientReader := pipe.New()
	serverTransport := &duplex{r: serverReader, w: serverWriter}

	pool := bufpool.New(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, serverTransport, echoDriver{}, pool, DefaultSettings())
	}()

	// Preface, then read the server's initial SETTINGS frame.
	writePreface(t, clientWriter)
	hdr, _ := clientReadFrame(t, clientReader)
	require.Equal(t, FrameSettings, hdr.Type)
	require.False(t, hdr.Has(FlagAck))

	// Client announces its own (empty) settings and expects an ack.
	clientWriteFrame(t, clientWriter, FrameHeader{Type: FrameSettings}, nil)
	ackHdr, _ := clientReadFrame(t, clientReader)
	require.Equal(t, FrameSettings, ackHdr.Type)
	require.True(t, ackHdr.Has(FlagAck))

	// A simple GET request on stream 1, fully in one HEADERS frame.
	enc := NewEncoder()
	var block []byte
	block = enc.AppendHeader(block, ":method", "GET")
	block = enc.AppendHeader(block, ":path", "/")
	block = enc.AppendHeader(block, ":scheme", "http")
	block = enc.AppendHeader(block, ":authority", "test")
	clientWriteFrame(t, clientWriter, FrameHeader{Type: FrameHeaders, Flags: FlagEndHeaders | FlagEndStream, StreamID: 1}, block)

	respHdr, respPayload := clientReadFrame(t, clientReader)
	require.Equal(t, FrameHeaders, respHdr.Type)
	require.True(t, respHdr.Has(FlagEndHeaders))

	dec := NewDecoder()
	defer dec.Release()
	fields, err := dec.DecodeAll(respPayload)
	require.NoError(t, err)
	byName := map[string]string{}
	for _, f := range fields {
		byName[f.Name] = f.Value
	}
	require.Equal(t, "200", byName[":status"])
	require.Equal(t, "GET", byName["x-method"])

	dataHdr, dataPayload := clientReadFrame(t, clientReader)
	require.Equal(t, FrameData, dataHdr.Type)
	require.Equal(t, "hello", string(dataPayload))
	require.False(t, dataHdr.Has(FlagEndStream))

	endHdr, _ := clientReadFrame(t, clientReader)
	require.Equal(t, FrameData, endHdr.Type)
	require.True(t, endHdr.Has(FlagEndStream))
}

func writePreface(t *testing.T, w *pipe.Writer) {
	t.Helper()
	p := piece.FromStatic([]byte(Preface))
	for !p.IsEmpty() {
		n, out, err := w.WriteOwned(context.Background(), p)
		require.NoError(t, err)
		_, p = out.Split(n)
	}
}
