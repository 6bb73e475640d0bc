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

// Package server 是单个连接的驱动入口：嗅探协议 分派给 HTTP/1.1 或 HTTP/2
// 的处理循环 并把用户提供的 driver.ServerDriver 接到两者之一上
package server

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/packetd/fluxhttp/driver"
	"github.com/packetd/fluxhttp/h1"
	"github.com/packetd/fluxhttp/h2"
	"github.com/packetd/fluxhttp/internal/bufpool"
	"github.com/packetd/fluxhttp/internal/metrics"
	"github.com/packetd/fluxhttp/internal/tracekit"
	"github.com/packetd/fluxhttp/logger"
	"github.com/packetd/fluxhttp/ownedio"
	"github.com/packetd/fluxhttp/parseio"
	"github.com/packetd/fluxhttp/piece"
	"github.com/packetd/fluxhttp/roll"
)

// maxHeaderBuf bounds how many bytes a request line + header block may grow
// to before ReadAndParse gives up; it guards against a client that never
// sends a terminating blank line.
const maxHeaderBuf = 64 * 1024

// h2Preface is the fixed byte string every HTTP/2 connection preface begins
// with, RFC 7540 §3.5. Peeking just the method-token-shaped prefix "PRI "
// is enough to disambiguate it from any HTTP/1.x request line, since "PRI"
// is not a method any HTTP/1.1 client sends.
var h2Preface = []byte("PRI ")

// Transport is what ServeConnection needs from the underlying connection.
type Transport interface {
	ownedio.ReadOwned
	ownedio.WriteOwned
}

// ServeConnection drives one accepted connection end to end: it sniffs
// whether the client opens with an HTTP/2 preface or an HTTP/1.1 request
// line, then hands off to the matching protocol loop. It returns when the
// connection is done, cleanly or otherwise.
func ServeConnection(ctx context.Context, t Transport, drv driver.ServerDriver, pool *bufpool.Pool) error {
	metrics.ConnectionOpened()
	defer metrics.ConnectionClosed()

	mt := &meteredTransport{Transport: t, proto: "h1"}
	buf := roll.New(pool)
	isH2, err := sniffH2Preface(ctx, buf, mt)
	if err != nil {
		return err
	}
	if isH2 {
		mt.proto = "h2"
		return h2.Serve(ctx, mt, drv, pool, h2.DefaultSettings())
	}
	return serveH1(ctx, mt, drv, buf)
}

// meteredTransport reports bytes read/written to internal/metrics, labeled
// by protocol, without otherwise changing the owned-buffer I/O contract.
type meteredTransport struct {
	Transport
	proto string
}

func (m *meteredTransport) ReadOwned(ctx context.Context, buf []byte) (int, []byte, error) {
	n, out, err := m.Transport.ReadOwned(ctx, buf)
	if n > 0 {
		metrics.BytesRead(m.proto, n)
	}
	return n, out, err
}

func (m *meteredTransport) WriteOwned(ctx context.Context, p piece.Piece) (int, piece.Piece, error) {
	n, out, err := m.Transport.WriteOwned(ctx, p)
	if n > 0 {
		metrics.BytesWritten(m.proto, n)
	}
	return n, out, err
}

// sniffH2Preface reads enough bytes into buf to compare against the first
// four bytes of the HTTP/2 preface, without consuming them: both protocol
// loops start parsing from the front of buf's still-full filled window.
func sniffH2Preface(ctx context.Context, buf *roll.RollMut, src roll.Source) (bool, error) {
	for buf.Len() < len(h2Preface) {
		n, err := buf.ReadInto(ctx, len(h2Preface)-buf.Len(), src)
		if err != nil {
			return false, err
		}
		if n == 0 {
			// Fewer than 4 bytes ever arrived; treat whatever is there as
			// H1 and let the request-line parser reject it properly.
			return false, nil
		}
	}
	head := buf.ContiguousRange(0)
	if len(head) < len(h2Preface) {
		// Crossed a block boundary inside the first 4 bytes; this can only
		// happen with a pathologically tiny pool block size, so fall back
		// to a direct comparison against a copy.
		head = append([]byte(nil), buf.ContiguousRange(0)...)
	}
	return string(head[:len(h2Preface)]) == string(h2Preface), nil
}

// serveH1 runs the keep-alive request loop for one HTTP/1.1 connection.
// buf carries over whatever bytes sniffH2Preface has already buffered.
func serveH1(ctx context.Context, t Transport, drv driver.ServerDriver, buf *roll.RollMut) error {
	defer t.Shutdown(ctx)
	for {
		reqLine, ok, err := parseio.ReadAndParse(ctx, buf, t, maxHeaderBuf, h1.ParseRequestLine)
		if err != nil {
			return err
		}
		if !ok {
			return nil // clean EOF between requests
		}
		headerBlock, ok, err := parseio.ReadAndParse(ctx, buf, t, maxHeaderBuf, h1.ParseHeaderBlock)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("server: connection closed mid-header-block")
		}

		req, bodyMode, contentLength, keepAlive := buildRequest(reqLine, headerBlock)

		traceID, ok := tracekit.TraceIDFromHeaders(req.Headers)
		if !ok {
			traceID = tracekit.RandomTraceID()
		}
		logger.Debugf("trace=%s %s %s", traceID, req.Method, req.Path)

		var body *h1.Body
		switch bodyMode {
		case h1.ModeChunked:
			body = h1.NewChunkedBody(buf, t)
		case h1.ModeContentLength:
			body = h1.NewContentLengthBody(buf, t, contentLength)
		default:
			body = h1.NewEmptyBody()
		}

		responder := &h1Responder{t: t, method: req.Method, keepAlive: keepAlive}
		adapter := &bodyAdapter{body: body}
		if bodyMode == h1.ModeContentLength {
			adapter.contentLength = contentLength
			adapter.haveLength = true
		}
		handleErr := drv.Handle(ctx, req, adapter, responder)
		if drainErr := drainBody(ctx, body); drainErr != nil && handleErr == nil {
			handleErr = drainErr
		}
		if handleErr != nil {
			return handleErr
		}
		if !responder.finished {
			// The driver returned without finishing the response; there is
			// nothing more usable on the wire for this connection.
			return errors.New("server: driver returned without finishing the response")
		}
		if !keepAlive || !responder.keepAlive {
			return nil
		}

		if body.Mode() != h1.ModeNone {
			buf, _ = body.IntoInner()
		}
	}
}

// buildRequest maps a parsed request line and header block onto a
// driver.Request, and determines how the body is delimited and whether the
// connection should be kept alive afterwards.
func buildRequest(reqLine h1.RequestLine, hb h1.HeaderBlock) (req driver.Request, mode h1.BodyMode, contentLength int64, keepAlive bool) {
	req.Method = string(reqLine.Method.Bytes())
	req.Path = string(reqLine.Path.Bytes())
	req.Scheme = "http"

	version := string(reqLine.Version.Bytes())
	keepAlive = version != "HTTP/1.0"

	mode = h1.ModeNone
	haveContentLength := false

	req.Headers = make([]driver.Header, 0, len(hb.Fields))
	for _, f := range hb.Fields {
		name := string(f.Name.Bytes())
		value := string(f.Value.Bytes())
		req.Headers = append(req.Headers, driver.Header{Name: name, Value: value})

		switch strings.ToLower(name) {
		case "host":
			req.Authority = value
		case "content-length":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil && n >= 0 {
				contentLength = n
				haveContentLength = true
			}
		case "transfer-encoding":
			if strings.Contains(strings.ToLower(value), "chunked") {
				mode = h1.ModeChunked
			}
		case "connection":
			for _, tok := range strings.Split(value, ",") {
				switch strings.ToLower(strings.TrimSpace(tok)) {
				case "close":
					keepAlive = false
				case "keep-alive":
					keepAlive = true
				}
			}
		}
	}
	if mode == h1.ModeNone && haveContentLength && contentLength > 0 {
		mode = h1.ModeContentLength
	}
	return req, mode, contentLength, keepAlive
}

// bodyAdapter satisfies driver.Body over an h1.Body.
type bodyAdapter struct {
	body          *h1.Body
	contentLength int64
	haveLength    bool
}

func (b *bodyAdapter) NextChunk(ctx context.Context) (piece.Piece, error) {
	return b.body.Next(ctx)
}

func (b *bodyAdapter) ContentLength() (int64, bool) {
	return b.contentLength, b.haveLength
}

// drainBody consumes and discards whatever the driver left unread, so the
// next request on a keep-alive connection starts from a clean wire
// position regardless of how much of the body the driver actually used.
func drainBody(ctx context.Context, body *h1.Body) error {
	for !body.Done() {
		p, err := body.Next(ctx)
		if err != nil {
			return err
		}
		p.Release()
	}
	return nil
}
