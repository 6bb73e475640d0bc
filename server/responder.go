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
	"context"
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"

	"github.com/packetd/fluxhttp/driver"
	"github.com/packetd/fluxhttp/h1"
	"github.com/packetd/fluxhttp/ownedio"
	"github.com/packetd/fluxhttp/piece"
)

// headerBufPool pools the transient byte buffers used to assemble a status
// line and header block per response, instead of allocating a fresh one on
// every request.
var headerBufPool bytebufferpool.Pool

// h1Responder satisfies driver.Responder for one HTTP/1.1 request. It picks
// the write mode (content-length, chunked, or no body at all) once the
// final response headers are known, and remembers whether this response
// still permits the connection to be kept alive afterwards.
type h1Responder struct {
	t         Transport
	method    string
	keepAlive bool // in: whether the request allowed keep-alive

	mode     h1.WriteMode
	started  bool
	finished bool
}

func (r *h1Responder) WriteInterimResponse(ctx context.Context, statusCode int, headers []driver.Header) error {
	return writeStatusLineAndHeaders(ctx, r.t, statusCode, headers, true)
}

func (r *h1Responder) WriteFinalResponse(ctx context.Context, statusCode int, headers []driver.Header) error {
	r.mode = selectWriteMode(statusCode, r.method, headers)
	if r.mode == h1.WriteModeChunked && !hasHeader(headers, "transfer-encoding") {
		headers = append(headers, driver.Header{Name: "Transfer-Encoding", Value: "chunked"})
	}
	if !r.keepAlive && !hasHeader(headers, "connection") {
		headers = append(headers, driver.Header{Name: "Connection", Value: "close"})
	} else if r.keepAlive && hasHeader(headers, "connection") {
		// driver supplied its own Connection header; trust it and fold
		// that decision back into ours so the serve loop knows to close.
		r.keepAlive = strings.EqualFold(headerValue(headers, "connection"), "keep-alive")
	}
	r.started = true
	return writeStatusLineAndHeaders(ctx, r.t, statusCode, headers, false)
}

func (r *h1Responder) WriteChunk(ctx context.Context, p piece.Piece) error {
	return h1.WriteBodyChunk(ctx, r.t, r.mode, p)
}

func (r *h1Responder) FinishBody(ctx context.Context, trailers []driver.Header) error {
	// Trailers are accepted for interface compatibility but never emitted:
	// this codec's chunked decoder discards trailers on the read side too,
	// so there is no surfaced trailer channel to round-trip them through.
	err := h1.WriteBodyEnd(ctx, r.t, r.mode)
	r.finished = true
	return err
}

// selectWriteMode decides how the response body will be framed. A
// Content-Length header from the driver is honored as-is (the bytes are
// written verbatim, no extra framing); otherwise bodyless responses use no
// framing at all and everything else falls back to chunked.
func selectWriteMode(statusCode int, method string, headers []driver.Header) h1.WriteMode {
	if hasHeader(headers, "content-length") {
		return h1.WriteModeContentLength
	}
	if method == "HEAD" || statusCode == 204 || statusCode == 304 || (statusCode >= 100 && statusCode < 200) {
		return h1.WriteModeEmpty
	}
	return h1.WriteModeChunked
}

func hasHeader(headers []driver.Header, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

func headerValue(headers []driver.Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func writeStatusLineAndHeaders(ctx context.Context, t Transport, statusCode int, headers []driver.Header, interim bool) error {
	b := headerBufPool.Get()
	defer headerBufPool.Put(b)

	b.WriteString("HTTP/1.1 ")
	b.WriteString(strconv.Itoa(statusCode))
	b.WriteString(" ")
	b.WriteString(statusText(statusCode))
	b.WriteString("\r\n")
	for _, h := range headers {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	// The pooled buffer is reused as soon as this function returns, so the
	// bytes handed to the write list must be a copy, not a view over it.
	out := append([]byte(nil), b.Bytes()...)
	list := piece.NewList()
	list.PushBack(piece.FromHeap(out))
	return ownedio.WritevAll(ctx, t, list)
}

var commonStatusText = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	411: "Length Required",
	413: "Payload Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	426: "Upgrade Required",
	429: "Too Many Requests",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

func statusText(code int) string {
	if text, ok := commonStatusText[code]; ok {
		return text
	}
	return "Unknown Status"
}
