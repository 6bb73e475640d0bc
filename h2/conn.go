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
	"encoding/binary"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/packetd/fluxhttp/driver"
	"github.com/packetd/fluxhttp/internal/bufpool"
	"github.com/packetd/fluxhttp/internal/tracekit"
	"github.com/packetd/fluxhttp/logger"
	"github.com/packetd/fluxhttp/ownedio"
	"github.com/packetd/fluxhttp/piece"
	"github.com/packetd/fluxhttp/roll"
)

// Preface is the 24-byte connection preface every HTTP/2 client must send
// before any frame, RFC 7540 §3.5.
const Preface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// eventChannelCapacity bounds how far the read loop can run ahead of the
// write loop before blocking on a send.
const eventChannelCapacity = 32

// ErrPrefaceMismatch is returned when the first 24 bytes on the wire are not
// the expected connection preface.
var ErrPrefaceMismatch = errors.New("h2: connection preface mismatch")

// errCleanClose is a sentinel used internally to tell a clean, frame-boundary
// EOF apart from an EOF that interrupted a frame in flight.
var errCleanClose = errors.New("h2: clean close at frame boundary")

// Transport is the owned-I/O pair Serve drives a connection over.
type Transport interface {
	ownedio.ReadOwned
	ownedio.WriteOwned
}

// Serve runs one HTTP/2 connection to completion: it performs the
// preface/SETTINGS handshake, then runs a read loop (parsing frames and
// driving per-stream state) concurrently with a write loop (serializing
// frames from an internal event channel), handing each request to drv as
// soon as its header block has arrived; the request body streams to the
// handler as DATA frames follow. It returns when the connection closes,
// cleanly or otherwise.
func Serve(ctx context.Context, t Transport, drv driver.ServerDriver, pool *bufpool.Pool, local Settings) error {
	cs := NewConnState(local)
	defer cs.Close()

	events := make(chan Event, eventChannelCapacity)
	writeErrCh := make(chan error, 1)
	go func() {
		writeErrCh <- writeLoop(ctx, t, events, cs)
	}()

	readErr := readLoop(ctx, t, cs, events, drv, pool, local)
	close(events)
	writeErr := <-writeErrCh

	// A connection can fail in both directions at once (e.g. the peer
	// resets the socket mid-read while the write loop is also blocked on a
	// now-broken write); report both instead of silently dropping one.
	var merr *multierror.Error
	merr = multierror.Append(merr, readErr)
	merr = multierror.Append(merr, writeErr)
	return merr.ErrorOrNil()
}

func readLoop(ctx context.Context, t Transport, cs *ConnState, events chan<- Event, drv driver.ServerDriver, pool *bufpool.Pool, local Settings) error {
	buf := roll.New(pool)

	prefaceBytes, err := readExact(ctx, buf, t, len(Preface), len(Preface)+64)
	if err != nil {
		return errors.Wrap(err, "h2: reading connection preface")
	}
	if string(prefaceBytes) != Preface {
		return errors.WithStack(ErrPrefaceMismatch)
	}

	select {
	case events <- Event{Kind: EventInitialSettings, Settings: local}:
	case <-ctx.Done():
		return ctx.Err()
	}

	maxFramePayload := int(local.MaxFrameSize) + 256

	for {
		hdrBytes, err := readExact(ctx, buf, t, FrameHeaderLen, FrameHeaderLen+64)
		if err != nil {
			if errors.Is(err, errCleanClose) {
				return nil
			}
			return err
		}
		h := DecodeFrameHeader(hdrBytes)
		payload, err := readExact(ctx, buf, t, int(h.Length), int(h.Length)+maxFramePayload)
		if err != nil {
			return err
		}
		if err := dispatchFrame(ctx, h, payload, cs, events, drv); err != nil {
			if errors.Is(err, errCleanClose) {
				return nil
			}
			return err
		}
	}
}

// peekBytes copies the first n bytes of buf's filled window into a single
// contiguous slice, stitching across block boundaries as needed. Callers
// must already know buf.Len() >= n.
func peekBytes(buf *roll.RollMut, n int) []byte {
	out := make([]byte, 0, n)
	at := 0
	for len(out) < n {
		seg := buf.ContiguousRange(at)
		take := n - len(out)
		if take > len(seg) {
			take = len(seg)
		}
		out = append(out, seg[:take]...)
		at += take
	}
	return out
}

// readExact reads and consumes exactly n bytes from src into buf, growing
// buf as needed up to maxBuf. A clean EOF observed before any bytes of this
// call have arrived is reported as errCleanClose; an EOF after some bytes
// have already arrived is a protocol-level error ("h2: connection closed
// mid-frame", from readAndParseBytes).
func readExact(ctx context.Context, buf *roll.RollMut, src roll.Source, n int, maxBuf int) ([]byte, error) {
	value, ok, err := readAndParseBytes(ctx, buf, src, n, maxBuf)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.WithStack(errCleanClose)
	}
	return value, nil
}

func readAndParseBytes(ctx context.Context, buf *roll.RollMut, src roll.Source, n int, maxBuf int) ([]byte, bool, error) {
	for {
		if buf.Len() >= n {
			value := peekBytes(buf, n)
			buf.Keep(buf.Len() - n)
			return value, true, nil
		}
		if buf.Len() >= maxBuf {
			return nil, false, errors.New("h2: frame exceeds configured size limit")
		}
		room := maxBuf - buf.Len()
		read, err := buf.ReadInto(ctx, room, src)
		if err != nil {
			return nil, false, err
		}
		if read == 0 {
			if buf.Len() == 0 {
				return nil, false, nil
			}
			return nil, false, errors.New("h2: connection closed mid-frame")
		}
	}
}

func dispatchFrame(ctx context.Context, h FrameHeader, payload []byte, cs *ConnState, events chan<- Event, drv driver.ServerDriver) error {
	switch h.Type {
	case FrameSettings:
		if h.Has(FlagAck) {
			return nil
		}
		updated, err := DecodeSettingsPayload(cs.PeerSettings, payload)
		if err != nil {
			return err
		}
		cs.PeerSettings = updated
		return sendEvent(ctx, events, Event{Kind: EventSettingsAck})

	case FrameWindowUpdate:
		// Flow-control accounting is not enforced by this driver; the
		// increment is observed and otherwise ignored.
		return nil

	case FramePing:
		if h.Has(FlagAck) {
			return nil
		}
		var echoed [8]byte
		copy(echoed[:], payload)
		return sendEvent(ctx, events, Event{Kind: EventPingAck, PingPayload: echoed})

	case FrameGoAway:
		cs.MarkGoAwayReceived()
		return errors.WithStack(errCleanClose)

	case FrameHeaders, FrameContinuation:
		return dispatchHeaders(ctx, h, payload, cs, events, drv)

	case FrameData:
		return dispatchData(ctx, h, payload, cs, events)

	case FrameRSTStream:
		if s, ok := cs.Stream(h.StreamID); ok {
			s.Reset()
		}
		return nil

	case FramePriority:
		return nil

	default:
		// Unknown frame types are ignored, RFC 7540 §4.1.
		return nil
	}
}

func sendEvent(ctx context.Context, events chan<- Event, ev Event) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func dispatchHeaders(ctx context.Context, h FrameHeader, payload []byte, cs *ConnState, events chan<- Event, drv driver.ServerDriver) error {
	frag := payload
	if h.Type == FrameHeaders {
		if h.Has(FlagPadded) {
			if len(frag) == 0 {
				return errors.WithStack(ErrProtocolError)
			}
			padLen := int(frag[0])
			frag = frag[1:]
			if padLen > len(frag) {
				return errors.WithStack(ErrProtocolError)
			}
			frag = frag[:len(frag)-padLen]
		}
		if h.Has(FlagPriority) {
			if len(frag) < 5 {
				return errors.WithStack(ErrProtocolError)
			}
			frag = frag[5:]
		}
	}

	stream, isNewStream, err := cs.OpenStream(h.StreamID)
	if err != nil {
		if errors.Is(err, ErrRefusedStream) {
			return sendEvent(ctx, events, Event{Kind: EventRSTStream, StreamID: h.StreamID, ErrorCode: ErrCodeRefusedStream})
		}
		return err
	}

	endStream := h.Has(FlagEndStream)
	endHeaders := h.Has(FlagEndHeaders)
	if err := stream.OnHeaders(frag, endStream, endHeaders); err != nil {
		if errors.Is(err, ErrStreamClosed) {
			return sendEvent(ctx, events, Event{Kind: EventRSTStream, StreamID: h.StreamID, ErrorCode: ErrCodeStreamClosed})
		}
		return err
	}
	if !endHeaders {
		return nil
	}

	block, _ := stream.HeaderBlock()
	fields, err := cs.decoder.DecodeAll(block)
	if err != nil {
		cs.MarkGoAwaySent()
		_ = sendEvent(ctx, events, Event{Kind: EventGoAway, ErrorCode: ErrCodeCompressionError, LastStreamID: cs.HighestPeerStreamID()})
		return errors.WithStack(ErrProtocolError)
	}
	stream.Fields = fields

	if isNewStream {
		go runStream(ctx, stream, drv, events)
	}
	return nil
}

func dispatchData(ctx context.Context, h FrameHeader, payload []byte, cs *ConnState, events chan<- Event) error {
	stream, ok := cs.Stream(h.StreamID)
	if !ok {
		cs.MarkGoAwaySent()
		_ = sendEvent(ctx, events, Event{Kind: EventGoAway, ErrorCode: ErrCodeProtocolError, LastStreamID: cs.HighestPeerStreamID()})
		return errors.WithStack(ErrProtocolError)
	}

	endStream := h.Has(FlagEndStream)
	if err := stream.OnData(endStream); err != nil {
		if errors.Is(err, ErrStreamClosed) {
			return sendEvent(ctx, events, Event{Kind: EventRSTStream, StreamID: h.StreamID, ErrorCode: ErrCodeStreamClosed})
		}
		return err
	}
	if len(payload) > 0 {
		cp := append([]byte(nil), payload...)
		select {
		case stream.bodyCh <- piece.FromHeap(cp):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if endStream {
		close(stream.bodyCh)
	}
	return nil
}

// runStream runs a request handler for one HTTP/2 stream once its header
// block has fully arrived. It is invoked in its own goroutine so that a slow
// handler never blocks the read loop's frame dispatch.
func runStream(ctx context.Context, stream *Stream, drv driver.ServerDriver, events chan<- Event) {
	req := driver.Request{}
	for _, f := range stream.Fields {
		switch f.Name {
		case ":method":
			req.Method = f.Value
		case ":path":
			req.Path = f.Value
		case ":authority":
			req.Authority = f.Value
		case ":scheme":
			req.Scheme = f.Value
		default:
			req.Headers = append(req.Headers, driver.Header{Name: f.Name, Value: f.Value})
		}
	}

	traceID, ok := tracekit.TraceIDFromHeaders(req.Headers)
	if !ok {
		traceID = tracekit.RandomTraceID()
	}
	logger.Debugf("trace=%s stream=%d %s %s", traceID, stream.ID, req.Method, req.Path)

	body := &streamBody{stream: stream}
	responder := &streamResponder{stream: stream, events: events}
	if err := drv.Handle(ctx, req, body, responder); err != nil {
		_ = sendEvent(ctx, events, Event{Kind: EventRSTStream, StreamID: stream.ID, ErrorCode: ErrCodeInternalError})
	}
}

// streamBody adapts a Stream's body channel to driver.Body.
type streamBody struct {
	stream *Stream
}

func (b *streamBody) NextChunk(ctx context.Context) (piece.Piece, error) {
	select {
	case p, ok := <-b.stream.bodyCh:
		if !ok {
			return piece.Piece{}, nil
		}
		return p, nil
	case <-ctx.Done():
		return piece.Piece{}, ctx.Err()
	}
}

// ContentLength is never known ahead of time over HTTP/2: a content-length
// header, if present, is surfaced to the driver as an ordinary header field
// instead.
func (b *streamBody) ContentLength() (int64, bool) { return 0, false }

// streamResponder adapts a Stream, talking to the write loop through the
// event channel, to driver.Responder.
type streamResponder struct {
	stream *Stream
	events chan<- Event
}

func (r *streamResponder) WriteInterimResponse(ctx context.Context, statusCode int, headers []driver.Header) error {
	return r.writeHeaders(ctx, statusCode, headers, false)
}

func (r *streamResponder) WriteFinalResponse(ctx context.Context, statusCode int, headers []driver.Header) error {
	return r.writeHeaders(ctx, statusCode, headers, false)
}

func (r *streamResponder) writeHeaders(ctx context.Context, statusCode int, headers []driver.Header, endStream bool) error {
	fields := make([]HeaderField, 0, len(headers))
	for _, h := range headers {
		fields = append(fields, HeaderField{Name: h.Name, Value: h.Value})
	}
	return sendEvent(ctx, r.events, Event{Kind: EventHeaders, StreamID: r.stream.ID, StatusCode: statusCode, Headers: fields, EndStream: endStream})
}

func (r *streamResponder) WriteChunk(ctx context.Context, p piece.Piece) error {
	return sendEvent(ctx, r.events, Event{Kind: EventData, StreamID: r.stream.ID, Data: p})
}

// FinishBody sends an empty, END_STREAM-flagged DATA frame. Trailers are not
// emitted as a HEADERS frame: see the design notes on chunked-trailer
// handling for the matching decision on the decode side.
func (r *streamResponder) FinishBody(ctx context.Context, trailers []driver.Header) error {
	return sendEvent(ctx, r.events, Event{Kind: EventData, StreamID: r.stream.ID, EndStream: true})
}

func writeLoop(ctx context.Context, t Transport, events <-chan Event, cs *ConnState) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return t.Shutdown(ctx)
			}
			if err := applyEvent(ctx, t, ev, cs); err != nil {
				return err
			}
			if ev.Kind == EventGoAway {
				return t.Shutdown(ctx)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func applyEvent(ctx context.Context, t Transport, ev Event, cs *ConnState) error {
	switch ev.Kind {
	case EventInitialSettings:
		return writeFrame(ctx, t, FrameHeader{Type: FrameSettings}, ev.Settings.Encode())

	case EventSettingsAck:
		return writeFrame(ctx, t, FrameHeader{Type: FrameSettings, Flags: FlagAck}, nil)

	case EventPingAck:
		payload := ev.PingPayload
		return writeFrame(ctx, t, FrameHeader{Type: FramePing, Flags: FlagAck}, payload[:])

	case EventHeaders:
		return writeHeadersEvent(ctx, t, ev, cs)

	case EventData:
		return writeDataEvent(ctx, t, ev)

	case EventRSTStream:
		var payload [4]byte
		binary.BigEndian.PutUint32(payload[:], ev.ErrorCode)
		return writeFrame(ctx, t, FrameHeader{Type: FrameRSTStream, StreamID: ev.StreamID}, payload[:])

	case EventGoAway:
		payload := make([]byte, 8+len(ev.DebugData))
		binary.BigEndian.PutUint32(payload[0:4], ev.LastStreamID&0x7fffffff)
		binary.BigEndian.PutUint32(payload[4:8], ev.ErrorCode)
		copy(payload[8:], ev.DebugData)
		return writeFrame(ctx, t, FrameHeader{Type: FrameGoAway}, payload)

	default:
		return nil
	}
}

func writeHeadersEvent(ctx context.Context, t Transport, ev Event, cs *ConnState) error {
	var block []byte
	block = cs.encoder.AppendHeader(block, ":status", strconv.Itoa(ev.StatusCode))
	for _, f := range ev.Headers {
		block = cs.encoder.AppendHeader(block, f.Name, f.Value)
	}
	flags := FlagEndHeaders
	if ev.EndStream {
		flags |= FlagEndStream
	}
	return writeFrame(ctx, t, FrameHeader{Type: FrameHeaders, Flags: flags, StreamID: ev.StreamID}, block)
}

func writeDataEvent(ctx context.Context, t Transport, ev Event) error {
	flags := uint8(0)
	if ev.EndStream {
		flags = FlagEndStream
	}
	payload := ev.Data.Bytes()
	err := writeFrame(ctx, t, FrameHeader{Type: FrameData, Flags: flags, StreamID: ev.StreamID}, payload)
	ev.Data.Release()
	return err
}

func writeFrame(ctx context.Context, t Transport, h FrameHeader, payload []byte) error {
	h.Length = uint32(len(payload))
	buf := make([]byte, FrameHeaderLen+len(payload))
	h.Encode(buf[:FrameHeaderLen])
	copy(buf[FrameHeaderLen:], payload)
	list := piece.NewList()
	list.PushBack(piece.FromHeap(buf))
	return ownedio.WritevAll(ctx, t, list)
}
