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

// Package pipe 实现进程内单生产者/单消费者的所有权转移管道 主要用于在不经过
// 真实套接字的情况下对 H1/H2 编解码进行测试
package pipe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/packetd/fluxhttp/piece"
)

// ReadState describes the lifecycle of the read side of a pipe.
type ReadState int32

const (
	// StateLive is the default state: more data may still arrive.
	StateLive ReadState = iota
	// StateReset is a sticky terminal state entered once Reset is called on
	// either end; once reached it never reverts to Live.
	StateReset
	// StateEof is entered once the writer has shut down cleanly and all
	// buffered events have been drained.
	StateEof
)

// ErrReset is returned by ReadOwned/WriteOwned once either end of the pipe
// has called Reset.
var ErrReset = errors.New("pipe: reset")

type event struct {
	p piece.Piece
}

type shared struct {
	ch        chan event
	resetCh   chan struct{}
	state     int32
	closeOnce sync.Once
	resetOnce sync.Once
}

func (s *shared) reset() {
	s.resetOnce.Do(func() {
		atomic.StoreInt32(&s.state, int32(StateReset))
		close(s.resetCh)
	})
}

func (s *shared) readState() ReadState {
	return ReadState(atomic.LoadInt32(&s.state))
}

// Writer is the write half of a pipe, implementing ownedio.WriteOwned.
type Writer struct {
	s *shared
}

// Reader is the read half of a pipe, implementing ownedio.ReadOwned.
type Reader struct {
	s      *shared
	remain piece.Piece
}

// New creates a connected Writer/Reader pair with a capacity-1 event
// channel: a writer submission returns once it is queued and blocks only
// while an earlier piece is still unread, which keeps at most one unread
// piece queued and mirrors a completion queue depth of one.
func New() (*Writer, *Reader) {
	s := &shared{
		ch:      make(chan event, 1),
		resetCh: make(chan struct{}),
	}
	return &Writer{s: s}, &Reader{s: s}
}

// Reset marks the pipe as reset. Any pending or future read/write on either
// end observes ErrReset. Safe to call multiple times and from either end.
func (w *Writer) Reset() { w.s.reset() }

// Reset marks the pipe as reset. Any pending or future read/write on either
// end observes ErrReset. Safe to call multiple times and from either end.
func (r *Reader) Reset() { r.s.reset() }

// Shutdown closes the write side cleanly: the reader will drain any event
// already in flight and then observe StateEof. Safe to call more than once.
func (w *Writer) Shutdown(ctx context.Context) error {
	w.s.closeOnce.Do(func() {
		close(w.s.ch)
	})
	return nil
}

// WriteOwned queues p for the reader. It returns as soon as p is queued,
// blocking only while an earlier piece is still queued, until the pipe is
// reset or ctx is cancelled.
func (w *Writer) WriteOwned(ctx context.Context, p piece.Piece) (int, piece.Piece, error) {
	if w.s.readState() == StateReset {
		return 0, p, ErrReset
	}
	n := p.Len()
	select {
	case w.s.ch <- event{p: p}:
		return n, piece.Piece{}, nil
	case <-w.s.resetCh:
		return 0, p, ErrReset
	case <-ctx.Done():
		return 0, p, ctx.Err()
	}
}

// State returns the reader's current lifecycle state.
func (r *Reader) State() ReadState { return r.s.readState() }

// ReadOwned copies up to len(buf) bytes into buf, first draining any bytes
// left over from a previous event that didn't fully fit, then waiting for a
// fresh event. A return of (0, buf, nil) signals clean EOF.
func (r *Reader) ReadOwned(ctx context.Context, buf []byte) (int, []byte, error) {
	if r.s.readState() == StateReset {
		return 0, buf, ErrReset
	}
	if !r.remain.IsEmpty() {
		return r.drain(buf), buf, nil
	}

	select {
	case ev, ok := <-r.s.ch:
		if !ok {
			atomic.StoreInt32(&r.s.state, int32(StateEof))
			return 0, buf, nil
		}
		r.remain = ev.p
		return r.drain(buf), buf, nil
	case <-r.s.resetCh:
		return 0, buf, ErrReset
	case <-ctx.Done():
		return 0, buf, ctx.Err()
	}
}

// drain copies from r.remain into buf and keeps whatever is left over.
func (r *Reader) drain(buf []byte) int {
	n := r.remain.Len()
	if n > len(buf) {
		n = len(buf)
	}
	copy(buf, r.remain.Bytes()[:n])
	if n == r.remain.Len() {
		r.remain.Release()
		r.remain = piece.Piece{}
	} else {
		consumed, rest := r.remain.Split(n)
		consumed.Release()
		r.remain = rest
	}
	return n
}
