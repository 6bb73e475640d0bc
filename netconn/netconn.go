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

// Package netconn 把一个真实的 net.Conn 适配成完补式所有权转移的读写半边
//
// net.Conn 的 Read/Write 本身已经是「调用方持有缓冲区直到调用返回」的语义
// 与 ownedio 的契约天然吻合 这里只是补上 context 取消（通过 SetDeadline）
// 与分段写入重试的胶水代码
package netconn

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/packetd/fluxhttp/piece"
)

// Conn adapts a net.Conn to ownedio.ReadOwned/ownedio.WriteOwned.
type Conn struct {
	c net.Conn
}

// New wraps conn for use as an ownedio.ReadOwned/ownedio.WriteOwned pair.
func New(conn net.Conn) *Conn {
	return &Conn{c: conn}
}

// ReadOwned reads into buf, honoring ctx cancellation via the connection's
// deadline where the context carries one.
func (nc *Conn) ReadOwned(ctx context.Context, buf []byte) (int, []byte, error) {
	if err := nc.applyDeadline(ctx); err != nil {
		return 0, buf, err
	}
	n, err := nc.c.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, buf, nil
		}
		return n, buf, errors.Wrap(err, "netconn: read failed")
	}
	return n, buf, nil
}

// WriteOwned writes p in full (retrying partial writes) before returning.
func (nc *Conn) WriteOwned(ctx context.Context, p piece.Piece) (int, piece.Piece, error) {
	if err := nc.applyDeadline(ctx); err != nil {
		return 0, p, err
	}
	total := p.Len()
	b := p.Bytes()
	written := 0
	for written < len(b) {
		n, err := nc.c.Write(b[written:])
		written += n
		if err != nil {
			return written, p, errors.Wrap(err, "netconn: write failed")
		}
	}
	return total, piece.Piece{}, nil
}

// Shutdown half-closes the write side when the underlying conn supports it,
// and otherwise closes the connection outright.
func (nc *Conn) Shutdown(ctx context.Context) error {
	type closeWriter interface {
		CloseWrite() error
	}
	if cw, ok := nc.c.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return nc.c.Close()
}

// Close closes the underlying connection unconditionally; the server loop
// calls this after ServeConnection returns, regardless of how it ended.
func (nc *Conn) Close() error {
	return nc.c.Close()
}

func (nc *Conn) applyDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		return nc.c.SetDeadline(deadline)
	}
	return nc.c.SetDeadline(time.Time{})
}
