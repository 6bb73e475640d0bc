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

// Package ownedio 定义完补式 (completion-style) I/O 的所有权转移契约
//
// 与借用式的 io.Reader/io.Writer 不同 这里的读写调用在提交期间转移缓冲区的
// 所有权：调用方在操作完成前不得访问传入的缓冲区 操作完成后 缓冲区连同结果一起
// 被交还 这与 io_uring 等补全式内核接口的语义一致 —— 提交的缓冲区地址必须在
// 完成前保持稳定 不能被调用方提前回收或修改
package ownedio

import (
	"context"

	"github.com/pkg/errors"

	"github.com/packetd/fluxhttp/piece"
)

// ErrShutdown is an error value for reporting I/O attempted on a transport
// after Shutdown. The transports in this module (pipe, netconn) do not
// return it.
var ErrShutdown = errors.New("ownedio: transport shut down")

// ReadOwned is the read half of the owned-buffer contract. The callee takes
// ownership of buf for the duration of the call and hands it back (still
// addressed by out, which aliases buf unless the implementation substitutes
// a different backing buffer) once the read completes.
type ReadOwned interface {
	ReadOwned(ctx context.Context, buf []byte) (n int, out []byte, err error)
}

// WriteOwned is the write half of the owned-buffer contract. The callee
// takes ownership of p for the duration of the call and hands it back as out
// once the write completes, so the caller can release or reuse it.
type WriteOwned interface {
	WriteOwned(ctx context.Context, p piece.Piece) (n int, out piece.Piece, err error)

	// Shutdown signals no further writes will be issued and releases any
	// write-side resources. It is safe to call more than once.
	Shutdown(ctx context.Context) error
}

// WritevAll drains list by issuing at most one WriteOwned submission per
// element, retrying an element that was partially written (short write)
// until it is fully flushed or an error occurs. It does not attempt true
// vectored (single-syscall) writes; transports that support it may provide
// their own optimized path and are not required to go through WritevAll.
func WritevAll(ctx context.Context, w WriteOwned, list *piece.PieceList) error {
	for !list.IsEmpty() {
		p, ok := list.PopFront()
		if !ok {
			return nil
		}
		for !p.IsEmpty() {
			n, out, err := w.WriteOwned(ctx, p)
			if err != nil {
				return errors.Wrap(err, "ownedio: writev_all failed")
			}
			if n == 0 {
				return errors.New("ownedio: writev_all made no progress")
			}
			_, p = out.Split(n)
		}
	}
	return nil
}
