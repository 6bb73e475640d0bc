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

// Package driver 定义连接核心与用户处理器之间的外部协作接口
//
// 这个包只声明契约 不提供任何实现 —— 具体的请求处理逻辑是调用方（驱动程序的
// 使用者）的职责 核心只依赖这里的接口
package driver

import (
	"context"

	"github.com/packetd/fluxhttp/piece"
)

// Header is one request or response header field.
type Header struct {
	Name  string
	Value string
}

// Request is the request metadata handed to a driver; the body itself
// arrives as a separate Body value so a driver can choose to stream it.
type Request struct {
	Method    string
	Path      string
	Authority string
	Scheme    string
	Headers   []Header
}

// Body exposes a request body as a pull-based stream of pieces. A driver
// may read it fully, partially, or not at all.
type Body interface {
	// NextChunk returns the next chunk of body bytes. A zero-length piece
	// with a nil error signals the body is exhausted.
	NextChunk(ctx context.Context) (piece.Piece, error)
	// ContentLength returns the declared length and whether one was
	// present (false for chunked or bodyless requests).
	ContentLength() (int64, bool)
}

// Responder lets a driver emit a response, interim (1xx) responses, body
// chunks, and a trailer-bearing finish, in that order.
type Responder interface {
	WriteInterimResponse(ctx context.Context, statusCode int, headers []Header) error
	WriteFinalResponse(ctx context.Context, statusCode int, headers []Header) error
	WriteChunk(ctx context.Context, p piece.Piece) error
	FinishBody(ctx context.Context, trailers []Header) error
}

// ServerDriver is the single entry point the core calls for every request
// it parses off the wire.
type ServerDriver interface {
	Handle(ctx context.Context, req Request, body Body, responder Responder) error
}
