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

// Package parseio 提供「边读边解析」的通用循环：反复尝试对已缓冲的数据做解析
// 只有在数据不足时才发起下一次读取 这样可以避免为每次解析尝试都发起一次系统
// 调用
package parseio

import (
	"context"

	"github.com/pkg/errors"

	"github.com/packetd/fluxhttp/roll"
)

// ErrBufferLimitExceeded is returned when buf has grown to maxBuf bytes
// without a parse succeeding, guarding against an unbounded read (e.g. a
// header block with no terminating blank line).
var ErrBufferLimitExceeded = errors.New("parseio: buffer limit exceeded before a complete message was parsed")

// ErrUnexpectedEOF is returned when the source reaches clean EOF in the
// middle of a message, i.e. with unconsumed bytes already buffered that a
// parse attempt has rejected as incomplete.
var ErrUnexpectedEOF = errors.New("parseio: source reached eof mid-message")

// ParseFunc attempts to parse a value out of the bytes currently buffered in
// buf. ok is false when the buffered bytes are a valid-so-far-but-incomplete
// prefix ("Incomplete" in completion-I/O terms): the caller should read more
// and try again. err is non-nil only for a fatal, unrecoverable parse
// failure (malformed input), which ReadAndParse propagates immediately.
type ParseFunc[T any] func(buf *roll.RollMut) (value T, consumed int, ok bool, err error)

// ReadAndParse drives the read-then-try-parse loop against buf and src. It
// returns (value, true, nil) on success, (zero, false, nil) on clean EOF
// with no partial message buffered, or a non-nil error for a parse failure,
// an EOF mid-message, a buffer-limit overrun, or an I/O error.
func ReadAndParse[T any](ctx context.Context, buf *roll.RollMut, src roll.Source, maxBuf int, parse ParseFunc[T]) (T, bool, error) {
	var zero T
	for {
		if buf.Len() > 0 {
			value, consumed, ok, err := parse(buf)
			if err != nil {
				return zero, false, err
			}
			if ok {
				buf.Keep(buf.Len() - consumed)
				return value, true, nil
			}
		}

		if buf.Len() >= maxBuf {
			return zero, false, ErrBufferLimitExceeded
		}

		room := maxBuf - buf.Len()
		n, err := buf.ReadInto(ctx, room, src)
		if err != nil {
			return zero, false, err
		}
		if n == 0 {
			if buf.Len() == 0 {
				return zero, false, nil
			}
			return zero, false, errors.WithStack(ErrUnexpectedEOF)
		}
	}
}
