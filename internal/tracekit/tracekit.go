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

// Package tracekit 从请求头中提取 W3C traceparent 携带的 trace id 用于跨连接的
// 日志关联；请求没有携带 traceparent 时退化为随机生成一个 仍然保证每条访问日志
// 都能带上一个 trace id
package tracekit

import (
	"crypto/rand"
	"strings"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/otel/trace"

	"github.com/packetd/fluxhttp/driver"
)

const headerTraceParent = "traceparent"

// TraceIDFromHeaders 在请求头列表中查找 traceparent 并提取其 trace id
//
// 格式样例：traceparent: 00-{trace-id}-{parent-id}-{trace-flags}
// H1 和 H2 的请求头在进入 driver 之前都已经被拍平成 []driver.Header 所以
// 同一份逻辑对两种协议都适用
func TraceIDFromHeaders(headers []driver.Header) (pcommon.TraceID, bool) {
	var empty pcommon.TraceID
	for _, h := range headers {
		if !strings.EqualFold(h.Name, headerTraceParent) {
			continue
		}
		parts := strings.Split(h.Value, "-")
		if len(parts) != 4 || parts[0] != "00" {
			return empty, false
		}
		id, err := trace.TraceIDFromHex(parts[1])
		if err != nil {
			return empty, false
		}
		return pcommon.TraceID(id), true
	}
	return empty, false
}

// RandomTraceID 为没有携带 traceparent 的请求生成一个 trace id
func RandomTraceID() pcommon.TraceID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return pcommon.TraceID(b)
}
