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

package h1

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/fluxhttp/internal/bufpool"
	"github.com/packetd/fluxhttp/parseio"
	"github.com/packetd/fluxhttp/roll"
)

func TestParseRequestLineAndHeaderBlockFragmented(t *testing.T) {
	pool := bufpool.New(8)
	buf := roll.New(pool)
	raw := "GET /index.html HTTP/1.1\r\nHost: example.com\r\nContent-Type: text/plain\r\n\r\nbody-follows"
	var chunks [][]byte
	for i := 0; i < len(raw); i += 3 {
		end := i + 3
		if end > len(raw) {
			end = len(raw)
		}
		chunks = append(chunks, []byte(raw[i:end]))
	}
	src := &chunkSource{chunks: chunks}

	rl, ok, err := parseio.ReadAndParse[RequestLine](context.Background(), buf, src, 4096, ParseRequestLine)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "GET", string(rl.Method.Bytes()))
	assert.Equal(t, "/index.html", string(rl.Path.Bytes()))
	assert.Equal(t, "HTTP/1.1", string(rl.Version.Bytes()))

	hb, ok, err := parseio.ReadAndParse[HeaderBlock](context.Background(), buf, src, 4096, ParseHeaderBlock)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, hb.Fields, 2)
	assert.Equal(t, "host", string(hb.Fields[0].Name.Bytes()))
	assert.Equal(t, "example.com", string(hb.Fields[0].Value.Bytes()))
	assert.True(t, hb.Fields[0].Name.IsHeaderName())
	assert.Equal(t, "content-type", string(hb.Fields[1].Name.Bytes()))
	assert.Equal(t, "text/plain", string(hb.Fields[1].Value.Bytes()))

	assert.Equal(t, []byte("body-follows"), buf.ContiguousRange(0))
}

func TestParseStatusLine(t *testing.T) {
	pool := bufpool.New(64)
	buf := roll.New(pool)
	src := &chunkSource{chunks: [][]byte{[]byte("HTTP/1.1 404 Not Found\r\n")}}

	sl, ok, err := parseio.ReadAndParse[StatusLine](context.Background(), buf, src, 1024, ParseStatusLine)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "HTTP/1.1", string(sl.Version.Bytes()))
	assert.Equal(t, 404, sl.StatusCode)
	assert.Equal(t, "Not Found", string(sl.Reason.Bytes()))
}

func TestParseHeaderFieldMalformed(t *testing.T) {
	pool := bufpool.New(64)
	buf := roll.New(pool)
	src := &chunkSource{chunks: [][]byte{[]byte("not-a-valid-header-line\r\n\r\n")}}

	_, ok, err := parseio.ReadAndParse[HeaderBlock](context.Background(), buf, src, 1024, ParseHeaderBlock)
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMalformedHeaderField)
}
