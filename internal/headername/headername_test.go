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

package headername

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownCaseInsensitive(t *testing.T) {
	p, ok := Lookup([]byte("Content-Type"))
	require.True(t, ok)
	assert.Equal(t, []byte("content-type"), p.Bytes())
	assert.True(t, p.IsHeaderName())
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Lookup([]byte("x-my-custom-header"))
	assert.False(t, ok)
}

func TestLookupEveryWellKnownName(t *testing.T) {
	for _, name := range wellKnown {
		_, ok := Lookup([]byte(name))
		assert.True(t, ok, "expected %q to be interned", name)
	}
}
