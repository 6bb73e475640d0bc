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
	"encoding/binary"

	"github.com/pkg/errors"
)

// Settings identifiers, RFC 7540 §6.5.2.
const (
	SettingHeaderTableSize      uint16 = 0x1
	SettingEnablePush           uint16 = 0x2
	SettingMaxConcurrentStreams uint16 = 0x3
	SettingInitialWindowSize    uint16 = 0x4
	SettingMaxFrameSize         uint16 = 0x5
	SettingMaxHeaderListSize    uint16 = 0x6
)

// ErrMalformedSettings is returned when a SETTINGS payload isn't a multiple
// of 6 bytes.
var ErrMalformedSettings = errors.New("h2: malformed settings frame payload")

// Settings holds the subset of HTTP/2 connection settings this driver
// tracks and enforces.
type Settings struct {
	HeaderTableSize      uint32
	EnablePush           bool
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32
}

// DefaultSettings returns the values this server announces. ServeConnection
// passes them to Serve unchanged; they are not read from configuration.
func DefaultSettings() Settings {
	return Settings{
		HeaderTableSize:      4096,
		EnablePush:           false,
		MaxConcurrentStreams: 100,
		InitialWindowSize:    65535,
		MaxFrameSize:         16384,
		MaxHeaderListSize:    1 << 20,
	}
}

// Encode serializes s as a SETTINGS frame payload.
func (s Settings) Encode() []byte {
	entries := [][2]uint32{
		{uint32(SettingHeaderTableSize), s.HeaderTableSize},
		{uint32(SettingMaxConcurrentStreams), s.MaxConcurrentStreams},
		{uint32(SettingInitialWindowSize), s.InitialWindowSize},
		{uint32(SettingMaxFrameSize), s.MaxFrameSize},
		{uint32(SettingMaxHeaderListSize), s.MaxHeaderListSize},
	}
	push := uint32(0)
	if s.EnablePush {
		push = 1
	}
	entries = append(entries, [2]uint32{uint32(SettingEnablePush), push})

	buf := make([]byte, 0, 6*len(entries))
	for _, e := range entries {
		var tmp [6]byte
		binary.BigEndian.PutUint16(tmp[0:2], uint16(e[0]))
		binary.BigEndian.PutUint32(tmp[2:6], e[1])
		buf = append(buf, tmp[:]...)
	}
	return buf
}

// ApplyUpdate mutates s in place per one decoded SETTINGS entry.
func (s *Settings) ApplyUpdate(id uint16, value uint32) {
	switch id {
	case SettingHeaderTableSize:
		s.HeaderTableSize = value
	case SettingEnablePush:
		s.EnablePush = value != 0
	case SettingMaxConcurrentStreams:
		s.MaxConcurrentStreams = value
	case SettingInitialWindowSize:
		s.InitialWindowSize = value
	case SettingMaxFrameSize:
		s.MaxFrameSize = value
	case SettingMaxHeaderListSize:
		s.MaxHeaderListSize = value
	}
}

// DecodeSettingsPayload parses a SETTINGS frame payload into individual
// (identifier, value) updates, applying each against base in turn and
// returning the resulting Settings.
func DecodeSettingsPayload(base Settings, payload []byte) (Settings, error) {
	if len(payload)%6 != 0 {
		return Settings{}, errors.WithStack(ErrMalformedSettings)
	}
	out := base
	for i := 0; i+6 <= len(payload); i += 6 {
		id := binary.BigEndian.Uint16(payload[i : i+2])
		value := binary.BigEndian.Uint32(payload[i+2 : i+6])
		out.ApplyUpdate(id, value)
	}
	return out, nil
}
