// Copyright 2021 Tetrate
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package builtin

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anssi-fr/orc2timeline/internal/config"
	"github.com/anssi-fr/orc2timeline/internal/plugin"
	"github.com/anssi-fr/orc2timeline/internal/timeline"
)

func buildLNKHeader(t *testing.T, magic []byte, write time.Time) []byte {
	t.Helper()
	buf := make([]byte, lnkHeaderSize)
	copy(buf, magic)
	ft := uint64((write.Unix()-filetimeEpoch.Unix())*10_000_000 + int64(write.Nanosecond())/100)
	binary.LittleEndian.PutUint64(buf[44:52], ft)
	return buf
}

func TestLNKFileHeaderFilterMatchesGenuineMagic(t *testing.T) {
	p := &lnkPlugin{}
	require.True(t, bytes.Equal(p.FileHeaderFilter(), lnkHeaderMagic))
}

// TestLNKParsesGenuineFile is the plugin half of scenario S2: a well-formed
// .lnk header yields one event.
func TestLNKParsesGenuineFile(t *testing.T) {
	dir := t.TempDir()
	write := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	data := buildLNKHeader(t, lnkHeaderMagic, write)
	path := filepath.Join(dir, "genuine.lnk")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p := &lnkPlugin{}
	require.NoError(t, p.Init(config.PluginSpec{Name: "BrowsingHistoryLNK", SourceType: "LNK"}, "HOST", ""))

	var events []timeline.Event
	require.NoError(t, p.ParseArtefact(path, "", func(e timeline.Event) { events = append(events, e) }))
	require.Len(t, events, 1)
	require.WithinDuration(t, write, events[0].Timestamp, time.Microsecond)
}

func TestLNKRejectsTooShortFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.lnk")
	require.NoError(t, os.WriteFile(path, []byte{0x4C, 0x00}, 0o644))

	p := &lnkPlugin{}
	require.NoError(t, p.Init(config.PluginSpec{Name: "BrowsingHistoryLNK", SourceType: "LNK"}, "HOST", ""))
	err := p.ParseArtefact(path, "", func(timeline.Event) {})
	require.Error(t, err)
}

// TestLNKRegisteredUnderDefaultConfigName confirms the default config's
// BrowsingHistoryLNK entry resolves to this implementation.
func TestLNKRegisteredUnderDefaultConfigName(t *testing.T) {
	factory, _, ok := plugin.Lookup("BrowsingHistoryLNK")
	require.True(t, ok)
	require.IsType(t, &lnkPlugin{}, factory())
}
