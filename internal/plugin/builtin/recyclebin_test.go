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
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/stretchr/testify/require"

	"github.com/anssi-fr/orc2timeline/internal/config"
	"github.com/anssi-fr/orc2timeline/internal/plugin"
	"github.com/anssi-fr/orc2timeline/internal/timeline"
)

func buildV2Record(t *testing.T, deleted time.Time, size int64, path string) []byte {
	t.Helper()
	units := utf16.Encode([]rune(path))
	units = append(units, 0)

	buf := make([]byte, 28+len(units)*2)
	binary.LittleEndian.PutUint64(buf[0:8], 2)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(size))
	ft := (deleted.Unix()-filetimeEpoch.Unix())*10_000_000 + int64(deleted.Nanosecond())/100
	binary.LittleEndian.PutUint64(buf[16:24], uint64(ft))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(len(units)))
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[28+i*2:28+i*2+2], u)
	}
	return buf
}

func TestRecycleBinParsesV2Record(t *testing.T) {
	dir := t.TempDir()
	deleted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	data := buildV2Record(t, deleted, 1024, `C:\Users\bob\Desktop\secret.docx`)
	path := filepath.Join(dir, "$IABCDEF")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p := &recycleBinPlugin{}
	require.NoError(t, p.Init(config.PluginSpec{Name: "RecycleBin", SourceType: "RecycleBin"}, "HOST", ""))

	var events []timeline.Event
	require.NoError(t, p.ParseArtefact(path, "", func(e timeline.Event) { events = append(events, e) }))
	require.Len(t, events, 1)
	require.WithinDuration(t, deleted, events[0].Timestamp, time.Microsecond)
	require.Contains(t, events[0].Description, "secret.docx")
	require.Equal(t, `C:\Users\bob\Desktop\secret.docx`, events[0].Source)
}

func TestRecycleBinPrefersOriginalPathHint(t *testing.T) {
	dir := t.TempDir()
	data := buildV2Record(t, time.Now().UTC(), 1, `C:\from\record.txt`)
	path := filepath.Join(dir, "$IXXXXXX")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p := &recycleBinPlugin{}
	require.NoError(t, p.Init(config.PluginSpec{Name: "RecycleBin", SourceType: "RecycleBin"}, "HOST", ""))

	var events []timeline.Event
	require.NoError(t, p.ParseArtefact(path, `C:\from\hint.txt`, func(e timeline.Event) { events = append(events, e) }))
	require.Equal(t, `C:\from\hint.txt`, events[0].Source)
}

func TestRecycleBinRejectsTruncatedRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "$ITRUNC")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	p := &recycleBinPlugin{}
	require.NoError(t, p.Init(config.PluginSpec{Name: "RecycleBin", SourceType: "RecycleBin"}, "HOST", ""))
	err := p.ParseArtefact(path, "", func(timeline.Event) {})
	require.Error(t, err)
}

// TestRecycleBinRegisteredUnderDefaultConfigName confirms the default
// config's RecycleBin entry resolves to this implementation.
func TestRecycleBinRegisteredUnderDefaultConfigName(t *testing.T) {
	factory, _, ok := plugin.Lookup("RecycleBin")
	require.True(t, ok)
	require.IsType(t, &recycleBinPlugin{}, factory())
}

func TestRecycleBinRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[0:8], 99)
	path := filepath.Join(dir, "$IBADVER")
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	p := &recycleBinPlugin{}
	require.NoError(t, p.Init(config.PluginSpec{Name: "RecycleBin", SourceType: "RecycleBin"}, "HOST", ""))
	err := p.ParseArtefact(path, "", func(timeline.Event) {})
	require.Error(t, err)
}
