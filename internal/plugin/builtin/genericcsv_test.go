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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anssi-fr/orc2timeline/internal/config"
	"github.com/anssi-fr/orc2timeline/internal/plugin"
	"github.com/anssi-fr/orc2timeline/internal/timeline"
)

func TestGenericCSVParsesRowsWithKnownTimestampColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "NTFSInfo.csv")
	content := "FullName,LastModificationDate,Size\n" +
		`C:\Users\bob\a.txt,2024-01-01 00:01:00.000,10` + "\n" +
		`C:\Users\bob\b.txt,2024-01-01 00:02:00.000,20` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p := &genericCSVPlugin{}
	require.NoError(t, p.Init(config.PluginSpec{Name: "NTFSInfo", SourceType: "NTFSInfo"}, "HOST", ""))

	var events []timeline.Event
	require.NoError(t, p.ParseArtefact(path, "", func(e timeline.Event) { events = append(events, e) }))
	require.NoError(t, p.Finalize(func(timeline.Event) {}))

	require.Len(t, events, 2)
	require.Equal(t, "HOST", events[0].Hostname)
	require.Equal(t, "NTFSInfo", events[0].SourceType)
	require.Equal(t, `C:\Users\bob\a.txt`, events[0].Source)
}

func TestGenericCSVSkipsRowsWithUnparseableTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "USNInfo.csv")
	content := "FullName,LastModificationDate\n" +
		`C:\ok.txt,2024-01-01 00:01:00.000` + "\n" +
		`C:\bad.txt,not-a-timestamp` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p := &genericCSVPlugin{}
	require.NoError(t, p.Init(config.PluginSpec{Name: "USNInfo", SourceType: "USNInfo"}, "HOST", ""))

	var events []timeline.Event
	require.NoError(t, p.ParseArtefact(path, "", func(e timeline.Event) { events = append(events, e) }))
	require.Len(t, events, 1)
}

func TestGenericCSVPrefersOriginalPathHint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "I30Info.csv")
	content := "FullName,timestamp\n" + `ignored,2024-01-01 00:00:00.000` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p := &genericCSVPlugin{}
	require.NoError(t, p.Init(config.PluginSpec{Name: "I30Info", SourceType: "I30Info"}, "HOST", ""))

	var events []timeline.Event
	require.NoError(t, p.ParseArtefact(path, `C:\hinted\path.txt`, func(e timeline.Event) { events = append(events, e) }))
	require.Len(t, events, 1)
	require.Equal(t, `C:\hinted\path.txt`, events[0].Source)
}

// TestGenericCSVUsesAuxTimestampColumnOverride confirms a plugins/<name>/
// timestamp_columns.json sidecar (spec.md §6, "Plugin auxiliary files") lets
// an installation teach genericcsv a column name the built-in list doesn't
// know, without recompiling.
func TestGenericCSVUsesAuxTimestampColumnOverride(t *testing.T) {
	root := t.TempDir()
	auxDir := filepath.Join(root, "plugins", "NTFSInfo")
	require.NoError(t, os.MkdirAll(auxDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(auxDir, "timestamp_columns.json"),
		[]byte(`{"timestamp_columns": ["WeirdDate"]}`), 0o644))
	plugin.SetAuxRoot(root)
	defer plugin.SetAuxRoot("")

	dir := t.TempDir()
	path := filepath.Join(dir, "NTFSInfo.csv")
	content := "FullName,WeirdDate\n" + `C:\a.txt,2024-01-01 00:01:00.000` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p := &genericCSVPlugin{}
	require.NoError(t, p.Init(config.PluginSpec{Name: "NTFSInfo", SourceType: "NTFSInfo"}, "HOST", ""))

	var events []timeline.Event
	require.NoError(t, p.ParseArtefact(path, "", func(e timeline.Event) { events = append(events, e) }))
	require.Len(t, events, 1)
}

func TestGenericCSVRegisteredByName(t *testing.T) {
	factory, mu, ok := plugin.Lookup("genericcsv")
	require.True(t, ok)
	require.Nil(t, mu)
	require.NotNil(t, factory())
}

// TestGenericCSVRegisteredUnderDefaultConfigNames confirms the default
// config's NTFSInfo/USNInfo/I30Info entries resolve to this implementation.
func TestGenericCSVRegisteredUnderDefaultConfigNames(t *testing.T) {
	for _, name := range []string{"NTFSInfo", "USNInfo", "I30Info"} {
		factory, _, ok := plugin.Lookup(name)
		require.Truef(t, ok, "expected %q to be registered", name)
		require.IsType(t, &genericCSVPlugin{}, factory())
	}
}
