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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anssi-fr/orc2timeline/internal/orcerr"
)

func TestParseValidConfig(t *testing.T) {
	data := []byte(`
Plugins:
  - NTFSInfo:
      archives: [General, Detail]
      match_pattern: '(?i)^NTFSInfo.*\.csv$'
      source_type: NTFSInfo
  - RecycleBin:
      archives: [General]
      sub_archives: [RecycleBin.7z]
      match_pattern: '(?i)^\$I.*$'
      source_type: RecycleBin
`)
	cfg, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, cfg.Plugins, 2)

	require.Equal(t, "NTFSInfo", cfg.Plugins[0].Name)
	require.Equal(t, []string{"General", "Detail"}, cfg.Plugins[0].Archives)
	require.Empty(t, cfg.Plugins[0].SubArchives)
	require.True(t, cfg.Plugins[0].MatchPattern.MatchString("NTFSInfo_1.csv"))

	require.Equal(t, "RecycleBin", cfg.Plugins[1].Name)
	require.Equal(t, []string{"RecycleBin.7z"}, cfg.Plugins[1].SubArchives)
}

func TestParseUnknownArchiveTypeIsAccepted(t *testing.T) {
	data := []byte(`
Plugins:
  - Custom:
      archives: [SomeNewProfile]
      match_pattern: '.*'
      source_type: Custom
`)
	cfg, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, []string{"SomeNewProfile"}, cfg.Plugins[0].Archives)
}

func TestParseRejectsEmptyArchives(t *testing.T) {
	data := []byte(`
Plugins:
  - NTFSInfo:
      archives: []
      match_pattern: '.*'
      source_type: NTFSInfo
`)
	_, err := Parse(data)
	require.Error(t, err)
	var ce *orcerr.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestParseRejectsBadRegex(t *testing.T) {
	data := []byte(`
Plugins:
  - NTFSInfo:
      archives: [General]
      match_pattern: '('
      source_type: NTFSInfo
`)
	_, err := Parse(data)
	require.Error(t, err)
	var ce *orcerr.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestParseRejectsEmptySourceType(t *testing.T) {
	data := []byte(`
Plugins:
  - NTFSInfo:
      archives: [General]
      match_pattern: '.*'
      source_type: ''
`)
	_, err := Parse(data)
	require.Error(t, err)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("Plugins: [this is not a mapping"))
	require.Error(t, err)
	var ce *orcerr.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestDefaultConfigParses(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Plugins)
}

func TestDefaultConfigTextIsEmbedded(t *testing.T) {
	require.Contains(t, string(DefaultConfigText()), "Plugins:")
}

func TestPathForJoinsInstallDir(t *testing.T) {
	require.Equal(t, filepath.Join("some", "dir", "config.yaml"), PathFor(filepath.Join("some", "dir")))
}

// TestLoadBootstrapsMissingFile confirms a fresh install with no config.yaml
// yet gets one written from the embedded default, so editing it in place
// (spec.md §6) has something to start from.
func TestLoadBootstrapsMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Plugins)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigText(), written)
}

// TestLoadReadsEditedFile confirms editing the on-disk config actually
// changes what Load returns, the behaviour spec.md §6 requires.
func TestLoadReadsEditedFile(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir)
	custom := []byte(`
Plugins:
  - Custom:
      archives: [SomeProfile]
      match_pattern: '.*'
      source_type: Custom
`)
	require.NoError(t, os.WriteFile(path, custom, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Plugins, 1)
	require.Equal(t, "Custom", cfg.Plugins[0].Name)
}

func TestLoadSurfacesConfigErrorOnUnreadableExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir)
	require.NoError(t, os.WriteFile(path, []byte("Plugins: []"), 0o000))
	t.Cleanup(func() { _ = os.Chmod(path, 0o644) })

	if os.Getuid() == 0 {
		t.Skip("root ignores file permission bits")
	}
	_, err := Load(path)
	require.Error(t, err)
	var ce *orcerr.ConfigError
	require.ErrorAs(t, err, &ce)
}
