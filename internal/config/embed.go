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
	_ "embed"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/anssi-fr/orc2timeline/internal/orcerr"
)

// defaultConfigYAML is the plugin table shipped with the binary, used to
// self-bootstrap the on-disk config on first run and as the fallback if that
// file is ever removed. spec.md §6 fixes the config path "relative to the
// installation" with no flag to override it ("editing in place is required,
// matching source behaviour"); Load, not this embed alone, is what makes
// in-place editing possible for a compiled binary.
//
//go:embed default_config.yaml
var defaultConfigYAML []byte

// DefaultConfigText returns the embedded config verbatim.
func DefaultConfigText() []byte {
	return defaultConfigYAML
}

// Default parses the embedded config, bypassing the on-disk file. Tests that
// want a known-good config without touching the filesystem use this; the CLI
// itself uses Load.
func Default() (*Config, error) {
	return Parse(defaultConfigYAML)
}

// PathFor returns the fixed config file location for an installation rooted
// at installDir (normally the directory containing the running binary).
func PathFor(installDir string) string {
	return filepath.Join(installDir, "config.yaml")
}

// Load reads and parses the plugin config at path, the file show_conf_file
// reports and a user is expected to edit in place (spec.md §6). If the file
// doesn't exist yet, Load self-bootstraps it from the embedded default so a
// fresh install has something to edit; if that write fails (e.g. a read-only
// install directory) Load logs it and falls back to the embedded bytes in
// memory rather than failing the run outright.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return Parse(data)
	case errors.Is(err, os.ErrNotExist):
		if werr := os.WriteFile(path, defaultConfigYAML, 0o644); werr != nil {
			slog.Warn("could not write default config file, using embedded default", "path", path, "error", werr)
		}
		return Parse(defaultConfigYAML)
	default:
		return nil, &orcerr.ConfigError{Msg: "reading config " + path + ": " + err.Error()}
	}
}
