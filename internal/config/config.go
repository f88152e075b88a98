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

// Package config is the Config Resolver (spec.md §4.1): it parses the YAML
// plugin configuration into an ordered, immutable list of PluginSpec. The
// (name, archives, sub_archives) triples each spec describes are expanded by
// the Archive Index, not here. This project uses go:embed, so requires minimally go 1.16, to ship a
// default config next to the binary the way the teacher ships its default
// platform table.
package config

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/anssi-fr/orc2timeline/internal/orcerr"
)

// PluginSpec is one configured plugin, immutable once built (spec.md §3).
type PluginSpec struct {
	Name         string
	Archives     []string
	SubArchives  []string // empty means "artefact sits in the outer archive directly"
	MatchPattern *regexp.Regexp
	SourceType   string
}

// Config is the process-wide, immutable plugin table (spec.md §9, "Global
// config singleton" — re-expressed here as a value built once at startup and
// threaded through the scheduler, never a mutable global).
type Config struct {
	Plugins []PluginSpec
}

// rawDocument mirrors the YAML shape: a top-level Plugins sequence whose
// elements are single-key mappings, <PluginName>: {archives, sub_archives?,
// match_pattern, source_type}.
type rawDocument struct {
	Plugins []yaml.Node `yaml:"Plugins"`
}

type rawSpec struct {
	Archives     []string `yaml:"archives"`
	SubArchives  []string `yaml:"sub_archives"`
	MatchPattern string   `yaml:"match_pattern"`
	SourceType   string   `yaml:"source_type"`
}

// Parse decodes the Plugins sequence in data and validates every entry,
// returning an *orcerr.ConfigError on the first violation (spec.md §4.1):
// archives non-empty, match_pattern compiles, source_type non-empty.
// sub_archives may be omitted.
func Parse(data []byte) (*Config, error) {
	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &orcerr.ConfigError{Msg: fmt.Sprintf("parsing config: %v", err)}
	}

	cfg := &Config{Plugins: make([]PluginSpec, 0, len(doc.Plugins))}
	for i, node := range doc.Plugins {
		spec, err := decodePluginEntry(node)
		if err != nil {
			return nil, &orcerr.ConfigError{Msg: fmt.Sprintf("Plugins[%d]: %v", i, err)}
		}
		cfg.Plugins = append(cfg.Plugins, spec)
	}
	return cfg, nil
}

// decodePluginEntry decodes one single-key mapping node into a PluginSpec and
// validates it.
func decodePluginEntry(node yaml.Node) (PluginSpec, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return PluginSpec{}, fmt.Errorf("expected a single-key mapping naming the plugin")
	}
	name := node.Content[0].Value

	var raw rawSpec
	if err := node.Content[1].Decode(&raw); err != nil {
		return PluginSpec{}, fmt.Errorf("plugin %q: %w", name, err)
	}

	if name == "" {
		return PluginSpec{}, fmt.Errorf("plugin entry is missing a name")
	}
	if len(raw.Archives) == 0 {
		return PluginSpec{}, fmt.Errorf("plugin %q: archives must be non-empty", name)
	}
	// Archive type tokens are preserved as opaque strings (spec.md §3: "Unknown
	// types are preserved as strings"), so they are not checked against the
	// set of types orc2timeline happens to recognize by name.
	if raw.SourceType == "" {
		return PluginSpec{}, fmt.Errorf("plugin %q: source_type must be non-empty", name)
	}
	if raw.MatchPattern == "" {
		return PluginSpec{}, fmt.Errorf("plugin %q: match_pattern must be non-empty", name)
	}
	re, err := regexp.Compile(raw.MatchPattern)
	if err != nil {
		return PluginSpec{}, fmt.Errorf("plugin %q: match_pattern does not compile: %w", name, err)
	}

	return PluginSpec{
		Name:         name,
		Archives:     raw.Archives,
		SubArchives:  raw.SubArchives,
		MatchPattern: re,
		SourceType:   raw.SourceType,
	}, nil
}
