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

// Package builtin holds the three concrete plugins that exercise the Plugin
// Contract end to end (spec.md §4.5, §12 supplemented features): genericcsv,
// recyclebin and lnk. CSV row shaping for DFIR-ORC's actual parser output
// (NTFSInfo, USNInfo, I30Info) is explicitly out of scope (spec.md §1,
// "artefact-specific parsers"), so genericcsv reads whichever timestamp and
// path-shaped columns a header names rather than hard-coding one schema.
package builtin

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/anssi-fr/orc2timeline/internal/config"
	"github.com/anssi-fr/orc2timeline/internal/plugin"
	"github.com/anssi-fr/orc2timeline/internal/timeline"
)

// genericCSVNames are every config plugin name the default config table
// (internal/config/default_config.yaml) resolves to this implementation.
// The config format names one PluginSpec per registered plugin (spec.md
// §4.1), but NTFSInfo, USNInfo and I30Info are all header-driven generic CSV
// reads, so the same factory is registered under each distinct name rather
// than forcing the config to rename them all to "genericcsv" and lose the
// per-entry archive-index dedup that spec.md §3 keys off the name.
var genericCSVNames = []string{"genericcsv", "NTFSInfo", "USNInfo", "I30Info"}

func init() {
	for _, name := range genericCSVNames {
		plugin.Register(name, func() plugin.Plugin { return &genericCSVPlugin{} }, nil)
	}
}

// timestampColumns lists header names, in priority order, genericcsv treats
// as the row's timestamp. DFIR-ORC's NTFSInfo/USNInfo/I30Info outputs use
// several of these depending on parser version.
var timestampColumns = []string{
	"timestamp", "Timestamp",
	"LastModificationDate", "CreationDate", "LastAccessDate", "LastAttrChangeDate",
	"UsnCreationDate", "UsnUpdateDate",
}

// pathColumns lists header names genericcsv treats as the row's original
// Windows path, used only when the extractor found no sidecar hint.
var pathColumns = []string{
	"FullName", "ParentName", "File", "FileName", "Path",
}

// columnTable is the shape of the optional
// plugins/<name>/timestamp_columns.json sidecar
// (spec.md §6, "table → timestamp column map"): a plugin installation may
// ship header names to try before the built-in defaults, e.g. to recognise a
// DFIR-ORC parser version that renamed a column.
type columnTable struct {
	Timestamp []string `json:"timestamp_columns"`
	Path      []string `json:"path_columns"`
}

type genericCSVPlugin struct {
	spec           config.PluginSpec
	hostname       string
	timestampNames []string
	pathNames      []string
}

func (p *genericCSVPlugin) Init(spec config.PluginSpec, hostname, _ string) error {
	p.spec = spec
	p.hostname = hostname
	p.timestampNames = timestampColumns
	p.pathNames = pathColumns

	aux := filepath.Join(plugin.AuxDir(spec.Name), "timestamp_columns.json")
	data, err := os.ReadFile(aux)
	if err != nil {
		return nil // no sidecar shipped for this plugin name: built-in defaults stand
	}
	var table columnTable
	if err := json.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("parsing %s: %w", aux, err)
	}
	if len(table.Timestamp) > 0 {
		p.timestampNames = append(table.Timestamp, timestampColumns...)
	}
	if len(table.Path) > 0 {
		p.pathNames = append(table.Path, pathColumns...)
	}
	return nil
}

func (p *genericCSVPlugin) FileHeaderFilter() []byte { return nil }

func (p *genericCSVPlugin) ParseArtefact(path, originalPathHint string, emit plugin.EmitFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[strings.TrimSpace(name)] = i
	}

	tsCol := firstPresent(colIndex, p.timestampNames)
	pathCol := firstPresent(colIndex, p.pathNames)

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		p.emitRow(row, header, tsCol, pathCol, path, originalPathHint, emit)
	}
	return nil
}

func (p *genericCSVPlugin) emitRow(row, header []string, tsCol, pathCol int, path, originalPathHint string, emit plugin.EmitFunc) {
	if tsCol < 0 || tsCol >= len(row) {
		return
	}
	ts, ok := timeline.ParseTimestamp(row[tsCol])
	if !ok {
		return
	}

	source := originalPathHint
	if source == "" && pathCol >= 0 && pathCol < len(row) {
		source = row[pathCol]
	}
	if source == "" {
		source = path
	}

	var fields []string
	for i, v := range row {
		if i == tsCol || v == "" {
			continue
		}
		name := "?"
		if i < len(header) {
			name = header[i]
		}
		fields = append(fields, name+"="+v)
	}

	emit(timeline.NewEvent(ts, p.hostname, p.spec.SourceType, strings.Join(fields, "; "), source))
}

func (p *genericCSVPlugin) Finalize(plugin.EmitFunc) error { return nil }

func firstPresent(colIndex map[string]int, candidates []string) int {
	for _, name := range candidates {
		if i, ok := colIndex[name]; ok {
			return i
		}
	}
	return -1
}

var _ plugin.Plugin = (*genericCSVPlugin)(nil)
