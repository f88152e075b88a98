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
	"fmt"
	"os"

	"github.com/anssi-fr/orc2timeline/internal/config"
	"github.com/anssi-fr/orc2timeline/internal/plugin"
	"github.com/anssi-fr/orc2timeline/internal/timeline"
)

func init() {
	factory := func() plugin.Plugin { return &lnkPlugin{} }
	plugin.Register("lnk", factory, nil)
	plugin.Register("BrowsingHistoryLNK", factory, nil) // default_config.yaml's config name
}

// lnkHeaderMagic is the fixed 20-byte ShellLinkHeader prefix (HeaderSize
// 0x0000004C followed by the fixed LinkCLSID) every well-formed .lnk file
// starts with; this is the header filter scenario S2 exercises.
var lnkHeaderMagic = []byte{
	0x4C, 0x00, 0x00, 0x00, 0x01, 0x14, 0x02, 0x00, 0x00, 0x00,
	0x00, 0x00, 0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46,
}

const lnkHeaderSize = 76

// lnkPlugin reads a Windows Shell Link (.lnk) ShellLinkHeader and emits one
// Event per file from its WriteTime, the timestamp Explorer itself surfaces
// for "date modified" on the link's target.
type lnkPlugin struct {
	spec     config.PluginSpec
	hostname string
}

func (p *lnkPlugin) Init(spec config.PluginSpec, hostname, _ string) error {
	p.spec = spec
	p.hostname = hostname
	return nil
}

func (p *lnkPlugin) FileHeaderFilter() []byte { return lnkHeaderMagic }

func (p *lnkPlugin) ParseArtefact(path, originalPathHint string, emit plugin.EmitFunc) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) < lnkHeaderSize {
		return fmt.Errorf("lnk: %s too short for a ShellLinkHeader (%d bytes)", path, len(data))
	}

	creation := filetimeToTime(int64(binary.LittleEndian.Uint64(data[28:36])))
	access := filetimeToTime(int64(binary.LittleEndian.Uint64(data[36:44])))
	write := filetimeToTime(int64(binary.LittleEndian.Uint64(data[44:52])))
	fileSize := binary.LittleEndian.Uint32(data[52:56])

	source := originalPathHint
	if source == "" {
		source = path
	}

	emit(timeline.NewEvent(
		write,
		p.hostname,
		p.spec.SourceType,
		fmt.Sprintf("lnk target write time (created=%s, accessed=%s, size=%d)",
			creation.Format("2006-01-02T15:04:05Z"), access.Format("2006-01-02T15:04:05Z"), fileSize),
		source,
	))
	return nil
}

func (p *lnkPlugin) Finalize(plugin.EmitFunc) error { return nil }

var _ plugin.Plugin = (*lnkPlugin)(nil)
