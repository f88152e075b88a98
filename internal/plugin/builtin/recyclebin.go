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
	"time"
	"unicode/utf16"

	"github.com/anssi-fr/orc2timeline/internal/config"
	"github.com/anssi-fr/orc2timeline/internal/plugin"
	"github.com/anssi-fr/orc2timeline/internal/timeline"
)

func init() {
	factory := func() plugin.Plugin { return &recycleBinPlugin{} }
	plugin.Register("recyclebin", factory, nil)
	plugin.Register("RecycleBin", factory, nil) // default_config.yaml's config name
}

// filetimeEpoch is 1601-01-01T00:00:00Z, the origin of Windows FILETIME.
var filetimeEpoch = time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)

func filetimeToTime(ft int64) time.Time {
	return time.Unix(filetimeEpoch.Unix()+ft/10_000_000, (ft%10_000_000)*100).UTC()
}

// recycleBinPlugin parses $I recycle-bin metadata records: a small fixed
// header (format version, original file size, deletion FILETIME) followed
// by the original path, UTF-16LE encoded. Both the Windows 10 (version 2,
// length-prefixed path) and the older Vista/7 (version 1, fixed 260-WCHAR
// path) record shapes are supported.
type recycleBinPlugin struct {
	spec     config.PluginSpec
	hostname string
}

func (p *recycleBinPlugin) Init(spec config.PluginSpec, hostname, _ string) error {
	p.spec = spec
	p.hostname = hostname
	return nil
}

func (p *recycleBinPlugin) FileHeaderFilter() []byte { return nil }

func (p *recycleBinPlugin) ParseArtefact(path, originalPathHint string, emit plugin.EmitFunc) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) < 24 {
		return fmt.Errorf("recyclebin: %s too short for a header (%d bytes)", path, len(data))
	}

	version := int64(binary.LittleEndian.Uint64(data[0:8]))
	fileSize := int64(binary.LittleEndian.Uint64(data[8:16]))
	deletionFiletime := int64(binary.LittleEndian.Uint64(data[16:24]))

	var originalPath string
	switch version {
	case 1:
		if len(data) < 24+520 {
			return fmt.Errorf("recyclebin: %s too short for a version 1 record", path)
		}
		originalPath = decodeUTF16LE(data[24 : 24+520])
	case 2:
		if len(data) < 28 {
			return fmt.Errorf("recyclebin: %s too short for a version 2 header", path)
		}
		pathLenChars := int(binary.LittleEndian.Uint32(data[24:28]))
		pathBytes := pathLenChars * 2
		if 28+pathBytes > len(data) {
			return fmt.Errorf("recyclebin: %s path length %d exceeds record size", path, pathLenChars)
		}
		originalPath = decodeUTF16LE(data[28 : 28+pathBytes])
	default:
		return fmt.Errorf("recyclebin: %s has unrecognized format version %d", path, version)
	}

	source := originalPathHint
	if source == "" {
		source = originalPath
	}

	emit(timeline.NewEvent(
		filetimeToTime(deletionFiletime),
		p.hostname,
		p.spec.SourceType,
		fmt.Sprintf("deleted %q (size=%d)", originalPath, fileSize),
		source,
	))
	return nil
}

func (p *recycleBinPlugin) Finalize(plugin.EmitFunc) error { return nil }

// decodeUTF16LE decodes a null-terminated (or fully-packed) UTF-16LE byte
// slice, stopping at the first null code unit.
func decodeUTF16LE(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i : i+2])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

var _ plugin.Plugin = (*recycleBinPlugin)(nil)
