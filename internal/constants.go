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

package internal

// Well-known DFIR-ORC archive type tokens, extracted from the
// "DFIR-ORC_<role>_<hostname>_<type>.7z" outer archive filename convention.
// Unknown tokens are preserved as-is by the Host Grouper; this list only
// documents the profiles DFIR-ORC ships by default.
const (
	ArchiveTypeGeneral  = "General"
	ArchiveTypeLittle   = "Little"
	ArchiveTypeDetail   = "Detail"
	ArchiveTypeOffline  = "Offline"
	ArchiveTypeSAM      = "SAM"
	ArchiveTypeBrowsers = "Browsers"
)

// KnownArchiveTypes are the archive type tokens DFIR-ORC ships by default.
// IsKnownArchiveType is advisory only: the Archive Index accepts any token,
// known or not, per spec.
func KnownArchiveTypes() []string {
	return []string{
		ArchiveTypeGeneral,
		ArchiveTypeLittle,
		ArchiveTypeDetail,
		ArchiveTypeOffline,
		ArchiveTypeSAM,
		ArchiveTypeBrowsers,
	}
}

// IsKnownArchiveType returns true if t is one of the archive type tokens
// DFIR-ORC ships by default. Unknown tokens are still valid ArchiveType
// values; nothing in the pipeline rejects a token this returns false for.
func IsKnownArchiveType(t string) bool {
	for _, k := range KnownArchiveTypes() {
		if k == t {
			return true
		}
	}
	return false
}
