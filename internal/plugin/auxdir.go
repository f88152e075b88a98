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

package plugin

import "path/filepath"

// auxRoot is the fixed directory tree plugin auxiliary files live under,
// set once at startup by SetAuxRoot (spec.md §6, "Plugin auxiliary files";
// not a mutable global in the sense spec.md §9 warns against — it is
// written once, before any plugin runs, and read-only thereafter).
var auxRoot string

// SetAuxRoot pins the root of the plugins/<name>/ tree, normally the
// directory containing the active config file.
func SetAuxRoot(dir string) {
	auxRoot = dir
}

// AuxDir returns the fixed plugins/<name>/ directory a plugin may use for
// sidecar lookup tables (e.g. a LNK plugin's known-hash database), without
// each plugin reinventing path joining against the config location.
func AuxDir(name string) string {
	return filepath.Join(auxRoot, "plugins", name)
}
