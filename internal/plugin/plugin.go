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

// Package plugin is the Plugin Contract (spec.md §4.5): a capability-set
// interface every artefact parser implements, plus the static name registry
// the engine uses to look plugins up by PluginSpec.Name. Plugins never open archives themselves; the runtime
// extracts matching files and calls parse_artefact once per file.
package plugin

import (
	"fmt"
	"sync"

	"github.com/anssi-fr/orc2timeline/internal/config"
	"github.com/anssi-fr/orc2timeline/internal/timeline"
)

// EmitFunc is the runtime-provided sink a plugin pushes Events into. An
// Event with a zero Timestamp must never be passed to EmitFunc; Discard it
// at the plugin, per spec.md §3 ("an event with an unparseable or missing
// timestamp is discarded at emission").
type EmitFunc func(timeline.Event)

// Plugin is the four-operation contract spec.md §4.5 names. A Plugin
// instance is constructed fresh for each PluginInstance (one per (spec,
// archive, sub_archive) triple) and is never reused across instances.
type Plugin interface {
	// Init receives this instance's configuration. hostname and tmpDir
	// scope where the plugin may write scratch state, if any; most plugins
	// need neither beyond what ParseArtefact is given directly.
	Init(spec config.PluginSpec, hostname, tmpDir string) error

	// FileHeaderFilter returns the byte prefix a candidate file's content
	// must match to be parsed, or nil if every regex-matched member
	// qualifies (spec.md §8 S2).
	FileHeaderFilter() []byte

	// ParseArtefact is called exactly once per matching extracted file. It
	// emits zero or more Events via emit.
	ParseArtefact(path, originalPathHint string, emit EmitFunc) error

	// Finalize flushes any state buffered across ParseArtefact calls.
	Finalize(emit EmitFunc) error
}

// Factory constructs a fresh Plugin instance.
type Factory func() Plugin

// registration pairs a Factory with the optional mutex that guards every
// instance of a plugin family whose underlying parser is not thread-safe (spec.md §4.7, §5: "registry hive
// library calls that are not thread-safe must be guarded by a plugin-level
// mutex supplied at construction"). nil means the family is reentrant and
// needs no cross-instance serialization.
type registration struct {
	factory Factory
	mutex   *sync.Mutex // shared across every instance of this family; nil if reentrant
}

var (
	registryMu sync.RWMutex
	registry   = map[string]registration{}
)

// Register adds name to the static plugin registry. sharedMutex is non-nil
// only for plugin families whose parser library is known not to be
// thread-safe; every instance of that family then serializes on the same
// *sync.Mutex (spec.md §4.7, "Do not share a single global mutex — that
// would serialise unrelated work": distinct families get distinct mutexes).
// Register panics on a duplicate name: it is called from each plugin
// package's init, so a duplicate means two builtin plugins collided.
func Register(name string, factory Factory, sharedMutex *sync.Mutex) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("plugin: duplicate registration for %q", name))
	}
	registry[name] = registration{factory: factory, mutex: sharedMutex}
}

// Lookup returns the Factory registered for name and the mutex (possibly
// nil) its family shares, or ok=false if name is not registered.
func Lookup(name string) (factory Factory, sharedMutex *sync.Mutex, ok bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, exists := registry[name]
	if !exists {
		return nil, nil, false
	}
	return r.factory, r.mutex, true
}

// Names returns every registered plugin name, for show_conf-style
// diagnostics.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
