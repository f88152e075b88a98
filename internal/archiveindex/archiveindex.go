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

// Package archiveindex is the Archive Index (spec.md §4.3): given one
// HostBundle and the configured PluginSpecs, it produces the cross-joined
// set of PluginInstance descriptors the Plugin Runtime will construct, and
// tracks which (archive, sub_archive) combinations in the configuration were
// never satisfied by the bundle, for diagnostics.
package archiveindex

import (
	"fmt"

	"github.com/anssi-fr/orc2timeline/internal/config"
	"github.com/anssi-fr/orc2timeline/internal/matchset"
	"github.com/anssi-fr/orc2timeline/internal/orchost"
)

// directSubArchive is the singleton marker used when a PluginSpec has no
// sub_archives: the artefact sits in the outer archive directly (spec.md
// §4.3).
const directSubArchive = ""

// Instance describes one (spec, archive, sub_archive) combination that the
// bundle actually has material for. OuterPath is the outer archive file on
// disk; SubArchive is empty when the artefact is read directly from the
// outer archive.
type Instance struct {
	SpecName   string
	Archive    string
	SubArchive string
	OuterPath  string
	Spec       config.PluginSpec
}

// Build cross-joins spec.archives ∩ bundle.members with spec.sub_archives
// (or the singleton direct marker) for every spec, silently skipping outer
// archives the bundle does not contain (spec.md §4.3). Instances are
// de-duplicated by (spec_name, archive, sub_archive) triple across specs
// sharing a name (spec.md §3).
//
// Build only checks that the outer archive is in the bundle; whether a named
// sub-archive exists inside it is not known until extraction. The
// combinations the config describes but the bundle never satisfies are
// reported separately by Diagnose.
func Build(bundle orchost.HostBundle, specs []config.PluginSpec) []Instance {
	seen := map[string]bool{}
	var out []Instance

	for _, spec := range specs {
		subArchives := spec.SubArchives
		if len(subArchives) == 0 {
			subArchives = []string{directSubArchive}
		}
		for _, archive := range spec.Archives {
			outerPath, present := bundle.Members[archive]
			if !present {
				continue
			}
			for _, sub := range subArchives {
				key := fmt.Sprintf("%s\x00%s\x00%s", spec.Name, archive, sub)
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, Instance{
					SpecName:   spec.Name,
					Archive:    archive,
					SubArchive: sub,
					OuterPath:  outerPath,
					Spec:       spec,
				})
			}
		}
	}
	return out
}

// Diagnose reports every (archive, sub_archive) combination the configured
// specs describe, whether or not the bundle could satisfy it, using
// matchset.Tracker to surface the unsatisfied ones (e.g. for show_conf-style
// tooling or verbose logs). It never affects Build's output: missing outer
// archives are a normal, silent case, not an error (spec.md §4.3).
func Diagnose(bundle orchost.HostBundle, specs []config.PluginSpec) (total int, unsatisfied []string) {
	var allKeys []string
	keyIndex := map[string]bool{}
	for _, spec := range specs {
		subArchives := spec.SubArchives
		if len(subArchives) == 0 {
			subArchives = []string{directSubArchive}
		}
		for _, archive := range spec.Archives {
			for _, sub := range subArchives {
				key := fmt.Sprintf("%s/%s/%s", spec.Name, archive, sub)
				if !keyIndex[key] {
					keyIndex[key] = true
					allKeys = append(allKeys, key)
				}
			}
		}
	}

	tracker := matchset.New(allKeys)
	for _, spec := range specs {
		subArchives := spec.SubArchives
		if len(subArchives) == 0 {
			subArchives = []string{directSubArchive}
		}
		for _, archive := range spec.Archives {
			if _, present := bundle.Members[archive]; !present {
				continue
			}
			for _, sub := range subArchives {
				tracker.Mark(fmt.Sprintf("%s/%s/%s", spec.Name, archive, sub))
			}
		}
	}
	return len(allKeys), tracker.Unmatched()
}
