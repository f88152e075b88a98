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

// Package matchset tracks which members of a declared set of keys were
// actually satisfied. The Archive Index uses it to know which
// (archive, sub_archive) combinations named by a PluginSpec never found a
// matching outer archive or sub-archive in a given HostBundle, so the
// scheduler can report them without treating a missing combination as an
// error (spec: "Missing outer archives are silently skipped").
package matchset

// Tracker is a stateful set of keys, each either matched or not yet matched.
type Tracker interface {
	// Mark records that key was found. Marking an unknown key is a no-op.
	Mark(key string)
	// Unmatched returns the keys that have not been Marked, in declaration order.
	Unmatched() []string
	// AllMatched returns true once every declared key has been Marked.
	AllMatched() bool
}

type tracker struct {
	order   []string
	matched map[string]bool
}

// New returns a Tracker seeded with the given keys, all initially unmatched.
func New(keys []string) Tracker {
	t := &tracker{order: append([]string(nil), keys...), matched: make(map[string]bool, len(keys))}
	for _, k := range keys {
		t.matched[k] = false
	}
	return t
}

func (t *tracker) Mark(key string) {
	if _, ok := t.matched[key]; ok {
		t.matched[key] = true
	}
}

func (t *tracker) Unmatched() []string {
	unmatched := make([]string, 0, len(t.order))
	for _, k := range t.order {
		if !t.matched[k] {
			unmatched = append(unmatched, k)
		}
	}
	return unmatched
}

func (t *tracker) AllMatched() bool {
	return len(t.Unmatched()) == 0
}
