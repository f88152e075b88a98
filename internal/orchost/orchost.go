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

// Package orchost is the Host Grouper (spec.md §4.2): it extracts a
// hostname out of every outer archive's filename, groups paths by hostname
// into HostBundles, and refuses a process invocation that mixes hosts.
package orchost

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anssi-fr/orc2timeline/internal/orcerr"
)

// HostBundle is every outer archive path belonging to one host, keyed by the
// archive type token parsed from its filename (spec.md §3: "every member
// agrees on hostname").
type HostBundle struct {
	Hostname string
	Members  map[string]string // archive type -> outer archive path
}

// parseName extracts (hostname, archiveType) from an outer archive's base
// filename, which follows the convention
// "DFIR-ORC_<role>_<hostname>_<type>.7z". Role may itself contain
// underscores; hostname and type are always the last two underscore-delimited
// fields once the ".7z" suffix is stripped (spec.md §4.2, confirmed against
// the worked S1 example: "DFIR-ORC_S_A.dom_General.7z" groups under hostname
// "A.dom", not "S" — see DESIGN.md for this reading of the prose rule).
func parseName(path string) (hostname, archiveType string, ok bool) {
	base := filepath.Base(path)
	if !strings.EqualFold(filepath.Ext(base), ".7z") {
		return "", "", false // no .7z suffix
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	parts := strings.Split(stem, "_")
	if len(parts) < 4 {
		return "", "", false
	}
	hostname = parts[len(parts)-2]
	archiveType = parts[len(parts)-1]
	if hostname == "" || archiveType == "" {
		return "", "", false
	}
	return hostname, archiveType, true
}

// Group parses every path in paths and groups them into HostBundles, one per
// distinct hostname. It never fails on mixed hosts; use GroupSingleHost for
// the `process` command's single-host invariant.
func Group(paths []string) ([]HostBundle, error) {
	byHost := map[string]*HostBundle{}
	var order []string

	for _, p := range paths {
		hostname, archiveType, ok := parseName(p)
		if !ok {
			return nil, &orcerr.BadInput{Msg: fmt.Sprintf("cannot parse hostname from %q: expected DFIR-ORC_<role>_<hostname>_<type>.7z", p)}
		}
		b, exists := byHost[hostname]
		if !exists {
			b = &HostBundle{Hostname: hostname, Members: map[string]string{}}
			byHost[hostname] = b
			order = append(order, hostname)
		}
		b.Members[archiveType] = p
	}

	sort.Strings(order)
	out := make([]HostBundle, 0, len(order))
	for _, h := range order {
		out = append(out, *byHost[h])
	}
	return out, nil
}

// GroupSingleHost is used by the `process` command: paths must all belong to
// the same host, or it fails with BadInput naming every distinct hostname
// seen (spec.md §4.2, §8 S1: "process over all three fails with BadInput
// mentioning {A.dom, B.dom}").
func GroupSingleHost(paths []string) (HostBundle, error) {
	bundles, err := Group(paths)
	if err != nil {
		return HostBundle{}, err
	}
	if len(bundles) != 1 {
		hosts := make([]string, len(bundles))
		for i, b := range bundles {
			hosts[i] = b.Hostname
		}
		sort.Strings(hosts)
		return HostBundle{}, &orcerr.BadInput{
			Msg: fmt.Sprintf("all files must belong to the same host; parsed hosts: {%s}", strings.Join(hosts, ", ")),
		}
	}
	return bundles[0], nil
}

// WalkDir recursively collects every "*.7z" file under root, for
// process_dir (spec.md §4.2).
func WalkDir(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".7z") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, &orcerr.BadInput{Msg: fmt.Sprintf("walking %s: %v", root, err)}
	}
	sort.Strings(paths)
	return paths, nil
}
