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

package timeline

import (
	"compress/gzip"
	"fmt"
	"os"

	"github.com/anssi-fr/orc2timeline/internal/csvrun"
	"github.com/anssi-fr/orc2timeline/internal/orcerr"
)

// MergeFinal is the Final Merger (spec.md §4.8): it k-way merges every
// PartialTimeline for one host, drops byte-identical adjacent rows, and
// streams the result through gzip to outputPath. outputPath is written
// atomically (write to a ".tmp" sibling, fsync, rename) so a crash mid-write
// never leaves a partial file at the final path (spec.md §3, §8 property 7).
//
// partials is consumed: every path in it is deleted once MergeFinal returns,
// success or failure, because PartialTimelines are temporary (spec.md §3).
func MergeFinal(partials []string, outputPath string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(outputPath); err == nil {
			removeAll(partials)
			return &orcerr.OutputExists{Path: outputPath}
		} else if !os.IsNotExist(err) {
			removeAll(partials)
			return &orcerr.MergeError{Err: fmt.Errorf("stat %s: %w", outputPath, err)}
		}
	}

	readers := make([]*csvrun.Reader, 0, len(partials))
	for _, p := range partials {
		r, err := csvrun.Open(p)
		if err != nil {
			for _, opened := range readers {
				_ = opened.Close()
			}
			removeAll(partials)
			return &orcerr.MergeError{Err: err}
		}
		readers = append(readers, r)
	}

	tmpPath := outputPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		for _, r := range readers {
			_ = r.Close()
		}
		return &orcerr.MergeError{Err: err}
	}

	zw := gzip.NewWriter(f)
	w := csvrun.NewGzipWriter(zw)

	mergeErr := csvrun.Merge(readers, w)
	closeErr := w.CloseGzip()
	gzipErr := zw.Close()
	syncErr := f.Sync()
	fileErr := f.Close()

	if err := firstNonNil(mergeErr, closeErr, gzipErr, syncErr, fileErr); err != nil {
		_ = os.Remove(tmpPath)
		return &orcerr.MergeError{Err: err}
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return &orcerr.MergeError{Err: err}
	}
	return nil
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
