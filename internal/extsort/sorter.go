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

// Package extsort is the External Sorter (spec.md §4.6): it buffers the
// Events a single plugin instance emits up to a configurable chunk size,
// sorts each chunk in memory, spills it to a SortedRun, and finally k-way
// merges every run into one sorted, deduplicated PartialTimeline. This
// bounds peak memory to roughly chunk_size * avg_event_bytes per instance
// regardless of how many events the instance eventually emits, which matters
// because USN/MFT plugins can emit tens of millions of events per host
// (spec.md §9).
package extsort

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/anssi-fr/orc2timeline/internal/csvrun"
	"github.com/anssi-fr/orc2timeline/internal/timeline"
)

// DefaultChunkSize is the number of buffered events that triggers a spill
// when New is given a non-positive chunk size. The engine passes it for
// every plugin instance; the config file has no chunk size setting.
const DefaultChunkSize = 500_000

// Sorter accumulates Events for a single plugin instance. It is not safe
// for concurrent use: each PluginInstance owns exactly one Sorter, fed from
// the single goroutine that runs that instance (spec.md §4.6, §5).
type Sorter struct {
	dir       string
	chunkSize int
	buf       []timeline.Event
	runPaths  []string
	nextRun   int
}

// New returns a Sorter that spills SortedRuns into dir. chunkSize <= 0 is
// replaced with DefaultChunkSize.
func New(dir string, chunkSize int) *Sorter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Sorter{dir: dir, chunkSize: chunkSize, buf: make([]timeline.Event, 0, chunkSize)}
}

// Add pushes one Event into the in-memory buffer, spilling synchronously
// once the buffer reaches chunkSize (spec.md §5, "Backpressure").
func (s *Sorter) Add(e timeline.Event) error {
	s.buf = append(s.buf, e)
	if len(s.buf) >= s.chunkSize {
		return s.spill()
	}
	return nil
}

// spill sorts the current buffer by the composite key and writes it to a new
// SortedRun file, then resets the buffer.
func (s *Sorter) spill() error {
	if len(s.buf) == 0 {
		return nil
	}
	sort.Slice(s.buf, func(i, j int) bool { return s.buf[i].Less(s.buf[j]) })

	path := filepath.Join(s.dir, fmt.Sprintf("run-%06d.csv", s.nextRun))
	s.nextRun++

	w, err := csvrun.Create(path)
	if err != nil {
		return err
	}
	var lastWritten timeline.Event
	haveLast := false
	for _, e := range s.buf {
		if haveLast && lastWritten.Equal(e) {
			continue
		}
		if err := w.WriteEvent(e); err != nil {
			_ = w.Close()
			return err
		}
		lastWritten = e
		haveLast = true
	}
	if err := w.Close(); err != nil {
		return err
	}

	s.runPaths = append(s.runPaths, path)
	s.buf = s.buf[:0]
	return nil
}

// Finalize flushes any residual buffer, k-way merges every SortedRun this
// instance produced into one PartialTimeline at partialPath, and returns
// that path. SortedRuns are deleted as the merge consumes them (spec.md §3).
func (s *Sorter) Finalize(partialPath string) (string, error) {
	if err := s.spill(); err != nil {
		return "", err
	}

	readers := make([]*csvrun.Reader, 0, len(s.runPaths))
	for _, p := range s.runPaths {
		r, err := csvrun.Open(p)
		if err != nil {
			for _, opened := range readers {
				_ = opened.Close()
			}
			return "", err
		}
		readers = append(readers, r)
	}
	s.runPaths = nil

	w, err := csvrun.Create(partialPath)
	if err != nil {
		return "", err
	}
	if err := csvrun.Merge(readers, w); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return partialPath, nil
}
