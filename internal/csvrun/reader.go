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

package csvrun

import (
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/anssi-fr/orc2timeline/internal/timeline"
)

// Reader reads a SortedRun or PartialTimeline file sequentially, the access
// pattern spec.md §3 requires ("read sequentially during merge").
type Reader struct {
	path string
	f    *os.File
	csv  *csv.Reader
}

// Open opens path for sequential reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = 5
	return &Reader{path: path, f: f, csv: r}, nil
}

// Next returns the next Event, or ok=false at end of file.
func (r *Reader) Next() (timeline.Event, bool, error) {
	row, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return timeline.Event{}, false, nil
	}
	if err != nil {
		return timeline.Event{}, false, err
	}
	e, err := decodeEvent(row)
	if err != nil {
		return timeline.Event{}, false, err
	}
	return e, true, nil
}

// Close closes the underlying file and deletes it: both SortedRun and
// PartialTimeline files are temporary and are removed as soon as the merge
// that consumes them is done with them (spec.md §3).
func (r *Reader) Close() error {
	err := r.f.Close()
	if rmErr := os.Remove(r.path); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}
