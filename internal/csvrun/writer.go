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
	"io"
	"os"

	"github.com/anssi-fr/orc2timeline/internal/timeline"
)

// Writer appends header-less CSV rows to a SortedRun or PartialTimeline file.
type Writer struct {
	f   *os.File
	csv *csv.Writer
}

// Create truncates (or creates) path and returns a Writer over it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, csv: csv.NewWriter(f)}, nil
}

// WriteEvent appends one row.
func (w *Writer) WriteEvent(e timeline.Event) error {
	return w.csv.Write(e.CSVRow())
}

// Close flushes buffered rows and closes the underlying file.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

// NewGzipWriter wraps an arbitrary io.Writer (typically a gzip.Writer) for
// the Final Merger, which streams into a compressed container rather than a
// plain file.
func NewGzipWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// CloseGzip flushes without closing an underlying *os.File, for writers
// built with NewGzipWriter where the caller owns the gzip/file lifecycle.
func (w *Writer) CloseGzip() error {
	w.csv.Flush()
	return w.csv.Error()
}
