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

// Package extractor is the Selective Extractor (spec.md §4.4): given an
// outer 7z path, an optional inner sub-archive filename, a compiled regex
// and an optional header-bytes filter, it materializes every inner member
// whose path matches the regex (and, if set, whose first bytes match the
// header filter) into a scratch directory, using
// github.com/bodgit/sevenzip to walk member lists without decompression
// before deciding what to extract.
package extractor

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/google/uuid"

	"github.com/anssi-fr/orc2timeline/internal/orcerr"
)

// Extracted describes one file materialized to disk: its path and, if a
// sidecar recorded it, the original Windows path (spec.md §4.4 step 5,
// "_get_original_path").
type Extracted struct {
	Path             string
	OriginalPathHint string
}

// sanitize replaces filesystem-unsafe characters in an inner archive member
// name so it can be used as (part of) a file name on disk (spec.md §4.4,
// "filesystem-unsafe characters in member paths are sanitised").
var unsafeChars = regexp.MustCompile(`[\\/:*?"<>|\x00]`)

func sanitize(name string) string {
	return unsafeChars.ReplaceAllString(filepath.Base(name), "_")
}

// Extract implements the Selective Extractor algorithm (spec.md §4.4).
// outerPath is the outer 7z archive; subArchive, if non-empty, names an
// inner 7z to locate and extract from instead of the outer archive directly;
// matchPattern is tested against inner member names; headerFilter, if
// non-nil, is compared against the first len(headerFilter) bytes of each
// candidate after it is materialized. scratchDir must already exist.
func Extract(outerPath, subArchive string, matchPattern *regexp.Regexp, headerFilter []byte, scratchDir string) ([]Extracted, error) {
	outer, err := sevenzip.OpenReader(outerPath)
	if err != nil {
		return nil, &orcerr.ExtractionError{Member: outerPath, Err: err}
	}
	defer outer.Close()

	var candidateFS fs.FS = outer

	if subArchive != "" {
		innerPath, err := locateByBasename(outer, subArchive)
		if err != nil {
			return nil, &orcerr.ExtractionError{Member: subArchive, Err: err}
		}
		if innerPath == "" {
			// Sub-archive not present in this outer archive: the caller treats
			// this as "no instance" rather than an error (spec.md §4.3).
			return nil, nil
		}

		tmpInner, err := extractToTemp(outer, innerPath, scratchDir)
		if err != nil {
			return nil, &orcerr.ExtractionError{Member: innerPath, Err: err}
		}
		defer os.Remove(tmpInner)

		innerReader, err := sevenzip.OpenReader(tmpInner)
		if err != nil {
			// A corrupt inner archive is logged and skipped, not fatal to the
			// instance (spec.md §4.4 edge cases).
			return nil, &orcerr.ExtractionError{Member: innerPath, Err: err}
		}
		defer innerReader.Close()
		candidateFS = innerReader
	}

	var results []Extracted
	walkErr := fs.WalkDir(candidateFS, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("extraction error", "member", name, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !matchPattern.MatchString(name) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("extraction error", "member", name, "error", err)
			return nil
		}
		if info.Size() == 0 {
			return nil // zero-byte members are skipped
		}

		dest, err := materialize(candidateFS, name, scratchDir)
		if err != nil {
			slog.Warn("extraction error", "member", name, "error", err)
			return nil
		}

		if headerFilter != nil {
			ok, err := matchesHeader(dest, headerFilter)
			if err != nil {
				slog.Warn("extraction error", "member", name, "error", err)
				_ = os.Remove(dest)
				return nil
			}
			if !ok {
				_ = os.Remove(dest)
				return nil
			}
		}

		results = append(results, Extracted{
			Path:             dest,
			OriginalPathHint: originalPathHint(candidateFS, name),
		})
		return nil
	})
	if walkErr != nil {
		return results, &orcerr.ExtractionError{Member: outerPath, Err: walkErr}
	}
	return results, nil
}

// locateByBasename returns the in-archive path of the member whose basename
// equals want, or "" if none exists.
func locateByBasename(r fs.FS, want string) (string, error) {
	var found string
	err := fs.WalkDir(r, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && filepath.Base(name) == want {
			found = name
			return fs.SkipAll
		}
		return nil
	})
	return found, err
}

// materialize copies one member out of r to a uniquely-named file under
// scratchDir, disambiguating same-named members with a uuid suffix
// (spec.md §4.4, "duplicate member names are made unique by appending an
// extraction counter").
func materialize(r fs.FS, name, scratchDir string) (string, error) {
	src, err := r.Open(name)
	if err != nil {
		return "", err
	}
	defer src.Close()

	destName := fmt.Sprintf("%s-%s", sanitize(name), uuid.New().String()[:8])
	dest := filepath.Join(scratchDir, destName)

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// extractToTemp materializes a single named member (a sub-archive, located
// by locateByBasename) to a scratch file so it can be reopened as its own
// sevenzip.ReadCloser.
func extractToTemp(r fs.FS, name, scratchDir string) (string, error) {
	return materialize(r, name, scratchDir)
}

// matchesHeader reports whether the first len(want) bytes of the file at
// path equal want.
func matchesHeader(path string, want []byte) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	got := make([]byte, len(want))
	n, err := io.ReadFull(f, got)
	if err != nil && err != io.ErrUnexpectedEOF {
		return false, err
	}
	return n == len(want) && bytes.Equal(got, want), nil
}

// originalPathHint looks for a DFIR-ORC sidecar naming the original Windows
// path of name (spec.md §4.4 step 5). DFIR-ORC sidecars sit alongside the
// artefact with the same basename and a ".path" suffix, one line of text.
// Absence of a sidecar is normal, not an error: most artefacts have none.
func originalPathHint(r fs.FS, name string) string {
	sidecarName := name + ".path"
	f, err := r.Open(sidecarName)
	if err != nil {
		return ""
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
