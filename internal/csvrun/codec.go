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

// Package csvrun is the header-less, RFC 4180 CSV-on-disk format shared by
// SortedRun and PartialTimeline files (spec.md §3), and the k-way merge that
// turns a set of them into one sorted, deduplicated stream. Events are
// decoded back from their five columns rather than compared as raw bytes, so
// RFC 4180 quoting of a Description or Source field never perturbs merge
// order.
package csvrun

import (
	"time"

	"github.com/anssi-fr/orc2timeline/internal/timeline"
)

const timestampLayout = "2006-01-02 15:04:05.000"

func decodeEvent(row []string) (timeline.Event, error) {
	ts, err := time.Parse(timestampLayout, row[0])
	if err != nil {
		return timeline.Event{}, err
	}
	return timeline.Event{
		Timestamp:   ts.UTC(),
		Hostname:    row[1],
		SourceType:  row[2],
		Description: row[3],
		Source:      row[4],
	}, nil
}
