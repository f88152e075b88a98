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

// Package timeline holds the Event record plugins emit, its sortable
// on-disk encoding, and the Final Merger that turns a host's partial
// timelines into the gzip-compressed deliverable.
package timeline

import (
	"fmt"
	"time"
)

// timestampLayout is fixed-width and UTC so that lexical order equals
// temporal order; the External Sorter and Final Merger both rely on this.
const timestampLayout = "2006-01-02 15:04:05.000"

// Event is one row of the timeline. Hostname, SourceType, Description and
// Source are required. NewEvent does not check the timestamp: a caller with
// a missing or unparseable timestamp discards the event instead of building
// one (spec: "an event with an unparseable or missing timestamp is discarded
// at emission").
type Event struct {
	Timestamp   time.Time
	Hostname    string
	SourceType  string
	Description string
	Source      string
}

// NewEvent builds an Event from a native instant, normalizing it to UTC.
// Timezone-naive timestamps are assumed UTC by the caller before this is
// invoked; NewEvent itself only strips any other zone via UTC().
func NewEvent(ts time.Time, hostname, sourceType, description, source string) Event {
	return Event{
		Timestamp:   ts.UTC(),
		Hostname:    hostname,
		SourceType:  sourceType,
		Description: description,
		Source:      source,
	}
}

// NewEventFromString builds an Event from a permissively-parsed timestamp
// string, per spec: "Events whose timestamp field is absent but whose
// timestamp_str parses via a permissive parser are accepted". Returns false
// if ts does not parse under any of the supported layouts.
func NewEventFromString(ts, hostname, sourceType, description, source string) (Event, bool) {
	parsed, ok := ParseTimestamp(ts)
	if !ok {
		return Event{}, false
	}
	return NewEvent(parsed, hostname, sourceType, description, source), true
}

// permissiveLayouts are tried in order; the first one that parses wins.
// Timezone-naive layouts are interpreted as UTC (matches source behavior,
// per spec.md's open question on DST: preserved via golden tests, not
// reinterpreted here).
var permissiveLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
}

// ParseTimestamp is the single shared helper plugins use to parse a
// timestamp string and normalize it to UTC (spec.md §9, "Timestamp parsing").
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range permissiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// sortKey is the composite key (timestamp, source_type, description, source)
// spec.md §4.6 and §4.8 sort and dedup on. The timestamp portion is the
// fixed-width lexical encoding so a plain string comparison suffices.
func (e Event) sortKey() string {
	return e.Timestamp.UTC().Format(timestampLayout) + "\x00" + e.SourceType + "\x00" + e.Description + "\x00" + e.Source
}

// Less orders two events by the composite sort key.
func (e Event) Less(other Event) bool {
	return e.sortKey() < other.sortKey()
}

// Equal reports whether two events are identical on every column of the
// composite sort key, i.e. every CSV column except Hostname, which is the
// same for every event of one host's timeline. It is the adjacency test the
// External Sorter and Final Merger use for dedup.
func (e Event) Equal(other Event) bool {
	return e.sortKey() == other.sortKey()
}

// CSVRow renders the five output columns in the order the deliverable uses:
// Timestamp, Hostname, SourceType, Description, SourceFile.
func (e Event) CSVRow() []string {
	return []string{
		e.Timestamp.UTC().Format(timestampLayout),
		e.Hostname,
		e.SourceType,
		e.Description,
		e.Source,
	}
}

// String is used only in debug logging.
func (e Event) String() string {
	return fmt.Sprintf("%s %s %s %q %q", e.Timestamp.UTC().Format(timestampLayout), e.Hostname, e.SourceType, e.Description, e.Source)
}
