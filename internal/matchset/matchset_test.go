// Copyright 2021 Tetrate
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain arg copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package matchset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkAndUnmatched(t *testing.T) {
	tests := []struct {
		name      string
		keys      []string
		mark      []string
		unmatched []string
	}{
		{
			name:      "no keys",
			unmatched: []string{},
		},
		{
			name:      "nothing marked",
			keys:      []string{"General", "Little"},
			unmatched: []string{"General", "Little"},
		},
		{
			name:      "one marked",
			keys:      []string{"General", "Little"},
			mark:      []string{"General"},
			unmatched: []string{"Little"},
		},
		{
			name:      "all marked",
			keys:      []string{"General", "Little"},
			mark:      []string{"General", "Little"},
			unmatched: []string{},
		},
		{
			name:      "marking an unknown key is a no-op",
			keys:      []string{"General"},
			mark:      []string{"Offline"},
			unmatched: []string{"General"},
		},
	}

	for _, tc := range tests {
		tc := tc // pin! see https://github.com/kyoh86/scopelint for why

		t.Run(tc.name, func(t *testing.T) {
			tr := New(tc.keys)
			for _, k := range tc.mark {
				tr.Mark(k)
			}
			require.Equal(t, tc.unmatched, tr.Unmatched())
		})
	}
}

func TestAllMatched(t *testing.T) {
	tr := New([]string{"General", "Little"})
	require.False(t, tr.AllMatched())
	tr.Mark("General")
	require.False(t, tr.AllMatched())
	tr.Mark("Little")
	require.True(t, tr.AllMatched())
}
