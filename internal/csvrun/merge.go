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
	"container/heap"

	"github.com/anssi-fr/orc2timeline/internal/timeline"
)

// cursor is one input stream's current head, tracked by the merge heap.
type cursor struct {
	r   *Reader
	cur timeline.Event
}

// cursorHeap is a min-heap of cursors ordered by the composite sort key.
type cursorHeap []*cursor

func (h cursorHeap) Len() int            { return len(h) }
func (h cursorHeap) Less(i, j int) bool  { return h[i].cur.Less(h[j].cur) }
func (h cursorHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x interface{}) { *h = append(*h, x.(*cursor)) }
func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Merge k-way merges readers (already individually sorted) into w, dropping
// byte-identical adjacent records (spec.md §4.6, §4.8). Every reader is
// closed — and its backing file deleted — by the time Merge returns,
// success or failure. Events that compare equal under Less leave the heap
// one after another, so only the first of them popped is written; which
// reader that one came from is not fixed.
func Merge(readers []*Reader, w *Writer) error {
	h := make(cursorHeap, 0, len(readers))
	defer func() {
		for _, c := range h {
			_ = c.r.Close()
		}
	}()

	for i, r := range readers {
		e, ok, err := r.Next()
		if err != nil {
			_ = r.Close()
			for _, rest := range readers[i+1:] {
				_ = rest.Close()
			}
			return err
		}
		if !ok {
			_ = r.Close()
			continue
		}
		h = append(h, &cursor{r: r, cur: e})
	}
	heap.Init(&h)

	var last timeline.Event
	haveLast := false
	for h.Len() > 0 {
		top := h[0]
		e := top.cur

		next, ok, err := top.r.Next()
		if err != nil {
			return err
		}
		if ok {
			top.cur = next
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
			if err := top.r.Close(); err != nil {
				return err
			}
		}

		if haveLast && last.Equal(e) {
			continue
		}
		if err := w.WriteEvent(e); err != nil {
			return err
		}
		last = e
		haveLast = true
	}
	return nil
}
