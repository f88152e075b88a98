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

// Package scheduler is the bounded worker pool spec.md §4.7 and §5
// describe: a single user-supplied worker count J bounds how many tasks run
// concurrently, failures in one task never cancel its peers, and a
// cancelled context lets running tasks finish their current unit of work
// while refusing to start new ones.
package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Scheduler bounds all work it runs to at most J concurrent tasks, across
// every call to Run for the lifetime of the Scheduler. The engine runs only
// plugin instances (phase 1) through it; per-host final merges do not go
// through a Scheduler and run one host at a time.
type Scheduler struct {
	j   int
	sem *semaphore.Weighted
}

// New returns a Scheduler bounded to j concurrent tasks. j <= 0 is treated
// as 1 (spec.md §4.7 default).
func New(j int) *Scheduler {
	if j < 1 {
		j = 1
	}
	return &Scheduler{j: j, sem: semaphore.NewWeighted(int64(j))}
}

// Workers returns the configured concurrency bound.
func (s *Scheduler) Workers() int { return s.j }

// Run executes task(ctx, i) for every i in [0, n), at most Workers() at a
// time, and returns one error per index (nil on success). A task's failure
// never stops or cancels any other task (spec.md §7, "failures in one
// instance do not cancel peers"); only ctx's own cancellation (e.g. SIGINT)
// stops new tasks from starting — tasks already running are left to finish.
func (s *Scheduler) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	var g errgroup.Group
	var mu sync.Mutex // guards nothing shared beyond errs, which is index-disjoint; kept for clarity

	for i := 0; i < n; i++ {
		i := i
		if err := s.sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			errs[i] = err
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			defer s.sem.Release(1)
			errs[i] = task(ctx, i)
			return nil
		})
	}
	_ = g.Wait() // task errors are carried in errs, not the group's own return
	return errs
}
