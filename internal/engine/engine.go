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

// Package engine wires the Config Resolver, Host Grouper, Archive Index,
// Selective Extractor, Plugin Runtime, External Sorter, Scheduler and Final
// Merger into the two entry points the CLI calls: Process (one host) and
// ProcessDir (every host under a directory).
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/anssi-fr/orc2timeline/internal/archiveindex"
	"github.com/anssi-fr/orc2timeline/internal/config"
	"github.com/anssi-fr/orc2timeline/internal/extractor"
	"github.com/anssi-fr/orc2timeline/internal/extsort"
	"github.com/anssi-fr/orc2timeline/internal/orchost"
	"github.com/anssi-fr/orc2timeline/internal/orcerr"
	"github.com/anssi-fr/orc2timeline/internal/plugin"
	_ "github.com/anssi-fr/orc2timeline/internal/plugin/builtin"
	"github.com/anssi-fr/orc2timeline/internal/scheduler"
	"github.com/anssi-fr/orc2timeline/internal/timeline"
)

// Options bundles the knobs every entry point needs (spec.md §6 global
// flags, minus --log-level which the caller applies to the default slog
// handler before calling in).
type Options struct {
	Config    *config.Config
	TmpDir    string
	Overwrite bool
	Jobs      int
}

// HostOutcome is one host's result, aggregated by the CLI into the process
// exit code (spec.md §7, "Final exit code reflects the worst observed
// outcome across hosts").
type HostOutcome struct {
	Hostname       string
	OutputPath     string
	Err            error
	SkippedMembers int
}

// Process runs the pipeline for a single host whose outer archives are
// exactly paths (spec.md §6, "process <FILE…> <OUTPUT_PATH>"). All paths
// must share one hostname or this fails with BadInput before anything is
// extracted.
func Process(ctx context.Context, paths []string, outputPath string, opts Options) HostOutcome {
	bundle, err := orchost.GroupSingleHost(paths)
	if err != nil {
		return HostOutcome{Err: err}
	}
	sched := scheduler.New(opts.Jobs)
	return processHost(ctx, bundle, outputPath, opts, sched)
}

// ProcessDir recursively groups every *.7z under inputDir by hostname and
// runs the pipeline for each, writing <outputDir>/<hostname>.csv.gz (spec.md
// §6, "process_dir <INPUT_DIR> <OUTPUT_DIR>"). One host's failure does not
// stop the others (spec.md §8, "Multi-host isolation").
//
// Hosts are processed one at a time, sharing a single Scheduler bounded to
// opts.Jobs for their plugin instances. Running hosts themselves through a
// second, independent scheduler would let host-level and instance-level
// concurrency compound (up to J² goroutines for J hosts each running J
// instances), which both violates spec.md §4.7's "both bounded by a single
// user-supplied worker count J" and blows the §5 memory bound of
// approximately J × chunk_size × avg_event_bytes. A single Scheduler cannot
// safely nest calls to itself either — an outer Run holding all J slots
// would deadlock waiting on an inner Run's Acquire — so the fix is to keep
// only one level of scheduling live at a time: hosts run sequentially, and
// each host's instances alone draw from the shared J-bounded pool.
func ProcessDir(ctx context.Context, inputDir, outputDir string, opts Options) ([]HostOutcome, error) {
	paths, err := orchost.WalkDir(inputDir)
	if err != nil {
		return nil, err
	}
	bundles, err := orchost.Group(paths)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(opts.Jobs)
	outcomes := make([]HostOutcome, len(bundles))
	for i, bundle := range bundles {
		if ctx.Err() != nil {
			outcomes[i] = HostOutcome{Hostname: bundle.Hostname, Err: ctx.Err()}
			continue
		}
		outputPath := filepath.Join(outputDir, bundle.Hostname+".csv.gz")
		outcomes[i] = processHost(ctx, bundle, outputPath, opts, sched)
	}
	return outcomes, nil
}

// processHost runs the full per-host pipeline: build the instance list from
// the Archive Index, run every instance (phase 1) bounded by sched, then the
// Final Merger (phase 2), then remove the host scratch directory regardless
// of outcome (spec.md §3, "its scratch directory is created at start and
// recursively deleted at end regardless of success").
func processHost(ctx context.Context, bundle orchost.HostBundle, outputPath string, opts Options, sched *scheduler.Scheduler) HostOutcome {
	outcome := HostOutcome{Hostname: bundle.Hostname, OutputPath: outputPath}

	scratchRoot := filepath.Join(opts.TmpDir, "orc2timeline-"+bundle.Hostname+"-"+uuid.New().String())
	if err := os.MkdirAll(scratchRoot, 0o755); err != nil {
		outcome.Err = &orcerr.ExtractionError{Member: scratchRoot, Err: err}
		return outcome
	}
	defer os.RemoveAll(scratchRoot)

	instances := archiveindex.Build(bundle, opts.Config.Plugins)
	total, unsatisfied := archiveindex.Diagnose(bundle, opts.Config.Plugins)
	slog.Debug("archive index built", "hostname", bundle.Hostname, "instances", len(instances), "configured_combinations", total, "unsatisfied", len(unsatisfied))

	partials := make([]string, len(instances))
	errs := sched.Run(ctx, len(instances), func(ctx context.Context, i int) error {
		inst := instances[i]
		partial, err := runInstance(ctx, bundle.Hostname, scratchRoot, inst, i)
		if err != nil {
			slog.Warn("plugin instance failed", "hostname", bundle.Hostname, "spec", inst.SpecName, "archive", inst.Archive, "sub_archive", inst.SubArchive, "error", err)
			return nil // spec.md §7: InstanceFailure is recorded, not fatal
		}
		partials[i] = partial
		return nil
	})
	for _, err := range errs {
		if err != nil {
			slog.Warn("instance scheduling error", "hostname", bundle.Hostname, "error", err)
		}
	}

	var nonEmpty []string
	for _, p := range partials {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		outcome.Err = &orcerr.MergeError{Hostname: bundle.Hostname, Err: err}
		return outcome
	}
	if err := timeline.MergeFinal(nonEmpty, outputPath, opts.Overwrite); err != nil {
		outcome.Err = err
		return outcome
	}
	return outcome
}

// runInstance extracts the matching files for one PluginInstance, feeds
// them to a fresh plugin instance, and flushes its External Sorter into a
// PartialTimeline. A plugin's own failure becomes an InstanceFailure and its
// timeline is treated as empty; an ExtractionError is logged and the
// instance continues with whatever it extracted before the error, since
// spec.md §7 treats the two as distinct, differently-fatal error kinds.
func runInstance(ctx context.Context, hostname, scratchRoot string, inst archiveindex.Instance, index int) (partialPath string, err error) {
	factory, familyMutex, ok := plugin.Lookup(inst.SpecName)
	if !ok {
		return "", &orcerr.InstanceFailure{SpecName: inst.SpecName, Archive: inst.Archive, SubArchive: inst.SubArchive, Err: fmt.Errorf("no plugin registered for %q", inst.SpecName)}
	}

	instanceDir := filepath.Join(scratchRoot, fmt.Sprintf("instance-%d", index))
	if err := os.MkdirAll(instanceDir, 0o755); err != nil {
		return "", &orcerr.InstanceFailure{SpecName: inst.SpecName, Archive: inst.Archive, SubArchive: inst.SubArchive, Err: err}
	}

	p := factory()
	if familyMutex != nil {
		familyMutex.Lock()
		defer familyMutex.Unlock()
	}

	if err := p.Init(inst.Spec, hostname, instanceDir); err != nil {
		return "", &orcerr.InstanceFailure{SpecName: inst.SpecName, Archive: inst.Archive, SubArchive: inst.SubArchive, Err: err}
	}

	extracted, err := extractor.Extract(inst.OuterPath, inst.SubArchive, inst.Spec.MatchPattern, p.FileHeaderFilter(), instanceDir)
	var extractionErr *orcerr.ExtractionError
	if errors.As(err, &extractionErr) {
		// A corrupt inner archive or unreadable member is logged and this
		// instance continues with whatever it could extract (spec.md §7:
		// ExtractionError is distinct from, and non-fatal unlike,
		// InstanceFailure).
		slog.Warn("extraction error", "hostname", hostname, "spec", inst.SpecName, "error", extractionErr)
	} else if err != nil {
		return "", &orcerr.InstanceFailure{SpecName: inst.SpecName, Archive: inst.Archive, SubArchive: inst.SubArchive, Err: err}
	}

	sorter := extsort.New(instanceDir, extsort.DefaultChunkSize)
	emit := func(e timeline.Event) {
		if err := sorter.Add(e); err != nil {
			slog.Warn("sorter add failed", "hostname", hostname, "spec", inst.SpecName, "error", err)
		}
	}

	for _, file := range extracted {
		if ctx.Err() != nil {
			break // cooperative cancellation: finish the current member, start no more
		}
		if err := p.ParseArtefact(file.Path, file.OriginalPathHint, emit); err != nil {
			slog.Warn("parse error", "hostname", hostname, "path", file.Path, "error", err)
		}
	}
	if err := p.Finalize(emit); err != nil {
		return "", &orcerr.InstanceFailure{SpecName: inst.SpecName, Archive: inst.Archive, SubArchive: inst.SubArchive, Err: err}
	}

	partial := filepath.Join(scratchRoot, fmt.Sprintf("partial-%d.csv", index))
	return sorter.Finalize(partial)
}
