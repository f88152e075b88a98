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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/anssi-fr/orc2timeline/internal/config"
	"github.com/anssi-fr/orc2timeline/internal/engine"
	"github.com/anssi-fr/orc2timeline/internal/orcerr"
	"github.com/anssi-fr/orc2timeline/internal/plugin"
)

// validationError is a marker of a validation error vs an execution one.
type validationError struct {
	string
}

// Error implements the error interface.
func (e *validationError) Error() string {
	return e.string
}

// Run handles all error logging and exit-code mapping so no other place
// needs to (spec.md §6, "Exit codes").
func Run(ctx context.Context, stdout, stderr io.Writer, args []string) int {
	app := newApp()
	app.Writer = stdout
	app.ErrWriter = stderr

	err := app.RunContext(ctx, args)
	switch {
	case err == nil:
		return 0
	case isValidationOrBadInput(err):
		fmt.Fprintln(stderr, "error:", err) //nolint
		logUsageError(app.Name, stderr)
		return 2
	case isConfigError(err):
		fmt.Fprintln(stderr, "error:", err) //nolint
		return 3
	default:
		fmt.Fprintln(stderr, "error:", err) //nolint
		return 1
	}
}

func isValidationOrBadInput(err error) bool {
	if _, ok := err.(*validationError); ok {
		return true
	}
	var badInput *orcerr.BadInput
	var outputExists *orcerr.OutputExists
	return errors.As(err, &badInput) || errors.As(err, &outputExists)
}

func isConfigError(err error) bool {
	var configErr *orcerr.ConfigError
	return errors.As(err, &configErr)
}

func logUsageError(name string, stderr io.Writer) {
	fmt.Fprintln(stderr, "show usage with:", name, "help") //nolint
}

func newApp() *cli.App {
	logLevel := new(slog.LevelVar)
	var tmpDir string
	var jobs int
	var overwrite bool
	var configPath string

	a := &cli.App{
		Name:     "orc2timeline",
		Usage:    "orc2timeline turns DFIR-ORC archives into a sorted, deduplicated forensic timeline",
		Flags: globalFlags(),
		OnUsageError: func(c *cli.Context, err error, isSub bool) error {
			return &validationError{err.Error()}
		},
		Before: func(c *cli.Context) error {
			level, err := validateLogLevelFlag(c.String(flagLogLevel))
			if err != nil {
				return err
			}
			logLevel.Set(level)
			slog.SetDefault(slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: logLevel})))

			j, err := validateJobsFlag(c.Int(flagJobs))
			if err != nil {
				return err
			}
			jobs = j
			tmpDir = resolveTmpDirFlag(c.String(flagTmpDir))
			overwrite = c.Bool(flagOverwrite)

			exe, err := os.Executable()
			if err != nil {
				return &orcerr.ConfigError{Msg: err.Error()}
			}
			installDir := filepath.Dir(exe)
			plugin.SetAuxRoot(installDir)
			configPath = config.PathFor(installDir)
			return nil
		},
		Commands: []*cli.Command{
			processCommand(&tmpDir, &jobs, &overwrite, &configPath),
			processDirCommand(&tmpDir, &jobs, &overwrite, &configPath),
			showConfFileCommand(&configPath),
			showConfCommand(&configPath),
		},
	}
	return a
}

func processCommand(tmpDir *string, jobs *int, overwrite *bool, configPath *string) *cli.Command {
	return &cli.Command{
		Name:      "process",
		Usage:     "build a timeline from one host's DFIR-ORC archives",
		ArgsUsage: "<FILE...> <OUTPUT_PATH>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return &validationError{"process requires at least one FILE and an OUTPUT_PATH"}
			}
			args := c.Args().Slice()
			outputPath, err := validateOutputPathFlag(args[len(args)-1])
			if err != nil {
				return err
			}
			paths := args[:len(args)-1]

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			outcome := engine.Process(c.Context, paths, outputPath, engine.Options{
				Config:    cfg,
				TmpDir:    *tmpDir,
				Overwrite: *overwrite,
				Jobs:      *jobs,
			})
			if outcome.Err != nil {
				return outcome.Err
			}
			fmt.Fprintf(c.App.Writer, "%s: wrote %s\n", outcome.Hostname, outcome.OutputPath) //nolint
			return nil
		},
	}
}

func processDirCommand(tmpDir *string, jobs *int, overwrite *bool, configPath *string) *cli.Command {
	return &cli.Command{
		Name:      "process_dir",
		Usage:     "build one timeline per host found under a directory of DFIR-ORC archives",
		ArgsUsage: "<INPUT_DIR> <OUTPUT_DIR>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return &validationError{"process_dir requires exactly an INPUT_DIR and an OUTPUT_DIR"}
			}
			inputDir := c.Args().Get(0)
			outputDir := c.Args().Get(1)

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			outcomes, err := engine.ProcessDir(c.Context, inputDir, outputDir, engine.Options{
				Config:    cfg,
				TmpDir:    *tmpDir,
				Overwrite: *overwrite,
				Jobs:      *jobs,
			})
			if err != nil {
				return err
			}

			var failures int
			for _, o := range outcomes {
				if o.Err != nil {
					failures++
					fmt.Fprintf(c.App.ErrWriter, "%s: failed: %v\n", o.Hostname, o.Err) //nolint
				} else {
					fmt.Fprintf(c.App.Writer, "%s: wrote %s\n", o.Hostname, o.OutputPath) //nolint
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d hosts failed", failures, len(outcomes))
			}
			return nil
		},
	}
}

func showConfFileCommand(configPath *string) *cli.Command {
	return &cli.Command{
		Name:  "show_conf_file",
		Usage: "print the absolute path of the effective config file",
		Action: func(c *cli.Context) error {
			fmt.Fprintln(c.App.Writer, *configPath) //nolint
			return nil
		},
	}
}

// displaySpec is the YAML-marshalable view of a config.PluginSpec; the
// compiled MatchPattern can't round-trip through yaml.Marshal directly.
type displaySpec struct {
	Name         string   `yaml:"name"`
	Archives     []string `yaml:"archives"`
	SubArchives  []string `yaml:"sub_archives,omitempty"`
	MatchPattern string   `yaml:"match_pattern"`
	SourceType   string   `yaml:"source_type"`
}

func showConfCommand(configPath *string) *cli.Command {
	return &cli.Command{
		Name:  "show_conf",
		Usage: "print the parsed plugin configuration",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			specs := make([]displaySpec, len(cfg.Plugins))
			for i, s := range cfg.Plugins {
				pattern := ""
				if s.MatchPattern != nil {
					pattern = s.MatchPattern.String()
				}
				specs[i] = displaySpec{
					Name:         s.Name,
					Archives:     s.Archives,
					SubArchives:  s.SubArchives,
					MatchPattern: pattern,
					SourceType:   s.SourceType,
				}
			}
			out, err := yaml.Marshal(specs)
			if err != nil {
				return &orcerr.ConfigError{Msg: err.Error()}
			}
			_, err = c.App.Writer.Write(out)
			return err
		},
	}
}
