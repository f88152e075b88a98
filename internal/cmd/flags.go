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
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

const (
	flagLogLevel  = "log-level"
	flagTmpDir    = "tmp-dir"
	flagOverwrite = "overwrite"
	flagJobs      = "jobs"
)

// globalFlags is a function instead of a var to avoid unit tests tainting
// each other (cli.Flag contains state).
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  flagLogLevel,
			Value: "INFO",
			Usage: "minimum log level: DEBUG, INFO, WARNING or ERROR",
		},
		&cli.StringFlag{
			Name:  flagTmpDir,
			Usage: "scratch directory for extraction and sorting; defaults to $TMPDIR or the OS default",
		},
		&cli.BoolFlag{
			Name:  flagOverwrite,
			Usage: "replace an existing output file instead of failing",
		},
		&cli.IntFlag{
			Name:    flagJobs,
			Aliases: []string{"j"},
			Value:   1,
			Usage:   "maximum number of plugin instances to run concurrently; hosts and their final merges run one at a time",
		},
	}
}

// validateLogLevelFlag maps the --log-level flag to a slog.Level, following
// the teacher's validatePlatformFlag shape: one function per flag, returning
// a *validationError on a bad value.
func validateLogLevelFlag(level string) (slog.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARNING", "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, &validationError{fmt.Sprintf("invalid [%s] flag: %q is not one of DEBUG, INFO, WARNING, ERROR", flagLogLevel, level)}
	}
}

// resolveTmpDirFlag honours --tmp-dir, falling back to $TMPDIR, then the OS
// default temp directory (spec.md §6, "Environment variable TMPDIR is
// honoured if --tmp-dir is not given").
func resolveTmpDirFlag(tmpDir string) string {
	if tmpDir != "" {
		return tmpDir
	}
	if env := os.Getenv("TMPDIR"); env != "" {
		return env
	}
	return os.TempDir()
}

// validateJobsFlag rejects a non-positive worker count.
func validateJobsFlag(jobs int) (int, error) {
	if jobs < 1 {
		return 0, &validationError{fmt.Sprintf("invalid [%s] flag: must be a positive integer", flagJobs)}
	}
	return jobs, nil
}

// validateOutputPathFlag enforces the process command's output naming rule
// (spec.md §6, "OUTPUT_PATH must end in .csv.gz").
func validateOutputPathFlag(path string) (string, error) {
	if !strings.HasSuffix(path, ".csv.gz") {
		return "", &validationError{fmt.Sprintf("invalid output path %q: must end in .csv.gz", path)}
	}
	return path, nil
}
