// Copyright 2017 CoreOS, Inc.
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

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/markjdb/intel-gpu-tools/harness"
	"github.com/markjdb/intel-gpu-tools/harness/reporters"
	"github.com/markjdb/intel-gpu-tools/harness/testresult"
)

var (
	cmdRun = &cobra.Command{
		Use:   "run <testlist.yaml>",
		Short: "Run a testlist and collect results",
		Long: `Run the test binaries named by a testlist. Entries with subtest
patterns are expanded against the binary's enumeration and each
selected subtest runs in its own process, so one crash cannot take
later subtests with it. Results land in the output directory as
results.json and results.tap.`,
		Args: cobra.ExactArgs(1),
		RunE: runRun,
	}

	runOutputDir string
	runBinDir    string
	runTimeout   time.Duration
)

func init() {
	cmdRun.Flags().StringVarP(&runOutputDir, "output-dir", "o", "results",
		"directory for report files")
	cmdRun.Flags().StringVarP(&runBinDir, "binary-dir", "b", ".",
		"directory containing the test binaries")
	cmdRun.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute,
		"kill a single test invocation after this long")
	root.AddCommand(cmdRun)
}

func runRun(cmd *cobra.Command, args []string) error {
	list, err := LoadTestList(args[0])
	if err != nil {
		return err
	}
	if err := os.MkdirAll(runOutputDir, 0755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	reps := reporters.Reporters{
		reporters.NewJSONReporter("results.json"),
		reporters.NewTAPReporter("results.tap"),
	}

	var ran, failed int
	for _, entry := range list.Tests {
		results, err := runEntry(&entry)
		if err != nil {
			return err
		}
		for _, res := range results {
			reps.Report(res)
			ran++
			if res.Status.Failed() {
				failed++
			}
			name := res.Test
			if res.Subtest != "" {
				name += "@" + res.Subtest
			}
			fmt.Printf("%-60s %s\n", name, res.Status)
		}
	}

	if err := reps.Output(runOutputDir); err != nil {
		return err
	}
	plog.Infof("%d results, %d failures", ran, failed)
	if failed > 0 {
		return errors.Errorf("%d of %d results failed", failed, ran)
	}
	return nil
}

func runEntry(entry *TestEntry) ([]reporters.Result, error) {
	path := filepath.Join(runBinDir, entry.Binary)
	extra, err := entry.ExtraArgs()
	if err != nil {
		return nil, err
	}

	if len(entry.Subtests) == 0 {
		return runWhole(entry.Binary, path, extra)
	}

	available, simple, err := listSubtests(path)
	if err != nil {
		return nil, err
	}
	if simple {
		return nil, errors.Errorf("%s has no subtests but the testlist selects some", entry.Binary)
	}

	var selected []string
	for _, name := range available {
		for _, pattern := range entry.Subtests {
			if harness.Match(name, pattern) {
				selected = append(selected, name)
				break
			}
		}
	}
	if len(selected) == 0 {
		return nil, errors.Errorf("%s: no subtest matches %v", entry.Binary, entry.Subtests)
	}

	var results []reporters.Result
	for _, name := range selected {
		args := append([]string{"--run-subtest", name}, extra...)
		start := time.Now()
		code, out, err := runBinary(path, args, runTimeout)
		if err != nil {
			return nil, err
		}
		res := reporters.Result{
			Test:     entry.Binary,
			Subtest:  name,
			Status:   testresult.FromExitCode(code),
			Duration: time.Since(start),
			Output:   out,
		}
		// Prefer the binary's own timing when the stream has it.
		for _, sr := range parseResultStream(out) {
			if sr.subtest == name && sr.duration > 0 {
				res.Duration = sr.duration
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// runWhole runs a binary without subtest selection: all its subtests in
// one process, or a single result for a simple binary.
func runWhole(name, path string, extra []string) ([]reporters.Result, error) {
	start := time.Now()
	code, out, err := runBinary(path, extra, runTimeout)
	if err != nil {
		return nil, err
	}

	stream := parseResultStream(out)
	if len(stream) > 0 {
		results := make([]reporters.Result, 0, len(stream))
		for _, sr := range stream {
			results = append(results, reporters.Result{
				Test:     name,
				Subtest:  sr.subtest,
				Status:   sr.status,
				Duration: sr.duration,
				Output:   out,
			})
		}
		return results, nil
	}

	res := reporters.Result{
		Test:     name,
		Status:   testresult.FromExitCode(code),
		Duration: time.Since(start),
		Output:   out,
	}
	if sr, ok := parseSimpleResult(out); ok {
		res.Duration = sr.duration
	}
	return []reporters.Result{res}, nil
}
