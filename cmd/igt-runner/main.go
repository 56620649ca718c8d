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

// igt-runner supervises harness-based test binaries: it enumerates
// their subtests, executes testlists and collects the results into
// report files.
package main

import (
	"os"

	"github.com/coreos/pkg/capnslog"
	"github.com/spf13/cobra"

	sysexec "github.com/markjdb/intel-gpu-tools/system/exec"
)

var (
	plog = capnslog.NewPackageLogger("github.com/markjdb/intel-gpu-tools", "igt-runner")

	root = &cobra.Command{
		Use:   "igt-runner",
		Short: "Run GPU test binaries and collect their results",
	}

	logDebug   bool
	logVerbose bool
	logLevel   = capnslog.NOTICE
)

func main() {
	// Test binaries re-exec themselves for workers; the runner never
	// does, but it shares the process setup path with them.
	sysexec.MaybeExec()

	root.PersistentFlags().BoolVarP(&logVerbose, "verbose", "v", false,
		"Alias for --log-level=INFO")
	root.PersistentFlags().BoolVarP(&logDebug, "debug", "d", false,
		"Alias for --log-level=DEBUG")

	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		switch {
		case logDebug:
			logLevel = capnslog.DEBUG
		case logVerbose:
			logLevel = capnslog.INFO
		}
		capnslog.SetFormatter(capnslog.NewStringFormatter(cmd.OutOrStderr()))
		capnslog.SetGlobalLogLevel(logLevel)
	}

	if err := root.Execute(); err != nil {
		plog.Fatal(err)
	}
	os.Exit(0)
}
