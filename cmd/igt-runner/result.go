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
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/markjdb/intel-gpu-tools/harness/testresult"
	sysexec "github.com/markjdb/intel-gpu-tools/system/exec"
)

var (
	ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

	// One line per subtest: "Subtest <name>: <RESULT> (<seconds>s)".
	// The announce form for never-run subtests has no duration.
	subtestLineRe = regexp.MustCompile(
		`^Subtest (\S+): (SUCCESS|SKIP|FAIL|TIMEOUT|CRASH)(?: \(([0-9.]+)s\))?$`)

	// Trailing line of a simple test binary.
	simpleLineRe = regexp.MustCompile(
		`^(SUCCESS|SKIP|FAIL|TIMEOUT|CRASH) \(([0-9.]+)s\)$`)
)

type streamResult struct {
	subtest  string
	status   testresult.Status
	duration time.Duration
}

// parseResultStream extracts the per-subtest result lines from a test
// binary's output. ANSI emphasis is stripped so the runner works
// against both plain and terminal-style output.
func parseResultStream(out []byte) []streamResult {
	var results []streamResult
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := ansiRe.ReplaceAllString(sc.Text(), "")
		if m := subtestLineRe.FindStringSubmatch(line); m != nil {
			results = append(results, streamResult{
				subtest:  m[1],
				status:   testresult.Status(m[2]),
				duration: parseSeconds(m[3]),
			})
		}
	}
	return results
}

// parseSimpleResult extracts the trailing result line of a simple test.
func parseSimpleResult(out []byte) (streamResult, bool) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var last string
	for sc.Scan() {
		if line := ansiRe.ReplaceAllString(sc.Text(), ""); line != "" {
			last = line
		}
	}
	if m := simpleLineRe.FindStringSubmatch(last); m != nil {
		return streamResult{
			status:   testresult.Status(m[1]),
			duration: parseSeconds(m[2]),
		}, true
	}
	return streamResult{}, false
}

func parseSeconds(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s + "s")
	if err != nil {
		return 0
	}
	return d
}

// runBinary executes a test binary and returns its exit code and
// combined output. Signal deaths are encoded as 128 + signal like a
// shell would; a binary exceeding timeout is killed and reported with
// the timeout exit code.
func runBinary(path string, args []string, timeout time.Duration) (int, []byte, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := sysexec.CommandContext(ctx, path, args...)
	cmd.Env = append(os.Environ(), "IGT_PLAIN_OUTPUT=1")
	out, err := cmd.CombinedOutput()
	if err == nil {
		return 0, out, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return testresult.ExitTimeout, out, nil
	}
	var eerr *exec.ExitError
	if errors.As(err, &eerr) {
		status := eerr.Sys().(syscall.WaitStatus)
		if status.Signaled() {
			return 128 + int(status.Signal()), out, nil
		}
		return status.ExitStatus(), out, nil
	}
	return 0, out, errors.Wrapf(err, "running %s", path)
}
