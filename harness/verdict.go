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

package harness

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/markjdb/intel-gpu-tools/harness/log"
	"github.com/markjdb/intel-gpu-tools/harness/testresult"
)

// Skipf marks the current subtest or fixture as skipped and leaves it.
// In a fixture, all subsequent subtests are announced as SKIP. Never
// returns. Must not be called from a forked worker, which can only
// report pass or fail.
func Skipf(format string, args ...interface{}) {
	std.Skipf(format, args...)
}

// Skip is Skipf without a message.
func Skip() {
	std.Skipf("")
}

func (h *Harness) Skipf(format string, args ...interface{}) {
	if h.worker {
		panic("harness: Skip called from a forked worker")
	}

	h.skippedOne = true
	if format != "" && !h.listOnly {
		msg := fmt.Sprintf(format, args...)
		if !strings.HasSuffix(msg, "\n") {
			msg += "\n"
		}
		fmt.Fprint(h.out, msg)
	}

	h.mu.Lock()
	b := h.cur
	h.mu.Unlock()
	if b != nil {
		b.leave(outcome{kind: outcomeSkip})
	}

	if h.mode == modeSubtests {
		panic("harness: Skip outside of any fixture or subtest")
	}
	h.exitCode = testresult.ExitSkip
	h.Exit()
}

// Fail marks the current subtest or fixture as failed with the given
// exit code and leaves it. In a fixture, all subsequent subtests are
// announced as FAIL. In a forked worker the process exits immediately
// with code. Never returns.
func Fail(code int) {
	std.Fail(code)
}

func (h *Harness) Fail(code int) {
	if code == testresult.ExitSuccess || code == testresult.ExitSkip {
		panic(fmt.Sprintf("harness: Fail with non-failure exit code %d", code))
	}

	h.DebugWait("failure")

	if teardownActive() {
		// A failure inside an exit handler must not re-enter the exit
		// machinery.
		h.exitFn(testresult.ExitFailure)
		return
	}

	h.recordFailure(code)

	if h.worker {
		// Workers report through their wait status alone; the parent
		// prints the diagnostics.
		h.exitFn(code)
		return
	}

	log.Dump(h.errOut, h.dumpHeader())

	h.mu.Lock()
	b := h.cur
	h.mu.Unlock()
	if b != nil {
		b.leave(outcome{kind: outcomeFail, code: code})
	}

	if h.mode == modeSubtests {
		panic("harness: Fail outside of any fixture or subtest")
	}
	h.Exit()
}

// Success marks the current subtest as passed and leaves it. Inside a
// fixture it only records that the test made progress. Outside of any
// subtest it is a no-op beyond that record: a simple test signals
// success by falling through to its normal termination. A subtest body
// that returns normally is recorded as a success as well, so calling
// Success is only needed to leave early.
func Success() {
	std.Success()
}

func (h *Harness) Success() {
	h.succeededOne = true

	h.mu.Lock()
	b := h.cur
	h.mu.Unlock()
	if b != nil && b.name != "" {
		b.leave(outcome{kind: outcomeSuccess})
	}
}

// Require skips the current subtest when cond is false, logging the
// requirement that was not met. Use it for environmental preconditions:
// missing hardware, kernel features, permissions.
func Require(cond bool, format string, args ...interface{}) {
	std.Require(cond, format, args...)
}

func (h *Harness) Require(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	file, line := callerLocation()
	log.Infof("Test requirement not met in %s:%d: %s\n", file, line, fmt.Sprintf(format, args...))
	h.Skipf("")
}

// RequireNoError skips the current subtest when err is non-nil.
func RequireNoError(err error, what string) {
	std.RequireNoError(err, what)
}

func (h *Harness) RequireNoError(err error, what string) {
	if err == nil {
		return
	}
	h.Require(false, "%s: %v", what, err)
}

// Assert fails the current subtest when cond is false. Use it for
// conditions that only an actual bug can violate.
func Assert(cond bool, format string, args ...interface{}) {
	std.Assert(cond, format, args...)
}

func (h *Harness) Assert(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	file, line := callerLocation()
	log.Criticalf("Test assertion failure in %s:%d: %s\n", file, line, fmt.Sprintf(format, args...))
	h.Fail(testresult.ExitFailure)
}

// AssertNoError fails the current subtest when err is non-nil.
func AssertNoError(err error, what string) {
	std.AssertNoError(err, what)
}

func (h *Harness) AssertNoError(err error, what string) {
	if err == nil {
		return
	}
	h.Assert(false, "%s: %v", what, err)
}

// AssertEq fails the current subtest when got != want.
func AssertEq(got, want interface{}, what string) {
	std.AssertEq(got, want, what)
}

func (h *Harness) AssertEq(got, want interface{}, what string) {
	if got == want {
		return
	}
	h.Assert(false, "%s: got %v, want %v", what, got, want)
}

// callerLocation walks out of the harness frames to the test's own
// call site.
func callerLocation() (string, int) {
	for skip := 2; skip < 8; skip++ {
		pc, file, line, ok := runtime.Caller(skip)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "intel-gpu-tools/harness.") && !strings.HasSuffix(file, "_test.go") {
			continue
		}
		return trimSourcePath(file), line
	}
	return "?", 0
}

func trimSourcePath(file string) string {
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		return file[i+1:]
	}
	return file
}
