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

// Package testresult defines the per-subtest result statuses and the
// process exit-code contract shared by all harness-based test binaries
// and by tooling that supervises them.
package testresult

import "fmt"

// Exit codes understood by test runners. These are stable across every
// harness-based binary: anything not listed below is a plain failure,
// with crashes additionally encoded as 128 + signal number.
const (
	ExitSuccess = 0
	ExitSkip    = 77
	ExitTimeout = 78
	ExitInvalid = 79
	ExitFailure = 99

	// ExitUnhandled is reported when a worker's wait status is neither a
	// normal exit nor a signal death.
	ExitUnhandled = 126
)

const (
	Success Status = "SUCCESS"
	Skip    Status = "SKIP"
	Fail    Status = "FAIL"
	Timeout Status = "TIMEOUT"
	Crash   Status = "CRASH"
)

// Status is the textual verdict of one subtest or of a whole simple test.
type Status string

// FromExitCode maps a process exit code to the status a supervising
// runner should record for it.
func FromExitCode(code int) Status {
	switch {
	case code == ExitSuccess:
		return Success
	case code == ExitSkip:
		return Skip
	case code == ExitTimeout:
		return Timeout
	case code > 128 && code <= 128+64:
		return Crash
	default:
		return Fail
	}
}

// Display returns the status wrapped in ANSI bold, matching the result
// stream of the test binaries themselves. With plain set it returns the
// bare string.
func (s Status) Display(plain bool) string {
	if plain {
		return string(s)
	}
	return fmt.Sprintf("\x1b[1m%s\x1b[0m", s)
}

// Failed reports whether the status counts against the final exit code.
func (s Status) Failed() bool {
	return s == Fail || s == Timeout || s == Crash
}
