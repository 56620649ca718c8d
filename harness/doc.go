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

// Package harness is the core test support infrastructure for the GPU
// kernel-driver validation binaries in this repository. It provides
// subtest enumeration, command line handling, structured result
// reporting, exit handlers and process isolation for test workers.
//
// A test with subtests looks like:
//
//	func main() {
//		harness.Main(func() {
//			var fd int
//			harness.Fixture(func() {
//				fd = openDriver()
//			})
//			harness.Subtest("basic-flip", func() {
//				testFlip(fd)
//			})
//			harness.Subtest("basic-cursor", func() {
//				testCursor(fd)
//			})
//			harness.Fixture(func() {
//				closeDriver(fd)
//			})
//		})
//	}
//
// Subtests are enumerated at runtime: with --list-subtests the process
// prints one subtest name per line and no fixture body runs, so
// enumeration must never require privileged operations. Setup code
// therefore always lives in Fixture blocks, which are skipped while
// listing and after an earlier fixture has skipped or failed.
//
// Subtest and fixture bodies finish through exactly three primitives:
// Skip, Fail and Success. Skip and Fail are one-way transfers back to
// the enclosing block and never return; Success leaves a named subtest
// the same way but merely records progress elsewhere. A body that
// falls off its end is recorded as a success. Every body runs on its
// own goroutine and
// the primitives leave it with runtime.Goexit, so deferred cleanups in
// the body still run, and there is no way to leave a block that
// bypasses result accounting.
//
// The test status is reflected in the exit code: 0 means success, 77
// skip, 78 timeout, and anything else failure, including abnormal
// termination. One result line per subtest is printed to stdout in the
// form "Subtest <name>: <RESULT> (<seconds>s)"; supervising runners
// parse these lines, so nothing else may be written to stdout outside
// of log output.
//
// Parallel workloads use registered worker processes (NewWorker, Fork,
// WaitChildren) rather than goroutines, so a crashing or wedged body
// cannot take the harness down with it. Workers report exclusively
// through their exit status; calling Skip in a worker is a programming
// error.
package harness
