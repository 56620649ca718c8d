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

	"github.com/markjdb/intel-gpu-tools/harness/log"
	"github.com/markjdb/intel-gpu-tools/harness/testresult"
)

// Exit computes the final verdict, runs the exit handlers and
// terminates the process. Main and SimpleMain call it implicitly; only
// test binaries with their own outer control flow call it directly.
// Never returns.
func Exit() {
	std.Exit()
}

func (h *Harness) Exit() {
	if h.pattern != "" && !h.patternHit {
		log.Warnf("Unknown subtest: %s\n", h.pattern)
		h.terminate(testresult.ExitInvalid)
		return
	}
	if h.listOnly {
		h.terminate(testresult.ExitSuccess)
		return
	}
	if h.mode == modeSubtests && !h.skippedOne && !h.succeededOne && !h.failedOne {
		// A subtest binary that never reaches a single subtest block is
		// broken, not skipped.
		panic("harness: a subtest binary ran no subtest")
	}

	if !h.failedOne {
		if h.skippedOne && !h.succeededOne {
			h.exitCode = testresult.ExitSkip
		} else {
			h.exitCode = testresult.ExitSuccess
		}
	}

	journalf("%s: exiting, ret=%d", h.name, h.exitCode)
	log.Debugf("Exiting with status code %d\n", h.exitCode)

	h.killChildren()

	if h.mode == modeSimple && !h.worker {
		res := testresult.Success
		switch h.exitCode {
		case testresult.ExitSuccess:
		case testresult.ExitSkip:
			res = testresult.Skip
		case testresult.ExitTimeout:
			res = testresult.Timeout
		default:
			res = testresult.Fail
		}
		fmt.Fprintf(h.out, "%s (%.3fs)\n", res, h.elapsed())
	}

	h.terminate(h.exitCode)
}
