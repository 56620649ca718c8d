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
	"sync"
	"time"

	"github.com/markjdb/intel-gpu-tools/harness/log"
	"github.com/markjdb/intel-gpu-tools/harness/testresult"
)

type timeoutState struct {
	mu    sync.Mutex
	timer *time.Timer
	fired chan string
}

// SetTimeout arms the interruption timeout: if d elapses before
// ResetTimeout, the enclosing subtest or fixture is aborted with a
// TIMEOUT verdict; outside of any block the whole test fails with the
// timeout exit code. desc names the operation being bounded and
// appears in the diagnostic. A new timeout replaces any armed one; a
// zero d cancels outright, like ResetTimeout.
func SetTimeout(d time.Duration, desc string) {
	std.SetTimeout(d, desc)
}

func (h *Harness) SetTimeout(d time.Duration, desc string) {
	h.ResetTimeout()
	if d == 0 {
		return
	}

	h.timeout.mu.Lock()
	defer h.timeout.mu.Unlock()
	h.timeout.timer = time.AfterFunc(d, func() { h.timeoutExpired(desc) })
}

// ResetTimeout disarms the current timeout, if any.
func ResetTimeout() {
	std.ResetTimeout()
}

func (h *Harness) ResetTimeout() {
	h.timeout.mu.Lock()
	defer h.timeout.mu.Unlock()

	if h.timeout.timer != nil {
		h.timeout.timer.Stop()
		h.timeout.timer = nil
	}
	if h.timeout.fired != nil {
		select {
		case <-h.timeout.fired:
		default:
		}
	}
}

func (h *Harness) timeoutExpired(desc string) {
	h.timeout.mu.Lock()
	h.timeout.timer = nil
	h.timeout.mu.Unlock()

	log.Warnf("Timed out waiting for %s\n", desc)

	h.mu.Lock()
	active := h.cur != nil
	h.mu.Unlock()
	if active {
		// The block wrapper is selecting on this channel; it abandons
		// the wedged body goroutine and reports TIMEOUT.
		select {
		case h.timeout.fired <- desc:
		default:
		}
		return
	}

	// No block to abort: fail the whole process. Workers just die with
	// the timeout code for the parent to decode.
	h.recordFailure(testresult.ExitTimeout)
	if h.worker {
		h.exitFn(testresult.ExitTimeout)
		return
	}
	h.Exit()
}
