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
	"bufio"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// The signal helper storms the test process with SIGCONT to flush out
// broken handling of interrupted syscalls, a perpetual source of bugs
// in ioctl-heavy test code. SIGCONT is harmless to a process that is
// not stopped, so the only observable effect is EINTR.
var signalHelper = NewHelper("signal-injector", func(args []string) {
	target := unix.Getppid()
	for {
		if unix.Getppid() != target {
			// Parent died and we got reparented; Pdeathsig should have
			// taken us down already.
			return
		}
		unix.Kill(target, unix.SIGCONT)
		time.Sleep(100 * time.Microsecond)
	}
})

// ForkSignalHelper starts the SIGCONT injector. Pair with
// StopSignalHelper before any code that cannot tolerate EINTR.
func ForkSignalHelper() {
	signalHelper.UseSIGKILL = true
	signalHelper.Start()
}

// StopSignalHelper stops the SIGCONT injector.
func StopSignalHelper() {
	signalHelper.Stop()
}

// DebugWait pauses the test until Enter is pressed when
// --interactive-debug matches domain. Sprinkle DebugWait calls at
// interesting states ("failure" is emitted before every Fail) to hold
// the hardware still for inspection.
func DebugWait(domain string) {
	if std == nil {
		return
	}
	std.DebugWait(domain)
}

func (h *Harness) DebugWait(domain string) {
	if h.interactive == "" || h.worker {
		return
	}
	if h.interactive != debugAllDomains && h.interactive != domain {
		return
	}
	fmt.Fprintf(h.errOut, "Press Enter to continue (%s)...\n", domain)
	r := bufio.NewReader(h.in)
	r.ReadString('\n')
}
