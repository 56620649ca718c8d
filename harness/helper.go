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
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/markjdb/intel-gpu-tools/harness/log"
	sysexec "github.com/markjdb/intel-gpu-tools/system/exec"
)

// A Helper is a long-running auxiliary process that runs alongside the
// test rather than being a workload of it: signal injectors, hang
// detectors, background load. Unlike workers, helpers are expected to
// outlive their work and be stopped by the test; a helper that dies on
// its own is a bug.
type Helper struct {
	name  string
	entry sysexec.Entrypoint

	// UseSIGKILL selects SIGKILL instead of SIGTERM for Stop, for
	// helpers that block or ignore SIGTERM.
	UseSIGKILL bool

	cmd  *sysexec.ExecCmd
	slot int
}

// maxHelpers bounds concurrently running helpers; a test needing more
// is a design problem.
const maxHelpers = 4

var helperSlots struct {
	mu   chan struct{} // 1-token semaphore usable from the exit path
	live [maxHelpers]*Helper
}

func init() {
	helperSlots.mu = make(chan struct{}, 1)
	helperSlots.mu <- struct{}{}
}

// NewHelper registers fn under name as a startable helper process.
// Call it from init or package scope.
func NewHelper(name string, fn func(args []string)) *Helper {
	h := &Helper{name: name, slot: -1}
	h.entry = sysexec.NewEntrypoint("helper-"+name, func(args []string) error {
		becomeChildProcess("helper-" + name)
		fn(args)
		return nil
	})
	return h
}

// Start launches the helper. It panics when the helper is already
// running or all helper slots are taken.
func (hp *Helper) Start(args ...string) {
	if hp.cmd != nil {
		panic("harness: helper " + hp.name + " already running")
	}

	AtExit(stopAllHelpers)

	cmd := hp.entry.Command(args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	<-helperSlots.mu
	slot := -1
	for i := range helperSlots.live {
		if helperSlots.live[i] == nil {
			slot = i
			break
		}
	}
	if slot == -1 {
		helperSlots.mu <- struct{}{}
		panic("harness: too many helper processes")
	}

	if err := cmd.Start(); err != nil {
		helperSlots.mu <- struct{}{}
		std.AssertNoError(err, "starting helper "+hp.name)
		return
	}
	hp.cmd = cmd
	hp.slot = slot
	helperSlots.live[slot] = hp
	helperSlots.mu <- struct{}{}

	log.Debugf("Started helper %s, pid %d\n", hp.name, cmd.Pid())
}

// Running reports whether the helper has been started and not yet
// waited for.
func (hp *Helper) Running() bool {
	return hp.cmd != nil
}

// Wait reaps the helper and returns its wait status, freeing its slot.
func (hp *Helper) Wait() syscall.WaitStatus {
	if hp.cmd == nil {
		panic("harness: helper " + hp.name + " not running")
	}
	hp.cmd.Wait()
	status, _ := hp.cmd.WaitStatus()

	<-helperSlots.mu
	helperSlots.live[hp.slot] = nil
	helperSlots.mu <- struct{}{}
	hp.cmd = nil
	hp.slot = -1

	return status
}

// Stop terminates the helper and asserts that it died from the stop
// signal. A helper found dead of anything else fails the test: it means
// the helper broke while the test still depended on it.
func (hp *Helper) Stop() {
	sig := syscall.SIGTERM
	if hp.UseSIGKILL {
		sig = syscall.SIGKILL
	}
	pid := hp.cmd.Pid()
	// An ESRCH here means the helper is already dead; Wait will then
	// report how, and the assertion below catches it.
	unix.Kill(pid, sig)

	status := hp.Wait()
	if !status.Signaled() || status.Signal() != sig {
		log.Warnf("Helper %s died prematurely, status 0x%x\n", hp.name, uint32(status))
		std.Assert(false, "helper %s did not terminate on request", hp.name)
	}
}

// stopAllHelpers is the exit handler for helper processes. It must make
// do with raw kill/wait syscalls: on the fatal-signal path the rest of
// the runtime state is suspect.
func stopAllHelpers(sig int) {
	select {
	case <-helperSlots.mu:
	default:
		// Lock holder was interrupted by the fatal signal; the
		// Pdeathsig on each helper still cleans up.
		return
	}
	defer func() { helperSlots.mu <- struct{}{} }()

	for i, hp := range helperSlots.live {
		if hp == nil || hp.cmd == nil {
			continue
		}
		pid := hp.cmd.Pid()
		unix.Kill(pid, unix.SIGTERM)
		var ws syscall.WaitStatus
		syscall.Wait4(pid, &ws, 0, nil)
		helperSlots.live[i] = nil
	}
}
