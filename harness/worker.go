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
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/markjdb/intel-gpu-tools/harness/log"
	"github.com/markjdb/intel-gpu-tools/harness/testresult"
	sysexec "github.com/markjdb/intel-gpu-tools/system/exec"
)

// A Worker is a registered workload that Fork runs in a child process
// re-executing this binary. The process boundary isolates the parent
// from crashes and lets a wedged workload be killed outright, which a
// goroutine cannot be. Workers communicate with the harness only
// through their exit status: Fail works, Skip does not.
//
// Register workers from init or from package scope, before the harness
// starts dispatching.
type Worker struct {
	name  string
	entry sysexec.Entrypoint
}

// NewWorker registers fn under name as a forkable workload.
func NewWorker(name string, fn func(args []string)) *Worker {
	entry := sysexec.NewEntrypoint("worker-"+name, func(args []string) error {
		becomeChildProcess("worker-" + name)
		fn(args)
		return nil
	})
	return &Worker{name: name, entry: entry}
}

// becomeChildProcess sets up harness state in a re-executed child so
// the verdict primitives behave: Fail exits with its code for the
// parent to decode, Skip panics.
func becomeChildProcess(name string) {
	std = newHarness(modeSimple)
	std.worker = true
	std.name = filepath.Base(os.Args[0]) + "/" + name
	log.SetProgramName(std.name)
	log.CaptureCapnslog()
}

// Fork starts the worker in a child process. In a subtest binary it may
// only be called from inside a subtest or fixture. The child is tracked
// until the next WaitChildren; children still tracked when the test
// exits are killed.
func (w *Worker) Fork(args ...string) {
	std.fork(w, args)
}

func (h *Harness) fork(w *Worker, args []string) {
	if h.worker {
		panic("harness: Fork from a forked worker")
	}
	if h.mode == modeSubtests && h.SubtestName() == "" && !h.inFixture {
		panic("harness: Fork outside of any fixture or subtest")
	}

	AtExit(reapChildrenHandler)

	cmd := w.entry.Command(args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	h.AssertNoError(cmd.Start(), fmt.Sprintf("forking worker %s", w.name))

	h.mu.Lock()
	h.children = append(h.children, cmd)
	h.mu.Unlock()
}

// WaitChildren waits for all forked children. The first child to fail
// decides the verdict: its exit status is decoded (normal exit, signal
// death as 128 + signal, anything else as the unhandled sentinel), the
// remaining children are killed, and the current subtest fails with the
// decoded code.
func WaitChildren() {
	std.WaitChildren()
}

func (h *Harness) WaitChildren() {
	if h.worker {
		panic("harness: WaitChildren from a forked worker")
	}

	// Children stay tracked until collected: if a timeout abandons this
	// wait, the exit path still finds and kills them.
	myBlock := h.currentBlock()
	h.mu.Lock()
	children := h.children
	h.mu.Unlock()

	type done struct {
		idx int
		cmd *sysexec.ExecCmd
	}
	ch := make(chan done, len(children))
	for i, cmd := range children {
		go func(i int, cmd *sysexec.ExecCmd) {
			cmd.Wait()
			ch <- done{i, cmd}
		}(i, cmd)
	}

	code := 0
	var diags []string
	for range children {
		d := <-ch
		status, ok := d.cmd.WaitStatus()
		if !ok || code != 0 {
			continue
		}
		switch {
		case status.Exited():
			if c := status.ExitStatus(); c != 0 {
				diags = append(diags, fmt.Sprintf("child %d failed with exit status %d", d.idx, c))
				code = c
			}
		case status.Signaled():
			sig := status.Signal()
			diags = append(diags, fmt.Sprintf("child %d died with signal %d, %s",
				d.idx, int(sig), unix.SignalName(sig)))
			code = 128 + int(sig)
		default:
			diags = append(diags, fmt.Sprintf("child %d failed with unknown status 0x%x",
				d.idx, uint32(status)))
			code = testresult.ExitUnhandled
		}
		if code != 0 {
			// One bad child spoils the run; no point letting the rest
			// finish.
			for _, cmd := range children {
				if cmd != d.cmd {
					unix.Kill(cmd.Pid(), unix.SIGKILL)
				}
			}
		}
	}

	// When the enclosing block timed out while we were waiting, the
	// harness has moved on and reported TIMEOUT; this goroutine must
	// neither print nor record anything, just go away.
	h.mu.Lock()
	abandoned := h.cur != myBlock
	if !abandoned {
		h.children = nil
	}
	h.mu.Unlock()
	if abandoned {
		runtime.Goexit()
	}

	for _, d := range diags {
		fmt.Fprintln(h.out, d)
	}
	if code != 0 {
		h.Fail(code)
	}
}

// WaitChildrenTimeout is WaitChildren bounded by the interruption
// timeout: children still running after d abort the enclosing block
// with a TIMEOUT verdict.
func WaitChildrenTimeout(d time.Duration, desc string) {
	std.WaitChildrenTimeout(d, desc)
}

func (h *Harness) WaitChildrenTimeout(d time.Duration, desc string) {
	h.SetTimeout(d, desc)
	h.WaitChildren()
	h.ResetTimeout()
}

// killChildren force-kills and reaps every still-tracked child. Runs on
// the exit path, where a straggler must not outlive the test and
// confuse the runner's session accounting.
func (h *Harness) killChildren() {
	h.mu.Lock()
	children := h.children
	h.children = nil
	h.mu.Unlock()

	for _, cmd := range children {
		unix.Kill(cmd.Pid(), unix.SIGKILL)
		cmd.Wait()
	}
}

func reapChildrenHandler(sig int) {
	if std == nil {
		return
	}
	if sig != 0 {
		// Fatal-signal path: stick to kill and wait syscalls.
		std.mu.Lock()
		children := std.children
		std.children = nil
		std.mu.Unlock()
		for _, cmd := range children {
			unix.Kill(cmd.Pid(), unix.SIGKILL)
			var ws syscall.WaitStatus
			syscall.Wait4(cmd.Pid(), &ws, 0, nil)
		}
		return
	}
	std.killChildren()
}
