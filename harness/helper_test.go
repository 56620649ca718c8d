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
	"testing"
	"time"
)

// Helpers for the process tests; they run in re-executed copies of this
// test binary, dispatched by TestMain.
var (
	sleeperHelper = NewHelper("test-sleeper", func(args []string) {
		for {
			time.Sleep(time.Hour)
		}
	})
	exitingHelper = NewHelper("test-exiting", func(args []string) {
		os.Exit(0)
	})
)

func TestHelperStartStop(t *testing.T) {
	resetExitHandlers()
	defer resetExitHandlers()

	sleeperHelper.Start()
	if !sleeperHelper.Running() {
		t.Fatal("helper not running after Start")
	}
	sleeperHelper.Stop()
	if sleeperHelper.Running() {
		t.Error("helper still running after Stop")
	}
}

func TestHelperWaitStatus(t *testing.T) {
	resetExitHandlers()
	defer resetExitHandlers()

	exitingHelper.Start()
	status := exitingHelper.Wait()
	if !status.Exited() || status.ExitStatus() != 0 {
		t.Errorf("helper wait status 0x%x; want clean exit", uint32(status))
	}
	if exitingHelper.Running() {
		t.Error("helper still marked running after Wait")
	}
}

func TestHelperSlotReuse(t *testing.T) {
	resetExitHandlers()
	defer resetExitHandlers()

	// Cycling more helpers than there are slots must work as long as
	// they are stopped in between.
	for i := 0; i < 2*maxHelpers; i++ {
		sleeperHelper.Start()
		sleeperHelper.Stop()
	}
}

func TestHelperDoubleStartPanics(t *testing.T) {
	resetExitHandlers()
	defer resetExitHandlers()

	sleeperHelper.Start()
	defer sleeperHelper.Stop()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	sleeperHelper.Start()
}

func TestSignalHelper(t *testing.T) {
	resetExitHandlers()
	defer resetExitHandlers()

	ForkSignalHelper()
	// Ride out a few injection periods; SIGCONT must not disturb us.
	time.Sleep(20 * time.Millisecond)
	StopSignalHelper()
}

func TestStopAllHelpersOnExit(t *testing.T) {
	resetExitHandlers()
	defer resetExitHandlers()

	sleeperHelper.Start()
	pid := sleeperHelper.cmd.Pid()

	runExitHandlers(0)

	// The exit handler reaped it; the pid must be gone.
	if err := syscall.Kill(pid, 0); err == nil {
		t.Errorf("helper pid %d still alive after exit handlers", pid)
	}
	// Slot bookkeeping was cleared by the handler.
	sleeperHelper.cmd = nil
	sleeperHelper.slot = -1
}
