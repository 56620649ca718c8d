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
	"os/signal"
	"reflect"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/markjdb/intel-gpu-tools/harness/testresult"
)

// ExitFunc is an exit handler. sig is the fatal signal being handled,
// or 0 on a normal exit.
type ExitFunc func(sig int)

const maxExitHandlers = 10

var exitHandlers struct {
	mu        sync.Mutex
	fns       []ExitFunc
	keys      []uintptr
	installed bool
}

// teardown is set once handler dispatch has begun so that a failure
// inside a handler exits directly instead of re-entering the exit
// machinery.
var teardown atomic.Bool

func teardownActive() bool {
	return teardown.Load()
}

// AtExit registers fn to run on process exit, normal or fatal-signal.
// Handlers run in reverse registration order, at most once. Registering
// the same function twice is a no-op, which lets subsystems register
// their cleanup from code paths that repeat. Identity is the function's
// code pointer: two closures over the same literal count as the same
// handler, so register named functions, not capturing closures.
func AtExit(fn ExitFunc) {
	key := reflect.ValueOf(fn).Pointer()

	exitHandlers.mu.Lock()
	defer exitHandlers.mu.Unlock()

	for _, k := range exitHandlers.keys {
		if k == key {
			return
		}
	}
	if len(exitHandlers.fns) >= maxExitHandlers {
		panic("harness: too many exit handlers")
	}
	exitHandlers.fns = append(exitHandlers.fns, fn)
	exitHandlers.keys = append(exitHandlers.keys, key)

	if !exitHandlers.installed && std != nil && !std.noSignals {
		exitHandlers.installed = true
		installSignalDispatch()
	}
}

// runExitHandlers dispatches the registered handlers in reverse order
// and empties the registry, so a handler that itself exits cannot cause
// a second dispatch.
func runExitHandlers(sig int) {
	exitHandlers.mu.Lock()
	fns := exitHandlers.fns
	exitHandlers.fns = nil
	exitHandlers.keys = nil
	exitHandlers.mu.Unlock()

	teardown.Store(true)
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i](sig)
	}
	teardown.Store(false)
}

// terminate is the single point through which the process leaves on a
// non-signal path: handlers, then exit.
func (h *Harness) terminate(code int) {
	signal.Reset()
	runExitHandlers(0)
	h.exitFn(code)
}

// Signals that trigger exit-handler dispatch. The loud ones indicate a
// crashed test and get announced; the quiet ones are routine
// termination requests.
var handledSignals = []struct {
	sig  syscall.Signal
	loud bool
}{
	{syscall.SIGINT, false},
	{syscall.SIGHUP, false},
	{syscall.SIGTERM, false},
	{syscall.SIGQUIT, false},
	{syscall.SIGPIPE, false},
	{syscall.SIGABRT, true},
	{syscall.SIGSEGV, true},
	{syscall.SIGBUS, true},
	{syscall.SIGFPE, true},
}

func crashSignal(sig syscall.Signal) bool {
	switch sig {
	case syscall.SIGILL, syscall.SIGBUS, syscall.SIGFPE, syscall.SIGSEGV:
		return true
	}
	return false
}

func installSignalDispatch() {
	sigs := make([]os.Signal, 0, len(handledSignals))
	for _, hs := range handledSignals {
		sigs = append(sigs, hs.sig)
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		sig := <-ch
		fatalSignalDispatch(sig.(syscall.Signal))
	}()
}

// fatalSignalDispatch runs on its own goroutine while the test body may
// be wedged or corrupting memory, so it writes through the async-safe
// path, runs the exit handlers, restores default disposition and
// re-raises so the wait status seen by the runner is the real signal
// death.
func fatalSignalDispatch(sig syscall.Signal) {
	for _, hs := range handledSignals {
		if hs.sig == sig && hs.loud {
			var l crashLine
			l.str("Received signal ")
			l.str(unix.SignalName(sig))
			l.str(".\n")
			l.flush(2)
			break
		}
	}

	if h := std; h != nil && crashSignal(sig) {
		h.recordFailure(128 + int(sig))
		if name := h.SubtestName(); name != "" {
			var l crashLine
			l.str("Subtest ")
			l.str(name)
			l.str(": CRASH (")
			l.millis(h.elapsedMillis())
			l.str("s)\n")
			l.flush(1)
		}
		dumpStacksCrash()
	}

	signal.Reset()
	runExitHandlers(int(sig))

	unix.Kill(os.Getpid(), sig)
	// The re-raise is normally fatal; if the signal is blocked in this
	// thread fall back to encoding it in the exit code.
	os.Exit(testresult.ExitUnhandled)
}
