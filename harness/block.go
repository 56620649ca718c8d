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
	"runtime/debug"
	"sync"
	"time"

	"github.com/markjdb/intel-gpu-tools/harness/log"
	"github.com/markjdb/intel-gpu-tools/harness/testresult"
)

type outcomeKind int

const (
	// outcomeRan means the body returned normally, which counts as an
	// implicit success.
	outcomeRan outcomeKind = iota
	outcomeSkip
	outcomeFail
	outcomeSuccess
	outcomePanic
	outcomeTimeout
)

type outcome struct {
	kind       outcomeKind
	code       int // exit code for outcomeFail
	panicValue interface{}
	stack      []byte
	desc       string // timeout description
}

// block is one executing fixture or subtest body. The body runs on its
// own goroutine; Skip, Fail and Success record the outcome and leave
// with runtime.Goexit, so the body's deferred cleanups still run and
// the goroutine's defer observes finished == true.
type block struct {
	name string // "" for a fixture
	done chan struct{}

	mu       sync.Mutex
	finished bool
	out      outcome
}

// leave records out as the block's outcome and terminates the calling
// body goroutine. Never returns.
func (b *block) leave(out outcome) {
	b.mu.Lock()
	b.out = out
	b.finished = true
	b.mu.Unlock()
	runtime.Goexit()
}

// runBody executes body as a block and returns its outcome. Blocks
// until the body finishes or the interruption timeout fires; a timed
// out body goroutine is abandoned, its process-level resources are
// reaped at exit.
func (h *Harness) runBody(name string, body func()) outcome {
	b := &block{name: name, done: make(chan struct{})}

	h.mu.Lock()
	h.cur = b
	h.mu.Unlock()

	go func() {
		defer func() {
			r := recover()
			b.mu.Lock()
			if r != nil {
				b.out = outcome{kind: outcomePanic, panicValue: r, stack: debug.Stack()}
			} else if !b.finished {
				b.out = outcome{kind: outcomeRan}
			}
			b.mu.Unlock()
			close(b.done)
		}()
		body()
		b.mu.Lock()
		b.finished = true
		b.out = outcome{kind: outcomeRan}
		b.mu.Unlock()
	}()

	var out outcome
	select {
	case <-b.done:
		b.mu.Lock()
		out = b.out
		b.mu.Unlock()
	case desc := <-h.timeout.fired:
		out = outcome{kind: outcomeTimeout, desc: desc}
	}

	h.mu.Lock()
	h.cur = nil
	h.mu.Unlock()
	return out
}

// Fixture runs body as a shared setup or teardown block. Fixtures do
// not run while listing subtests, and once a fixture skips or fails all
// further fixtures are skipped too.
func Fixture(body func()) {
	std.Fixture(body)
}

func (h *Harness) Fixture(body func()) {
	if h.worker {
		panic("harness: Fixture called from a forked worker")
	}
	if h.inFixture {
		panic("harness: nested Fixture blocks")
	}
	if h.SubtestName() != "" {
		panic("harness: Fixture inside a subtest")
	}
	if h.listOnly || h.henceforth != runAll {
		return
	}

	h.inFixture = true
	out := h.runBody("", body)
	h.inFixture = false

	switch out.kind {
	case outcomeRan, outcomeSuccess:
	case outcomeSkip:
		h.henceforth = skipAll
	case outcomeFail:
		h.henceforth = failAll
	case outcomePanic:
		h.recordPanic(out)
		h.henceforth = failAll
	case outcomeTimeout:
		log.Warnf("Fixture timed out: %s\n", out.desc)
		h.recordFailure(testresult.ExitTimeout)
		log.Dump(h.errOut, h.dumpHeader())
		h.henceforth = failAll
	}
}

// Subtest runs body as the named subtest if it is selected. While
// listing, the name is printed instead; when a preceding fixture
// skipped or failed, a SKIP or FAIL verdict is announced without
// running the body.
func Subtest(name string, body func()) {
	std.Subtest(name, body)
}

func (h *Harness) Subtest(name string, body func()) {
	if h.mode != modeSubtests {
		panic("harness: Subtest in a simple test binary")
	}
	if h.worker {
		panic("harness: Subtest called from a forked worker")
	}
	if h.inFixture {
		panic("harness: Subtest inside a Fixture block")
	}
	if h.SubtestName() != "" {
		panic("harness: nested Subtest blocks")
	}
	if !validSubtestName(name) {
		log.Criticalf("Invalid subtest name %q.\n", name)
		h.terminate(testresult.ExitInvalid)
		return
	}

	if h.listOnly {
		fmt.Fprintln(h.out, name)
		return
	}
	if h.pattern != "" {
		if !Match(name, h.pattern) {
			return
		}
		h.patternHit = true
	}
	switch h.henceforth {
	case skipAll:
		h.skippedOne = true
		h.announce(name, testresult.Skip)
		return
	case failAll:
		h.recordFailure(testresult.ExitFailure)
		h.announce(name, testresult.Fail)
		return
	}

	journalf("starting subtest %s", name)
	log.Debugf("Starting subtest: %s\n", name)
	log.Reset()

	h.mu.Lock()
	h.started = time.Now()
	h.mu.Unlock()

	out := h.runBody(name, body)
	h.finishSubtest(name, out)
}

func (h *Harness) finishSubtest(name string, out outcome) {
	elapsed := h.elapsed()

	var res testresult.Status
	switch out.kind {
	case outcomeRan, outcomeSuccess:
		h.succeededOne = true
		res = testresult.Success
	case outcomeSkip:
		res = testresult.Skip
	case outcomeFail:
		res = testresult.Fail
		if out.code == testresult.ExitTimeout {
			res = testresult.Timeout
		}
	case outcomeTimeout:
		log.Warnf("Subtest timed out: %s\n", out.desc)
		h.recordFailure(testresult.ExitTimeout)
		log.Dump(h.errOut, fmt.Sprintf("Subtest %s failed.", name))
		res = testresult.Timeout
	case outcomePanic:
		fmt.Fprintf(h.errOut, "panic: %v\n\n%s", out.panicValue, out.stack)
		log.Dump(h.errOut, fmt.Sprintf("Subtest %s failed.", name))
		h.recordFailure(testresult.ExitFailure)
		res = testresult.Crash
	}

	h.ResetTimeout()
	journalf("subtest %s: %s", name, res)
	h.resultLine(name, res, elapsed)
}

// announce prints a verdict for a subtest whose body never ran.
func (h *Harness) announce(name string, res testresult.Status) {
	bold, reset := "\x1b[1m", "\x1b[0m"
	if h.plain {
		bold, reset = "", ""
	}
	fmt.Fprintf(h.out, "%sSubtest %s: %s%s\n", bold, name, res, reset)
}

// Group runs body with the skip/fail continuation state saved and
// restored around it, so a fixture skipping inside the group only
// affects the group's own subtests.
func Group(body func()) {
	std.Group(body)
}

func (h *Harness) Group(body func()) {
	saved := h.henceforth
	defer func() { h.henceforth = saved }()
	body()
}

func (h *Harness) recordFailure(code int) {
	if !h.failedOne {
		h.exitCode = code
	}
	h.failedOne = true
}

func (h *Harness) recordPanic(out outcome) {
	fmt.Fprintf(h.errOut, "panic: %v\n\n%s", out.panicValue, out.stack)
	log.Dump(h.errOut, h.dumpHeader())
	h.recordFailure(testresult.ExitFailure)
}

func (h *Harness) dumpHeader() string {
	if name := h.SubtestName(); name != "" {
		return fmt.Sprintf("Subtest %s failed.", name)
	}
	return fmt.Sprintf("Test %s failed.", h.name)
}

// Subtest names become file names and testlist entries, so they are
// restricted to a conservative character set.
func validSubtestName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
