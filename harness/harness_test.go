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
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/markjdb/intel-gpu-tools/harness/log"
	"github.com/markjdb/intel-gpu-tools/harness/testresult"
	sysexec "github.com/markjdb/intel-gpu-tools/system/exec"
)

func TestMain(m *testing.M) {
	// Worker and helper tests re-exec this test binary.
	sysexec.MaybeExec()

	g0 := runtime.NumGoroutine()

	code := m.Run()
	if code != 0 {
		os.Exit(code)
	}

	// Check that there are no goroutines left behind.
	t0 := time.Now()
	stacks := make([]byte, 1<<20)
	for {
		g1 := runtime.NumGoroutine()
		if g1 == g0 {
			return
		}
		stacks = stacks[:runtime.Stack(stacks, true)]
		time.Sleep(50 * time.Millisecond)
		if time.Since(t0) > 2*time.Second {
			fmt.Fprintf(os.Stderr, "Unexpected leftover goroutines detected: %v -> %v\n%s\n", g0, g1, stacks)
			os.Exit(1)
		}
	}
}

// exitStatus carries the would-be process exit code out of Exit and
// terminate, which never return in production.
type exitStatus struct{ code int }

func newTestHarness(m mode) (*Harness, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	h := newHarness(m,
		withStreams(strings.NewReader(""), out, errOut),
		withExitFn(func(code int) { panic(exitStatus{code}) }),
		withoutSignalHandlers(),
	)
	h.name = "test"
	h.plain = true
	return h, out, errOut
}

// captureExit runs f, which is expected to end in an exitFn call, and
// returns the exit code.
func captureExit(t *testing.T, f func()) (code int) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected process exit")
		}
		es, ok := r.(exitStatus)
		if !ok {
			panic(r)
		}
		code = es.code
	}()
	f()
	return
}

func makeRegexp(s string) string {
	s = strings.Replace(s, ":NNN:", `:\d+:`, -1)
	s = strings.Replace(s, "(N.NNs)", `\(\d*\.\d*s\)`, -1)
	return s
}

func matchOutput(t *testing.T, desc, got, want string) {
	t.Helper()
	got = strings.TrimSpace(got)
	want = strings.TrimSpace(want)
	re := "^" + makeRegexp(want) + "$"
	if ok, err := regexp.MatchString(re, got); !ok || err != nil {
		t.Errorf("%s: output:\ngot:\n%s\nwant:\n%s", desc, got, want)
	}
}

func TestSubtestVerdicts(t *testing.T) {
	testCases := []struct {
		desc   string
		exit   int
		output string
		body   func(h *Harness)
	}{{
		desc: "implicit success",
		exit: testresult.ExitSuccess,
		output: `
Subtest implicit-success: SUCCESS (N.NNs)`,
		body: func(h *Harness) {
			h.Subtest("implicit-success", func() {})
		},
	}, {
		desc: "explicit success leaves the body early",
		exit: testresult.ExitSuccess,
		output: `
Subtest early: SUCCESS (N.NNs)`,
		body: func(h *Harness) {
			reached := false
			h.Subtest("early", func() {
				h.Success()
				reached = true
			})
			if reached {
				t.Error("code after Success ran")
			}
		},
	}, {
		desc: "skip with message",
		exit: testresult.ExitSkip,
		output: `
no gpu today
Subtest skipped: SKIP (N.NNs)`,
		body: func(h *Harness) {
			h.Subtest("skipped", func() {
				h.Skipf("no gpu today")
			})
		},
	}, {
		desc: "failure records its exit code",
		exit: 3,
		output: `
Subtest failed: FAIL (N.NNs)`,
		body: func(h *Harness) {
			h.Subtest("failed", func() {
				h.Fail(3)
			})
		},
	}, {
		desc: "skip then success exits zero",
		exit: testresult.ExitSuccess,
		output: `
Subtest a: SKIP (N.NNs)
Subtest b: SUCCESS (N.NNs)`,
		body: func(h *Harness) {
			h.Subtest("a", func() { h.Skipf("") })
			h.Subtest("b", func() {})
		},
	}, {
		desc: "failure beats skip and success",
		exit: testresult.ExitFailure,
		output: `
Subtest a: SUCCESS (N.NNs)
Subtest b: FAIL (N.NNs)
Subtest c: SKIP (N.NNs)`,
		body: func(h *Harness) {
			h.Subtest("a", func() {})
			h.Subtest("b", func() { h.Fail(testresult.ExitFailure) })
			h.Subtest("c", func() { h.Skipf("") })
		},
	}, {
		desc: "first failure code wins",
		exit: 4,
		output: `
Subtest a: FAIL (N.NNs)
Subtest b: FAIL (N.NNs)`,
		body: func(h *Harness) {
			h.Subtest("a", func() { h.Fail(4) })
			h.Subtest("b", func() { h.Fail(5) })
		},
	}, {
		desc: "only skips exits with the skip code",
		exit: testresult.ExitSkip,
		output: `
Subtest a: SKIP (N.NNs)`,
		body: func(h *Harness) {
			h.Subtest("a", func() { h.Skipf("") })
		},
	}, {
		desc: "panicking body is a crash",
		exit: testresult.ExitFailure,
		output: `
Subtest boom: CRASH (N.NNs)`,
		body: func(h *Harness) {
			h.Subtest("boom", func() {
				panic("driver fell over")
			})
		},
	}}

	for _, tc := range testCases {
		h, out, _ := newTestHarness(modeSubtests)
		code := captureExit(t, func() {
			tc.body(h)
			h.Exit()
		})
		if code != tc.exit {
			t.Errorf("%s: exit code %d; want %d", tc.desc, code, tc.exit)
		}
		matchOutput(t, tc.desc, out.String(), tc.output)
	}
}

func TestDeferredCleanupRuns(t *testing.T) {
	h, _, _ := newTestHarness(modeSubtests)

	cleaned := false
	h.Subtest("fails", func() {
		defer func() { cleaned = true }()
		h.Fail(testresult.ExitFailure)
		t.Error("code after Fail ran")
	})
	if !cleaned {
		t.Error("deferred cleanup did not run on Fail")
	}
}

func TestFixtureSkipAnnouncesRest(t *testing.T) {
	h, out, _ := newTestHarness(modeSubtests)

	ran := false
	code := captureExit(t, func() {
		h.Fixture(func() {
			h.Skipf("no device")
		})
		h.Subtest("a", func() { ran = true })
		h.Subtest("b", func() { ran = true })
		h.Exit()
	})
	if ran {
		t.Error("subtest body ran after fixture skip")
	}
	if code != testresult.ExitSkip {
		t.Errorf("exit code %d; want %d", code, testresult.ExitSkip)
	}
	matchOutput(t, "skip-all", out.String(), `
no device
Subtest a: SKIP
Subtest b: SKIP`)
}

func TestFixtureFailAnnouncesRest(t *testing.T) {
	h, out, errOut := newTestHarness(modeSubtests)

	code := captureExit(t, func() {
		h.Fixture(func() {
			h.Fail(7)
		})
		h.Subtest("a", func() { t.Error("body ran") })
		h.Exit()
	})
	if code != 7 {
		t.Errorf("exit code %d; want 7", code)
	}
	matchOutput(t, "fail-all", out.String(), `
Subtest a: FAIL`)
	if !strings.Contains(errOut.String(), "Test test failed.") {
		t.Errorf("missing failure dump header in stderr: %q", errOut.String())
	}
}

func TestGroupRestoresContinuation(t *testing.T) {
	h, out, _ := newTestHarness(modeSubtests)

	outerRan := false
	code := captureExit(t, func() {
		h.Group(func() {
			h.Fixture(func() { h.Skipf("") })
			h.Subtest("inner", func() { t.Error("inner ran") })
		})
		h.Subtest("outer", func() { outerRan = true })
		h.Exit()
	})
	if !outerRan {
		t.Error("subtest after group did not run")
	}
	if code != testresult.ExitSuccess {
		t.Errorf("exit code %d; want 0", code)
	}
	matchOutput(t, "group", out.String(), `
Subtest inner: SKIP
Subtest outer: SUCCESS (N.NNs)`)
}

func TestListSubtests(t *testing.T) {
	h, out, _ := newTestHarness(modeSubtests)
	h.listOnly = true

	code := captureExit(t, func() {
		h.Fixture(func() { t.Error("fixture ran while listing") })
		h.Subtest("a", func() { t.Error("body ran while listing") })
		h.Subtest("b", func() {})
		h.Exit()
	})
	if code != testresult.ExitSuccess {
		t.Errorf("exit code %d; want 0", code)
	}
	if got := out.String(); got != "a\nb\n" {
		t.Errorf("listing = %q; want %q", got, "a\nb\n")
	}
}

func TestRunSubtestPattern(t *testing.T) {
	h, out, _ := newTestHarness(modeSubtests)
	h.pattern = "basic-*,!*-skip"

	var ran []string
	code := captureExit(t, func() {
		for _, name := range []string{"basic-flip", "basic-skip", "other"} {
			name := name
			h.Subtest(name, func() { ran = append(ran, name) })
		}
		h.Exit()
	})
	if code != testresult.ExitSuccess {
		t.Errorf("exit code %d; want 0", code)
	}
	if want := []string{"basic-flip"}; strings.Join(ran, ",") != strings.Join(want, ",") {
		t.Errorf("ran %v; want %v", ran, want)
	}
	matchOutput(t, "pattern", out.String(), `
Subtest basic-flip: SUCCESS (N.NNs)`)
}

func TestUnmatchedPatternIsInvalid(t *testing.T) {
	h, _, errOut := newTestHarness(modeSubtests)
	h.pattern = "no-such-subtest"
	log.SetOutput(io.Discard, errOut)
	defer log.SetOutput(os.Stdout, os.Stderr)

	code := captureExit(t, func() {
		h.Subtest("a", func() { t.Error("body ran") })
		h.Exit()
	})
	if code != testresult.ExitInvalid {
		t.Errorf("exit code %d; want %d", code, testresult.ExitInvalid)
	}
	if !strings.Contains(errOut.String(), "Unknown subtest: no-such-subtest") {
		t.Errorf("missing warning, stderr: %q", errOut.String())
	}
}

func TestNoSubtestEverRanPanics(t *testing.T) {
	h, _, _ := newTestHarness(modeSubtests)
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	h.Exit()
}

func TestInvalidSubtestName(t *testing.T) {
	h, _, errOut := newTestHarness(modeSubtests)
	log.SetOutput(io.Discard, errOut)
	defer log.SetOutput(os.Stdout, os.Stderr)

	code := captureExit(t, func() {
		h.Subtest("bad name!", func() {})
	})
	if code != testresult.ExitInvalid {
		t.Errorf("exit code %d; want %d", code, testresult.ExitInvalid)
	}
}

func TestNestedBlocksPanic(t *testing.T) {
	h, _, _ := newTestHarness(modeSubtests)

	paniced := false
	h.Subtest("outer", func() {
		defer func() {
			if recover() != nil {
				paniced = true
				// Leave the block properly so the outer Subtest call
				// does not report the recover as a crash.
				h.Success()
			}
		}()
		h.Subtest("inner", func() {})
	})
	if !paniced {
		t.Error("nested Subtest did not panic")
	}
}

func TestSimpleModeSkip(t *testing.T) {
	h, out, _ := newTestHarness(modeSimple)

	code := captureExit(t, func() {
		h.Skipf("nothing to do")
	})
	if code != testresult.ExitSkip {
		t.Errorf("exit code %d; want %d", code, testresult.ExitSkip)
	}
	matchOutput(t, "simple skip", out.String(), `
nothing to do
SKIP (N.NNs)`)
}

func TestSimpleModeSuccess(t *testing.T) {
	h, out, _ := newTestHarness(modeSimple)

	code := captureExit(t, func() {
		h.Exit()
	})
	if code != testresult.ExitSuccess {
		t.Errorf("exit code %d; want 0", code)
	}
	matchOutput(t, "simple success", out.String(), `
SUCCESS (N.NNs)`)
}

func TestSimpleModeEarlySuccessContinues(t *testing.T) {
	h, out, _ := newTestHarness(modeSimple)

	cleaned := false
	code := captureExit(t, func() {
		h.Success()
		// A simple test reports success by terminating normally;
		// Success must return so cleanup after it still runs.
		cleaned = true
		h.Exit()
	})
	if !cleaned {
		t.Error("statement after Success did not run")
	}
	if code != testresult.ExitSuccess {
		t.Errorf("exit code %d; want 0", code)
	}
	matchOutput(t, "early success", out.String(), `
SUCCESS (N.NNs)`)
}

func TestSimpleModeFail(t *testing.T) {
	h, out, errOut := newTestHarness(modeSimple)

	code := captureExit(t, func() {
		h.Fail(testresult.ExitFailure)
	})
	if code != testresult.ExitFailure {
		t.Errorf("exit code %d; want %d", code, testresult.ExitFailure)
	}
	matchOutput(t, "simple fail", out.String(), `
FAIL (N.NNs)`)
	if !strings.Contains(errOut.String(), "Test test failed.") {
		t.Errorf("missing dump header, stderr: %q", errOut.String())
	}
}

func TestRequireSkips(t *testing.T) {
	h, out, _ := newTestHarness(modeSubtests)
	log.SetOutput(out, out)
	defer log.SetOutput(os.Stdout, os.Stderr)

	code := captureExit(t, func() {
		h.Subtest("needs-hw", func() {
			h.Require(false, "missing chipset %s", "XYZ")
			t.Error("code after Require ran")
		})
		h.Exit()
	})
	if code != testresult.ExitSkip {
		t.Errorf("exit code %d; want %d", code, testresult.ExitSkip)
	}
	matchOutput(t, "require", out.String(), `
Test requirement not met in harness_test.go:NNN: missing chipset XYZ
Subtest needs-hw: SKIP (N.NNs)`)
}

func TestAssertFails(t *testing.T) {
	h, out, errOut := newTestHarness(modeSubtests)
	log.SetOutput(io.Discard, errOut)
	defer log.SetOutput(os.Stdout, os.Stderr)

	code := captureExit(t, func() {
		h.Subtest("checks", func() {
			h.AssertEq(2, 3, "refresh rate")
			t.Error("code after Assert ran")
		})
		h.Exit()
	})
	if code != testresult.ExitFailure {
		t.Errorf("exit code %d; want %d", code, testresult.ExitFailure)
	}
	matchOutput(t, "assert", out.String(), `
Subtest checks: FAIL (N.NNs)`)
	if !strings.Contains(errOut.String(), "refresh rate: got 2, want 3") {
		t.Errorf("missing assertion message, stderr: %q", errOut.String())
	}
}

func TestFailureDumpsLog(t *testing.T) {
	h, _, errOut := newTestHarness(modeSubtests)

	captureExit(t, func() {
		h.Subtest("dumps", func() {
			log.Debugf("quiet diagnostic %d\n", 42)
			h.Fail(testresult.ExitFailure)
		})
		h.Exit()
	})
	got := errOut.String()
	for _, want := range []string{"Subtest dumps failed.", "**** DEBUG ****", "quiet diagnostic 42", "****  END  ****"} {
		if !strings.Contains(got, want) {
			t.Errorf("stderr missing %q:\n%s", want, got)
		}
	}
}
