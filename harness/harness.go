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
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/markjdb/intel-gpu-tools/harness/log"
	"github.com/markjdb/intel-gpu-tools/harness/testresult"
	sysexec "github.com/markjdb/intel-gpu-tools/system/exec"
)

type mode int

const (
	modeUninitialized mode = iota
	modeSimple
	modeSubtests
)

// continuation policy after a fixture has skipped or failed.
type policy int

const (
	runAll policy = iota
	skipAll
	failAll
)

// Harness holds the per-process test state. Test binaries use the
// package-level functions, which operate on a process singleton; the
// type exists so the harness can test itself without forking.
type Harness struct {
	name        string
	description string
	mode        mode

	listOnly   bool
	pattern    string
	patternHit bool

	henceforth policy
	inFixture  bool

	// mu guards cur, the tally and the start timestamps. Everything else
	// is only touched from the test's own flow of control; these are also
	// read by the timeout and fatal-signal dispatchers.
	mu      sync.Mutex
	cur     *block
	started time.Time // program (simple mode) or current subtest

	skippedOne   bool
	succeededOne bool
	failedOne    bool
	exitCode     int

	plain       bool
	interactive string // --interactive-debug domain, "" if off

	worker bool // this process is a forked test worker

	children []*sysexec.ExecCmd

	timeout timeoutState

	args       []string // positional arguments left after flag parsing
	extraFlags *pflag.FlagSet

	out    io.Writer
	errOut io.Writer
	in     io.Reader
	exitFn func(int)

	noSignals bool // tests: do not install fatal-signal handlers
}

// std is the singleton behind the package-level API. It exists from
// Init/SubtestInit until process exit.
var std *Harness

// Option adjusts harness construction.
type Option func(*Harness)

// WithDescription attaches a single-paragraph description printed by
// --help-description and --help. Runners use it to annotate test lists.
func WithDescription(desc string) Option {
	return func(h *Harness) { h.description = desc }
}

// WithExtraFlags merges test-specific flags into the harness flag set.
func WithExtraFlags(fs *pflag.FlagSet) Option {
	return func(h *Harness) { h.extraFlags = fs }
}

func withStreams(in io.Reader, out, errOut io.Writer) Option {
	return func(h *Harness) {
		h.in = in
		h.out = out
		h.errOut = errOut
	}
}

func withExitFn(fn func(int)) Option {
	return func(h *Harness) { h.exitFn = fn }
}

func withoutSignalHandlers() Option {
	return func(h *Harness) { h.noSignals = true }
}

func newHarness(m mode, opts ...Option) *Harness {
	h := &Harness{
		mode:   m,
		name:   filepath.Base(os.Args[0]),
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		exitFn: os.Exit,
	}
	h.timeout.fired = make(chan string, 1)
	h.started = time.Now()
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Init initializes the harness for a simple test: one workload, no
// subtest enumeration, result reported through the exit status and a
// single trailing result line.
func Init(opts ...Option) {
	initHarness(modeSimple, os.Args, opts...)
}

// SubtestInit initializes the harness for a test with subtests.
func SubtestInit(opts ...Option) {
	initHarness(modeSubtests, os.Args, opts...)
}

// Main runs body as a test with subtests and exits the process. This is
// the usual main() of a test binary.
func Main(body func(), opts ...Option) {
	SubtestInit(opts...)
	body()
	Exit()
}

// SimpleMain runs body as a simple test and exits the process.
func SimpleMain(body func(), opts ...Option) {
	Init(opts...)
	body()
	Exit()
}

func initHarness(m mode, argv []string, opts ...Option) *Harness {
	// Forked workers and helpers re-exec this binary; dispatch before
	// doing anything test-visible.
	sysexec.MaybeExec()

	if std != nil && std.mode != modeUninitialized {
		panic("harness: already initialized")
	}

	h := newHarness(m, opts...)
	h.parseEnv()
	h.parseArgs(argv)
	std = h

	log.SetProgramName(h.name)
	log.CaptureCapnslog()
	if h.listOnly {
		log.SetQuiet(true)
	} else {
		journalf("%s: executing", h.name)
		oomScoreAdjust()
		AtExit(resetLoggingHandler)
	}

	h.mu.Lock()
	h.started = time.Now()
	h.mu.Unlock()
	return h
}

// resetLoggingHandler flushes continuation state so a verdict printed
// during teardown starts on a fresh line.
func resetLoggingHandler(sig int) {
	log.Reset()
}

// oomScoreAdjust makes the OOM killer prefer the test process over the
// runner supervising it. Best effort: unprivileged runs outside the CI
// farm may not be allowed to raise the score.
func oomScoreAdjust() {
	f, err := os.OpenFile("/proc/self/oom_score_adj", os.O_WRONLY, 0)
	if err != nil {
		log.Debugf("cannot adjust oom score: %v\n", err)
		return
	}
	defer f.Close()
	io.WriteString(f, "1000")
}

func (h *Harness) parseEnv() {
	if v, ok := os.LookupEnv("IGT_LOG_LEVEL"); ok {
		if level, ok := log.ParseLevel(v); ok {
			log.SetLevel(level)
		}
	}
	if v, ok := os.LookupEnv("IGT_PLAIN_OUTPUT"); ok && v != "0" {
		h.plain = true
	}
	if f, ok := h.out.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		h.plain = true
	}
}

func (h *Harness) parseArgs(argv []string) {
	fs := pflag.NewFlagSet(h.name, pflag.ContinueOnError)
	fs.SetOutput(h.errOut)

	listFlag := fs.Bool("list-subtests", false, "list the subtests of this binary and exit")
	runFlag := fs.String("run-subtest", "", "run only subtests matching the wildcard pattern")
	debugFlag := fs.String("debug", "", "raise verbosity to debug, optionally for one log domain only")
	fs.Lookup("debug").NoOptDefVal = debugAllDomains
	interactiveFlag := fs.String("interactive-debug", "", "pause for a keypress at matching debug points")
	fs.Lookup("interactive-debug").NoOptDefVal = debugAllDomains
	descFlag := fs.Bool("help-description", false, "print a short description of this test and exit")
	helpFlag := fs.BoolP("help", "h", false, "print this help and exit")
	if h.extraFlags != nil {
		fs.AddFlagSet(h.extraFlags)
	}

	if err := fs.Parse(argv[1:]); err != nil {
		fmt.Fprintln(h.errOut, err)
		h.printUsage(h.errOut, fs)
		h.exitFn(testresult.ExitInvalid)
		return
	}

	switch {
	case *helpFlag:
		h.printUsage(h.out, fs)
		h.exitFn(testresult.ExitSuccess)
		return
	case *descFlag:
		fmt.Fprintln(h.out, h.description)
		h.exitFn(testresult.ExitSuccess)
		return
	}

	if h.mode != modeSubtests {
		if *listFlag {
			h.exitFn(testresult.ExitInvalid)
			return
		}
		if *runFlag != "" {
			log.Warnf("Unknown subtest: %s\n", *runFlag)
			h.exitFn(testresult.ExitInvalid)
			return
		}
	}

	h.listOnly = *listFlag
	h.pattern = *runFlag
	h.interactive = *interactiveFlag
	h.args = fs.Args()

	if *debugFlag != "" {
		log.SetLevel(log.LevelDebug)
		if *debugFlag != debugAllDomains {
			log.SetDomainFilter(*debugFlag)
		}
	}
}

// debugAllDomains is the NoOptDefVal sentinel for --debug and
// --interactive-debug given without a domain argument.
const debugAllDomains = "*"

func (h *Harness) printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s [OPTIONS]\n", h.name)
	if h.description != "" {
		fmt.Fprintf(w, "\n%s\n\n", h.description)
	}
	fmt.Fprint(w, "Options:\n")
	fmt.Fprint(w, fs.FlagUsages())
}

// TestName returns the name of the running test binary.
func TestName() string {
	return std.name
}

// SubtestName returns the name of the currently executing subtest, or
// "" outside of any subtest. Safe to call from exit handlers.
func SubtestName() string {
	if std == nil {
		return ""
	}
	return std.SubtestName()
}

func (h *Harness) SubtestName() string {
	b := h.currentBlock()
	if b == nil {
		return ""
	}
	return b.name
}

func (h *Harness) currentBlock() *block {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur
}

// OnlyListSubtests reports whether the process is merely enumerating
// subtests. Code outside of fixtures can use it to avoid side effects
// while listing.
func OnlyListSubtests() bool {
	return std.listOnly
}

// Args returns the positional arguments left after harness flag parsing.
func Args() []string {
	return std.args
}

// resultLine prints the per-subtest result line that supervising
// runners parse. The whole line is emphasized unless output is plain.
func (h *Harness) resultLine(name string, res testresult.Status, elapsed float64) {
	bold, reset := "\x1b[1m", "\x1b[0m"
	if h.plain {
		bold, reset = "", ""
	}
	fmt.Fprintf(h.out, "%sSubtest %s: %s (%.3fs)%s\n", bold, name, res, elapsed, reset)
}

func (h *Harness) elapsed() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Since(h.started).Seconds()
}

// elapsedMillis is resultLine's timing for the crash path, where
// formatting floats is off limits.
func (h *Harness) elapsedMillis() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Since(h.started).Milliseconds()
}
