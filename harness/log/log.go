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

// Package log is the structured logging sink of the test harness.
//
// Test binaries print normal messages to stdout and warnings and above
// to stderr; a supervising runner treats non-empty stderr as an
// intermediate result between success and failure. Independent of the
// configured verbosity every line is recorded in a fixed-size ring
// buffer which is dumped when a subtest fails, so diagnostic context is
// available without rerunning at debug level.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Level is the verbosity of a log line. The configured level is the
// minimum that gets printed; everything still lands in the ring buffer.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelCritical
	LevelNone
)

var levelNames = []string{"DEBUG", "INFO", "WARNING", "CRITICAL", "NONE"}

func (l Level) String() string {
	return levelNames[l]
}

// ParseLevel maps the IGT_LOG_LEVEL environment values to a Level. The
// second return is false for unrecognized input.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "none":
		return LevelNone, true
	}
	return LevelInfo, false
}

// The sink is a process-wide singleton, like the harness state it
// serves. The mutex matters: the fatal-signal dispatcher logs
// concurrently with the test's own goroutine.
var sink = struct {
	mu           sync.Mutex
	level        Level
	domainFilter string
	quiet        bool // listing mode: suppress warn and below
	program      string
	out, errOut  io.Writer
	buf          ring
	continuation bool
}{
	level:  LevelInfo,
	out:    os.Stdout,
	errOut: os.Stderr,
}

// SetLevel sets the minimum level that is printed.
func SetLevel(l Level) {
	sink.mu.Lock()
	sink.level = l
	sink.mu.Unlock()
}

// SetDomainFilter restricts printed output to one log domain. The
// pseudo-domain "application" selects lines logged without a domain.
func SetDomainFilter(domain string) {
	sink.mu.Lock()
	sink.domainFilter = domain
	sink.mu.Unlock()
}

// SetQuiet suppresses everything below critical. Used while only
// listing subtests, where stray output would corrupt the enumeration.
func SetQuiet(q bool) {
	sink.mu.Lock()
	sink.quiet = q
	sink.mu.Unlock()
}

// SetProgramName sets the name used in the log line prefix.
func SetProgramName(name string) {
	sink.mu.Lock()
	sink.program = name
	sink.mu.Unlock()
}

// SetOutput redirects the sink, primarily for tests of the harness.
func SetOutput(out, errOut io.Writer) {
	sink.mu.Lock()
	sink.out = out
	sink.errOut = errOut
	sink.mu.Unlock()
}

// Reset clears the ring buffer. The harness calls this when a subtest
// starts so a failure dump shows only that subtest's lines.
func Reset() {
	sink.mu.Lock()
	sink.buf.reset()
	sink.continuation = false
	sink.mu.Unlock()
}

// Dump writes header followed by the buffered log lines to w and clears
// the buffer. Prints "No log." when nothing was recorded.
func Dump(w io.Writer, header string) {
	sink.mu.Lock()
	defer sink.mu.Unlock()

	fmt.Fprintln(w, header)
	if sink.buf.empty() {
		fmt.Fprintf(w, "No log.\n")
		return
	}
	sink.buf.dump(w)
}

// Logf is the generic logging entry point. domain may be empty.
//
// Info lines are printed bare; all other levels carry a
// "(program:pid) domain-LEVEL:" prefix. A line not ending in a newline
// marks the next call as its continuation, which is recorded and
// printed unprefixed.
func Logf(domain string, level Level, format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)

	sink.mu.Lock()
	defer sink.mu.Unlock()

	if sink.quiet && level <= LevelWarn {
		return
	}

	var formatted string
	if sink.continuation {
		formatted = line
	} else {
		sep := ""
		if domain != "" {
			sep = "-"
		}
		formatted = fmt.Sprintf("(%s:%d) %s%s%s: %s",
			sink.program, os.Getpid(), domain, sep, level, line)
	}
	sink.continuation = !strings.HasSuffix(line, "\n")

	sink.buf.append(formatted)

	if level < sink.level {
		return
	}
	if sink.domainFilter != "" {
		if domain == "" && sink.domainFilter != "application" {
			return
		}
		if domain != "" && sink.domainFilter != domain {
			return
		}
	}

	w := sink.out
	if level >= LevelWarn {
		w = sink.errOut
	}
	if level == LevelInfo {
		io.WriteString(w, line)
	} else {
		io.WriteString(w, formatted)
	}
}

// Debugf logs a debug message without a domain.
func Debugf(format string, args ...interface{}) {
	Logf("", LevelDebug, format, args...)
}

// Infof logs an informational message without a domain.
func Infof(format string, args ...interface{}) {
	Logf("", LevelInfo, format, args...)
}

// Warnf logs a warning without a domain.
func Warnf(format string, args ...interface{}) {
	Logf("", LevelWarn, format, args...)
}

// Criticalf logs a critical message without a domain.
func Criticalf(format string, args ...interface{}) {
	Logf("", LevelCritical, format, args...)
}
