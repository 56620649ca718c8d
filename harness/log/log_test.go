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

package log

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
)

// withTestSink points the singleton at buffers and restores it.
func withTestSink(t *testing.T, f func(out, errOut *bytes.Buffer)) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	SetOutput(out, errOut)
	SetProgramName("prog")
	SetLevel(LevelInfo)
	Reset()
	defer func() {
		SetOutput(os.Stdout, os.Stderr)
		SetProgramName("")
		SetLevel(LevelInfo)
		SetDomainFilter("")
		SetQuiet(false)
		Reset()
	}()
	f(out, errOut)
}

func prefixed(domain string, level Level, msg string) string {
	sep := ""
	if domain != "" {
		sep = "-"
	}
	return fmt.Sprintf("(prog:%d) %s%s%s: %s", os.Getpid(), domain, sep, level, msg)
}

func TestInfoPrintsBare(t *testing.T) {
	withTestSink(t, func(out, errOut *bytes.Buffer) {
		Infof("hello %d\n", 42)
		if got, want := out.String(), "hello 42\n"; got != want {
			t.Errorf("stdout = %q; want %q", got, want)
		}
		if errOut.Len() != 0 {
			t.Errorf("unexpected stderr: %q", errOut.String())
		}
	})
}

func TestWarningsGoToStderrPrefixed(t *testing.T) {
	withTestSink(t, func(out, errOut *bytes.Buffer) {
		Warnf("watch out\n")
		if out.Len() != 0 {
			t.Errorf("unexpected stdout: %q", out.String())
		}
		if got, want := errOut.String(), prefixed("", LevelWarn, "watch out\n"); got != want {
			t.Errorf("stderr = %q; want %q", got, want)
		}
	})
}

func TestDebugSuppressedButBuffered(t *testing.T) {
	withTestSink(t, func(out, errOut *bytes.Buffer) {
		Debugf("invisible\n")
		if out.Len() != 0 || errOut.Len() != 0 {
			t.Errorf("debug line printed at info level: %q %q", out.String(), errOut.String())
		}

		dump := &bytes.Buffer{}
		Dump(dump, "header")
		got := dump.String()
		for _, want := range []string{"header\n", "**** DEBUG ****", "invisible", "****  END  ****"} {
			if !strings.Contains(got, want) {
				t.Errorf("dump missing %q:\n%s", want, got)
			}
		}
	})
}

func TestDumpEmpty(t *testing.T) {
	withTestSink(t, func(out, errOut *bytes.Buffer) {
		dump := &bytes.Buffer{}
		Dump(dump, "header")
		if got, want := dump.String(), "header\nNo log.\n"; got != want {
			t.Errorf("dump = %q; want %q", got, want)
		}
	})
}

func TestDumpClearsBuffer(t *testing.T) {
	withTestSink(t, func(out, errOut *bytes.Buffer) {
		Infof("once\n")
		Dump(&bytes.Buffer{}, "first")

		dump := &bytes.Buffer{}
		Dump(dump, "second")
		if !strings.Contains(dump.String(), "No log.") {
			t.Errorf("second dump not empty:\n%s", dump.String())
		}
	})
}

func TestDomainFilter(t *testing.T) {
	withTestSink(t, func(out, errOut *bytes.Buffer) {
		SetDomainFilter("kms")
		Logf("kms", LevelInfo, "shown\n")
		Logf("gem", LevelInfo, "hidden\n")
		Infof("also hidden\n")
		if got, want := out.String(), "shown\n"; got != want {
			t.Errorf("stdout = %q; want %q", got, want)
		}

		SetDomainFilter("application")
		Infof("shown again\n")
		if !strings.Contains(out.String(), "shown again\n") {
			t.Errorf("application filter hid a domainless line: %q", out.String())
		}
	})
}

func TestQuietSuppressesBelowCritical(t *testing.T) {
	withTestSink(t, func(out, errOut *bytes.Buffer) {
		SetQuiet(true)
		Infof("nope\n")
		Warnf("nope\n")
		Criticalf("yes\n")
		if out.Len() != 0 {
			t.Errorf("unexpected stdout: %q", out.String())
		}
		if got, want := errOut.String(), prefixed("", LevelCritical, "yes\n"); got != want {
			t.Errorf("stderr = %q; want %q", got, want)
		}
	})
}

func TestContinuationLines(t *testing.T) {
	withTestSink(t, func(out, errOut *bytes.Buffer) {
		Infof("partial")
		Infof(" line\n")
		Infof("next\n")
		if got, want := out.String(), "partial line\nnext\n"; got != want {
			t.Errorf("stdout = %q; want %q", got, want)
		}

		// The buffer saw three records but the continuation carries no
		// prefix.
		dump := &bytes.Buffer{}
		Dump(dump, "h")
		if !strings.Contains(dump.String(), "partial line\n") {
			t.Errorf("continuation prefixed in buffer:\n%s", dump.String())
		}
	})
}

func TestRingOverwritesOldest(t *testing.T) {
	withTestSink(t, func(out, errOut *bytes.Buffer) {
		SetLevel(LevelNone)
		for i := 0; i < 300; i++ {
			Infof("line%d\n", i)
		}
		dump := &bytes.Buffer{}
		Dump(dump, "h")
		got := dump.String()
		if strings.Contains(got, "line44\n") {
			t.Error("dump contains an overwritten entry")
		}
		for _, want := range []string{"line45\n", "line299\n"} {
			if !strings.Contains(got, want) {
				t.Errorf("dump missing %q", want)
			}
		}
	})
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"none":  LevelNone,
	} {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, true", in, got, ok, want)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Error("ParseLevel accepted garbage")
	}
}
