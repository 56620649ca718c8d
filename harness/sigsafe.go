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
	"runtime"

	"golang.org/x/sys/unix"
)

// crashLine formats output for the fatal-signal path without allocating
// or taking locks; the rest of the process may be in an arbitrary
// state. Overlong output is truncated.
type crashLine struct {
	buf [256]byte
	n   int
}

func (l *crashLine) str(s string) {
	l.n += copy(l.buf[l.n:], s)
}

func (l *crashLine) uint(v uint64) {
	var digits [20]byte
	i := len(digits)
	for {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	l.n += copy(l.buf[l.n:], digits[i:])
}

// millis prints a millisecond count as seconds with three decimals,
// matching the "%.3f" of the regular result line.
func (l *crashLine) millis(ms int64) {
	if ms < 0 {
		ms = 0
	}
	l.uint(uint64(ms) / 1000)
	frac := uint64(ms) % 1000
	l.str(".")
	if l.n+3 > len(l.buf) {
		return
	}
	l.buf[l.n] = byte('0' + frac/100)
	l.buf[l.n+1] = byte('0' + frac/10%10)
	l.buf[l.n+2] = byte('0' + frac%10)
	l.n += 3
}

func (l *crashLine) flush(fd int) {
	unix.Write(fd, l.buf[:l.n])
}

// Preallocated so the crash path never grows the heap. 64 KiB holds the
// interesting goroutines even on a busy test.
var crashStackBuf [64 << 10]byte

func dumpStacksCrash() {
	var l crashLine
	l.str("Stack traces:\n")
	l.flush(2)
	n := runtime.Stack(crashStackBuf[:], true)
	unix.Write(2, crashStackBuf[:n])
}
