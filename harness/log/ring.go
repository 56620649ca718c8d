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
	"fmt"
	"io"
)

// ring holds the most recent formatted log lines so that a failure can
// dump the log context of the current subtest without requiring a rerun
// at debug verbosity. The uint8 cursors wrap for free; start == end
// means empty, so one of the 256 slots is always sacrificed and the
// ring retains the most recent 255 lines, overwriting the oldest first.
type ring struct {
	entries    [256]string
	start, end uint8
}

func (r *ring) append(line string) {
	r.entries[r.end] = line
	r.end++
	if r.end == r.start {
		r.start++
	}
}

func (r *ring) reset() {
	r.start = 0
	r.end = 0
	for i := range r.entries {
		r.entries[i] = ""
	}
}

func (r *ring) empty() bool {
	return r.start == r.end
}

// dump writes the buffered lines to w in oldest-first order and resets
// the buffer.
func (r *ring) dump(w io.Writer) {
	fmt.Fprintf(w, "**** DEBUG ****\n")

	i := r.start
	for {
		fmt.Fprint(w, r.entries[i])
		i++
		if i == r.start || i == r.end {
			break
		}
	}
	r.reset()

	fmt.Fprintf(w, "****  END  ****\n")
}
