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

// Package reporters collects subtest results parsed by the runner into
// machine-readable report files.
package reporters

import (
	"time"

	"github.com/markjdb/intel-gpu-tools/harness/testresult"
)

// A Result is one subtest (or whole simple test) outcome as observed by
// the runner.
type Result struct {
	Test     string
	Subtest  string // "" for a simple test
	Status   testresult.Status
	Duration time.Duration
	Output   []byte // combined stdout/stderr of the test binary
}

type Reporter interface {
	Report(Result)
	// Output writes the accumulated report into the directory path.
	Output(path string) error
}

type Reporters []Reporter

func (reps Reporters) Report(res Result) {
	for _, r := range reps {
		r.Report(res)
	}
}

func (reps Reporters) Output(path string) error {
	for _, r := range reps {
		if err := r.Output(path); err != nil {
			return err
		}
	}
	return nil
}
