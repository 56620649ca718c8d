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

package reporters

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/markjdb/intel-gpu-tools/harness/testresult"
)

// tapReporter writes TAP version 13 output, the least common
// denominator understood by CI result collectors. Skips become TAP
// skips; timeouts and crashes are failures with a diagnostic.
type tapReporter struct {
	filename string

	mutex   sync.Mutex
	results []Result
}

func NewTAPReporter(filename string) Reporter {
	return &tapReporter{filename: filename}
}

func (r *tapReporter) Report(res Result) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.results = append(r.results, res)
}

func (r *tapReporter) Output(path string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	f, err := os.Create(filepath.Join(path, r.filename))
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "TAP version 13\n")
	fmt.Fprintf(f, "1..%d\n", len(r.results))
	for i, res := range r.results {
		name := res.Test
		if res.Subtest != "" {
			name += "@" + res.Subtest
		}
		switch {
		case res.Status == testresult.Skip:
			fmt.Fprintf(f, "ok %d %s # SKIP\n", i+1, name)
		case res.Status.Failed():
			fmt.Fprintf(f, "not ok %d %s\n", i+1, name)
			fmt.Fprintf(f, "# %s after %.3fs\n", res.Status, res.Duration.Seconds())
		default:
			fmt.Fprintf(f, "ok %d %s\n", i+1, name)
		}
	}
	return nil
}
