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
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/markjdb/intel-gpu-tools/harness/testresult"
)

type jsonReporter struct {
	Tests  []jsonTest        `json:"tests"`
	Totals map[string]int    `json:"totals"`
	Result testresult.Status `json:"result"`

	filename string
	mutex    sync.Mutex
}

type jsonTest struct {
	Test     string            `json:"test"`
	Subtest  string            `json:"subtest,omitempty"`
	Result   testresult.Status `json:"result"`
	Duration time.Duration     `json:"duration"`
	Output   string            `json:"output,omitempty"`
}

// NewJSONReporter accumulates results into filename under the output
// directory.
func NewJSONReporter(filename string) Reporter {
	return &jsonReporter{
		filename: filename,
		Totals:   make(map[string]int),
		Result:   testresult.Success,
	}
}

// DeserializeReport reads back a report written by a JSON reporter, for
// result aggregation across runner invocations.
func DeserializeReport(filename string) (*jsonReporter, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var data jsonReporter
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (r *jsonReporter) Report(res Result) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.Tests = append(r.Tests, jsonTest{
		Test:     res.Test,
		Subtest:  res.Subtest,
		Result:   res.Status,
		Duration: res.Duration,
		Output:   string(res.Output),
	})
	r.Totals[string(res.Status)]++
	if res.Status.Failed() {
		r.Result = testresult.Fail
	}
}

func (r *jsonReporter) Output(path string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	f, err := os.Create(filepath.Join(path, r.filename))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
