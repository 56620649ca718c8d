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

// This example program illustrates a test binary built on the harness
// package. When executed:
//
//	./example --list-subtests
//	basic-success
//	basic-skip
//	forked-load
//
//	./example --run-subtest 'basic-*'
//	Subtest basic-success: SUCCESS (0.000s)
//	Test requirement not met in main.go:63: Requires fake hardware revision 2, found 1
//	Subtest basic-skip: SKIP (0.000s)
package main

import (
	"os"
	"time"

	"github.com/markjdb/intel-gpu-tools/harness"
	"github.com/markjdb/intel-gpu-tools/harness/log"
)

var load = harness.NewWorker("load", func(args []string) {
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		// Spin: stand-in for a workload hammering the device.
	}
})

func main() {
	harness.Main(func() {
		var revision int

		harness.Fixture(func() {
			// Real tests open the device under test here; fixtures do
			// not run while subtests are merely being listed.
			harness.RequireNoError(probeFakeDevice(), "probing device")
			revision = 1
		})

		harness.Subtest("basic-success", func() {
			harness.AssertEq(revision, 1, "device revision")
		})

		harness.Subtest("basic-skip", func() {
			harness.Require(revision >= 2,
				"Requires fake hardware revision 2, found %d", revision)
			log.Infof("never reached\n")
		})

		harness.Subtest("forked-load", func() {
			for i := 0; i < 4; i++ {
				load.Fork()
			}
			harness.WaitChildrenTimeout(5*time.Second, "parallel load")
		})
	}, harness.WithDescription("Example skeleton for a harness-based test binary."))
}

func probeFakeDevice() error {
	_, err := os.Stat("/dev/null")
	return err
}
