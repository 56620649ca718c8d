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

package main

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/markjdb/intel-gpu-tools/harness/testresult"
)

var cmdList = &cobra.Command{
	Use:   "list <binary>...",
	Short: "Enumerate the subtests of test binaries",
	Long: `Enumerate the subtests of the given test binaries as
<binary>@<subtest> lines. Simple binaries without subtests are listed
by name alone.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runList,
}

func init() {
	root.AddCommand(cmdList)
}

func runList(cmd *cobra.Command, args []string) error {
	for _, bin := range args {
		subtests, simple, err := listSubtests(bin)
		if err != nil {
			return err
		}
		if simple {
			fmt.Println(displayName(bin))
			continue
		}
		for _, name := range subtests {
			fmt.Printf("%s@%s\n", displayName(bin), name)
		}
	}
	return nil
}

// listSubtests asks a test binary for its subtests. Enumeration is
// required to be cheap and unprivileged, so a short timeout catches
// binaries doing setup work outside their fixtures. simple is true for
// binaries that reject --list-subtests.
func listSubtests(path string) (subtests []string, simple bool, err error) {
	code, out, err := runBinary(path, []string{"--list-subtests"}, 30*time.Second)
	if err != nil {
		return nil, false, err
	}
	switch code {
	case testresult.ExitSuccess:
	case testresult.ExitInvalid:
		return nil, true, nil
	default:
		return nil, false, errors.Errorf("%s --list-subtests exited %d", path, code)
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			subtests = append(subtests, line)
		}
	}
	return subtests, false, nil
}

func displayName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
