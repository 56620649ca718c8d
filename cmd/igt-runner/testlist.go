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
	"os"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// A TestList names the test binaries of one run. Each entry selects a
// binary, optionally a subtest pattern per invocation, and extra
// arguments passed through to the binary, quoted shell-style.
//
//	name: fast-feedback
//	tests:
//	  - binary: kms_flip
//	    subtests:
//	      - basic-*
//	  - binary: core_auth
//	    args: --debug=auth
type TestList struct {
	Name  string      `yaml:"name"`
	Tests []TestEntry `yaml:"tests"`
}

type TestEntry struct {
	Binary   string   `yaml:"binary"`
	Subtests []string `yaml:"subtests,omitempty"`
	Args     string   `yaml:"args,omitempty"`
}

func LoadTestList(path string) (*TestList, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading testlist")
	}
	var list TestList
	if err := yaml.UnmarshalStrict(b, &list); err != nil {
		return nil, errors.Wrapf(err, "parsing testlist %s", path)
	}
	if len(list.Tests) == 0 {
		return nil, errors.Errorf("testlist %s names no tests", path)
	}
	for i, t := range list.Tests {
		if t.Binary == "" {
			return nil, errors.Errorf("testlist %s: entry %d has no binary", path, i)
		}
	}
	return &list, nil
}

// ExtraArgs splits the entry's args field shell-style.
func (t *TestEntry) ExtraArgs() ([]string, error) {
	if t.Args == "" {
		return nil, nil
	}
	args, err := shellquote.Split(t.Args)
	return args, errors.Wrapf(err, "parsing args of %s", t.Binary)
}
