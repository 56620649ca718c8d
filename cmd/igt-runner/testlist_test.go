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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "list.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadTestList(t *testing.T) {
	path := writeTestList(t, `
name: fast-feedback
tests:
  - binary: kms_flip
    subtests:
      - basic-*
      - "!*-cursor"
    args: --debug=kms "--run-dir=/tmp/with space"
  - binary: core_auth
`)
	list, err := LoadTestList(path)
	require.NoError(t, err)

	assert.Equal(t, "fast-feedback", list.Name)
	require.Len(t, list.Tests, 2)
	assert.Equal(t, []string{"basic-*", "!*-cursor"}, list.Tests[0].Subtests)

	args, err := list.Tests[0].ExtraArgs()
	require.NoError(t, err)
	assert.Equal(t, []string{"--debug=kms", "--run-dir=/tmp/with space"}, args)

	args, err = list.Tests[1].ExtraArgs()
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestLoadTestListRejectsBadInput(t *testing.T) {
	for desc, content := range map[string]string{
		"no tests":      "name: empty\n",
		"missing field": "tests:\n  - args: --foo\n",
		"unknown field": "tests:\n  - binary: a\n    subtest: typo\n",
	} {
		_, err := LoadTestList(writeTestList(t, content))
		assert.Error(t, err, desc)
	}
}

func TestExtraArgsRejectsUnbalancedQuotes(t *testing.T) {
	e := TestEntry{Binary: "b", Args: `--foo="unterminated`}
	_, err := e.ExtraArgs()
	assert.Error(t, err)
}
