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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjdb/intel-gpu-tools/harness/testresult"
)

func TestParseResultStream(t *testing.T) {
	out := []byte(`(kms_flip:123) DEBUG: Starting subtest: basic-flip
Subtest basic-flip: SUCCESS (1.234s)
some stray test output
Subtest basic-cursor: SKIP (0.001s)
Subtest announced-only: FAIL
` + "\x1b[1mSubtest bold: TIMEOUT (10.000s)\x1b[0m\n")

	results := parseResultStream(out)
	require.Len(t, results, 4)

	assert.Equal(t, "basic-flip", results[0].subtest)
	assert.Equal(t, testresult.Success, results[0].status)
	assert.Equal(t, 1234*time.Millisecond, results[0].duration)

	assert.Equal(t, testresult.Skip, results[1].status)

	// Announce lines of never-run subtests carry no duration.
	assert.Equal(t, "announced-only", results[2].subtest)
	assert.Equal(t, testresult.Fail, results[2].status)
	assert.Equal(t, time.Duration(0), results[2].duration)

	// ANSI emphasis is stripped before matching.
	assert.Equal(t, "bold", results[3].subtest)
	assert.Equal(t, testresult.Timeout, results[3].status)
}

func TestParseResultStreamIgnoresChatter(t *testing.T) {
	out := []byte(`Starting subtest: nope
Subtest : FAIL (1.0s)
subtest lower: SUCCESS (1.0s)
`)
	assert.Empty(t, parseResultStream(out))
}

func TestParseSimpleResult(t *testing.T) {
	out := []byte(`some log line
SUCCESS (0.042s)
`)
	res, ok := parseSimpleResult(out)
	require.True(t, ok)
	assert.Equal(t, testresult.Success, res.status)
	assert.Equal(t, 42*time.Millisecond, res.duration)

	_, ok = parseSimpleResult([]byte("no result line here\n"))
	assert.False(t, ok)
}
