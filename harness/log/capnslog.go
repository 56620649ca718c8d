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

	"github.com/coreos/pkg/capnslog"
)

// capnsFormatter routes capnslog records into the harness sink so that
// library packages using capnslog package loggers contribute to the
// per-subtest failure dump. The capnslog package name becomes the log
// domain.
type capnsFormatter struct{}

func (capnsFormatter) Format(pkg string, l capnslog.LogLevel, _ int, entries ...interface{}) {
	level := LevelInfo
	switch l {
	case capnslog.TRACE, capnslog.DEBUG:
		level = LevelDebug
	case capnslog.INFO, capnslog.NOTICE:
		level = LevelInfo
	case capnslog.WARNING:
		level = LevelWarn
	case capnslog.ERROR, capnslog.CRITICAL:
		level = LevelCritical
	}
	for _, entry := range entries {
		Logf(pkg, level, "%s\n", fmt.Sprint(entry))
	}
}

func (capnsFormatter) Flush() {}

// CaptureCapnslog installs the adapter as the global capnslog
// formatter. Test binaries call this once during harness init.
func CaptureCapnslog() {
	capnslog.SetFormatter(capnsFormatter{})
	capnslog.SetGlobalLogLevel(capnslog.TRACE)
}
