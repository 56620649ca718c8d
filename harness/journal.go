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

package harness

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/journal"
)

// journalf timestamps test progress in the systemd journal, so a test
// that takes the machine down can be correlated against kernel messages
// after reboot. Best effort: on machines without a journal it is a
// no-op.
func journalf(format string, args ...interface{}) {
	if !journal.Enabled() {
		return
	}
	journal.Send(fmt.Sprintf("[IGT] "+format, args...), journal.PriInfo, nil)
}
