// Copyright 2015 CoreOS, Inc.
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

// Package exec is an extension of the standard os/exec package.
// Adds kill/wait-status helpers and multicall entrypoints.
package exec

import (
	"context"
	"os/exec"
	"sync"
	"syscall"
)

var (
	// for equivalence with os/exec
	ErrNotFound = exec.ErrNotFound
	LookPath    = exec.LookPath
)

// Cmd wrapper based on exec.Cmd
type ExecCmd struct {
	*exec.Cmd
	cancel context.CancelFunc
	wait   sync.Once
}

func Command(name string, arg ...string) *ExecCmd {
	return CommandContext(context.Background(), name, arg...)
}

func CommandContext(ctx context.Context, name string, arg ...string) *ExecCmd {
	ctx, cancel := context.WithCancel(ctx)
	return &ExecCmd{
		Cmd:    exec.CommandContext(ctx, name, arg...),
		cancel: cancel,
	}
}

func (cmd *ExecCmd) Wait() error {
	var err error
	cmd.wait.Do(func() {
		err = cmd.Cmd.Wait()
	})
	return err
}

// safe even if already dead
func (cmd *ExecCmd) Kill() error {
	cmd.cancel()
	err := cmd.Wait()
	if err == nil {
		return nil
	}

	if eerr, ok := err.(*exec.ExitError); ok {
		status := eerr.Sys().(syscall.WaitStatus)
		if status.Signal() == syscall.SIGKILL {
			return nil
		}
	}
	return err
}

func (cmd *ExecCmd) Signaled() bool {
	if cmd.ProcessState == nil {
		return false
	}
	status := cmd.ProcessState.Sys().(syscall.WaitStatus)
	return status.Signaled()
}

func (cmd *ExecCmd) Pid() int {
	return cmd.Process.Pid
}

// WaitStatus returns the raw wait status after Wait has returned, or
// false if the process has not been waited on yet.
func (cmd *ExecCmd) WaitStatus() (syscall.WaitStatus, bool) {
	if cmd.ProcessState == nil {
		return 0, false
	}
	return cmd.ProcessState.Sys().(syscall.WaitStatus), true
}

// IsCmdNotFound reports true if the underlying error was exec.ErrNotFound.
func IsCmdNotFound(err error) bool {
	if eerr, ok := err.(*exec.Error); ok && eerr.Err == ErrNotFound {
		return true
	}
	return false
}
