// Copyright 2025 Emiliano Spinella (eminwux)
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
//
// SPDX-License-Identifier: Apache-2.0

// Package supervisor runs an external executable with piped standard streams.
// Standard error (and optionally standard output) is drained line by line on
// background goroutines so a chatty child can never fill a pipe and stall the
// exchange on the remaining streams.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/eminwux/lfsbridge/internal/errdefs"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Spec describes the process to start.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	// Env is appended to the parent environment.
	Env []string

	// OnStderr receives every non-empty stderr line. It runs on the drain
	// goroutine and must not block.
	OnStderr func(line string)
	// OnStdout, when set, drains stdout the same way and Stdout returns nil.
	OnStdout func(line string)
}

type Process struct {
	logger *slog.Logger
	cmd    *exec.Cmd

	stdin  io.WriteCloser
	stdout io.Reader

	drains errgroup.Group

	waitOnce sync.Once
	waitErr  error
}

// Start launches spec. The process is killed if ctx is cancelled.
func Start(ctx context.Context, logger *slog.Logger, spec Spec) (*Process, error) {
	if spec.Command == "" {
		return nil, fmt.Errorf("%w: empty command", errdefs.ErrSpawn)
	}

	//nolint:gosec // the command comes from the user's configuration
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcess(cmd.Process) }

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %w", errdefs.ErrSpawn, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %w", errdefs.ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %w", errdefs.ErrSpawn, err)
	}

	logger.DebugContext(ctx, "starting process", "command", spec.Command, "args", spec.Args, "dir", spec.Dir)
	if err := cmd.Start(); err != nil {
		logger.ErrorContext(ctx, "could not start process", "command", spec.Command, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", errdefs.ErrSpawn, spec.Command, err)
	}
	logger.InfoContext(ctx, "process started", "command", spec.Command, "pid", cmd.Process.Pid)

	p := &Process{
		logger: logger.With("pid", cmd.Process.Pid),
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
	}

	p.drains.Go(func() error { return p.drain("stderr", stderr, spec.OnStderr) })
	if spec.OnStdout != nil {
		p.stdout = nil
		p.drains.Go(func() error { return p.drain("stdout", stdout, spec.OnStdout) })
	}

	return p, nil
}

func (p *Process) drain(name string, r io.Reader, cb func(string)) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			p.logger.Debug("process output", "stream", name, "line", line)
			if cb != nil {
				cb(line)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			p.logger.Warn("drain stopped", "stream", name, "error", err)
			return fmt.Errorf("drain %s: %w", name, err)
		}
	}
}

func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Stdin is the write end of the child's standard input.
func (p *Process) Stdin() io.WriteCloser { return p.stdin }

// Stdout is the read end of the child's standard output, or nil when it is drained.
func (p *Process) Stdout() io.Reader { return p.stdout }

// CloseStdin signals end of input to the child.
func (p *Process) CloseStdin() error {
	return p.stdin.Close()
}

// Wait waits for the drains to hit end of stream and then for the process to
// exit. It is safe to call more than once.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		var result *multierror.Error
		if err := p.drains.Wait(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := p.cmd.Wait(); err != nil {
			result = multierror.Append(result, err)
		}
		p.waitErr = result.ErrorOrNil()
		p.logger.Debug("process exited", "state", p.cmd.ProcessState.String(), "error", p.waitErr)
	})
	return p.waitErr
}

// Close ends the child's input and waits for it to exit.
func (p *Process) Close() error {
	var result *multierror.Error
	if err := p.CloseStdin(); err != nil && !errors.Is(err, os.ErrClosed) {
		result = multierror.Append(result, fmt.Errorf("close stdin: %w", err))
	}
	if err := p.Wait(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Kill terminates the child and anything it spawned.
func (p *Process) Kill() error {
	p.logger.Warn("killing process")
	return killProcess(p.cmd.Process)
}
