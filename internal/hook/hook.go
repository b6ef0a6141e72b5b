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

// Package hook forwards git hook events to the large-file agent as plain
// argument lists and stdin lines.
package hook

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/eminwux/lfsbridge/internal/errdefs"
	"github.com/eminwux/lfsbridge/internal/naming"
	"github.com/eminwux/lfsbridge/internal/supervisor"
	"github.com/eminwux/lfsbridge/pkg/api"
)

const defaultRemote = "origin"

type Invoker struct {
	logger *slog.Logger
	spec   api.HookSpec
}

func NewInvoker(logger *slog.Logger, spec api.HookSpec) *Invoker {
	return &Invoker{logger: logger, spec: spec}
}

// PrePush runs "pre-push <remote>" and writes one line per update.
func (i *Invoker) PrePush(ctx context.Context, root string, updates []api.PushUpdate) error {
	remote := i.spec.Remote
	if remote == "" {
		remote = defaultRemote
	}
	lines := make([]string, 0, len(updates))
	for _, u := range updates {
		lines = append(lines, u.Line())
	}
	return i.run(ctx, root, api.HookPrePush, []string{remote}, lines)
}

// PostCheckout runs "post-checkout <old> <new> 0".
func (i *Invoker) PostCheckout(ctx context.Context, root, oldRef, newRef string) error {
	return i.run(ctx, root, api.HookPostCheckout, []string{oldRef, newRef, "0"}, nil)
}

func (i *Invoker) PostCommit(ctx context.Context, root string) error {
	return i.run(ctx, root, api.HookPostCommit, nil, nil)
}

func (i *Invoker) run(ctx context.Context, root string, event api.HookEvent, args []string, lines []string) error {
	logger := i.logger.With("hook", string(event), "hook_run", naming.RandomID())

	p, err := supervisor.Start(ctx, logger, supervisor.Spec{
		Command: i.spec.Command,
		Args:    append([]string{string(event)}, args...),
		Dir:     root,
		Env:     i.spec.Env,
		OnStdout: func(line string) {
			logger.InfoContext(ctx, "hook stdout", "line", line)
		},
		OnStderr: func(line string) {
			logger.WarnContext(ctx, "hook stderr", "line", line)
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errdefs.ErrHookFailed, event, err)
	}

	var errWrite error
	for _, line := range lines {
		if _, errWrite = io.WriteString(p.Stdin(), line); errWrite != nil {
			break
		}
	}
	// A hook that exits without reading its input is not a failure by itself.
	if errWrite != nil && (errors.Is(errWrite, syscall.EPIPE) || errors.Is(errWrite, os.ErrClosed)) {
		logger.DebugContext(ctx, "hook did not read its input", "error", errWrite)
		errWrite = nil
	}

	errClose := p.Close()
	if err := errors.Join(errWrite, errClose); err != nil {
		logger.ErrorContext(ctx, "hook failed", "error", err)
		return fmt.Errorf("%w: %s: %w", errdefs.ErrHookFailed, event, err)
	}
	logger.DebugContext(ctx, "hook finished", "updates", len(lines))
	return nil
}

// ParsePushUpdates reads git's pre-push input: one
// "<local-ref> <local-oid> <remote-ref> <remote-oid>" line per update.
func ParsePushUpdates(r io.Reader) ([]api.PushUpdate, error) {
	var updates []api.PushUpdate
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, fmt.Errorf("%w: line %d: %q", errdefs.ErrInvalidPushUpdate, n, line)
		}
		updates = append(updates, api.PushUpdate{
			SourceRef:      fields[0],
			SourceOID:      fields[1],
			DestinationRef: fields[2],
			DestinationOID: fields[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return updates, nil
}
