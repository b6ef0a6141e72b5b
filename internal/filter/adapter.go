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

package filter

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/eminwux/lfsbridge/internal/errdefs"
	"github.com/eminwux/lfsbridge/pkg/api"
)

const filterName = "lfs"

// FileSession is the part of Session the adapter drives.
type FileSession interface {
	Start() error
	BeginFile(path string, mode api.FilterMode) error
	FeedReader(r io.Reader) error
	Complete(sink io.WriteCloser) error
	Close() error
	State() api.SessionState
}

// Adapter exposes one lazily started Session as an api.ContentFilter.
type Adapter struct {
	ctx    context.Context
	logger *slog.Logger
	spec   api.FilterSpec

	NewSession func(ctx context.Context, logger *slog.Logger, spec api.FilterSpec) FileSession

	session FileSession
	path    string
}

var _ api.ContentFilter = (*Adapter)(nil)

func NewAdapter(ctx context.Context, logger *slog.Logger, spec api.FilterSpec) *Adapter {
	return &Adapter{
		ctx:    ctx,
		logger: logger,
		spec:   spec,
		NewSession: func(ctx context.Context, logger *slog.Logger, spec api.FilterSpec) FileSession {
			return NewSession(ctx, logger, spec)
		},
	}
}

func (a *Adapter) Name() string { return filterName }

func (a *Adapter) Attributes() []string { return []string{filterName} }

// Create announces path to the filter, starting the process on first use.
func (a *Adapter) Create(path, root string, mode api.FilterMode) error {
	if a.session == nil {
		spec := a.spec
		if spec.Root == "" {
			spec.Root = root
		}
		session := a.NewSession(a.ctx, a.logger, spec)
		if err := session.Start(); err != nil {
			return err
		}
		a.session = session
	}

	if err := a.session.BeginFile(path, mode); err != nil {
		return err
	}
	a.path = path
	return nil
}

func (a *Adapter) Clean(path, root string, input io.Reader, _ io.WriteCloser) error {
	return a.feed(path, input)
}

func (a *Adapter) Smudge(path, root string, input io.Reader, _ io.WriteCloser) error {
	return a.feed(path, input)
}

func (a *Adapter) feed(path string, input io.Reader) error {
	if err := a.check(path); err != nil {
		return err
	}
	return a.session.FeedReader(input)
}

// Complete finishes path and writes the filtered content to output, which is
// closed in every case.
func (a *Adapter) Complete(path, root string, output io.WriteCloser) error {
	if err := a.check(path); err != nil {
		_ = output.Close()
		return err
	}
	a.path = ""
	return a.session.Complete(output)
}

func (a *Adapter) check(path string) error {
	if a.session == nil {
		return errdefs.ErrNotStarted
	}
	if a.path != path {
		return fmt.Errorf("%w: %q is in flight, got %q", errdefs.ErrPathMismatch, a.path, path)
	}
	return nil
}

func (a *Adapter) Close() error {
	if a.session == nil {
		return nil
	}
	err := a.session.Close()
	a.session = nil
	a.path = ""
	return err
}
