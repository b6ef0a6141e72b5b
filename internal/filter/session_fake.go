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
	"io"

	"github.com/eminwux/lfsbridge/internal/errdefs"
	"github.com/eminwux/lfsbridge/pkg/api"
)

// SessionTest is a test double for FileSession.
// It lets you override behavior with function fields and capture args.
type SessionTest struct {
	// Last-call trackers (useful for assertions)
	LastPath string
	LastMode api.FilterMode
	Fed      []byte

	// Stub functions (set these in tests)
	StartFunc      func() error
	BeginFileFunc  func(path string, mode api.FilterMode) error
	FeedReaderFunc func(r io.Reader) error
	CompleteFunc   func(sink io.WriteCloser) error
	CloseFunc      func() error
	StateFunc      func() api.SessionState
}

func NewSessionTest() *SessionTest {
	t := &SessionTest{}
	t.StartFunc = func() error { return nil }
	t.BeginFileFunc = func(string, api.FilterMode) error { return nil }
	t.FeedReaderFunc = func(r io.Reader) error {
		b, err := io.ReadAll(r)
		t.Fed = append(t.Fed, b...)
		return err
	}
	t.CompleteFunc = func(sink io.WriteCloser) error {
		// default: echo what was fed
		_, err := sink.Write(t.Fed)
		t.Fed = nil
		if errC := sink.Close(); err == nil {
			err = errC
		}
		return err
	}
	t.CloseFunc = func() error { return nil }
	return t
}

func (t *SessionTest) Start() error {
	if t.StartFunc != nil {
		return t.StartFunc()
	}
	return errdefs.ErrFuncNotSet
}

func (t *SessionTest) BeginFile(path string, mode api.FilterMode) error {
	t.LastPath = path
	t.LastMode = mode
	if t.BeginFileFunc != nil {
		return t.BeginFileFunc(path, mode)
	}
	return errdefs.ErrFuncNotSet
}

func (t *SessionTest) FeedReader(r io.Reader) error {
	if t.FeedReaderFunc != nil {
		return t.FeedReaderFunc(r)
	}
	return errdefs.ErrFuncNotSet
}

func (t *SessionTest) Complete(sink io.WriteCloser) error {
	if t.CompleteFunc != nil {
		return t.CompleteFunc(sink)
	}
	return errdefs.ErrFuncNotSet
}

func (t *SessionTest) Close() error {
	if t.CloseFunc != nil {
		return t.CloseFunc()
	}
	return errdefs.ErrFuncNotSet
}

func (t *SessionTest) State() api.SessionState {
	if t.StateFunc != nil {
		return t.StateFunc()
	}
	return api.SessionReady
}
