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

package api

import (
	"fmt"
	"io"
	"time"
)

// ContentFilter is the lifecycle the host's content-filter framework drives
// for every file that matches the filter attribute.
type ContentFilter interface {
	Name() string
	Attributes() []string
	Create(path, root string, mode FilterMode) error
	Clean(path, root string, input io.Reader, output io.WriteCloser) error
	Smudge(path, root string, input io.Reader, output io.WriteCloser) error
	Complete(path, root string, output io.WriteCloser) error
	Close() error
}

type FilterMode int

const (
	// FilterClean converts working-tree content to its stored form.
	FilterClean FilterMode = iota
	// FilterSmudge converts stored content to its working-tree form.
	FilterSmudge
)

func (m FilterMode) String() string {
	switch m {
	case FilterClean:
		return "clean"
	case FilterSmudge:
		return "smudge"
	default:
		return "unknown"
	}
}

// ParseFilterMode accepts "clean" or "smudge".
func ParseFilterMode(s string) (FilterMode, error) {
	switch s {
	case "clean":
		return FilterClean, nil
	case "smudge":
		return FilterSmudge, nil
	default:
		return 0, fmt.Errorf("unknown filter mode %q", s)
	}
}

type SessionState int

const (
	Uninitialized SessionState = iota
	Handshaking
	SessionReady
	InFile
	Completing
	SessionError
)

func (s SessionState) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Handshaking:
		return "Handshaking"
	case SessionReady:
		return "Ready"
	case InFile:
		return "InFile"
	case Completing:
		return "Completing"
	case SessionError:
		return "Error"
	default:
		return "Unknown"
	}
}

// FilterSpec defines how to run the long-running filter process.
type FilterSpec struct {
	Command string   `json:"command"           yaml:"command"`
	Args    []string `json:"args"              yaml:"args"`
	Root    string   `json:"root"              yaml:"root"`
	Env     []string `json:"env,omitempty"     yaml:"env,omitempty"`

	// Timeout bounds every blocking exchange with the process. Zero waits forever.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// AllowDegradedStart logs spawn and handshake failures instead of returning them.
	AllowDegradedStart bool `json:"allowDegradedStart" yaml:"allowDegradedStart"`
	// StrictAccept fails BeginFile when the command is not acknowledged with status=success.
	StrictAccept bool `json:"strictAccept" yaml:"strictAccept"`
}
