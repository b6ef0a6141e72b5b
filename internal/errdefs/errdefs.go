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

package errdefs

import "errors"

var (
	ErrFuncNotSet         = errors.New("function not set")
	ErrConfig             = errors.New("config error")
	ErrLoggerNotFound     = errors.New("logger not found in context")
	ErrInvalidArgument    = errors.New("invalid positional argument")
	ErrStdinTerminal      = errors.New("stdin is a terminal: pipe or redirect the file content")
	ErrSpawn              = errors.New("could not start process")
	ErrStartFilter        = errors.New("could not start filter process")
	ErrHandshake          = errors.New("filter handshake failed")
	ErrNotStarted         = errors.New("filter session not started")
	ErrSessionBroken      = errors.New("filter session is unusable")
	ErrFileInFlight       = errors.New("another file is still in flight")
	ErrNoFileInFlight     = errors.New("no file in flight")
	ErrProtocolViolation  = errors.New("filter protocol violation")
	ErrFilterDiagnostic   = errors.New("filter process reported errors")
	ErrTimeout            = errors.New("filter process did not respond in time")
	ErrTransfer           = errors.New("filter transfer failed")
	ErrHookFailed         = errors.New("hook process failed")
	ErrInvalidPushUpdate  = errors.New("invalid pre-push update line")
	ErrPathMismatch       = errors.New("path does not match the file in flight")
	ErrWaitOnClose        = errors.New("waiting for close has failed")
	ErrCreateLogDirectory = errors.New("failed to create log directory")
)
