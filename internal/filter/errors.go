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
	"fmt"
	"strings"

	"github.com/eminwux/lfsbridge/internal/errdefs"
)

const statusSuccess = "status=success"

// ProtocolError reports a file the filter process did not accept or finish.
// Status is the first status line received; Diagnostics holds the stderr
// lines seen while the file was in flight.
type ProtocolError struct {
	Path        string
	Status      string
	Diagnostics []string
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("filter returned errors for %s: %s", e.Path, e.Status)
	if len(e.Diagnostics) > 0 {
		msg += " (stderr: " + strings.Join(e.Diagnostics, "; ") + ")"
	}
	return msg
}

func (e *ProtocolError) Unwrap() []error {
	var errs []error
	if e.Status != statusSuccess {
		errs = append(errs, errdefs.ErrProtocolViolation)
	}
	if len(e.Diagnostics) > 0 {
		errs = append(errs, errdefs.ErrFilterDiagnostic)
	}
	return errs
}

func firstStatus(status []string) string {
	if len(status) == 0 {
		return ""
	}
	return status[0]
}

func isSuccess(status []string) bool {
	return firstStatus(status) == statusSuccess
}
