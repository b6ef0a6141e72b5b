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

// Package naming generates short identifiers used to correlate the log lines
// of one filter session or hook run.
package naming

import (
	"crypto/rand"
	"encoding/hex"
)

const idLength = 4

// RandomID returns idLength random bytes, hex encoded.
func RandomID() string {
	b := make([]byte, idLength)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
