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

import "fmt"

type HookEvent string

const (
	HookPrePush      HookEvent = "pre-push"
	HookPostCheckout HookEvent = "post-checkout"
	HookPostCommit   HookEvent = "post-commit"
)

// PushUpdate is one ref update announced to the pre-push hook.
type PushUpdate struct {
	SourceRef      string `json:"sourceRef"      yaml:"sourceRef"`
	SourceOID      string `json:"sourceOid"      yaml:"sourceOid"`
	DestinationRef string `json:"destinationRef" yaml:"destinationRef"`
	DestinationOID string `json:"destinationOid" yaml:"destinationOid"`
}

// Line renders the update the way it is written to the hook process.
func (u PushUpdate) Line() string {
	return fmt.Sprintf(" %s %s %s %s\n", u.DestinationRef, u.DestinationOID, u.SourceRef, u.SourceOID)
}

// HookSpec defines the executable that receives hook events.
type HookSpec struct {
	Command string   `json:"command"       yaml:"command"`
	Env     []string `json:"env,omitempty" yaml:"env,omitempty"`
	Remote  string   `json:"remote"        yaml:"remote"`
}
