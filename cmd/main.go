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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eminwux/lfsbridge/cmd/lfsb"
	"github.com/eminwux/lfsbridge/internal/logging"
	"github.com/spf13/cobra"
)

type rootFactory func() (*cobra.Command, error)

func execRoot(root *cobra.Command) int {
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func runWithFactory(ctx context.Context, factory rootFactory) int {
	root, err := factory()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	root.SetContext(ctx)
	return execRoot(root)
}

func main() {
	// Standard output carries filtered content, so logs go to standard error
	// until a log file is configured.
	ctx := logging.NewContext(context.Background(), os.Stderr, slog.LevelInfo)

	// Select which subtree to run based on the executable name
	exe := filepath.Base(os.Args[0])

	factories := map[string]rootFactory{
		"lfsb": lfsb.NewLfsbRootCmd,
	}

	if factory, ok := factories[exe]; ok {
		os.Exit(runWithFactory(ctx, factory))
	}

	// LFSB_DEBUG_MODE=lfsb runs the tree under any executable name, which is
	// what happens under a debugger or go run.
	debug := os.Getenv("LFSB_DEBUG_MODE")
	if factory, ok := factories[debug]; ok {
		os.Exit(runWithFactory(ctx, factory))
	}

	fmt.Fprintf(os.Stderr, "unknown entry command: %s\n", exe)
	os.Exit(1)
}
