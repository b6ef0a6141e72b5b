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

package hook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eminwux/lfsbridge/cmd/lfsb/config"
	"github.com/eminwux/lfsbridge/internal/env"
	"github.com/eminwux/lfsbridge/internal/errdefs"
	"github.com/eminwux/lfsbridge/internal/hook"
	"github.com/eminwux/lfsbridge/internal/logging"
	"github.com/eminwux/lfsbridge/pkg/api"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const Command string = "hook"

type invoker interface {
	PrePush(ctx context.Context, root string, updates []api.PushUpdate) error
	PostCheckout(ctx context.Context, root, oldRef, newRef string) error
	PostCommit(ctx context.Context, root string) error
}

//nolint:gochecknoglobals // replaced in tests
var newInvoker = func(logger *slog.Logger, spec api.HookSpec) invoker {
	return hook.NewInvoker(logger, spec)
}

func NewHookCmd() *cobra.Command {
	hookCmd := &cobra.Command{
		Use:   Command,
		Short: "Forward a git hook to the large-file agent",
		Long: `Forward a git hook to the large-file agent.

Install these from the repository hooks, for example .git/hooks/pre-push:
  #!/bin/sh
  exec lfsb hook pre-push "$@"

Examples:
  lfsb hook pre-push origin < updates
  lfsb hook post-checkout 1a2b3c 4d5e6f
  lfsb hook post-commit
`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	hookCmd.AddCommand(newPrePushCmd(), newPostCheckoutCmd(), newPostCommitCmd())

	hookCmd.PersistentFlags().String("hook-command", "", "Agent executable (default: git-lfs)")
	_ = viper.BindPFlag(env.HOOK_COMMAND.ViperKey, hookCmd.PersistentFlags().Lookup("hook-command"))

	return hookCmd
}

func newPrePushCmd() *cobra.Command {
	return &cobra.Command{
		Use:          string(api.HookPrePush) + " [remote [url]]",
		Short:        "Forward pre-push; ref updates are read from standard input",
		Args:         cobra.MaximumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := hook.ParsePushUpdates(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runHook(cmd, func(ctx context.Context, inv invoker, root string) error {
				return inv.PrePush(ctx, root, updates)
			}, args...)
		},
	}
}

func newPostCheckoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:          string(api.HookPostCheckout) + " OLD NEW [flag]",
		Short:        "Forward post-checkout",
		Args:         cobra.RangeArgs(2, 3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(cmd, func(ctx context.Context, inv invoker, root string) error {
				return inv.PostCheckout(ctx, root, args[0], args[1])
			})
		},
	}
}

func newPostCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:          string(api.HookPostCommit),
		Short:        "Forward post-commit",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHook(cmd, func(ctx context.Context, inv invoker, root string) error {
				return inv.PostCommit(ctx, root)
			})
		},
	}
}

// runHook builds the invoker from configuration. A remote passed by git as the
// first argument takes precedence over the configured one.
func runHook(cmd *cobra.Command, call func(context.Context, invoker, string) error, remote ...string) error {
	logger, err := logging.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	root, err := config.RepoRoot()
	if err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrConfig, err)
	}

	spec := config.HookSpec()
	if len(remote) > 0 && remote[0] != "" {
		spec.Remote = remote[0]
	}

	logger.DebugContext(cmd.Context(), "hook parameters",
		"hook", cmd.Name(),
		"command", spec.Command,
		"remote", spec.Remote,
		"root", root,
	)
	return call(cmd.Context(), newInvoker(logger, spec), root)
}
