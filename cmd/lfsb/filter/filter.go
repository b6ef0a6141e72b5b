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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/eminwux/lfsbridge/cmd/lfsb/config"
	"github.com/eminwux/lfsbridge/internal/env"
	"github.com/eminwux/lfsbridge/internal/errdefs"
	"github.com/eminwux/lfsbridge/internal/filter"
	"github.com/eminwux/lfsbridge/internal/logging"
	"github.com/eminwux/lfsbridge/pkg/api"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const (
	Command      string = "filter"
	CommandAlias string = "f"
)

//nolint:gochecknoglobals // replaced in tests
var newContentFilter = func(ctx context.Context, logger *slog.Logger, spec api.FilterSpec) api.ContentFilter {
	return filter.NewAdapter(ctx, logger, spec)
}

func NewFilterCmd() *cobra.Command {
	// filterCmd represents the filter command.
	filterCmd := &cobra.Command{
		Use:     Command + " clean|smudge --path PATH",
		Aliases: []string{CommandAlias},
		Short:   "Run one file through the long-running filter process",
		Long: `Run one file through the long-running filter process.

The content is read from standard input and the filtered result is written to
standard output. The filter process (git-lfs filter-process by default) is
started in the repository root and spoken to over the pkt-line protocol.

Examples:
  lfsb filter clean --path assets/logo.psd < assets/logo.psd > pointer
  lfsb filter smudge --path assets/logo.psd < pointer > assets/logo.psd
  LFSB_FILTER_TIMEOUT=30s lfsb filter smudge --path big.bin < pointer
`,
		Args:         cobra.ExactArgs(1),
		ValidArgs:    []string{api.FilterClean.String(), api.FilterSmudge.String()},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.FromContext(cmd.Context())
			if err != nil {
				return err
			}

			mode, err := api.ParseFilterMode(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", errdefs.ErrInvalidArgument, err)
			}

			path := viper.GetString("lfsb.filter.path")
			if path == "" {
				return fmt.Errorf("%w: --path is required", errdefs.ErrInvalidArgument)
			}

			in := cmd.InOrStdin()
			if isTerminal(in) {
				return errdefs.ErrStdinTerminal
			}

			root, err := config.RepoRoot()
			if err != nil {
				return fmt.Errorf("%w: %w", errdefs.ErrConfig, err)
			}
			spec := config.FilterSpec(root)

			logger.DebugContext(cmd.Context(), "filter parameters",
				"mode", mode.String(),
				"path", path,
				"root", root,
				"command", spec.Command,
				"args", spec.Args,
				"timeout", spec.Timeout,
				"allowDegradedStart", spec.AllowDegradedStart,
				"strictAccept", spec.StrictAccept,
			)
			cmd.Flags().VisitAll(func(f *pflag.Flag) {
				logger.DebugContext(cmd.Context(), "flag value", "name", f.Name, "value", f.Value.String())
			})

			cf := newContentFilter(cmd.Context(), logger, spec)
			out := &outputSink{Writer: bufio.NewWriter(cmd.OutOrStdout())}
			return runFilter(cf, path, root, mode, in, out)
		},
	}

	setupFilterCmdFlags(filterCmd)
	return filterCmd
}

func setupFilterCmdFlags(filterCmd *cobra.Command) {
	filterCmd.Flags().String("path", "", "Path of the file, relative to the repository root")
	filterCmd.Flags().String("root", "", "Repository root (default: current directory)")
	filterCmd.Flags().String("command", "", "Filter executable (default: git-lfs)")
	filterCmd.Flags().StringSlice("args", nil, "Filter arguments (default: filter-process)")
	filterCmd.Flags().Duration("timeout", 0, "Bound every exchange with the filter process (0 disables)")
	filterCmd.Flags().Bool("allow-degraded", false, "Log filter start failures instead of failing")
	filterCmd.Flags().Bool("strict", false, "Fail when the filter does not accept a file with status=success")

	_ = viper.BindPFlag("lfsb.filter.path", filterCmd.Flags().Lookup("path"))
	_ = viper.BindPFlag(env.REPO_ROOT.ViperKey, filterCmd.Flags().Lookup("root"))
	_ = viper.BindPFlag(env.FILTER_COMMAND.ViperKey, filterCmd.Flags().Lookup("command"))
	_ = viper.BindPFlag(env.FILTER_ARGS.ViperKey, filterCmd.Flags().Lookup("args"))
	_ = viper.BindPFlag(env.FILTER_TIMEOUT.ViperKey, filterCmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag(env.FILTER_DEGRADED.ViperKey, filterCmd.Flags().Lookup("allow-degraded"))
	_ = viper.BindPFlag(env.FILTER_STRICT.ViperKey, filterCmd.Flags().Lookup("strict"))
}

// runFilter drives the create/feed/complete lifecycle for one file and shuts
// the filter down.
func runFilter(cf api.ContentFilter, path, root string, mode api.FilterMode, in io.Reader, out io.WriteCloser) error {
	err := filterOne(cf, path, root, mode, in, out)
	return errors.Join(err, cf.Close())
}

func filterOne(cf api.ContentFilter, path, root string, mode api.FilterMode, in io.Reader, out io.WriteCloser) error {
	if err := cf.Create(path, root, mode); err != nil {
		_ = out.Close()
		return err
	}

	var err error
	switch mode {
	case api.FilterClean:
		err = cf.Clean(path, root, in, out)
	case api.FilterSmudge:
		err = cf.Smudge(path, root, in, out)
	}
	if err != nil {
		_ = out.Close()
		return err
	}

	return cf.Complete(path, root, out)
}

// outputSink flushes buffered output when the filter closes it; the
// underlying stdout stays open.
type outputSink struct {
	*bufio.Writer
}

func (o *outputSink) Close() error { return o.Flush() }

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
