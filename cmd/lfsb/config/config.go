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

package config

import (
	"fmt"
	"io"
	"os"

	"github.com/eminwux/lfsbridge/internal/env"
	"github.com/eminwux/lfsbridge/pkg/api"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

const Command = "config"

// Effective is the resolved configuration after flags, environment and the
// config file are merged.
type Effective struct {
	ConfigFile string         `yaml:"configFile"`
	LogLevel   string         `yaml:"logLevel"`
	LogFile    string         `yaml:"logFile"`
	Filter     api.FilterSpec `yaml:"filter"`
	Hook       api.HookSpec   `yaml:"hook"`
}

func NewConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   Command,
		Short: "Print the effective configuration",
		Long: `Print the configuration lfsb would use, as YAML.

Values come from command-line flags, LFSB_* environment variables and the
config file ($HOME/.lfsb/config.yaml unless --config is given), in that order
of precedence.
`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := RepoRoot()
			if err != nil {
				return err
			}
			eff := Effective{
				ConfigFile: viper.ConfigFileUsed(),
				LogLevel:   viper.GetString(env.LOG_LEVEL.ViperKey),
				LogFile:    viper.GetString(env.LOG_FILE.ViperKey),
				Filter:     FilterSpec(root),
				Hook:       HookSpec(),
			}
			return PrintEffective(cmd.OutOrStdout(), eff)
		},
	}
	return configCmd
}

func PrintEffective(w io.Writer, eff Effective) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(eff); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// RepoRoot is the configured repository root, or the working directory.
func RepoRoot() (string, error) {
	if root := viper.GetString(env.REPO_ROOT.ViperKey); root != "" {
		return root, nil
	}
	return os.Getwd()
}

func FilterSpec(root string) api.FilterSpec {
	return api.FilterSpec{
		Command:            viper.GetString(env.FILTER_COMMAND.ViperKey),
		Args:               viper.GetStringSlice(env.FILTER_ARGS.ViperKey),
		Root:               root,
		Timeout:            viper.GetDuration(env.FILTER_TIMEOUT.ViperKey),
		AllowDegradedStart: viper.GetBool(env.FILTER_DEGRADED.ViperKey),
		StrictAccept:       viper.GetBool(env.FILTER_STRICT.ViperKey),
	}
}

func HookSpec() api.HookSpec {
	return api.HookSpec{
		Command: viper.GetString(env.HOOK_COMMAND.ViperKey),
		Remote:  viper.GetString(env.HOOK_REMOTE.ViperKey),
	}
}
