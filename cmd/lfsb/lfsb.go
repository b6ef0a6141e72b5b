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

package lfsb

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eminwux/lfsbridge/cmd/lfsb/config"
	"github.com/eminwux/lfsbridge/cmd/lfsb/filter"
	"github.com/eminwux/lfsbridge/cmd/lfsb/hook"
	"github.com/eminwux/lfsbridge/internal/env"
	"github.com/eminwux/lfsbridge/internal/errdefs"
	"github.com/eminwux/lfsbridge/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewLfsbRootCmd() (*cobra.Command, error) {
	// rootCmd represents the base command when called without any subcommands.
	rootCmd := &cobra.Command{
		Use:   "lfsb",
		Short: "lfsb bridges git content filters and hooks to a large-file agent",
		Long: `lfsb runs a long-running filter process such as "git-lfs filter-process"
and forwards files and git hook events to it.

You can see available options and commands with:
  lfsb help

Examples:
  lfsb filter smudge --path assets/logo.psd < pointer > assets/logo.psd
  lfsb hook pre-push origin < updates
  lfsb config --log-level=debug
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := LoadConfig(); err != nil {
				return fmt.Errorf("%w: %w", errdefs.ErrConfig, err)
			}
			return setupLogging(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if c, _ := cmd.Context().Value(logging.CtxCloser).(io.Closer); c != nil {
				_ = c.Close()
			}
			return nil
		},
	}

	if err := setupRootCmd(rootCmd); err != nil {
		return nil, err
	}
	return rootCmd, nil
}

func setupRootCmd(rootCmd *cobra.Command) error {
	rootCmd.AddCommand(filter.NewFilterCmd())
	rootCmd.AddCommand(hook.NewHookCmd())
	rootCmd.AddCommand(config.NewConfigCmd())

	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.lfsb/config.yaml)")
	if err := viper.BindPFlag(env.CONFIG_FILE.ViperKey, rootCmd.PersistentFlags().Lookup("config")); err != nil {
		return err
	}

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	if err := viper.BindPFlag(env.LOG_LEVEL.ViperKey, rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		return err
	}

	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of standard error")
	if err := viper.BindPFlag(env.LOG_FILE.ViperKey, rootCmd.PersistentFlags().Lookup("log-file")); err != nil {
		return err
	}
	return nil
}

// setupLogging applies the configured level and, when a log file is
// configured, moves the logger in the command context to it.
func setupLogging(cmd *cobra.Command) error {
	level := viper.GetString(env.LOG_LEVEL.ViperKey)

	if logFile := viper.GetString(env.LOG_FILE.ViperKey); logFile != "" && logFile != "stderr" {
		return logging.SetupFileLogger(cmd, logFile, level)
	}

	levelVar, ok := cmd.Context().Value(logging.CtxLevelVar).(*slog.LevelVar)
	if !ok || levelVar == nil {
		return errdefs.ErrLoggerNotFound
	}
	levelVar.Set(logging.ParseLevel(level))
	return nil
}

func LoadConfig() error {
	if configFile := viper.GetString(env.CONFIG_FILE.ViperKey); configFile != "" {
		viper.SetConfigFile(configFile)
	} else if envFile, ok := os.LookupEnv(env.CONFIG_FILE.Key); ok && envFile != "" {
		viper.SetConfigFile(envFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home dir: %w", err)
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		// Add the directory containing the config file
		viper.AddConfigPath(filepath.Join(home, ".lfsb"))
	}

	env.Bind()

	if err := viper.ReadInConfig(); err != nil {
		// File not found is OK if ENV is set
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return err // Config file was found but another error was produced
		}
	}

	return nil
}
