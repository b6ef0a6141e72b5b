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
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eminwux/lfsbridge/internal/env"
	"github.com/eminwux/lfsbridge/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func Test_setupRootCmd_HappyPath(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
	})

	rootCmd := &cobra.Command{Use: "lfsb"}
	if err := setupRootCmd(rootCmd); err != nil {
		t.Fatalf("setupRootCmd() error = %v", err)
	}

	flagCases := []struct {
		name     string
		flagName string
		value    string
		viperKey string
	}{
		{name: "config", flagName: "config", value: "/tmp/lfsb.yaml", viperKey: env.CONFIG_FILE.ViperKey},
		{name: "log-level", flagName: "log-level", value: "debug", viperKey: env.LOG_LEVEL.ViperKey},
		{name: "log-file", flagName: "log-file", value: "/tmp/lfsb.log", viperKey: env.LOG_FILE.ViperKey},
	}

	for _, tc := range flagCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := rootCmd.PersistentFlags().Set(tc.flagName, tc.value); err != nil {
				t.Fatalf("failed to set flag %s: %v", tc.flagName, err)
			}
			if got := viper.GetString(tc.viperKey); got != tc.value {
				t.Fatalf("viper key %s expected %s, got %s", tc.viperKey, tc.value, got)
			}
		})
	}

	for _, name := range []string{"filter", "hook", "config"} {
		if cmd, _, err := rootCmd.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %s not registered", name)
		}
	}
}

func Test_LoadConfig_HappyPath(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
	})

	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `lfsb:
  filter:
    command: my-agent
    timeout: 45s
  hook:
    remote: upstream
`
	if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(env.CONFIG_FILE.Key, configFile)
	t.Setenv(env.FILTER_STRICT.Key, "true")

	if err := LoadConfig(); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if got := viper.GetString(env.FILTER_COMMAND.ViperKey); got != "my-agent" {
		t.Fatalf("filter command = %q, want my-agent", got)
	}
	if got := viper.GetDuration(env.FILTER_TIMEOUT.ViperKey).String(); got != "45s" {
		t.Fatalf("filter timeout = %s, want 45s", got)
	}
	if got := viper.GetString(env.HOOK_REMOTE.ViperKey); got != "upstream" {
		t.Fatalf("hook remote = %q, want upstream", got)
	}
	if !viper.GetBool(env.FILTER_STRICT.ViperKey) {
		t.Fatalf("LFSB_FILTER_STRICT not applied")
	}
	if got := viper.GetString(env.FILTER_ARGS.ViperKey); got != "filter-process" {
		t.Fatalf("filter args default = %q", got)
	}
}

func Test_LoadConfig_MissingDefaultFile(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
	})
	t.Setenv("HOME", t.TempDir())
	t.Setenv(env.CONFIG_FILE.Key, "")

	if err := LoadConfig(); err != nil {
		t.Fatalf("a missing default config file must not fail: %v", err)
	}
	if got := viper.GetString(env.LOG_LEVEL.ViperKey); got != "info" {
		t.Fatalf("log level default = %q", got)
	}
}

func Test_RootCmd_ConfigOutput(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
	})
	t.Setenv("HOME", t.TempDir())
	t.Setenv(env.CONFIG_FILE.Key, "")
	t.Setenv(env.FILTER_COMMAND.Key, "custom-lfs")

	root, err := NewLfsbRootCmd()
	if err != nil {
		t.Fatalf("NewLfsbRootCmd: %v", err)
	}
	root.SetContext(logging.NewContext(context.Background(), io.Discard, slog.LevelInfo))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"config", "--log-level", "debug"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{"command: custom-lfs", "- filter-process", "logLevel: debug"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("config output missing %q:\n%s", want, out.String())
		}
	}

	levelVar, _ := root.Context().Value(logging.CtxLevelVar).(*slog.LevelVar)
	if levelVar == nil || levelVar.Level() != slog.LevelDebug {
		t.Fatalf("log level not applied to the context logger")
	}
}

func Test_RootCmd_LogFile(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
	})
	t.Setenv("HOME", t.TempDir())
	t.Setenv(env.CONFIG_FILE.Key, "")

	logFile := filepath.Join(t.TempDir(), "logs", "lfsb.log")
	root, err := NewLfsbRootCmd()
	if err != nil {
		t.Fatalf("NewLfsbRootCmd: %v", err)
	}
	root.SetContext(logging.NewContext(context.Background(), io.Discard, slog.LevelInfo))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"config", "--log-file", logFile})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(logFile); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}
