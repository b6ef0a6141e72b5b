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

// Package env maps LFSB_* environment variables to viper keys.
package env

import (
	"os"

	"github.com/spf13/viper"
)

const Prefix = "LFSB"

type Var struct {
	Key        string // e.g. "LFSB_FILTER_COMMAND"
	ViperKey   string // e.g. "lfsb.filter.command"
	Default    string // optional
	HasDefault bool
}

func DefineKV(envName, viperKey string, defaultVal ...string) Var {
	v := Var{Key: Prefix + "_" + envName, ViperKey: viperKey}
	if len(defaultVal) > 0 {
		v.Default = defaultVal[0]
		v.HasDefault = true
	}
	return v
}

func (v Var) EnvKey() string { return v.Key }

func (v Var) ValueOrDefault() string {
	if v.ViperKey != "" && viper.IsSet(v.ViperKey) {
		return viper.GetString(v.ViperKey)
	}
	if val, ok := os.LookupEnv(v.Key); ok {
		return val
	}
	if v.HasDefault {
		return v.Default
	}
	return ""
}

func (v Var) BindEnv() error {
	if v.ViperKey == "" {
		return nil
	}
	return viper.BindEnv(v.ViperKey, v.Key)
}

func (v Var) Set(value string) error { return os.Setenv(v.Key, value) }

func (v *Var) SetDefault(val string) {
	v.Default = val
	v.HasDefault = true
	if v.ViperKey != "" {
		viper.SetDefault(v.ViperKey, val)
	}
}

func KV(v Var, value string) string { return v.Key + "=" + value }

var (
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	CONFIG_FILE = DefineKV("CONFIG_FILE", "lfsb.global.configFile")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	LOG_LEVEL = DefineKV("LOG_LEVEL", "lfsb.global.logLevel", "info")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	LOG_FILE = DefineKV("LOG_FILE", "lfsb.global.logFile")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	REPO_ROOT = DefineKV("REPO_ROOT", "lfsb.repo.root")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	FILTER_COMMAND = DefineKV("FILTER_COMMAND", "lfsb.filter.command", "git-lfs")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	FILTER_ARGS = DefineKV("FILTER_ARGS", "lfsb.filter.args", "filter-process")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	FILTER_TIMEOUT = DefineKV("FILTER_TIMEOUT", "lfsb.filter.timeout", "0s")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	FILTER_DEGRADED = DefineKV("FILTER_DEGRADED", "lfsb.filter.allowDegradedStart", "false")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	FILTER_STRICT = DefineKV("FILTER_STRICT", "lfsb.filter.strictAccept", "false")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	HOOK_COMMAND = DefineKV("HOOK_COMMAND", "lfsb.hook.command", "git-lfs")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	HOOK_REMOTE = DefineKV("HOOK_REMOTE", "lfsb.hook.remote", "origin")
)

// All lists every variable, in the order `lfsb config` prints them.
//
//nolint:gochecknoglobals // registry
var All = []*Var{
	&CONFIG_FILE, &LOG_LEVEL, &LOG_FILE, &REPO_ROOT,
	&FILTER_COMMAND, &FILTER_ARGS, &FILTER_TIMEOUT, &FILTER_DEGRADED, &FILTER_STRICT,
	&HOOK_COMMAND, &HOOK_REMOTE,
}

// Bind binds every variable to its environment key and registers defaults.
func Bind() {
	for _, v := range All {
		_ = v.BindEnv()
		if v.HasDefault {
			v.SetDefault(v.Default)
		}
	}
}
