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

package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eminwux/lfsbridge/internal/errdefs"
	"github.com/spf13/cobra"
)

func ParseLevel(lvl string) slog.Level {
	switch lvl {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		// default if unknown
		return slog.LevelInfo
	}
}

// NewNoopLogger discards everything.
func NewNoopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewContext builds the reformatting logger on w and stores the logger, its
// level and its handler in ctx. Stdout is never used: it carries filter output.
func NewContext(ctx context.Context, w io.Writer, level slog.Level) context.Context {
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	handler := &ReformatHandler{
		Inner:  slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}),
		Writer: w,
	}

	ctx = context.WithValue(ctx, CtxLogger, slog.New(handler))
	ctx = context.WithValue(ctx, CtxLevelVar, levelVar)
	ctx = context.WithValue(ctx, CtxHandler, handler)
	return ctx
}

// FromContext returns the logger stored by NewContext.
func FromContext(ctx context.Context) (*slog.Logger, error) {
	logger, ok := ctx.Value(CtxLogger).(*slog.Logger)
	if !ok || logger == nil {
		return nil, errdefs.ErrLoggerNotFound
	}
	return logger, nil
}

// SetupFileLogger redirects the logger in the command context to logfile and
// applies loglevel. The file is stored under CtxCloser for PostRunE.
func SetupFileLogger(cmd *cobra.Command, logfile string, loglevel string) error {
	if cmd == nil || logfile == "" || loglevel == "" {
		return errors.New("cmd, logfile, and loglevel must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(logfile), 0o700); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrCreateLogDirectory, err)
	}

	f, err := os.OpenFile(logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	ctx := cmd.Context()
	handler, ok := ctx.Value(CtxHandler).(*ReformatHandler)
	if !ok || handler == nil {
		_ = f.Close()
		return errdefs.ErrLoggerNotFound
	}
	levelVar, ok := ctx.Value(CtxLevelVar).(*slog.LevelVar)
	if !ok || levelVar == nil {
		levelVar = new(slog.LevelVar)
		ctx = context.WithValue(ctx, CtxLevelVar, levelVar)
	}
	levelVar.Set(ParseLevel(loglevel))

	handler.Inner = slog.NewTextHandler(f, &slog.HandlerOptions{Level: levelVar})
	handler.Writer = f

	ctx = context.WithValue(ctx, CtxCloser, f)
	cmd.SetContext(ctx)
	return nil
}
