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

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/eminwux/lfsbridge/internal/errdefs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *lineRecorder) add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *lineRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func Test_Start_PipesAndStderrDrain(t *testing.T) {
	requireShell(t)

	var stderr lineRecorder
	p, err := Start(context.Background(), testLogger(), Spec{
		Command:  "sh",
		Args:     []string{"-c", "echo first >&2; echo >&2; echo second >&2; cat"},
		OnStderr: stderr.add,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := io.WriteString(p.Stdin(), "hello filter"); err != nil {
		t.Fatalf("write stdin: %v", err)
	}
	if err := p.CloseStdin(); err != nil {
		t.Fatalf("CloseStdin: %v", err)
	}

	out, err := io.ReadAll(p.Stdout())
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if string(out) != "hello filter" {
		t.Fatalf("expected echoed stdin; got %q", out)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := stderr.get()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("expected non-empty stderr lines [first second]; got %q", got)
	}
}

func Test_Start_DrainsStdout(t *testing.T) {
	requireShell(t)

	var stdout lineRecorder
	p, err := Start(context.Background(), testLogger(), Spec{
		Command:  "sh",
		Args:     []string{"-c", "printf 'one\\ntwo'"},
		OnStdout: stdout.add,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.Stdout() != nil {
		t.Fatal("Stdout must be nil when it is drained")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := stdout.get()
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("expected [one two], including the unterminated last line; got %q", got)
	}
}

func Test_Start_WorkingDirectory(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	var stdout lineRecorder
	p, err := Start(context.Background(), testLogger(), Spec{
		Command:  "sh",
		Args:     []string{"-c", "pwd -P"},
		Dir:      dir,
		OnStdout: stdout.add,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	got := stdout.get()
	if len(got) != 1 || got[0] != want {
		t.Fatalf("expected working directory %q; got %q", want, got)
	}
}

func Test_Start_MissingBinary(t *testing.T) {
	_, err := Start(context.Background(), testLogger(), Spec{Command: "lfsb-no-such-filter-binary"})
	if !errors.Is(err, errdefs.ErrSpawn) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrSpawn, err)
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("expected '%v' in chain; got: '%v'", exec.ErrNotFound, err)
	}
}

func Test_Start_EmptyCommand(t *testing.T) {
	if _, err := Start(context.Background(), testLogger(), Spec{}); !errors.Is(err, errdefs.ErrSpawn) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrSpawn, err)
	}
}

func Test_Wait_ExitStatus(t *testing.T) {
	requireShell(t)

	p, err := Start(context.Background(), testLogger(), Spec{Command: "sh", Args: []string{"-c", "exit 3"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	err = p.Wait()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Fatalf("expected exit status 3; got %v", err)
	}
	if again := p.Wait(); again == nil {
		t.Fatal("second Wait must return the same error")
	}
}

func Test_Kill_UnblocksWait(t *testing.T) {
	requireShell(t)

	p, err := Start(context.Background(), testLogger(), Spec{Command: "sh", Args: []string{"-c", "sleep 30"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Wait() }()

	if err := p.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error from a killed process")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for killed process")
	}
}

func Test_Start_ContextCancelKills(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	p, err := Start(ctx, testLogger(), Spec{Command: "sh", Args: []string{"-c", "sleep 30"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	done := make(chan error, 1)
	go func() { done <- p.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for process after context cancel")
	}
}
