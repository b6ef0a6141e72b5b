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

package e2e_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Netflix/go-expect"
	"github.com/creack/pty"
)

const lfsb = "lfsb"

// binPath returns the built lfsb binary, skipping the test when it is absent.
func binPath(t *testing.T) string {
	t.Helper()

	dir := os.Getenv("E2E_BIN_DIR")
	if dir == "" {
		dir = ".." // or detect repo root
	}
	bin, err := filepath.Abs(filepath.Join(dir, lfsb))
	if err != nil {
		t.Fatalf("resolve binary path: %v", err)
	}
	if _, err := os.Stat(bin); os.IsNotExist(err) {
		t.Skipf("binary %s not found, skipping", bin)
	}
	return bin
}

// runBinary runs lfsb with args in dir, feeding stdin, and returns stdout and
// stderr separately.
func runBinary(t *testing.T, dir string, env []string, stdin string, args ...string) (string, string, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binPath(t), args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "HOME="+t.TempDir())
	cmd.Env = append(cmd.Env, env...)
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func TestLfsb_Help(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{"-h"}, {"--help"}, {"filter", "--help"}, {"hook", "--help"}} {
		out, _, err := runBinary(t, t.TempDir(), nil, "", args...)
		if err != nil {
			t.Fatalf("lfsb %v: %v", args, err)
		}
		if !strings.Contains(out, "lfsb") {
			t.Fatalf("lfsb %v printed no usage:\n%s", args, out)
		}
	}
}

func TestLfsb_Config(t *testing.T) {
	t.Parallel()

	out, _, err := runBinary(t, t.TempDir(), []string{"LFSB_FILTER_TIMEOUT=2m"}, "", "config")
	if err != nil {
		t.Fatalf("lfsb config: %v", err)
	}
	for _, want := range []string{"command: git-lfs", "timeout: 2m0s", "remote: origin"} {
		if !strings.Contains(out, want) {
			t.Fatalf("config output missing %q:\n%s", want, out)
		}
	}
}

func TestLfsb_FilterRefusesTerminal(t *testing.T) {
	console, err := expect.NewConsole(expect.WithDefaultTimeout(10 * time.Second))
	if err != nil {
		t.Fatalf("NewConsole: %v", err)
	}
	defer console.Close()

	if errSize := pty.Setsize(console.Tty(), &pty.Winsize{Cols: 120, Rows: 40}); errSize != nil {
		t.Logf("error setting pty size: %v", errSize)
	}

	cmd := exec.Command(binPath(t), "filter", "clean", "--path", "a.bin")
	cmd.Dir = t.TempDir()
	cmd.Env = append(os.Environ(), "HOME="+t.TempDir())
	cmd.Stdin = console.Tty()
	cmd.Stdout = console.Tty()
	cmd.Stderr = console.Tty()
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := console.ExpectString("stdin is a terminal"); err != nil {
		t.Fatalf("expected terminal refusal: %v", err)
	}

	errWait := cmd.Wait()
	var exitErr *exec.ExitError
	if !errors.As(errWait, &exitErr) || exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit status 1, got %v", errWait)
	}
}

func TestLfsb_HookPostCommit(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	repo := t.TempDir()
	agent := filepath.Join(t.TempDir(), "agent")
	script := "#!/bin/sh\necho \"$@\" > hook-args\n"
	if err := os.WriteFile(agent, []byte(script), 0o755); err != nil {
		t.Fatalf("write agent: %v", err)
	}

	_, stderr, err := runBinary(t, repo, []string{"LFSB_HOOK_COMMAND=" + agent}, "", "hook", "post-checkout", "aaaa", "bbbb", "1")
	if err != nil {
		t.Fatalf("lfsb hook post-checkout: %v\n%s", err, stderr)
	}
	got, err := os.ReadFile(filepath.Join(repo, "hook-args"))
	if err != nil {
		t.Fatalf("agent did not run: %v", err)
	}
	if string(got) != "post-checkout aaaa bbbb 0\n" {
		t.Fatalf("agent args = %q", got)
	}
}

// TestLfsb_FilterWithGitLFS runs a clean and a smudge through a real
// git-lfs filter-process.
func TestLfsb_FilterWithGitLFS(t *testing.T) {
	for _, tool := range []string{"git", "git-lfs"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available", tool)
		}
	}

	repo := t.TempDir()
	home := t.TempDir()
	gitEnv := append(os.Environ(), "HOME="+home, "GIT_CONFIG_NOSYSTEM=1")
	for _, args := range [][]string{{"init", "-q"}, {"lfs", "install", "--local"}} {
		git := exec.Command("git", args...)
		git.Dir = repo
		git.Env = gitEnv
		if out, err := git.CombinedOutput(); err != nil {
			t.Skipf("git %v failed: %v\n%s", args, err, out)
		}
	}

	content := strings.Repeat("large binary content\n", 2048)
	pointer, stderr, err := runBinary(t, repo, nil, content, "filter", "clean", "--path", "big.bin", "--timeout", "30s")
	if err != nil {
		t.Fatalf("clean: %v\n%s", err, stderr)
	}
	if !strings.HasPrefix(pointer, "version https://git-lfs.github.com/spec/v1\n") ||
		!strings.Contains(pointer, "size 43008\n") {
		t.Fatalf("unexpected pointer:\n%s", pointer)
	}

	smudged, stderr, err := runBinary(t, repo, nil, pointer, "filter", "smudge", "--path", "big.bin", "--timeout", "30s")
	if err != nil {
		t.Fatalf("smudge: %v\n%s", err, stderr)
	}
	if smudged != content {
		t.Fatalf("smudge returned %d bytes, want %d", len(smudged), len(content))
	}
}
