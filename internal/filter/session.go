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

// Package filter drives a long-running filter process (git-lfs filter-process
// and compatible agents) over the pkt-line protocol, one file at a time.
package filter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/eminwux/lfsbridge/internal/errdefs"
	"github.com/eminwux/lfsbridge/internal/naming"
	"github.com/eminwux/lfsbridge/internal/supervisor"
	"github.com/eminwux/lfsbridge/pkg/api"
	"github.com/eminwux/lfsbridge/pkg/pktline"
)

const maxDiagnostics = 32

// Process is the running filter as seen by a session.
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Close() error
	Kill() error
}

type ProcessStarter func(ctx context.Context, logger *slog.Logger, spec supervisor.Spec) (Process, error)

func startProcess(ctx context.Context, logger *slog.Logger, spec supervisor.Spec) (Process, error) {
	p, err := supervisor.Start(ctx, logger, spec)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Session is one filter process and the protocol state around it. It is meant
// for a single caller; only the stderr flag is touched from another goroutine.
type Session struct {
	ctx    context.Context
	logger *slog.Logger
	spec   api.FilterSpec

	NewProcess ProcessStarter

	proc Process
	w    *pktline.Writer
	r    *bufio.Reader

	stateMu sync.RWMutex
	state   api.SessionState

	caps     []string
	path     string
	mode     api.FilterMode
	sent     int64
	received int64
	began    time.Time

	errFlag     atomic.Bool
	diagMu      sync.Mutex
	diagnostics []string
}

func NewSession(ctx context.Context, logger *slog.Logger, spec api.FilterSpec) *Session {
	id := naming.RandomID()
	return &Session{
		ctx:        ctx,
		logger:     logger.With("filter_session", id),
		spec:       spec,
		NewProcess: startProcess,
		state:      api.Uninitialized,
	}
}

func (s *Session) State() api.SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(st api.SessionState) {
	s.stateMu.Lock()
	prev := s.state
	s.state = st
	s.stateMu.Unlock()
	if prev != st {
		s.logger.DebugContext(s.ctx, "session state", "from", prev.String(), "to", st.String())
	}
}

// Capabilities returns what the filter announced during the handshake.
func (s *Session) Capabilities() []string {
	return append([]string(nil), s.caps...)
}

// Start spawns the filter process and negotiates the protocol. With
// AllowDegradedStart set, a failure is logged and nil is returned; the session
// then rejects every file with ErrSessionBroken.
func (s *Session) Start() error {
	if st := s.State(); st != api.Uninitialized {
		return fmt.Errorf("%w: session is %s", errdefs.ErrStartFilter, st)
	}

	s.setState(api.Handshaking)
	if err := s.start(); err != nil {
		s.setState(api.SessionError)
		s.logger.ErrorContext(s.ctx, "filter process unavailable", "command", s.spec.Command, "error", err)
		if s.spec.AllowDegradedStart {
			s.logger.WarnContext(s.ctx, "continuing without a working filter process")
			return nil
		}
		return fmt.Errorf("%w: %w", errdefs.ErrStartFilter, err)
	}

	s.setState(api.SessionReady)
	s.logger.InfoContext(s.ctx, "filter session ready", "capabilities", s.caps)
	return nil
}

func (s *Session) start() error {
	proc, err := s.NewProcess(s.ctx, s.logger, supervisor.Spec{
		Command:  s.spec.Command,
		Args:     s.spec.Args,
		Dir:      s.spec.Root,
		Env:      s.spec.Env,
		OnStderr: s.onStderr,
	})
	if err != nil {
		return err
	}
	s.proc = proc
	s.w = pktline.NewWriter(proc.Stdin())
	s.r = bufio.NewReaderSize(proc.Stdout(), pktline.MaxPacketLength)

	if err := s.exchange(s.handshake); err != nil {
		s.abort()
		return fmt.Errorf("%w: %w", errdefs.ErrHandshake, err)
	}
	return nil
}

func (s *Session) handshake() error {
	if err := s.w.WriteMessageList("git-filter-client", "version=2"); err != nil {
		return err
	}
	welcome, err := pktline.ReadMessageList(s.r)
	if err != nil {
		return err
	}
	s.logger.DebugContext(s.ctx, "filter welcome", "messages", welcome)

	if err := s.w.WriteMessageList("capability=clean", "capability=smudge"); err != nil {
		return err
	}
	caps, err := pktline.ReadMessageList(s.r)
	if err != nil {
		return err
	}
	s.caps = caps
	return nil
}

func (s *Session) onStderr(line string) {
	s.diagMu.Lock()
	if len(s.diagnostics) < maxDiagnostics {
		s.diagnostics = append(s.diagnostics, line)
	}
	s.diagMu.Unlock()
	s.errFlag.Store(true)
	s.logger.WarnContext(s.ctx, "filter stderr", "line", line)
}

func (s *Session) resetDiagnostics() {
	s.diagMu.Lock()
	s.diagnostics = nil
	s.diagMu.Unlock()
	s.errFlag.Store(false)
}

func (s *Session) takeDiagnostics() []string {
	if !s.errFlag.Load() {
		return nil
	}
	s.diagMu.Lock()
	defer s.diagMu.Unlock()
	return append([]string(nil), s.diagnostics...)
}

// exchange runs one blocking request/response step. With a timeout
// configured, the process is killed when the step overruns; killing closes
// the pipes, which is what unblocks the step.
func (s *Session) exchange(step func() error) error {
	if s.spec.Timeout <= 0 {
		return step()
	}

	done := make(chan error, 1)
	go func() { done <- step() }()

	timer := time.NewTimer(s.spec.Timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		s.logger.ErrorContext(s.ctx, "filter process timed out", "timeout", s.spec.Timeout, "path", s.path)
		if err := s.proc.Kill(); err != nil {
			s.logger.WarnContext(s.ctx, "could not kill filter process", "error", err)
		}
		<-done
		return fmt.Errorf("%w after %s", errdefs.ErrTimeout, s.spec.Timeout)
	}
}

// fail marks the session unusable: after an I/O or framing error the two
// ends no longer agree on where the next packet starts.
func (s *Session) fail(err error) error {
	s.setState(api.SessionError)
	s.logger.ErrorContext(s.ctx, "filter transfer failed", "path", s.path, "error", err)
	s.abort()
	if errors.Is(err, errdefs.ErrTimeout) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", errdefs.ErrTransfer, s.path, err)
}

func (s *Session) abort() {
	if s.proc == nil {
		return
	}
	if err := s.proc.Kill(); err != nil {
		s.logger.DebugContext(s.ctx, "kill after failure", "error", err)
	}
	if err := s.proc.Close(); err != nil {
		s.logger.DebugContext(s.ctx, "close after failure", "error", err)
	}
}

func (s *Session) checkReady() error {
	switch st := s.State(); st {
	case api.SessionReady:
		return nil
	case api.Uninitialized, api.Handshaking:
		return errdefs.ErrNotStarted
	case api.InFile, api.Completing:
		return fmt.Errorf("%w: %s", errdefs.ErrFileInFlight, s.path)
	default:
		return errdefs.ErrSessionBroken
	}
}

func (s *Session) checkInFile() error {
	switch st := s.State(); st {
	case api.InFile:
		return nil
	case api.SessionReady:
		return errdefs.ErrNoFileInFlight
	case api.Uninitialized, api.Handshaking:
		return errdefs.ErrNotStarted
	case api.Completing:
		return fmt.Errorf("%w: %s", errdefs.ErrFileInFlight, s.path)
	default:
		return errdefs.ErrSessionBroken
	}
}

// Path is the file currently in flight, if any.
func (s *Session) Path() string { return s.path }

// BeginFile announces path to the filter. Only one file may be in flight; a
// second BeginFile before Complete fails with ErrFileInFlight.
func (s *Session) BeginFile(path string, mode api.FilterMode) error {
	if err := s.checkReady(); err != nil {
		return err
	}

	s.resetDiagnostics()
	s.path = path
	s.mode = mode
	s.sent = 0
	s.received = 0
	s.began = time.Now()

	var status []string
	err := s.exchange(func() error {
		if err := s.w.WriteMessageList("command="+mode.String(), "pathname="+path); err != nil {
			return err
		}
		var err error
		status, err = pktline.ReadMessageList(s.r)
		return err
	})
	if err != nil {
		return s.fail(err)
	}

	if !isSuccess(status) {
		s.logger.WarnContext(s.ctx, "command not acknowledged", "path", path, "mode", mode.String(), "status", status)
		if s.spec.StrictAccept {
			// The filter may or may not expect content now; nothing after this is trustworthy.
			s.setState(api.SessionError)
			s.abort()
			return &ProtocolError{Path: path, Status: firstStatus(status)}
		}
	}

	s.setState(api.InFile)
	s.logger.DebugContext(s.ctx, "file in flight", "path", path, "mode", mode.String())
	return nil
}

// Feed sends one chunk of the file's content.
func (s *Session) Feed(chunk []byte) error {
	return s.FeedReader(bytes.NewReader(chunk))
}

// FeedReader streams everything from r to the filter. It may be called any
// number of times for the same file.
func (s *Session) FeedReader(r io.Reader) error {
	if err := s.checkInFile(); err != nil {
		return err
	}
	var n int64
	err := s.exchange(func() error {
		var err error
		n, err = s.w.WriteStreamData(r)
		return err
	})
	s.sent += n
	if err != nil {
		return s.fail(err)
	}
	return nil
}

// Complete ends the file's content, copies the filter output into sink and
// checks the final status. sink is flushed and closed before Complete returns,
// whatever the outcome.
func (s *Session) Complete(sink io.WriteCloser) error {
	if err := s.checkInFile(); err != nil {
		if errC := closeSink(sink); errC != nil {
			s.logger.WarnContext(s.ctx, "could not close output", "error", errC)
		}
		return err
	}
	s.setState(api.Completing)

	out := &stickyWriter{w: sink}
	var status []string
	err := s.exchange(func() error {
		if err := s.w.WriteFlush(); err != nil {
			return err
		}
		n, err := pktline.ReadStreamData(out, s.r)
		s.received += n
		if err != nil {
			return err
		}
		status, err = pktline.ReadMessageList(s.r)
		return err
	})

	errClose := closeSink(sink)

	if err != nil {
		return errors.Join(s.fail(err), errClose)
	}

	diagnostics := s.takeDiagnostics()
	path := s.path
	s.resetDiagnostics()
	s.setState(api.SessionReady)

	s.logger.InfoContext(s.ctx, "file filtered",
		"path", path,
		"mode", s.mode.String(),
		"sent", humanize.Bytes(uint64(s.sent)),
		"received", humanize.Bytes(uint64(s.received)),
		"status", status,
		"elapsed", time.Since(s.began).Round(time.Millisecond),
	)

	if !isSuccess(status) || len(diagnostics) > 0 {
		return errors.Join(&ProtocolError{Path: path, Status: firstStatus(status), Diagnostics: diagnostics}, errClose)
	}
	if out.err != nil {
		return errors.Join(fmt.Errorf("%w: writing output of %s: %w", errdefs.ErrTransfer, path, out.err), errClose)
	}
	if errClose != nil {
		return fmt.Errorf("%w: closing output of %s: %w", errdefs.ErrTransfer, path, errClose)
	}
	return nil
}

// Close ends the filter's input and waits for it to exit.
func (s *Session) Close() error {
	if s.proc == nil {
		return nil
	}
	s.logger.DebugContext(s.ctx, "closing filter session")
	err := s.proc.Close()
	s.proc = nil
	s.setState(api.Uninitialized)
	if err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrWaitOnClose, err)
	}
	return nil
}

// stickyWriter keeps consuming after the first write error so the response
// stream is always read to its flush.
type stickyWriter struct {
	w   io.Writer
	err error
}

func (sw *stickyWriter) Write(p []byte) (int, error) {
	if sw.err == nil {
		_, sw.err = sw.w.Write(p)
	}
	return len(p), nil
}

type flusher interface {
	Flush() error
}

func closeSink(sink io.WriteCloser) error {
	var errFlush error
	if f, ok := sink.(flusher); ok {
		errFlush = f.Flush()
	}
	return errors.Join(errFlush, sink.Close())
}
