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

package pktline

import (
	"bufio"
	"errors"
	"io"
)

// WriteStreamData frames everything read from in as binary packets of at most
// ChunkSize bytes and flushes w. It does not write the terminating flush
// packet: one file may span several calls.
func WriteStreamData(w io.Writer, in io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)
	var total int64
	for {
		n, err := io.ReadFull(in, buf)
		if n > 0 {
			if werr := WriteChunk(w, buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return total, err
		}
	}
	return total, flush(w)
}

// ReadStreamData copies the binary packets of one stream into w, stopping at
// the terminating flush. Chunks are written through as they are decoded.
func ReadStreamData(w io.Writer, r io.Reader) (int64, error) {
	return io.Copy(w, NewStreamReader(r))
}

// StreamReader exposes a flush-terminated sequence of binary packets as a
// plain byte stream. Read returns io.EOF once the flush packet is consumed.
type StreamReader struct {
	r       io.Reader
	pending []byte
	done    bool
	err     error
}

func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r}
}

func (s *StreamReader) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		if s.done {
			return 0, io.EOF
		}
		pkt, err := ReadPacket(s.r, false)
		if err != nil {
			s.err = listErr(err)
			return 0, s.err
		}
		if pkt.IsFlush() {
			s.done = true
			return 0, io.EOF
		}
		s.pending = pkt.Payload
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Writer buffers packets for an underlying stream. Each logical unit (a
// message list, a flush, a block of stream data) is flushed as a whole.
type Writer struct {
	bw *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, ChunkSize+LengthSize)}
}

func (w *Writer) Write(p []byte) (int, error) { return w.bw.Write(p) }

func (w *Writer) Flush() error { return w.bw.Flush() }

func (w *Writer) WriteMessageList(msgs ...string) error {
	return WriteMessageList(w.bw, msgs...)
}

func (w *Writer) WriteFlush() error {
	return WriteFlush(w.bw)
}

func (w *Writer) WriteStreamData(in io.Reader) (int64, error) {
	return WriteStreamData(w.bw, in)
}
