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

// Package pktline implements the length-prefixed packet framing used by git's
// long-running process protocol. A packet is four lowercase hex digits holding
// the total packet length (including those four bytes) followed by the payload.
// Lengths below four are control packets: "0000" is a flush, "0001" a delimiter.
//
// Text packets carry one message and a trailing line feed that is counted in
// the length but is not part of the message. Binary packets carry raw bytes
// with no terminator.
package pktline

import (
	"errors"
	"fmt"
	"io"
)

const (
	// LengthSize is the size of the hex length prefix.
	LengthSize = 4
	// MaxPacketLength is the largest length the prefix can express.
	MaxPacketLength = 0xffff
	// MaxPayloadLength is the largest binary payload in one packet.
	MaxPayloadLength = MaxPacketLength - LengthSize
	// MaxMessageLength is the largest text message in one packet (one byte goes to the LF).
	MaxMessageLength = MaxPayloadLength - 1
	// ChunkSize is the payload size used when streaming content.
	ChunkSize = 8192
)

var (
	flushPkt = []byte("0000")
	delimPkt = []byte("0001")
)

var (
	ErrCorruptFrame     = errors.New("pktline: corrupt packet length")
	ErrPayloadTooLarge  = errors.New("pktline: payload too large")
	ErrUnterminatedList = errors.New("pktline: stream ended before flush")
)

// PacketType distinguishes data packets from control packets.
type PacketType int

const (
	Data PacketType = iota
	Flush
)

func (t PacketType) String() string {
	switch t {
	case Data:
		return "data"
	case Flush:
		return "flush"
	default:
		return fmt.Sprintf("PacketType(%d)", int(t))
	}
}

// Packet is one decoded frame. Every control packet decodes as Flush; Code
// keeps the raw length so a delimiter (1) can still be told apart.
type Packet struct {
	Type    PacketType
	Code    int
	Payload []byte
}

// IsFlush reports whether the packet ends a list or a stream.
func (p Packet) IsFlush() bool { return p.Type == Flush }

// flusher is implemented by buffered sinks such as *bufio.Writer.
type flusher interface {
	Flush() error
}

func flush(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

func appendLength(dst []byte, n int) []byte {
	const hex = "0123456789abcdef"
	return append(dst, hex[n>>12&0xf], hex[n>>8&0xf], hex[n>>4&0xf], hex[n&0xf])
}

// EncodeMessage frames text as a text packet with a trailing line feed.
func EncodeMessage(text string) ([]byte, error) {
	if len(text) > MaxMessageLength {
		return nil, fmt.Errorf("%w: message of %d bytes", ErrPayloadTooLarge, len(text))
	}
	n := len(text) + LengthSize + 1
	buf := make([]byte, 0, n)
	buf = appendLength(buf, n)
	buf = append(buf, text...)
	return append(buf, '\n'), nil
}

// EncodeChunk frames b as a binary packet. No terminator is added.
func EncodeChunk(b []byte) ([]byte, error) {
	if len(b) > MaxPayloadLength {
		return nil, fmt.Errorf("%w: chunk of %d bytes", ErrPayloadTooLarge, len(b))
	}
	n := len(b) + LengthSize
	buf := make([]byte, 0, n)
	buf = appendLength(buf, n)
	return append(buf, b...), nil
}

// WriteMessage writes a single text packet without flushing.
func WriteMessage(w io.Writer, text string) error {
	pkt, err := EncodeMessage(text)
	if err != nil {
		return err
	}
	_, err = w.Write(pkt)
	return err
}

// WriteChunk writes a single binary packet without flushing.
func WriteChunk(w io.Writer, b []byte) error {
	pkt, err := EncodeChunk(b)
	if err != nil {
		return err
	}
	_, err = w.Write(pkt)
	return err
}

// WriteMessageList writes msgs in order followed by a flush packet.
func WriteMessageList(w io.Writer, msgs ...string) error {
	for _, m := range msgs {
		if err := WriteMessage(w, m); err != nil {
			return err
		}
	}
	return WriteFlush(w)
}

// WriteFlush writes "0000" and flushes w if it is buffered.
func WriteFlush(w io.Writer) error {
	if _, err := w.Write(flushPkt); err != nil {
		return err
	}
	return flush(w)
}

// WriteDelimiter writes "0001".
func WriteDelimiter(w io.Writer) error {
	_, err := w.Write(delimPkt)
	return err
}
