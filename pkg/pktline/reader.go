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
	"errors"
	"fmt"
	"io"
)

func parseLength(b []byte) (int, error) {
	n := 0
	for _, c := range b {
		n <<= 4
		switch {
		case c >= '0' && c <= '9':
			n |= int(c - '0')
		case c >= 'a' && c <= 'f':
			n |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			n |= int(c-'A') + 10
		default:
			return 0, fmt.Errorf("%w: %q", ErrCorruptFrame, b)
		}
	}
	return n, nil
}

// ReadPacket decodes one packet from r.
//
// A clean end of stream before the length prefix returns io.EOF. In text mode
// the last payload byte is dropped when it is a line feed; when it is not, it
// is kept as data so a sender that omits the terminator loses nothing.
func ReadPacket(r io.Reader, text bool) (Packet, error) {
	var hdr [LengthSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Packet{}, err
	}

	n, err := parseLength(hdr[:])
	if err != nil {
		return Packet{}, err
	}
	if n < LengthSize {
		return Packet{Type: Flush, Code: n}, nil
	}

	size := n - LengthSize
	if size == 0 {
		return Packet{Type: Data, Code: n, Payload: []byte{}}, nil
	}

	if !text {
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return Packet{}, truncated(err)
		}
		return Packet{Type: Data, Code: n, Payload: payload}, nil
	}

	payload := make([]byte, size-1, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Packet{}, truncated(err)
	}
	var last [1]byte
	if _, err := io.ReadFull(r, last[:]); err != nil {
		return Packet{}, truncated(err)
	}
	if last[0] != '\n' {
		payload = append(payload, last[0])
	}
	return Packet{Type: Data, Code: n, Payload: payload}, nil
}

// truncated maps an EOF inside a packet body to io.ErrUnexpectedEOF.
func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// ReadMessageList reads text packets up to and excluding the next flush.
func ReadMessageList(r io.Reader) ([]string, error) {
	var msgs []string
	for {
		pkt, err := ReadPacket(r, true)
		if err != nil {
			return msgs, listErr(err)
		}
		if pkt.IsFlush() {
			return msgs, nil
		}
		msgs = append(msgs, string(pkt.Payload))
	}
}

// ReadBinaryPacketList reads binary packets up to and excluding the next flush.
// It keeps every chunk in memory; prefer NewStreamReader for file content.
func ReadBinaryPacketList(r io.Reader) ([][]byte, error) {
	var chunks [][]byte
	for {
		pkt, err := ReadPacket(r, false)
		if err != nil {
			return chunks, listErr(err)
		}
		if pkt.IsFlush() {
			return chunks, nil
		}
		chunks = append(chunks, pkt.Payload)
	}
}

func listErr(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrUnterminatedList
	}
	return err
}
