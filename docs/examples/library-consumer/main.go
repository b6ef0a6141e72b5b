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

// Command library-consumer is a toy long-running filter built on pkg/pktline.
// It upper-cases every file on clean and smudge, which makes it handy for
// trying lfsb without git-lfs:
//
//	lfsb filter clean --path notes.txt --command ./library-consumer --args "" < notes.txt
package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/eminwux/lfsbridge/pkg/pktline"
)

func main() {
	if err := serve(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve() error {
	r := bufio.NewReader(os.Stdin)
	w := pktline.NewWriter(os.Stdout)

	if _, err := pktline.ReadMessageList(r); err != nil {
		return fmt.Errorf("welcome: %w", err)
	}
	if err := w.WriteMessageList("git-filter-server", "version=2"); err != nil {
		return err
	}
	caps, err := pktline.ReadMessageList(r)
	if err != nil {
		return fmt.Errorf("capabilities: %w", err)
	}
	if err := w.WriteMessageList(caps...); err != nil {
		return err
	}

	for {
		header, err := pktline.ReadMessageList(r)
		if errors.Is(err, pktline.ErrUnterminatedList) && len(header) == 0 {
			return nil
		}
		if err != nil {
			return err
		}
		command := valueOf(header, "command=")
		if command != "clean" && command != "smudge" {
			if err := w.WriteMessageList("status=error"); err != nil {
				return err
			}
			continue
		}
		if err := w.WriteMessageList("status=success"); err != nil {
			return err
		}

		var content bytes.Buffer
		if _, err := pktline.ReadStreamData(&content, r); err != nil {
			return err
		}
		if _, err := w.WriteStreamData(bytes.NewReader(bytes.ToUpper(content.Bytes()))); err != nil {
			return err
		}
		if err := w.WriteFlush(); err != nil {
			return err
		}
		if err := w.WriteMessageList("status=success"); err != nil {
			return err
		}
	}
}

func valueOf(msgs []string, prefix string) string {
	for _, m := range msgs {
		if v, ok := strings.CutPrefix(m, prefix); ok {
			return v
		}
	}
	return ""
}
