// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package sse decodes Server-Sent Events streams.
package sse

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxLineSize bounds a single field line.
const maxLineSize = 1 << 20

// Event represents a Server-Sent Event.
type Event struct {
	Type  string
	Data  string
	ID    string
	Retry int
}

// Decoder decodes Server-Sent Events from an io.Reader.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder creates a new SSE decoder.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	return &Decoder{scanner: sc}
}

// Decode returns the next event. It returns io.EOF once the stream ends
// without a pending event.
func (d *Decoder) Decode() (*Event, error) {
	ev := &Event{}
	var hasData bool

	for d.scanner.Scan() {
		line := d.scanner.Text()

		// Empty line indicates end of event
		if line == "" {
			if hasData || ev.Type != "" {
				return ev, nil
			}
			continue
		}

		// Comments (lines starting with :) are ignored
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			ev.Type = value
		case "data":
			if hasData {
				ev.Data += "\n"
			}
			ev.Data += value
			hasData = true
		case "id":
			ev.ID = value
		case "retry":
			if retry, err := strconv.Atoi(value); err == nil {
				ev.Retry = retry
			}
		}
	}

	if err := d.scanner.Err(); err != nil {
		return nil, fmt.Errorf("SSE scanner error: %w", err)
	}

	// EOF reached
	if hasData || ev.Type != "" {
		return ev, nil
	}
	return nil, io.EOF
}
