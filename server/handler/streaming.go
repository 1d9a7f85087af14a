// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/a2a-stepup/internal/pool"
)

// errStreamingUnsupported is reported when the response writer cannot flush.
var errStreamingUnsupported = errors.New("response writer does not support streaming")

// eventStream writes server-sent events. Each frame names the event in its
// event field and carries one JSON document in a single data line.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newEventStream writes the stream headers and returns the writer for frames.
func newEventStream(w http.ResponseWriter, flusher http.Flusher) *eventStream {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // For Nginx proxy
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &eventStream{w: w, flusher: flusher}
}

// Send writes one frame and flushes it.
func (s *eventStream) Send(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)

	buf.WriteString("event: ")
	buf.WriteString(name)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")

	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	s.flusher.Flush()

	return nil
}
