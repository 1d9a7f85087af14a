// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/chzyer/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-a2a/a2a-stepup/client"
)

// scriptedLines replays lines and then reports io.EOF.
type scriptedLines struct {
	lines   []string
	errs    map[int]error
	reads   int
	prompts []string
}

func (s *scriptedLines) Readline() (string, error) {
	i := s.reads
	s.reads++
	if err, ok := s.errs[i]; ok {
		return "", err
	}
	if i >= len(s.lines) {
		return "", io.EOF
	}
	return s.lines[i], nil
}

func (s *scriptedLines) SetPrompt(prompt string) {
	s.prompts = append(s.prompts, prompt)
}

func TestLineConfirmer_Confirm(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		lines   *scriptedLines
		want    bool
		wantErr bool
	}{
		"success: yes": {
			lines: &scriptedLines{lines: []string{"yes"}},
			want:  true,
		},
		"success: yes in upper case with spaces": {
			lines: &scriptedLines{lines: []string{"  YES "}},
			want:  true,
		},
		"success: anything else declines": {
			lines: &scriptedLines{lines: []string{"y"}},
		},
		"error: input closed": {
			lines:   &scriptedLines{},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			c := &lineConfirmer{lines: tt.lines, out: &out, prompt: "Agent > You: "}
			got, err := c.Confirm(t.Context(), "The following data will be shared with the agent: SampleCredential")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "The following data will be shared with the agent: SampleCredential\n", out.String())
			assert.Equal(t, []string{"Please confirm the action (yes / no): ", "Agent > You: "}, tt.lines.prompts)
		})
	}
}

func TestREPL(t *testing.T) {
	t.Parallel()

	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		http.Error(w, "agent unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	tests := map[string]struct {
		lines     *scriptedLines
		wantPosts int32
		want      []string
		notWant   []string
	}{
		"success: new session then exit": {
			lines: &scriptedLines{lines: []string{"", "/new", "/exit", "never sent"}},
			want:  []string{"✨ Starting new session. Task and Context IDs are cleared."},
		},
		"success: failed send is reported and the loop continues": {
			lines:     &scriptedLines{lines: []string{"hello", "/EXIT"}},
			wantPosts: 1,
			want:      []string{"Sending message...", "Error communicating with agent"},
			notWant:   []string{"--- End of response stream for this input ---"},
		},
		"success: interrupt on an empty line quits": {
			lines: &scriptedLines{lines: []string{"", "not sent"}, errs: map[int]error{0: readline.ErrInterrupt}},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			before := posts.Load()

			p, buf := newTestPrinter()
			session := client.NewSession(client.New(srv.URL), nil, client.ConfirmerFunc(nil), client.WithObserver(p))
			repl(t.Context(), tt.lines, session, p)

			got := buf.String()
			for _, s := range tt.want {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, got, s)
			}
			assert.Equal(t, tt.wantPosts, posts.Load()-before)
		})
	}
}

func TestProvisionHolder(t *testing.T) {
	t.Parallel()

	holder, err := provisionHolder(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, holder)
}

func TestREPL_ReadError(t *testing.T) {
	t.Parallel()

	lines := &scriptedLines{lines: []string{"hello"}, errs: map[int]error{0: errors.New("tty gone")}}
	p, buf := newTestPrinter()
	session := client.NewSession(client.New("http://127.0.0.1:0"), nil, client.ConfirmerFunc(nil), client.WithObserver(p))
	repl(t.Context(), lines, session, p)

	assert.Equal(t, 1, lines.reads)
	assert.Empty(t, buf.String())
}
