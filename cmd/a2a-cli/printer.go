// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	a2a "github.com/go-a2a/a2a-stepup"
	"github.com/go-a2a/a2a-stepup/client"
)

// palette holds the colors of the terminal output.
type palette struct {
	bright, dim, gray   *color.Color
	red, green, yellow  *color.Color
	blue, magenta, cyan *color.Color
}

func newPalette(enabled bool) palette {
	c := func(attrs ...color.Attribute) *color.Color {
		col := color.New(attrs...)
		if enabled {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
		return col
	}
	return palette{
		bright:  c(color.Bold),
		dim:     c(color.Faint),
		gray:    c(color.FgHiBlack),
		red:     c(color.FgRed),
		green:   c(color.FgGreen),
		yellow:  c(color.FgYellow),
		blue:    c(color.FgBlue),
		magenta: c(color.FgMagenta),
		cyan:    c(color.FgCyan),
	}
}

// printer renders session events and notices for a terminal.
type printer struct {
	out       io.Writer
	c         palette
	agentName string
	now       func() time.Time
}

var _ client.Observer = (*printer)(nil)

func newPrinter(out io.Writer, colored bool) *printer {
	return &printer{
		out:       out,
		c:         newPalette(colored),
		agentName: "Agent",
		now:       time.Now,
	}
}

func (p *printer) prefix() string {
	return p.c.magenta.Sprintf("\n%s [%s]:", p.agentName, p.now().Format(time.TimeOnly))
}

// Card prints the agent card and adopts its name for later output.
func (p *printer) Card(card *a2a.AgentCard) {
	if card.Name != "" {
		p.agentName = card.Name
	}

	fmt.Fprintln(p.out, p.c.green.Sprint("✓ Agent Card Found:"))
	fmt.Fprintf(p.out, "  Name:        %s\n", p.c.bright.Sprint(p.agentName))
	if card.Description != "" {
		fmt.Fprintf(p.out, "  Description: %s\n", card.Description)
	}
	fmt.Fprintf(p.out, "  Version:     %s\n", orNA(card.Version))
	if card.Capabilities.Streaming {
		fmt.Fprintf(p.out, "  Streaming:   %s\n", p.c.green.Sprint("Supported"))
	} else {
		fmt.Fprintf(p.out, "  Streaming:   %s\n", p.c.yellow.Sprint("Not Supported (or not specified)"))
	}
	if card.SupportsExtension(a2a.InTaskOID4VPExtensionURI) {
		fmt.Fprintf(p.out, "  In-task auth: %s\n", p.c.green.Sprint("OID4VP"))
	}
}

// Event implements [client.Observer].
func (p *printer) Event(_ context.Context, ev a2a.Event) {
	switch e := ev.(type) {
	case *a2a.TaskStatusUpdateEvent:
		emoji, col := p.stateStyle(e.Status.State)
		final := ""
		if e.Final {
			final = p.c.bright.Sprint("[FINAL]")
		}
		fmt.Fprintf(p.out, "%s %s Status: %s (Task: %s, Context: %s) %s\n",
			p.prefix(), emoji, col.Sprint(e.Status.State), e.TaskID, e.ContextID, final)
		if e.Status.Message != nil {
			p.parts(e.Status.Message.Parts)
		}

	case *a2a.TaskArtifactUpdateEvent:
		name := e.Artifact.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(p.out, "%s 📄 Artifact Received: %s (ID: %s, Task: %s, Context: %s)\n",
			p.prefix(), name, e.Artifact.ArtifactID, e.TaskID, e.ContextID)
		p.parts(e.Artifact.Parts)

	case *a2a.Message:
		fmt.Fprintf(p.out, "%s %s\n", p.prefix(), p.c.green.Sprint("✉️ Message Stream Event:"))
		p.parts(e.Parts)

	case *a2a.Task:
		fmt.Fprintf(p.out, "%s %s ID: %s, Context: %s, Status: %s\n",
			p.prefix(), p.c.blue.Sprint("ℹ️ Task Stream Event:"), e.ID, e.ContextID, e.Status.State)
		if e.Status.Message != nil {
			fmt.Fprintln(p.out, p.c.gray.Sprint("   Task includes message:"))
			p.parts(e.Status.Message.Parts)
		}
		if n := len(e.Artifacts); n > 0 {
			fmt.Fprintln(p.out, p.c.gray.Sprintf("   Task includes %d artifact(s).", n))
		}

	default:
		fmt.Fprintf(p.out, "%s %s %T\n", p.prefix(), p.c.yellow.Sprint("Received unknown event type:"), ev)
	}
}

// Notice implements [client.Observer].
func (p *printer) Notice(_ context.Context, level client.NoticeLevel, text string) {
	col := p.c.green
	switch level {
	case client.NoticeWarning:
		col = p.c.yellow
	case client.NoticeError:
		col = p.c.red
	}
	fmt.Fprintln(p.out, col.Sprint(text))
}

// Error reports a failed exchange.
func (p *printer) Error(err error) {
	head := p.c.red.Sprintf("\n%s [%s] ERROR:", p.agentName, p.now().Format(time.TimeOnly))
	fmt.Fprintf(p.out, "%s Error communicating with agent: %v\n", head, err)

	var rpcErr *a2a.JSONRPCError
	if errors.As(err, &rpcErr) {
		fmt.Fprintln(p.out, p.c.gray.Sprintf("   Code: %d", rpcErr.Code))
		if rpcErr.Data != nil {
			fmt.Fprintln(p.out, p.c.gray.Sprintf("   Data: %v", rpcErr.Data))
		}
	}
}

func (p *printer) stateStyle(state a2a.TaskState) (string, *color.Color) {
	switch state {
	case a2a.TaskStateWorking:
		return "⏳", p.c.blue
	case a2a.TaskStateInputRequired:
		return "🤔", p.c.yellow
	case a2a.TaskStateCompleted:
		return "✅", p.c.green
	case a2a.TaskStateCanceled:
		return "⏹️", p.c.gray
	case a2a.TaskStateFailed:
		return "❌", p.c.red
	default:
		return "ℹ️", p.c.dim
	}
}

func (p *printer) parts(parts a2a.Parts) {
	for i, part := range parts {
		head := p.c.red.Sprintf("  Part %d:", i+1)
		switch part := part.(type) {
		case *a2a.TextPart:
			fmt.Fprintf(p.out, "%s %s %s\n", head, p.c.green.Sprint("📝 Text:"), part.Text)
		case *a2a.FilePart:
			source := part.File.URI
			if part.File.Bytes != "" {
				source = "Inline (bytes)"
			}
			fmt.Fprintf(p.out, "%s %s Name: %s, Type: %s, Source: %s\n", head, p.c.blue.Sprint("📄 File:"),
				orNA(part.File.Name), orNA(part.File.MimeType), source)
		case *a2a.DataPart:
			data, err := json.Marshal(part.Data, jsontext.WithIndent("  "))
			if err != nil {
				data = []byte(err.Error())
			}
			fmt.Fprintf(p.out, "%s %s %s\n", head, p.c.yellow.Sprint("📊 Data:"), data)
		default:
			fmt.Fprintf(p.out, "%s %s %T\n", head, p.c.yellow.Sprint("Unsupported part kind:"), part)
		}
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
