// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Command a2a-cli is an interactive terminal client for A2A agents. It streams
// every answer and presents a wallet credential when an agent asks for in-task
// authorization.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/go-a2a/a2a-stepup/client"
	"github.com/go-a2a/a2a-stepup/internal/config"
)

const defaultAgentURL = "http://localhost:10003"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	agentURL    string
	historyFile string
	noColor     bool
	log         config.LogConfig
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "a2a-cli [agent-url]",
		Short:        "Chat with an A2A agent from the terminal",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.agentURL = defaultAgentURL
			if len(args) == 1 {
				opts.agentURL = args[0]
			}
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.historyFile, "history", "", "readline history file (default in the user cache dir)")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&opts.log.Level, "log-level", "error", "debug, info, warn or error")
	flags.StringVar(&opts.log.Format, "log-format", "text", "text or json")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	logger, err := opts.log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	p := newPrinter(color.Output, !opts.noColor && !color.NoColor)

	fmt.Fprintln(p.out, p.c.bright.Sprint("A2A Terminal Client"))
	fmt.Fprintln(p.out, p.c.dim.Sprintf("Agent Base URL: %s", opts.agentURL))

	holder, err := provisionHolder(nil, logger)
	if err != nil {
		return fmt.Errorf("provision wallet: %w", err)
	}

	fmt.Fprintln(p.out, p.c.dim.Sprintf("Attempting to fetch agent card from agent at: %s", opts.agentURL))
	card, err := client.NewCardResolver(opts.agentURL, nil).GetAgentCard(ctx, "")
	if err != nil {
		fmt.Fprintln(p.out, p.c.yellow.Sprint("⚠️ Error fetching or parsing agent card"))
		return err
	}
	p.Card(card)

	rpcURL := card.URL
	if rpcURL == "" {
		rpcURL = opts.agentURL
	}

	historyFile := opts.historyFile
	if historyFile == "" {
		if historyFile, err = defaultHistoryFile(); err != nil {
			logger.WarnContext(ctx, "history is not persisted", slog.Any("error", err))
		}
	}
	prompt := p.c.cyan.Sprintf("%s > You: ", p.agentName)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           readline.NewCancelableStdin(os.Stdin),
		Stdout:          p.out,
		Stderr:          os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	session := client.NewSession(
		client.New(rpcURL, client.WithLogger(logger)),
		holder,
		&lineConfirmer{lines: rl, out: p.out, prompt: prompt},
		client.WithObserver(p),
		client.WithSessionLogger(logger),
	)

	fmt.Fprintln(p.out, p.c.dim.Sprint("No active task or context initially. Use '/new' to start a fresh session or send a message."))
	fmt.Fprintln(p.out, p.c.green.Sprint("Enter messages, or use '/new' to start a new session. '/exit' to quit."))

	repl(ctx, rl, session, p)

	fmt.Fprintln(p.out, p.c.yellow.Sprint("\nExiting A2A Terminal Client. Goodbye!"))
	return nil
}

// lineReader is the part of [*readline.Instance] the client reads with.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

func repl(ctx context.Context, lines lineReader, session *client.Session, p *printer) {
	for {
		line, err := lines.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return
			}
			continue
		}
		if err != nil {
			// io.EOF on Ctrl+D
			return
		}

		input := strings.TrimSpace(line)
		switch strings.ToLower(input) {
		case "":
			continue
		case "/exit":
			return
		case "/new":
			session.Reset()
			fmt.Fprintln(p.out, p.c.bright.Sprint("✨ Starting new session. Task and Context IDs are cleared."))
			continue
		}

		fmt.Fprintln(p.out, p.c.red.Sprint("Sending message..."))
		sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		err = session.Send(sendCtx, input)
		stop()
		if err != nil {
			p.Error(err)
			continue
		}
		fmt.Fprintln(p.out, p.c.dim.Sprint("--- End of response stream for this input ---"))
	}
}

// lineConfirmer asks for a typed "yes" before credentials are shared.
type lineConfirmer struct {
	lines  lineReader
	out    io.Writer
	prompt string
}

var _ client.Confirmer = (*lineConfirmer)(nil)

// Confirm implements [client.Confirmer].
func (c *lineConfirmer) Confirm(_ context.Context, description string) (bool, error) {
	fmt.Fprintln(c.out, description)
	c.lines.SetPrompt("Please confirm the action (yes / no): ")
	defer c.lines.SetPrompt(c.prompt)

	answer, err := c.lines.Readline()
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(answer), "yes"), nil
}

func defaultHistoryFile() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "a2a-stepup")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "cli_history"), nil
}
